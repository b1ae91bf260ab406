// Package records converts tabular statement rows into invoice and candidate
// records using a header mapping.
package records

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyValue     = errors.New("empty value")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDate    = errors.New("invalid date")
	ErrNoMappedFields = errors.New("no mapped record fields")
)

// dateLayouts are tried in order. Slash dates are read month first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"01-02-06",
	"1-2-06",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"2.1.06",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"02-Jan-06",
}

// Excel serial day numbers between these bounds are accepted as dates (1954..2119).
const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// ParseDate parses the date formats found on vendor statements, including
// Excel serial day numbers.
func ParseDate(s string) (time.Time, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return time.Time{}, ErrEmptyValue
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}

	if serial, err := strconv.ParseFloat(cleaned, 64); err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseAmount parses a money amount. Currency symbols and codes are ignored,
// a leading or trailing minus and accounting parentheses mean negative, and
// the decimal separator is inferred so both "1,234.56" and "1.234,56" work.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0, ErrEmptyValue
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "("), ")")
	}
	cleaned = strings.TrimSpace(cleaned)
	if strings.HasSuffix(cleaned, "-") {
		negative = !negative
		cleaned = strings.TrimSuffix(cleaned, "-")
	}

	// Keep digits and separators. A minus before the first digit flips the sign.
	var b strings.Builder
	for _, r := range cleaned {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			negative = !negative
		}
	}
	digits := normalizeSeparators(b.String())
	if digits == "" || strings.Trim(digits, ".") == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q (cleaned: %s)", ErrInvalidAmount, s, digits)
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

// normalizeSeparators rewrites s so that "." is the only (decimal) separator.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Whichever comes last is the decimal separator.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			return parts[0] + "." + parts[1]
		}
		return strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}

// Cells converts a row of arbitrary cell values into trimmed strings.
func Cells(row []interface{}) []string {
	cells := make([]string, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		cells[i] = strings.TrimSpace(fmt.Sprintf("%v", v))
	}
	return cells
}

func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}
