// Package tabular extracts the header row and data rows of CSV and XLSX
// statement files.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoHeaderRow       = errors.New("no header row")
)

// Table is a parsed file: the header row found after skipping rows, and the
// rows that follow it.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Read parses path and returns its table. The first skipRows rows are
// discarded and the next row is the header. Trailing empty header cells are
// dropped.
func Read(ctx context.Context, path string, skipRows int) (*Table, error) {
	const op = "tabular.Read"

	if skipRows < 0 {
		return nil, fmt.Errorf("%s: skip_rows must not be negative, got %d", op, skipRows)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := readRows(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, path, err)
	}
	if skipRows >= len(rows) {
		return nil, fmt.Errorf("%s: %s has %d rows, skip_rows=%d: %w", op, path, len(rows), skipRows, ErrNoHeaderRow)
	}

	headers := trimTrailingEmpty(trimCells(rows[skipRows]))
	if len(headers) == 0 {
		return nil, fmt.Errorf("%s: %s row %d is empty: %w", op, path, skipRows+1, ErrNoHeaderRow)
	}

	data := make([][]string, 0, len(rows)-skipRows-1)
	for _, row := range rows[skipRows+1:] {
		data = append(data, trimCells(row))
	}
	return &Table{Headers: headers, Rows: data}, nil
}

func readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoHeaderRow
	}
	return f.GetRows(sheet)
}

// stripBOM drops a UTF-8 byte order mark written by spreadsheet exports.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || string(buf[:n]) != "\xef\xbb\xbf" {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	return r
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end]
}
