package records

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

const fieldBalance = "balance"

// FieldSourceID names the column that carries a candidate's id in the system of record.
const FieldSourceID = "source_id"

// Converter turns rows into records by way of the column mapping of one file.
type Converter struct {
	columns map[string]int
	log     zerolog.Logger
}

// NewConverter builds a converter from the header mappings of a file, in
// column order. When a field is mapped by more than one column, the first
// column wins.
func NewConverter(mappings []models.HeaderMapping) (*Converter, error) {
	const op = "NewConverter"

	columns := make(map[string]int)
	for i, m := range mappings {
		if !m.IsMapped() {
			continue
		}
		if _, ok := columns[m.MappedField]; !ok {
			columns[m.MappedField] = i
		}
	}

	_, hasNumber := columns[models.FieldInvoiceNumber]
	_, hasVendor := columns[models.FieldVendorName]
	if !hasNumber && !hasVendor {
		return nil, fmt.Errorf("%s: need an %s or %s column: %w", op, models.FieldInvoiceNumber, models.FieldVendorName, ErrNoMappedFields)
	}

	return &Converter{
		columns: columns,
		log:     logger.WithComponent("records"),
	}, nil
}

// FromColumns builds a converter from a fixed field -> column index layout.
func FromColumns(columns map[string]int) *Converter {
	copied := make(map[string]int, len(columns))
	for field, index := range columns {
		copied[field] = index
	}
	return &Converter{
		columns: copied,
		log:     logger.WithComponent("records"),
	}
}

// Column returns the column index mapped to field.
func (c *Converter) Column(field string) (int, bool) {
	index, ok := c.columns[field]
	return index, ok
}

func (c *Converter) value(row []string, field string) string {
	index, ok := c.columns[field]
	if !ok {
		return ""
	}
	return cell(row, index)
}

// Invoices converts data rows into invoice records. Blank rows are skipped.
// Unparseable dates and amounts are logged and left unset so the matcher
// reports them as missing.
func (c *Converter) Invoices(rows [][]string) []models.InvoiceRecord {
	invoices := make([]models.InvoiceRecord, 0, len(rows))
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		invoices = append(invoices, c.invoice(row, i+1))
	}

	c.log.Debug().
		Int("rows", len(rows)).
		Int("invoices", len(invoices)).
		Msg("Converted statement rows")

	return invoices
}

// Candidates converts rows read from a system of record. Rows without a
// source_id column get "<prefix>:<row>" ids.
func (c *Converter) Candidates(rows [][]string, prefix string) []models.CandidateRecord {
	candidates := make([]models.CandidateRecord, 0, len(rows))
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		inv := c.invoice(row, i+1)
		id := c.value(row, FieldSourceID)
		if id == "" {
			id = fmt.Sprintf("%s:%d", prefix, i+1)
		}
		candidates = append(candidates, inv.AsCandidate(id))
	}
	return candidates
}

func (c *Converter) invoice(row []string, rowNum int) models.InvoiceRecord {
	inv := models.InvoiceRecord{
		InvoiceNumber: c.value(row, models.FieldInvoiceNumber),
		VendorName:    c.value(row, models.FieldVendorName),
		CustomerName:  c.value(row, models.FieldCustomerName),
		FacilityName:  c.value(row, models.FieldFacilityName),
		PONumber:      c.value(row, models.FieldPONumber),
	}

	if raw := c.value(row, models.FieldInvoiceDate); raw != "" {
		date, err := ParseDate(raw)
		if err != nil {
			c.log.Warn().
				Str("date_str", raw).
				Int("row", rowNum).
				Msg("Invalid invoice date, leaving it unset")
		} else {
			inv.InvoiceDate = date
		}
	}

	amountField := models.FieldTotalAmount
	if _, ok := c.columns[amountField]; !ok {
		amountField = fieldBalance
	}
	if raw := c.value(row, amountField); raw != "" {
		amount, err := ParseAmount(raw)
		if err != nil && !errors.Is(err, ErrEmptyValue) {
			c.log.Warn().
				Str("amount_str", raw).
				Int("row", rowNum).
				Msg("Invalid amount, leaving it unset")
		} else if err == nil {
			inv.TotalAmount = models.Amount(amount)
		}
	}

	return inv
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
