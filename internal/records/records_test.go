package records

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1234.56", 1234.56},
		{"$1,234.56", 1234.56},
		{"1.234,56", 1234.56},
		{"1234,56", 1234.56},
		{"EUR 1.234,56", 1234.56},
		{"1,234", 1234},
		{"1.234.567", 1234567},
		{"(45.00)", -45},
		{"-$12.50", -12.5},
		{"12.50-", -12.5},
		{"  99 € ", 99},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseAmountErrors(t *testing.T) {
	_, err := ParseAmount("   ")
	assert.ErrorIs(t, err, ErrEmptyValue)

	_, err = ParseAmount("n/a")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("USD")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	inputs := []string{
		"2024-03-05",
		"2024/03/05",
		"03/05/2024",
		"3/5/2024",
		"03/05/24",
		"05.03.2024",
		"5.3.2024",
		"Mar 5, 2024",
		"March 5, 2024",
		"5 Mar 2024",
		"05-Mar-2024",
		"45356",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDate(in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}
}

func TestParseDateErrors(t *testing.T) {
	_, err := ParseDate("")
	assert.ErrorIs(t, err, ErrEmptyValue)

	_, err = ParseDate("yesterday")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseDate("12")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func mappings(fields ...string) []models.HeaderMapping {
	out := make([]models.HeaderMapping, len(fields))
	for i, f := range fields {
		out[i] = models.HeaderMapping{OriginalHeader: f, MappedField: f, ConfidenceScore: 100, Method: models.MethodExactAlias}
	}
	return out
}

func TestNewConverterRequiresIdentifyingColumn(t *testing.T) {
	_, err := NewConverter(mappings(models.FieldTotalAmount, models.UnmappedField))
	assert.ErrorIs(t, err, ErrNoMappedFields)
}

func TestConverterInvoices(t *testing.T) {
	cols := mappings(models.FieldInvoiceNumber, models.UnmappedField, models.FieldInvoiceDate, models.FieldTotalAmount, models.FieldVendorName, models.FieldInvoiceNumber)
	conv, err := NewConverter(cols)
	require.NoError(t, err)

	index, ok := conv.Column(models.FieldInvoiceNumber)
	require.True(t, ok)
	assert.Equal(t, 0, index, "first column wins for a repeated field")

	rows := [][]string{
		{"INV-1", "ignored", "2024-03-05", "$1,200.00", "Acme Corp", "dup"},
		{"", "", "", "", ""},
		{"INV-2", "", "not a date", "??", "Acme Corp"},
		{"INV-3", "", "03/07/2024"},
	}

	invoices := conv.Invoices(rows)
	require.Len(t, invoices, 3)

	assert.Equal(t, "INV-1", invoices[0].InvoiceNumber)
	assert.Equal(t, "Acme Corp", invoices[0].VendorName)
	require.NotNil(t, invoices[0].TotalAmount)
	assert.InDelta(t, 1200.0, *invoices[0].TotalAmount, 1e-9)
	assert.Equal(t, 2024, invoices[0].InvoiceDate.Year())

	assert.True(t, invoices[1].InvoiceDate.IsZero())
	assert.Nil(t, invoices[1].TotalAmount)

	assert.Equal(t, "INV-3", invoices[2].InvoiceNumber)
	assert.Empty(t, invoices[2].VendorName)
	assert.Nil(t, invoices[2].TotalAmount)
}

func TestConverterBalanceFallback(t *testing.T) {
	conv := FromColumns(map[string]int{models.FieldInvoiceNumber: 0, "balance": 1})
	invoices := conv.Invoices([][]string{{"INV-9", "10,50"}})
	require.Len(t, invoices, 1)
	require.NotNil(t, invoices[0].TotalAmount)
	assert.InDelta(t, 10.5, *invoices[0].TotalAmount, 1e-9)
}

func TestConverterCandidates(t *testing.T) {
	conv := FromColumns(map[string]int{"source_id": 0, models.FieldInvoiceNumber: 1})
	candidates := conv.Candidates([][]string{
		{"erp-7", "INV-1"},
		{"", "INV-2"},
	}, "sheet")

	require.Len(t, candidates, 2)
	assert.Equal(t, "erp-7", candidates[0].SourceID)
	assert.Equal(t, "sheet:2", candidates[1].SourceID)
	assert.Equal(t, "INV-2", candidates[1].InvoiceNumber)
}

func TestCells(t *testing.T) {
	assert.Equal(t, []string{"a", "", "12.5"}, Cells([]interface{}{" a ", nil, 12.5}))
}
