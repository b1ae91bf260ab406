package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

func TestFieldMarks(t *testing.T) {
	m := &models.MatchResult{
		MatchedFields: []string{"invoice_number", "vendor_name"},
		FieldScores: map[string]float64{
			"invoice_number": 1.0,
			"total_amount":   0.4,
			"vendor_name":    0.95,
		},
	}
	assert.Equal(t, "invoice_number ✓, total_amount ✗, vendor_name ✓", fieldMarks(m))

	assert.Equal(t, "po_number ✓", fieldMarks(&models.MatchResult{MatchedFields: []string{"po_number"}}))
	assert.Equal(t, "", fieldMarks(&models.MatchResult{}))
}
