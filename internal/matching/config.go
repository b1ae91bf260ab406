package matching

import (
	"fmt"
	"math"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// Config holds per-field thresholds and weights for record scoring.
type Config struct {
	// NameThreshold is the similarity a name field needs to count as matched.
	NameThreshold     float64
	DateToleranceDays int

	// AmountThresholdPct is the largest percentage variance that still matches.
	AmountThresholdPct float64

	// Weights by field name. Optional fields (facility, PO) only take part
	// when the invoice carries a value for them.
	Weights map[string]float64
}

// DefaultConfig returns the default weights and thresholds.
func DefaultConfig() Config {
	return Config{
		NameThreshold:      0.85,
		DateToleranceDays:  3,
		AmountThresholdPct: 1.0,
		Weights: map[string]float64{
			models.FieldInvoiceNumber: 0.4,
			models.FieldVendorName:    0.2,
			models.FieldCustomerName:  0.15,
			models.FieldInvoiceDate:   0.15,
			models.FieldTotalAmount:   0.1,
			models.FieldFacilityName:  0.1,
			models.FieldPONumber:      0.1,
		},
	}
}

// Validate rejects thresholds and weights that would yield meaningless scores.
func (c Config) Validate() error {
	if c.NameThreshold <= 0 || c.NameThreshold > 1 {
		return fmt.Errorf("name threshold %.2f outside (0,1]: %w", c.NameThreshold, models.ErrInvalidConfiguration)
	}
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance must not be negative: %w", models.ErrInvalidConfiguration)
	}
	if c.AmountThresholdPct < 0 || math.IsNaN(c.AmountThresholdPct) {
		return fmt.Errorf("amount threshold must not be negative: %w", models.ErrInvalidConfiguration)
	}

	var core float64
	for name, w := range c.Weights {
		if !isKnownField(name) {
			return fmt.Errorf("weight for unknown field %q: %w", name, models.ErrInvalidConfiguration)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight for %s must be a non-negative number: %w", name, models.ErrInvalidConfiguration)
		}
		if !isOptionalField(name) {
			core += w
		}
	}
	if core <= 0 {
		return fmt.Errorf("core field weights sum to zero: %w", models.ErrInvalidConfiguration)
	}
	return nil
}

// fieldOrder is the fixed evaluation order, which is also the discrepancy order.
var fieldOrder = []string{
	models.FieldInvoiceNumber,
	models.FieldVendorName,
	models.FieldCustomerName,
	models.FieldInvoiceDate,
	models.FieldTotalAmount,
	models.FieldFacilityName,
	models.FieldPONumber,
}

func isKnownField(name string) bool {
	for _, f := range fieldOrder {
		if f == name {
			return true
		}
	}
	return false
}

func isOptionalField(name string) bool {
	return name == models.FieldFacilityName || name == models.FieldPONumber
}
