package mapping

import (
	"fmt"
	"time"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// Config holds the header mapper thresholds. All are product defaults, not constants.
type Config struct {
	// FuzzyFloor is the similarity a fuzzy alias match must exceed.
	FuzzyFloor float64

	// AutoApplyThreshold is the confidence an oracle suggestion must exceed
	// before it may replace a computed mapping.
	AutoApplyThreshold float64

	MaxSuggestions int
	OracleTimeout  time.Duration
	Workers        int
}

// DefaultConfig returns the default mapper configuration.
func DefaultConfig() Config {
	return Config{
		FuzzyFloor:         0.5,
		AutoApplyThreshold: 0.8,
		MaxSuggestions:     5,
		OracleTimeout:      5 * time.Second,
		Workers:            4,
	}
}

// Validate rejects thresholds that would produce meaningless scores.
func (c Config) Validate() error {
	if c.FuzzyFloor < 0 || c.FuzzyFloor >= 1 {
		return fmt.Errorf("fuzzy floor %.2f outside [0,1): %w", c.FuzzyFloor, models.ErrInvalidConfiguration)
	}
	if c.AutoApplyThreshold < 0 || c.AutoApplyThreshold >= 1 {
		return fmt.Errorf("auto-apply threshold %.2f outside [0,1): %w", c.AutoApplyThreshold, models.ErrInvalidConfiguration)
	}
	if c.MaxSuggestions < 1 {
		return fmt.Errorf("max suggestions must be positive: %w", models.ErrInvalidConfiguration)
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("oracle timeout must be positive: %w", models.ErrInvalidConfiguration)
	}
	return nil
}
