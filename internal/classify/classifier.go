// Package classify turns ranked match results into a Found, Not Found or
// Partial Match verdict.
package classify

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/matching"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// Config holds the classification thresholds. Scores equal to a threshold meet it.
type Config struct {
	FoundThreshold   float64
	PartialThreshold float64
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		FoundThreshold:   0.95,
		PartialThreshold: 0.5,
	}
}

// Validate requires 0 <= partial <= found <= 1.
func (c Config) Validate() error {
	if c.FoundThreshold <= 0 || c.FoundThreshold > 1 {
		return fmt.Errorf("found threshold %.2f outside (0,1]: %w", c.FoundThreshold, models.ErrInvalidConfiguration)
	}
	if c.PartialThreshold < 0 || c.PartialThreshold > c.FoundThreshold {
		return fmt.Errorf("partial threshold %.2f outside [0,%.2f]: %w", c.PartialThreshold, c.FoundThreshold, models.ErrInvalidConfiguration)
	}
	return nil
}

// Classifier is a pure function of its configuration and the match results.
type Classifier struct {
	config Config
	log    zerolog.Logger
}

// NewClassifier validates config and builds a classifier.
func NewClassifier(config Config) (*Classifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("classify.NewClassifier: %w", err)
	}
	return &Classifier{
		config: config,
		log:    logger.WithComponent("classify"),
	}, nil
}

// Classify returns the verdict for one invoice. criteriaUsed records which
// fields were queried at the candidate source.
func (c *Classifier) Classify(results []models.MatchResult, criteriaUsed []string) models.ClassificationOutcome {
	ranked := append([]models.MatchResult(nil), results...)
	matching.Rank(ranked)

	outcome := models.ClassificationOutcome{
		Classification:     models.ClassificationNotFound,
		RankedMatches:      ranked,
		SearchCriteriaUsed: append([]string{}, criteriaUsed...),
	}
	if len(ranked) == 0 {
		return outcome
	}

	var perfect []int
	for i := range ranked {
		if c.isPerfect(&ranked[i]) {
			perfect = append(perfect, i)
		}
	}

	switch {
	case len(perfect) == 1:
		outcome.Classification = models.ClassificationFound
		outcome.BestMatch = &ranked[perfect[0]]
	case ranked[0].ConfidenceScore < c.config.PartialThreshold:
		// ranked[0] is the highest score, so every candidate is below the band.
	default:
		// Several perfect candidates mean the system of record holds duplicates;
		// that needs a human, so it is surfaced as a partial match.
		if len(perfect) > 1 {
			c.log.Warn().Int("duplicates", len(perfect)).Msg("Several candidates match perfectly")
		}
		outcome.Classification = models.ClassificationPartialMatch
		outcome.BestMatch = &ranked[0]
	}
	return outcome
}

func (c *Classifier) isPerfect(r *models.MatchResult) bool {
	return r.ConfidenceScore >= c.config.FoundThreshold && len(r.Discrepancies) == 0
}
