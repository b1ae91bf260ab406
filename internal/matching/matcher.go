// Package matching scores candidate records from the system of record against
// an extracted invoice, field by field, and ranks them.
package matching

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/similarity"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

const dateLayout = "2006-01-02"

// Matcher scores candidates. It is stateless and safe for concurrent use.
type Matcher struct {
	config Config
	log    zerolog.Logger
}

// NewMatcher validates config and builds a matcher.
func NewMatcher(config Config) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("matching.NewMatcher: %w", err)
	}
	weights := make(map[string]float64, len(config.Weights))
	for k, v := range config.Weights {
		weights[k] = v
	}
	config.Weights = weights

	return &Matcher{
		config: config,
		log:    logger.WithComponent("matching"),
	}, nil
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// Match scores every candidate and returns the results ranked by confidence,
// then matched field count, then source id.
func (m *Matcher) Match(invoice models.InvoiceRecord, candidates []models.CandidateRecord) []models.MatchResult {
	results := make([]models.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, m.Score(invoice, c))
	}
	Rank(results)

	m.log.Debug().
		Str("invoice", invoice.Key()).
		Int("candidates", len(candidates)).
		Msg("Candidates scored")
	return results
}

// Rank sorts results in place into the deterministic ranking order.
func Rank(results []models.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		if len(a.MatchedFields) != len(b.MatchedFields) {
			return len(a.MatchedFields) > len(b.MatchedFields)
		}
		return a.Candidate.SourceID < b.Candidate.SourceID
	})
}

// fieldOutcome is the evaluation of one field on one candidate.
type fieldOutcome struct {
	score       float64
	matched     bool
	discrepancy *models.FieldDiscrepancy
}

// Score compares one candidate against the invoice.
func (m *Matcher) Score(invoice models.InvoiceRecord, candidate models.CandidateRecord) models.MatchResult {
	result := models.MatchResult{
		Candidate:     candidate,
		MatchedFields: []string{},
		Discrepancies: []models.FieldDiscrepancy{},
		FieldScores:   make(map[string]float64, len(fieldOrder)),
	}

	var weighted, total float64
	for _, field := range fieldOrder {
		w := m.config.Weights[field]
		if w <= 0 || !m.participates(field, invoice) {
			continue
		}

		out := m.evaluate(field, invoice, candidate)
		out.score = similarity.Clamp01(out.score)

		weighted += w * out.score
		total += w
		result.FieldScores[field] = out.score
		if out.matched {
			result.MatchedFields = append(result.MatchedFields, field)
		} else if out.discrepancy != nil {
			result.Discrepancies = append(result.Discrepancies, *out.discrepancy)
		}
	}

	if total > 0 {
		result.ConfidenceScore = similarity.Clamp01(weighted / total)
	}
	return result
}

func (m *Matcher) participates(field string, invoice models.InvoiceRecord) bool {
	switch field {
	case models.FieldFacilityName:
		return strings.TrimSpace(invoice.FacilityName) != ""
	case models.FieldPONumber:
		return strings.TrimSpace(invoice.PONumber) != ""
	default:
		return true
	}
}

func (m *Matcher) evaluate(field string, inv models.InvoiceRecord, c models.CandidateRecord) fieldOutcome {
	switch field {
	case models.FieldInvoiceNumber:
		return identifierOutcome(field, inv.InvoiceNumber, c.InvoiceNumber)
	case models.FieldPONumber:
		return identifierOutcome(field, inv.PONumber, c.PONumber)
	case models.FieldVendorName:
		return m.nameOutcome(field, inv.VendorName, c.VendorName)
	case models.FieldCustomerName:
		return m.nameOutcome(field, inv.CustomerName, c.CustomerName)
	case models.FieldFacilityName:
		return m.nameOutcome(field, inv.FacilityName, c.FacilityName)
	case models.FieldInvoiceDate:
		return m.dateOutcome(inv.InvoiceDate, c.InvoiceDate)
	case models.FieldTotalAmount:
		return m.amountOutcome(inv.TotalAmount, c.TotalAmount)
	}
	return fieldOutcome{}
}

// identifierOutcome compares identifiers exactly after trimming and case folding.
// Identifiers are never fuzzy-scored.
func identifierOutcome(field, expected, actual string) fieldOutcome {
	e, a := strings.TrimSpace(expected), strings.TrimSpace(actual)
	if e == "" || a == "" {
		return missing(field, e, a)
	}
	if strings.EqualFold(e, a) {
		return fieldOutcome{score: 1, matched: true}
	}
	return fieldOutcome{discrepancy: &models.FieldDiscrepancy{
		FieldName:     field,
		ExpectedValue: e,
		ActualValue:   a,
		VarianceType:  models.VarianceNameMismatch,
	}}
}

func (m *Matcher) nameOutcome(field, expected, actual string) fieldOutcome {
	e, a := strings.TrimSpace(expected), strings.TrimSpace(actual)
	if e == "" || a == "" {
		return missing(field, e, a)
	}
	score := similarity.StringSimilarity(e, a)
	if score >= m.config.NameThreshold {
		return fieldOutcome{score: score, matched: true}
	}
	return fieldOutcome{score: score, discrepancy: &models.FieldDiscrepancy{
		FieldName:     field,
		ExpectedValue: e,
		ActualValue:   a,
		VarianceType:  models.VarianceNameMismatch,
	}}
}

func (m *Matcher) dateOutcome(expected, actual time.Time) fieldOutcome {
	if expected.IsZero() || actual.IsZero() {
		return missing(models.FieldInvoiceDate, formatDate(expected), formatDate(actual))
	}
	tol := m.config.DateToleranceDays
	score := similarity.DateDistanceScore(expected, actual, tol)
	if similarity.DateWithinTolerance(expected, actual, tol) {
		return fieldOutcome{score: score, matched: true}
	}
	days := float64(similarity.DaysBetween(expected, actual))
	return fieldOutcome{score: score, discrepancy: &models.FieldDiscrepancy{
		FieldName:      models.FieldInvoiceDate,
		ExpectedValue:  formatDate(expected),
		ActualValue:    formatDate(actual),
		VarianceType:   models.VarianceDate,
		VarianceAmount: &days,
	}}
}

func (m *Matcher) amountOutcome(expected, actual *float64) fieldOutcome {
	if expected == nil || actual == nil {
		return missing(models.FieldTotalAmount, formatAmount(expected), formatAmount(actual))
	}
	threshold := m.config.AmountThresholdPct
	score := similarity.AmountScore(*expected, *actual, threshold)
	if similarity.AmountWithinThreshold(*expected, *actual, threshold) {
		return fieldOutcome{score: score, matched: true}
	}
	abs, pct := similarity.AmountVariance(*expected, *actual)
	return fieldOutcome{score: score, discrepancy: &models.FieldDiscrepancy{
		FieldName:          models.FieldTotalAmount,
		ExpectedValue:      formatAmount(expected),
		ActualValue:        formatAmount(actual),
		VarianceType:       models.VarianceAmount,
		VarianceAmount:     &abs,
		VariancePercentage: &pct,
	}}
}

func missing(field, expected, actual string) fieldOutcome {
	return fieldOutcome{discrepancy: &models.FieldDiscrepancy{
		FieldName:     field,
		ExpectedValue: expected,
		ActualValue:   actual,
		VarianceType:  models.VarianceMissingField,
	}}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
