package models

import "time"

// VarianceType classifies a field-level discrepancy.
type VarianceType string

const (
	VarianceAmount       VarianceType = "amount_variance"
	VarianceDate         VarianceType = "date_variance"
	VarianceNameMismatch VarianceType = "name_mismatch"
	VarianceMissingField VarianceType = "missing_field"
)

// FieldDiscrepancy is a mismatch between an invoice field and a candidate field.
type FieldDiscrepancy struct {
	FieldName          string       `json:"field_name"`
	ExpectedValue      string       `json:"expected_value"`
	ActualValue        string       `json:"actual_value"`
	VarianceType       VarianceType `json:"variance_type"`
	VarianceAmount     *float64     `json:"variance_amount,omitempty"`
	VariancePercentage *float64     `json:"variance_percentage,omitempty"`
}

// MatchResult is the scored comparison of one invoice against one candidate.
type MatchResult struct {
	Candidate       CandidateRecord    `json:"candidate"`
	ConfidenceScore float64            `json:"confidence_score"` // 0.0-1.0
	MatchedFields   []string           `json:"matched_fields"`
	Discrepancies   []FieldDiscrepancy `json:"discrepancies"`
	FieldScores     map[string]float64 `json:"field_scores,omitempty"`
}

// HasMatched reports whether field met its own threshold.
func (m *MatchResult) HasMatched(field string) bool {
	for _, f := range m.MatchedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Classification is the final verdict for one invoice.
type Classification string

const (
	ClassificationFound        Classification = "Found"
	ClassificationNotFound     Classification = "Not Found"
	ClassificationPartialMatch Classification = "Partial Match"
)

// ClassificationOutcome is the classifier's verdict with its supporting evidence.
type ClassificationOutcome struct {
	Classification     Classification `json:"classification"`
	BestMatch          *MatchResult   `json:"best_match"`
	RankedMatches      []MatchResult  `json:"ranked_matches"`
	SearchCriteriaUsed []string       `json:"search_criteria_used"`
	ProcessingTime     time.Duration  `json:"processing_time"`
}
