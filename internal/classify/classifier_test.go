package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravpcu/vendor-statements-sub000/internal/matching"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultConfig())
	require.NoError(t, err)
	return c
}

func result(id string, score float64, discrepancies ...models.FieldDiscrepancy) models.MatchResult {
	return models.MatchResult{
		Candidate:       models.CandidateRecord{SourceID: id},
		ConfidenceScore: score,
		Discrepancies:   discrepancies,
	}
}

var amountOff = models.FieldDiscrepancy{
	FieldName:      models.FieldTotalAmount,
	ExpectedValue:  "1000.00",
	ActualValue:    "1050.00",
	VarianceType:   models.VarianceAmount,
	VarianceAmount: models.Amount(50),
}

func TestClassify_EmptyIsNotFound(t *testing.T) {
	out := newClassifier(t).Classify(nil, []string{models.FieldInvoiceNumber})
	assert.Equal(t, models.ClassificationNotFound, out.Classification)
	assert.Nil(t, out.BestMatch)
	assert.Empty(t, out.RankedMatches)
	assert.Equal(t, []string{models.FieldInvoiceNumber}, out.SearchCriteriaUsed)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		results  []models.MatchResult
		want     models.Classification
		wantBest string
	}{
		{"perfect", []models.MatchResult{result("a", 1.0)}, models.ClassificationFound, "a"},
		{"at found threshold", []models.MatchResult{result("a", 0.95)}, models.ClassificationFound, "a"},
		{"high score with discrepancy", []models.MatchResult{result("a", 0.97, amountOff)}, models.ClassificationPartialMatch, "a"},
		{"between thresholds", []models.MatchResult{result("a", 0.7)}, models.ClassificationPartialMatch, "a"},
		{"at partial threshold", []models.MatchResult{result("a", 0.5)}, models.ClassificationPartialMatch, "a"},
		{"all below partial", []models.MatchResult{result("a", 0.49), result("b", 0.2)}, models.ClassificationNotFound, ""},
		{
			"found beats higher scoring candidate with discrepancy",
			[]models.MatchResult{result("x", 0.99, amountOff), result("y", 0.96)},
			models.ClassificationFound, "y",
		},
		{
			"duplicates are partial",
			[]models.MatchResult{result("b", 1.0), result("a", 1.0)},
			models.ClassificationPartialMatch, "a",
		},
		{
			"partial picks highest score",
			[]models.MatchResult{result("low", 0.55), result("high", 0.8, amountOff), result("mid", 0.6)},
			models.ClassificationPartialMatch, "high",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newClassifier(t).Classify(tt.results, nil)
			assert.Equal(t, tt.want, out.Classification)
			if tt.wantBest == "" {
				assert.Nil(t, out.BestMatch)
			} else {
				require.NotNil(t, out.BestMatch)
				assert.Equal(t, tt.wantBest, out.BestMatch.Candidate.SourceID)
			}
			require.Len(t, out.RankedMatches, len(tt.results))
			for i := 1; i < len(out.RankedMatches); i++ {
				assert.GreaterOrEqual(t, out.RankedMatches[i-1].ConfidenceScore, out.RankedMatches[i].ConfidenceScore)
			}
		})
	}
}

func TestClassify_DiscrepanciesSurfaceVerbatim(t *testing.T) {
	out := newClassifier(t).Classify([]models.MatchResult{result("a", 0.97, amountOff)}, nil)
	require.NotNil(t, out.BestMatch)
	assert.Equal(t, []models.FieldDiscrepancy{amountOff}, out.BestMatch.Discrepancies)
}

func TestClassify_FromMatcher(t *testing.T) {
	m, err := matching.NewMatcher(matching.DefaultConfig())
	require.NoError(t, err)

	inv := models.InvoiceRecord{
		InvoiceNumber: "INV-100",
		VendorName:    "Acme",
		CustomerName:  "Riverside",
		InvoiceDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		TotalAmount:   models.Amount(250),
	}
	same := inv.AsCandidate("db-1")
	shifted := inv.AsCandidate("db-2")
	shifted.InvoiceDate = inv.InvoiceDate.AddDate(0, 0, 3)

	out := newClassifier(t).Classify(m.Match(inv, []models.CandidateRecord{shifted, same}), []string{models.FieldInvoiceNumber})
	assert.Equal(t, models.ClassificationFound, out.Classification)
	require.NotNil(t, out.BestMatch)
	assert.Equal(t, "db-1", out.BestMatch.Candidate.SourceID)
	assert.Equal(t, 1.0, out.BestMatch.ConfidenceScore)
}

func TestNewClassifier_RejectsInvalidConfiguration(t *testing.T) {
	for _, cfg := range []Config{
		{FoundThreshold: 0, PartialThreshold: 0},
		{FoundThreshold: 1.2, PartialThreshold: 0.5},
		{FoundThreshold: 0.9, PartialThreshold: 0.95},
		{FoundThreshold: 0.9, PartialThreshold: -0.1},
	} {
		_, err := NewClassifier(cfg)
		assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
	}
}
