// Package verification runs the record verification pipeline: build search
// criteria, fetch candidates from the system of record, score them and classify.
package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gauravpcu/vendor-statements-sub000/internal/classify"
	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/matching"
	"github.com/gauravpcu/vendor-statements-sub000/internal/worker"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/services"
)

// Config controls the pipeline around the matcher and classifier.
type Config struct {
	Workers          int
	SearchLimit      int
	ConnectorTimeout time.Duration
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		Workers:          4,
		SearchLimit:      50,
		ConnectorTimeout: 15 * time.Second,
	}
}

// Result is the verification of one invoice. Exactly one of Outcome and Error is set.
type Result struct {
	Invoice models.InvoiceRecord          `json:"invoice"`
	Outcome *models.ClassificationOutcome `json:"outcome,omitempty"`
	Error   *MatchingError                `json:"error,omitempty"`
}

// Summary counts batch results by verdict and failure kind.
type Summary struct {
	RequestID            string        `json:"request_id"`
	Total                int           `json:"total"`
	Found                int           `json:"found"`
	NotFound             int           `json:"not_found"`
	PartialMatch         int           `json:"partial_match"`
	InputErrors          int           `json:"input_errors"`
	ConnectorUnavailable int           `json:"connector_unavailable"`
	Cancelled            int           `json:"cancelled"`
	Duration             time.Duration `json:"duration"`
}

// Service verifies invoices against a candidate source.
type Service struct {
	source     services.CandidateSource
	matcher    *matching.Matcher
	classifier *classify.Classifier
	config     Config
	log        zerolog.Logger
}

// NewService wires the pipeline. All collaborators are required.
func NewService(source services.CandidateSource, matcher *matching.Matcher, classifier *classify.Classifier, config Config) (*Service, error) {
	const op = "verification.NewService"

	if source == nil || matcher == nil || classifier == nil {
		return nil, fmt.Errorf("%s: source, matcher and classifier are required: %w", op, models.ErrInvalidConfiguration)
	}
	if config.SearchLimit < 0 || config.ConnectorTimeout < 0 {
		return nil, fmt.Errorf("%s: limits must not be negative: %w", op, models.ErrInvalidConfiguration)
	}
	return &Service{
		source:     source,
		matcher:    matcher,
		classifier: classifier,
		config:     config,
		log:        logger.WithComponent("verification"),
	}, nil
}

// Criteria builds the candidate search for an invoice: its number, its vendor
// and a date window of the matcher's tolerance around its date.
func (s *Service) Criteria(inv models.InvoiceRecord) models.SearchCriteria {
	c := models.SearchCriteria{
		InvoiceNumber: strings.TrimSpace(inv.InvoiceNumber),
		VendorName:    strings.TrimSpace(inv.VendorName),
		Limit:         s.config.SearchLimit,
	}
	if !inv.InvoiceDate.IsZero() {
		tol := s.matcher.Config().DateToleranceDays
		d := inv.InvoiceDate
		c.DateFrom = time.Date(d.Year(), d.Month(), d.Day()-tol, 0, 0, 0, 0, time.UTC)
		c.DateTo = time.Date(d.Year(), d.Month(), d.Day()+tol, 23, 59, 59, 0, time.UTC)
	}
	return c
}

// Verify classifies one invoice. It never returns an error; failures are
// reported on the result.
func (s *Service) Verify(ctx context.Context, inv models.InvoiceRecord) Result {
	return s.verify(ctx, inv, s.log)
}

func (s *Service) verify(ctx context.Context, inv models.InvoiceRecord, log zerolog.Logger) Result {
	const op = "Verify"
	start := time.Now()

	if strings.TrimSpace(inv.InvoiceNumber) == "" && strings.TrimSpace(inv.VendorName) == "" {
		return Result{
			Invoice: inv,
			Error:   NewMatchingError(KindInputError, op, ErrMalformedRecord, "record has neither invoice number nor vendor name"),
		}
	}

	criteria := s.Criteria(inv)

	searchCtx := ctx
	if s.config.ConnectorTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.config.ConnectorTimeout)
		defer cancel()
	}

	candidates, err := s.source.Search(searchCtx, criteria)
	if err != nil {
		log.Warn().
			Err(err).
			Str("invoice", inv.Key()).
			Msg("Candidate search failed")
		return Result{
			Invoice: inv,
			Error: NewMatchingError(KindConnectorUnavailable, op,
				fmt.Errorf("%w: %v", ErrConnectorUnavailable, err), ""),
		}
	}

	outcome := s.classifier.Classify(s.matcher.Match(inv, candidates), criteria.Fields())
	outcome.ProcessingTime = time.Since(start)

	event := log.Info().
		Str("invoice", inv.Key()).
		Int("candidates", len(candidates)).
		Str("classification", string(outcome.Classification))
	if outcome.BestMatch != nil {
		event = event.
			Str("source_id", outcome.BestMatch.Candidate.SourceID).
			Float64("confidence", outcome.BestMatch.ConfidenceScore).
			Int("discrepancies", len(outcome.BestMatch.Discrepancies))
	}
	event.Dur("elapsed", outcome.ProcessingTime).Msg("Invoice verified")

	return Result{Invoice: inv, Outcome: &outcome}
}

// VerifyBatch verifies invoices in parallel and returns results in input order.
// Cancelling ctx stops new items from starting; they come back with a cancelled error.
func (s *Service) VerifyBatch(ctx context.Context, invoices []models.InvoiceRecord, onDone func(done, total int)) ([]Result, Summary) {
	requestID := uuid.New().String()
	log := logger.WithRequestID("verification", requestID)
	start := time.Now()

	log.Info().Int("invoices", len(invoices)).Int("workers", s.config.Workers).Msg("Starting verification batch")

	results := worker.RunOrdered(ctx, len(invoices), worker.Options{Workers: s.config.Workers, OnDone: onDone},
		func(ctx context.Context, i int) Result {
			return s.verify(ctx, invoices[i], log)
		},
		func(i int, err error) Result {
			return Result{
				Invoice: invoices[i],
				Error:   NewMatchingError(KindCancelled, "VerifyBatch", err, ""),
			}
		})

	summary := Summarize(results)
	summary.RequestID = requestID
	summary.Duration = time.Since(start)

	log.Info().
		Int("found", summary.Found).
		Int("not_found", summary.NotFound).
		Int("partial", summary.PartialMatch).
		Int("input_errors", summary.InputErrors).
		Int("connector_unavailable", summary.ConnectorUnavailable).
		Int("cancelled", summary.Cancelled).
		Dur("elapsed", summary.Duration).
		Msg("Verification batch completed")
	return results, summary
}

// Summarize counts results by verdict and failure kind.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Error != nil {
			switch r.Error.Kind {
			case KindInputError:
				s.InputErrors++
			case KindConnectorUnavailable:
				s.ConnectorUnavailable++
			case KindCancelled:
				s.Cancelled++
			}
			continue
		}
		if r.Outcome == nil {
			continue
		}
		switch r.Outcome.Classification {
		case models.ClassificationFound:
			s.Found++
		case models.ClassificationNotFound:
			s.NotFound++
		case models.ClassificationPartialMatch:
			s.PartialMatch++
		}
	}
	return s
}
