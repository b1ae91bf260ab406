package mapping

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gauravpcu/vendor-statements-sub000/internal/fields"
	"github.com/gauravpcu/vendor-statements-sub000/internal/overlay"
	"github.com/gauravpcu/vendor-statements-sub000/internal/similarity"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/services"
)

// Request identifies one header to map and the overlay scope it is mapped in.
type Request struct {
	Header     string
	VendorKey  string
	TemplateID string

	// Suggest asks for oracle suggestions in addition to the local ones.
	Suggest bool
}

// Strategy is one step of the primary mapping pass. Attempt returns nil when
// the strategy has no opinion; a non-nil mapping ends the pass.
type Strategy interface {
	Method() models.MappingMethod
	Attempt(ctx context.Context, req Request) *models.HeaderMapping
}

// Suggester contributes alternatives to the suggestion list.
type Suggester interface {
	Method() models.MappingMethod
	Suggest(ctx context.Context, req Request, current string) ([]models.MappingSuggestion, error)
}

// OverrideStrategy applies template mappings, then confirmed preferences.
type OverrideStrategy struct {
	overlay services.OverlaySource
	log     zerolog.Logger
}

func (s *OverrideStrategy) Method() models.MappingMethod { return models.MethodTemplateOverride }

func (s *OverrideStrategy) Attempt(ctx context.Context, req Request) *models.HeaderMapping {
	if s.overlay == nil {
		return nil
	}

	if req.TemplateID != "" {
		tpl, err := s.overlay.LookupTemplate(ctx, req.TemplateID)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("template_id", req.TemplateID).Msg("Template lookup failed, continuing without it")
		case tpl == nil:
			s.log.Warn().Str("template_id", req.TemplateID).Msg("Template not found, continuing without it")
		default:
			if o := overlay.TemplateOverride(tpl, req.Header); o != nil {
				return overrideMapping(req.Header, o)
			}
		}
	}

	o, err := s.overlay.Lookup(ctx, req.VendorKey, req.Header)
	if err != nil {
		s.log.Warn().Err(err).Str("header", req.Header).Msg("Preference lookup failed, continuing without it")
		return nil
	}
	if o == nil {
		return nil
	}
	return overrideMapping(req.Header, o)
}

func overrideMapping(header string, o *models.Override) *models.HeaderMapping {
	method := o.Method
	if !method.IsOverride() {
		method = models.MethodUserConfirmed
	}
	return &models.HeaderMapping{
		OriginalHeader:  header,
		MappedField:     o.MappedField,
		ConfidenceScore: 100,
		Method:          method,
	}
}

// ExactAliasStrategy matches headers equal to a field name or alias after normalization.
type ExactAliasStrategy struct {
	registry *fields.Registry
}

func (s *ExactAliasStrategy) Method() models.MappingMethod { return models.MethodExactAlias }

func (s *ExactAliasStrategy) Attempt(_ context.Context, req Request) *models.HeaderMapping {
	matches := s.registry.ExactMatches(req.Header)
	switch len(matches) {
	case 0:
		return nil
	case 1:
		return &models.HeaderMapping{
			OriginalHeader:  req.Header,
			MappedField:     matches[0],
			ConfidenceScore: 100,
			Method:          models.MethodExactAlias,
		}
	default:
		return &models.HeaderMapping{
			OriginalHeader: req.Header,
			MappedField:    models.UnmappedField,
			Method:         models.MethodUnmapped,
			Error:          NewAmbiguousHeaderError(req.Header, matches).Err.Error(),
		}
	}
}

func (s *ExactAliasStrategy) Suggest(_ context.Context, req Request, _ string) ([]models.MappingSuggestion, error) {
	var out []models.MappingSuggestion
	for _, name := range s.registry.ExactMatches(req.Header) {
		out = append(out, models.MappingSuggestion{
			SuggestedField: name,
			Reason:         fmt.Sprintf("header matches a known alias of %s", name),
			Confidence:     1.0,
			Method:         models.MethodExactAlias,
		})
	}
	return out, nil
}

// FuzzyAliasStrategy picks the field whose name or alias is most similar to the header.
type FuzzyAliasStrategy struct {
	registry *fields.Registry
	floor    float64
}

func (s *FuzzyAliasStrategy) Method() models.MappingMethod { return models.MethodFuzzyAlias }

func (s *FuzzyAliasStrategy) Attempt(_ context.Context, req Request) *models.HeaderMapping {
	var (
		best      string
		bestScore float64
	)
	// Registry order is not alphabetical; compare names for deterministic ties.
	for _, name := range s.registry.Names() {
		score, _ := bestLabel(req.Header, s.registry.Labels(name))
		if score > bestScore || (score == bestScore && score > 0 && name < best) {
			best, bestScore = name, score
		}
	}
	if best == "" || bestScore <= s.floor {
		return nil
	}
	return &models.HeaderMapping{
		OriginalHeader:  req.Header,
		MappedField:     best,
		ConfidenceScore: math.Round(bestScore * 100),
		Method:          models.MethodFuzzyAlias,
	}
}

func (s *FuzzyAliasStrategy) Suggest(_ context.Context, req Request, _ string) ([]models.MappingSuggestion, error) {
	var out []models.MappingSuggestion
	for _, name := range s.registry.Names() {
		score, label := bestLabel(req.Header, s.registry.Labels(name))
		if score <= s.floor {
			continue
		}
		out = append(out, models.MappingSuggestion{
			SuggestedField: name,
			Reason:         fmt.Sprintf("similar to %q (%.0f%%)", label, score*100),
			Confidence:     score,
			Method:         models.MethodFuzzyAlias,
		})
	}
	return out, nil
}

func bestLabel(header string, labels []string) (float64, string) {
	var (
		best  float64
		label string
	)
	for _, l := range labels {
		if score := similarity.StringSimilarity(header, l); score > best {
			best, label = score, l
		}
	}
	return best, label
}

// FallbackSuggester scores fields by shared tokens, sound and abbreviation.
// It never sets the primary mapping; it guarantees suggestions exist when the
// oracle is absent or failing.
type FallbackSuggester struct {
	registry *fields.Registry
}

func (s *FallbackSuggester) Method() models.MappingMethod { return models.MethodFallback }

func (s *FallbackSuggester) Suggest(_ context.Context, req Request, _ string) ([]models.MappingSuggestion, error) {
	var out []models.MappingSuggestion
	for _, name := range s.registry.Names() {
		var (
			best   float64
			reason string
		)
		for _, label := range s.registry.Labels(name) {
			if v := similarity.TokenOverlap(req.Header, label); v > best {
				best = v
				reason = fmt.Sprintf("shares %s with %q", strings.Join(similarity.SharedTokens(req.Header, label), ", "), label)
			}
			if v := 0.9 * similarity.PhoneticSimilarity(req.Header, label); v > best {
				best = v
				reason = fmt.Sprintf("sounds like %q", label)
			}
			if v := 0.8 * similarity.InitialismSimilarity(req.Header, label); v > best {
				best = v
				reason = fmt.Sprintf("abbreviation of %q", label)
			}
		}
		if best <= 0 {
			continue
		}
		out = append(out, models.MappingSuggestion{
			SuggestedField: name,
			Reason:         reason,
			Confidence:     similarity.Clamp01(best),
			Method:         models.MethodFallback,
		})
	}
	return out, nil
}

// OracleSuggester asks the external oracle, bounded by a timeout.
type OracleSuggester struct {
	oracle  services.SuggestionOracle
	timeout time.Duration
}

func (s *OracleSuggester) Method() models.MappingMethod { return models.MethodAISuggested }

func (s *OracleSuggester) Suggest(ctx context.Context, req Request, current string) ([]models.MappingSuggestion, error) {
	if s.oracle == nil {
		return nil, ErrOracleUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type reply struct {
		suggestions []models.MappingSuggestion
		err         error
	}
	// Buffered so the call can finish after we stop waiting for it.
	done := make(chan reply, 1)
	go func() {
		suggestions, err := s.oracle.Suggest(ctx, req.Header, current)
		done <- reply{suggestions, err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, ctx.Err())
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, r.err)
	}
	suggestions := r.suggestions
	for i := range suggestions {
		suggestions[i].Method = models.MethodAISuggested
	}
	return suggestions, nil
}
