// Package mapping maps extracted statement column headers onto canonical fields.
//
// The primary mapping comes from an ordered strategy list (overlay override,
// exact alias, fuzzy alias); the first strategy with an opinion wins. Suggestions
// are always computed from local scoring and, on request, merged with the
// external oracle's ranked alternatives.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/gauravpcu/vendor-statements-sub000/internal/fields"
	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/similarity"
	"github.com/gauravpcu/vendor-statements-sub000/internal/worker"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/services"
)

// Result is the mapper's answer for one header.
type Result struct {
	Mapping     models.HeaderMapping       `json:"mapping"`
	Suggestions []models.MappingSuggestion `json:"suggestions"`

	// Err is set for input errors (empty or ambiguous header). The mapping
	// carries the same message in its Error field.
	Err error `json:"-"`
}

// Mapper maps headers. It holds only read-only state and is safe for concurrent use.
type Mapper struct {
	registry   *fields.Registry
	overlay    services.OverlaySource
	config     Config
	strategies []Strategy
	suggesters []Suggester
	oracle     *OracleSuggester
	log        zerolog.Logger
}

// NewMapper builds a mapper over registry. overlay and oracle are optional.
func NewMapper(config Config, registry *fields.Registry, overlaySource services.OverlaySource, oracle services.SuggestionOracle) (*Mapper, error) {
	const op = "mapping.NewMapper"

	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrMissingFieldDefinitions)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log := logger.WithComponent("mapping")
	exact := &ExactAliasStrategy{registry: registry}
	fuzzy := &FuzzyAliasStrategy{registry: registry, floor: config.FuzzyFloor}

	m := &Mapper{
		registry: registry,
		overlay:  overlaySource,
		config:   config,
		strategies: []Strategy{
			&OverrideStrategy{overlay: overlaySource, log: log},
			exact,
			fuzzy,
		},
		suggesters: []Suggester{
			exact,
			fuzzy,
			&FallbackSuggester{registry: registry},
		},
		log: log,
	}
	if oracle != nil {
		m.oracle = &OracleSuggester{oracle: oracle, timeout: config.OracleTimeout}
	}
	return m, nil
}

// MapHeader maps a single header. It never fails; input errors are annotated
// on the result.
func (m *Mapper) MapHeader(ctx context.Context, req Request) Result {
	if similarity.Normalize(req.Header) == "" {
		return Result{
			Mapping: models.HeaderMapping{
				OriginalHeader: req.Header,
				MappedField:    models.UnmappedField,
				Method:         models.MethodUnmapped,
				Error:          ErrEmptyHeader.Error(),
			},
			Suggestions: []models.MappingSuggestion{},
			Err:         &MappingError{Op: "MapHeader", Header: req.Header, Err: ErrEmptyHeader},
		}
	}

	res := Result{Mapping: m.primary(ctx, req)}
	if res.Mapping.Error != "" {
		res.Err = NewAmbiguousHeaderError(req.Header, m.registry.ExactMatches(req.Header))
	}

	local := m.localSuggestions(ctx, req, res.Mapping.MappedField)

	var remote []models.MappingSuggestion
	if req.Suggest {
		remote = m.oracleSuggestions(ctx, req, res.Mapping.MappedField)
		if top, ok := m.autoApplicable(remote); ok && m.canReplace(res.Mapping, top) {
			m.log.Debug().
				Str("header", req.Header).
				Str("from", res.Mapping.MappedField).
				Str("to", top.SuggestedField).
				Float64("confidence", top.Confidence).
				Msg("Oracle suggestion replaces computed mapping")
			res.Mapping = models.HeaderMapping{
				OriginalHeader:  req.Header,
				MappedField:     top.SuggestedField,
				ConfidenceScore: clampPercent(math.Round(top.Confidence * 100)),
				Method:          models.MethodAISuggested,
			}
		}
	}

	res.Suggestions = m.rank(local, remote)

	m.log.Debug().
		Str("header", req.Header).
		Str("field", res.Mapping.MappedField).
		Str("method", string(res.Mapping.Method)).
		Float64("confidence", res.Mapping.ConfidenceScore).
		Int("suggestions", len(res.Suggestions)).
		Msg("Header mapped")
	return res
}

// MapHeaders maps every request in parallel. Results keep input order and
// duplicate headers are mapped independently. Requests not started before ctx
// is cancelled come back unmapped with the context error.
func (m *Mapper) MapHeaders(ctx context.Context, reqs []Request) []Result {
	return worker.RunOrdered(ctx, len(reqs), worker.Options{Workers: m.config.Workers},
		func(ctx context.Context, i int) Result {
			return m.MapHeader(ctx, reqs[i])
		},
		func(i int, err error) Result {
			return Result{
				Mapping: models.HeaderMapping{
					OriginalHeader: reqs[i].Header,
					MappedField:    models.UnmappedField,
					Method:         models.MethodUnmapped,
					Error:          err.Error(),
				},
				Suggestions: []models.MappingSuggestion{},
				Err:         &MappingError{Op: "MapHeaders", Header: reqs[i].Header, Err: err},
			}
		})
}

// Requests builds one request per header sharing the same overlay scope.
func Requests(headers []string, vendorKey, templateID string, suggest bool) []Request {
	reqs := make([]Request, len(headers))
	for i, h := range headers {
		reqs[i] = Request{Header: h, VendorKey: vendorKey, TemplateID: templateID, Suggest: suggest}
	}
	return reqs
}

func (m *Mapper) primary(ctx context.Context, req Request) models.HeaderMapping {
	for _, s := range m.strategies {
		if mapping := s.Attempt(ctx, req); mapping != nil {
			mapping.ConfidenceScore = clampPercent(mapping.ConfidenceScore)
			return *mapping
		}
	}
	return models.HeaderMapping{
		OriginalHeader: req.Header,
		MappedField:    models.UnmappedField,
		Method:         models.MethodUnmapped,
	}
}

func (m *Mapper) localSuggestions(ctx context.Context, req Request, current string) []models.MappingSuggestion {
	var out []models.MappingSuggestion
	for _, s := range m.suggesters {
		list, err := s.Suggest(ctx, req, current)
		if err != nil {
			m.log.Warn().Err(err).Str("suggester", string(s.Method())).Msg("Local suggester failed")
			continue
		}
		out = append(out, list...)
	}
	return out
}

// oracleSuggestions returns validated oracle suggestions, or nil when the
// oracle is absent or fails. Failures degrade to local suggestions only.
func (m *Mapper) oracleSuggestions(ctx context.Context, req Request, current string) []models.MappingSuggestion {
	if m.oracle == nil {
		return nil
	}
	list, err := m.oracle.Suggest(ctx, req, current)
	if err != nil {
		m.log.Warn().Err(err).Str("header", req.Header).Msg("Oracle unavailable, using local suggestions")
		return nil
	}

	valid := make([]models.MappingSuggestion, 0, len(list))
	for _, s := range list {
		if !m.registry.Has(s.SuggestedField) || math.IsNaN(s.Confidence) || s.Confidence < 0 || s.Confidence > 1 {
			m.log.Debug().Str("field", s.SuggestedField).Float64("confidence", s.Confidence).Msg("Dropping invalid oracle suggestion")
			continue
		}
		valid = append(valid, s)
	}
	return valid
}

// autoApplicable returns the top oracle suggestion when it is allowed to
// replace the computed mapping.
func (m *Mapper) autoApplicable(remote []models.MappingSuggestion) (models.MappingSuggestion, bool) {
	if len(remote) == 0 {
		return models.MappingSuggestion{}, false
	}
	sorted := append([]models.MappingSuggestion(nil), remote...)
	sortSuggestions(sorted)
	top := sorted[0]
	return top, top.AutoApply && top.Confidence > m.config.AutoApplyThreshold
}

// canReplace keeps overlay mappings and surfaced input errors untouched, and
// leaves the mapping alone when the oracle agrees with it.
func (m *Mapper) canReplace(current models.HeaderMapping, top models.MappingSuggestion) bool {
	return !current.Method.IsOverride() && current.Error == "" && current.MappedField != top.SuggestedField
}

// rank merges the lists, keeping the strongest suggestion per field, and
// returns them ordered by confidence, specificity and field name.
func (m *Mapper) rank(lists ...[]models.MappingSuggestion) []models.MappingSuggestion {
	best := make(map[string]models.MappingSuggestion)
	for _, list := range lists {
		for _, s := range list {
			s.Confidence = similarity.Clamp01(s.Confidence)
			if s.Method == models.MethodAISuggested {
				s.AutoApply = s.AutoApply && s.Confidence > m.config.AutoApplyThreshold
			} else {
				s.AutoApply = s.Confidence > m.config.AutoApplyThreshold
			}
			if cur, ok := best[s.SuggestedField]; !ok || better(s, cur) {
				best[s.SuggestedField] = s
			}
		}
	}

	out := make([]models.MappingSuggestion, 0, len(best))
	for _, s := range best {
		out = append(out, s)
	}
	sortSuggestions(out)
	if len(out) > m.config.MaxSuggestions {
		out = out[:m.config.MaxSuggestions]
	}
	return out
}

func better(a, b models.MappingSuggestion) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Method.Specificity() > b.Method.Specificity()
}

func sortSuggestions(list []models.MappingSuggestion) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if sa, sb := a.Method.Specificity(), b.Method.Specificity(); sa != sb {
			return sa > sb
		}
		return a.SuggestedField < b.SuggestedField
	})
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// IsInputError reports whether err marks a header the mapper could not map.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyHeader) || errors.Is(err, ErrAmbiguousHeader)
}
