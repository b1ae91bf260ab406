package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

var (
	ErrMalformedResponse = errors.New("malformed oracle response")
	ErrEmptyResponse     = errors.New("empty oracle response")
)

// Coerce converts untrusted oracle entries into suggestions. Entries naming a
// field isKnown rejects, or carrying no usable confidence, are dropped.
// Confidences given as percentages (1 < c <= 100) are rescaled to [0,1].
func Coerce(raw []map[string]any, isKnown func(string) bool) []models.MappingSuggestion {
	out := make([]models.MappingSuggestion, 0, len(raw))
	for _, entry := range raw {
		field := strings.TrimSpace(firstString(entry, "suggested_field", "field", "mapped_field"))
		if field == "" || (isKnown != nil && !isKnown(field)) {
			continue
		}

		confidence, ok := toFloat(entry["confidence"])
		if !ok {
			continue
		}
		if confidence > 1 && confidence <= 100 {
			confidence /= 100
		}
		if confidence < 0 || confidence > 1 {
			continue
		}

		autoApply, _ := toBool(entry["auto_apply"])
		out = append(out, models.MappingSuggestion{
			SuggestedField: field,
			Reason:         strings.TrimSpace(firstString(entry, "reason", "explanation")),
			Confidence:     confidence,
			AutoApply:      autoApply,
			Method:         models.MethodAISuggested,
		})
	}
	return out
}

// ParseContent extracts suggestion entries from a model reply. The reply may be
// a bare array, an object with a "suggestions" array, or either one wrapped in
// a markdown code fence.
func ParseContent(content string) ([]map[string]any, error) {
	cleaned := stripCodeFence(content)
	if cleaned == "" {
		return nil, ErrEmptyResponse
	}

	if strings.HasPrefix(cleaned, "[") {
		var list []map[string]any
		if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return list, nil
	}

	var wrapped struct {
		Suggestions []map[string]any `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return wrapped.Suggestions, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func firstString(entry map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := entry[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	default:
		return false, false
	}
}
