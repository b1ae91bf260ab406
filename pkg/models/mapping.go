package models

// UnmappedField is the sentinel mapped_field for headers with no canonical field.
const UnmappedField = "unmapped"

// MappingMethod records which strategy produced a header mapping.
type MappingMethod string

const (
	MethodTemplateOverride MappingMethod = "template_override"
	MethodUserConfirmed    MappingMethod = "user_confirmed"
	MethodExactAlias       MappingMethod = "exact_alias"
	MethodFuzzyAlias       MappingMethod = "fuzzy_alias"
	MethodAISuggested      MappingMethod = "ai_suggested"
	MethodFallback         MappingMethod = "fallback"
	MethodUnmapped         MappingMethod = "unmapped"
)

// IsOverride reports whether the method came from the overlay and therefore
// outranks every computed method.
func (m MappingMethod) IsOverride() bool {
	return m == MethodTemplateOverride || m == MethodUserConfirmed
}

// Specificity orders methods for suggestion tie-breaking. Higher is more specific.
func (m MappingMethod) Specificity() int {
	switch m {
	case MethodTemplateOverride, MethodUserConfirmed:
		return 5
	case MethodExactAlias:
		return 4
	case MethodFuzzyAlias:
		return 3
	case MethodAISuggested:
		return 2
	case MethodFallback:
		return 1
	default:
		return 0
	}
}

// CanonicalField is one column of the fixed target schema.
type CanonicalField struct {
	Name        string   `json:"name" yaml:"name"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Aliases     []string `json:"aliases" yaml:"aliases"`
}

// HeaderMapping is the primary mapping of one source column header.
type HeaderMapping struct {
	OriginalHeader  string        `json:"original_header"`
	MappedField     string        `json:"mapped_field"`
	ConfidenceScore float64       `json:"confidence_score"` // 0-100
	Method          MappingMethod `json:"method"`
	Error           string        `json:"error,omitempty"`
}

// IsMapped reports whether the header resolved to a canonical field.
func (h HeaderMapping) IsMapped() bool {
	return h.MappedField != "" && h.MappedField != UnmappedField
}

// MappingSuggestion is one ranked alternative for a header.
type MappingSuggestion struct {
	SuggestedField string        `json:"suggested_field"`
	Reason         string        `json:"reason"`
	Confidence     float64       `json:"confidence"` // 0.0-1.0
	AutoApply      bool          `json:"auto_apply"`
	Method         MappingMethod `json:"method"`
}

// Override is an overlay-declared mapping for a header.
type Override struct {
	MappedField string        `json:"mapped_field"`
	Method      MappingMethod `json:"method"`
	Source      string        `json:"source,omitempty"` // template id or vendor key
}

// TemplateFieldMapping binds one source header to one canonical field inside a template.
type TemplateFieldMapping struct {
	Header string `json:"header" yaml:"header"`
	Field  string `json:"field" yaml:"field"`
}

// Template is a saved mapping layout for a vendor's statement files.
type Template struct {
	ID            string                 `json:"id" yaml:"id"`
	Name          string                 `json:"name" yaml:"name"`
	VendorKey     string                 `json:"vendor_key,omitempty" yaml:"vendor_key,omitempty"`
	SkipRows      int                    `json:"skip_rows" yaml:"skip_rows"`
	FieldMappings []TemplateFieldMapping `json:"field_mappings" yaml:"field_mappings"`
}
