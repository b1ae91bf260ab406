package services

import (
	"context"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// FieldDefinitionSource loads the canonical target schema.
type FieldDefinitionSource interface {
	// Fields returns every canonical field, in a stable order
	Fields() []models.CanonicalField
}

// OverlaySource resolves template and preference overrides for headers
type OverlaySource interface {
	// Lookup returns the confirmed preference for header under vendorKey, or nil
	Lookup(ctx context.Context, vendorKey, originalHeader string) (*models.Override, error)

	// LookupTemplate returns the template with the given id, or nil when it does not exist
	LookupTemplate(ctx context.Context, templateID string) (*models.Template, error)
}

// SuggestionOracle proposes alternative fields for a header.
// Implementations may be slow or fail; callers must degrade gracefully.
type SuggestionOracle interface {
	Suggest(ctx context.Context, originalHeader, currentMappedField string) ([]models.MappingSuggestion, error)
}

// CandidateSource searches the system of record for invoices that may match
type CandidateSource interface {
	Search(ctx context.Context, criteria models.SearchCriteria) ([]models.CandidateRecord, error)
}
