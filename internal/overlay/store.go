// Package overlay stores confirmed header preferences and saved mapping templates.
// Lookups are pure reads; the header mapper gives their answers absolute priority.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gauravpcu/vendor-statements-sub000/internal/similarity"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/services"
)

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrInvalidTemplate   = errors.New("invalid template")
	ErrInvalidPreference = errors.New("invalid preference")
)

// Store is an overlay source that can also be written to.
type Store interface {
	services.OverlaySource

	SavePreference(ctx context.Context, vendorKey, originalHeader, mappedField string) error
	DeletePreference(ctx context.Context, vendorKey, originalHeader string) error
	SaveTemplate(ctx context.Context, t *models.Template) error
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, templateID string) error
}

// HeaderKey normalizes a header the same way the mapper compares aliases.
func HeaderKey(header string) string {
	return similarity.Normalize(header)
}

// VendorKey normalizes a vendor identifier. An empty vendor is a valid global scope.
func VendorKey(vendor string) string {
	return similarity.Normalize(vendor)
}

// TemplateOverride returns the override a template declares for header, or nil.
func TemplateOverride(t *models.Template, header string) *models.Override {
	if t == nil {
		return nil
	}
	key := HeaderKey(header)
	if key == "" {
		return nil
	}
	for _, fm := range t.FieldMappings {
		if HeaderKey(fm.Header) == key && strings.TrimSpace(fm.Field) != "" {
			return &models.Override{
				MappedField: fm.Field,
				Method:      models.MethodTemplateOverride,
				Source:      t.ID,
			}
		}
	}
	return nil
}

// ValidateTemplate checks the template is storable.
func ValidateTemplate(t *models.Template) error {
	if t == nil {
		return fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTemplate)
	}
	if t.SkipRows < 0 {
		return fmt.Errorf("%w: skip_rows must not be negative", ErrInvalidTemplate)
	}
	seen := make(map[string]struct{}, len(t.FieldMappings))
	for _, fm := range t.FieldMappings {
		key := HeaderKey(fm.Header)
		if key == "" || strings.TrimSpace(fm.Field) == "" {
			return fmt.Errorf("%w: mapping %q -> %q is incomplete", ErrInvalidTemplate, fm.Header, fm.Field)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: header %q mapped twice", ErrInvalidTemplate, fm.Header)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func validatePreference(originalHeader, mappedField string) error {
	if HeaderKey(originalHeader) == "" {
		return fmt.Errorf("%w: empty header", ErrInvalidPreference)
	}
	if strings.TrimSpace(mappedField) == "" {
		return fmt.Errorf("%w: empty field", ErrInvalidPreference)
	}
	return nil
}
