package mapping

import (
	"context"
	"fmt"

	"github.com/gauravpcu/vendor-statements-sub000/internal/overlay"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// HeaderExtractor re-reads the header row of a file after skipping rows.
type HeaderExtractor func(ctx context.Context, skipRows int) ([]string, error)

// ApplyTemplate looks up templateID, re-extracts the headers with the template's
// skip_rows and maps them with the template as the active overlay.
func (m *Mapper) ApplyTemplate(ctx context.Context, templateID string, extract HeaderExtractor, suggest bool) (*models.Template, []Result, error) {
	const op = "ApplyTemplate"

	if m.overlay == nil {
		return nil, nil, fmt.Errorf("%s: no overlay source configured: %w", op, ErrTemplateNotFound)
	}
	tpl, err := m.overlay.LookupTemplate(ctx, templateID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if tpl == nil {
		return nil, nil, fmt.Errorf("%s: %s: %w", op, templateID, ErrTemplateNotFound)
	}

	headers, err := extract(ctx, tpl.SkipRows)
	if err != nil {
		return tpl, nil, fmt.Errorf("%s: re-extract headers with skip_rows=%d: %w", op, tpl.SkipRows, err)
	}

	m.log.Info().
		Str("template_id", tpl.ID).
		Int("skip_rows", tpl.SkipRows).
		Int("headers", len(headers)).
		Msg("Applying template")

	return tpl, m.MapHeaders(ctx, Requests(headers, tpl.VendorKey, tpl.ID, suggest)), nil
}

// TemplateFromResults captures the mapped columns of a file as a template.
// Unmapped columns are left out.
func TemplateFromResults(name, vendorKey string, skipRows int, results []Result) *models.Template {
	tpl := &models.Template{Name: name, VendorKey: vendorKey, SkipRows: skipRows}
	seen := make(map[string]struct{})
	for _, r := range results {
		if !r.Mapping.IsMapped() {
			continue
		}
		key := overlay.HeaderKey(r.Mapping.OriginalHeader)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tpl.FieldMappings = append(tpl.FieldMappings, models.TemplateFieldMapping{
			Header: r.Mapping.OriginalHeader,
			Field:  r.Mapping.MappedField,
		})
	}
	return tpl
}
