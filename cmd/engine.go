package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gauravpcu/vendor-statements-sub000/internal/classify"
	"github.com/gauravpcu/vendor-statements-sub000/internal/config"
	"github.com/gauravpcu/vendor-statements-sub000/internal/connector"
	"github.com/gauravpcu/vendor-statements-sub000/internal/fields"
	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/mapping"
	"github.com/gauravpcu/vendor-statements-sub000/internal/matching"
	"github.com/gauravpcu/vendor-statements-sub000/internal/oracle"
	"github.com/gauravpcu/vendor-statements-sub000/internal/overlay"
	"github.com/gauravpcu/vendor-statements-sub000/internal/records"
	"github.com/gauravpcu/vendor-statements-sub000/internal/sheets"
	"github.com/gauravpcu/vendor-statements-sub000/internal/tabular"
	"github.com/gauravpcu/vendor-statements-sub000/internal/verification"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/services"
)

// engine holds the collaborators a command needs, built from the loaded config.
type engine struct {
	cfg      *config.Config
	registry *fields.Registry
	store    overlay.Store
	mapper   *mapping.Mapper
	closers  []func() error
	log      zerolog.Logger
}

// newEngine opens the overlay store and builds the header mapper. The oracle
// is attached only when an OpenAI key is configured.
func newEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	const op = "newEngine"

	e := &engine{cfg: cfg, log: logger.WithComponent("engine")}

	registry, err := fields.Load(cfg.FieldsFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.registry = registry

	db, err := overlay.OpenSQLite(ctx, cfg.Overlay.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.closers = append(e.closers, db.Close)
	e.store = overlay.NewCachedStore(db, cfg.Overlay.CacheTTL)

	var suggestions services.SuggestionOracle
	if cfg.OpenAI.APIKey != "" {
		ai, err := oracle.NewOpenAIOracle(cfg.OracleConfig(), registry)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		suggestions = oracle.NewCachedOracle(ai, cfg.OpenAI.CacheTTL)
	} else {
		e.log.Debug().Msg("No OpenAI API key configured, AI suggestions disabled")
	}

	mapper, err := mapping.NewMapper(cfg.MappingConfig(), registry, e.store, suggestions)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.mapper = mapper

	e.log.Debug().
		Int("fields", registry.Len()).
		Str("overlay_db", cfg.Overlay.DBPath).
		Bool("oracle", suggestions != nil).
		Msg("Engine ready")
	return e, nil
}

// Close releases databases opened by the engine.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
	e.closers = nil
}

// mappedFile is a statement file with its headers mapped.
type mappedFile struct {
	table    *tabular.Table
	template *models.Template
	skipRows int
	results  []mapping.Result
}

func (f *mappedFile) mappings() []models.HeaderMapping {
	out := make([]models.HeaderMapping, len(f.results))
	for i, r := range f.results {
		out[i] = r.Mapping
	}
	return out
}

// mapFile reads path and maps its headers. With a template id, the template's
// skip_rows replaces skipRows and its mappings take priority.
func (e *engine) mapFile(ctx context.Context, path string, skipRows int, vendor, templateID string, suggest bool) (*mappedFile, error) {
	if templateID == "" {
		table, err := tabular.Read(ctx, path, skipRows)
		if err != nil {
			return nil, err
		}
		results := e.mapper.MapHeaders(ctx, mapping.Requests(table.Headers, vendor, "", suggest))
		return &mappedFile{table: table, skipRows: skipRows, results: results}, nil
	}

	var table *tabular.Table
	extract := func(ctx context.Context, skip int) ([]string, error) {
		t, err := tabular.Read(ctx, path, skip)
		if err != nil {
			return nil, err
		}
		table = t
		return t.Headers, nil
	}

	tpl, results, err := e.mapper.ApplyTemplate(ctx, templateID, extract, suggest)
	if err != nil {
		return nil, err
	}
	return &mappedFile{table: table, template: tpl, skipRows: tpl.SkipRows, results: results}, nil
}

// candidateSource opens the configured system of record: a SQLite database,
// a Google Sheet, or a local CSV/XLSX export.
func (e *engine) candidateSource(ctx context.Context, exportFile string) (services.CandidateSource, error) {
	const op = "candidateSource"

	switch {
	case exportFile != "":
		table, err := tabular.Read(ctx, exportFile, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		candidates, err := connector.CandidatesFromTable(ctx, e.mapper, table.Headers, table.Rows, "file")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.log.Info().Str("file", exportFile).Int("candidates", len(candidates)).Msg("Loaded candidate export")
		return connector.NewMemorySource(candidates), nil

	case e.cfg.Candidates.DBPath != "":
		if _, err := os.Stat(e.cfg.Candidates.DBPath); err != nil {
			return nil, fmt.Errorf("%s: candidate database: %w", op, err)
		}
		src, err := connector.OpenSQLiteSource(ctx, e.cfg.Candidates.DBPath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.closers = append(e.closers, src.Close)
		return src, nil

	case e.cfg.Candidates.SheetURL != "":
		svc, err := sheets.NewSheetsService(ctx, e.cfg.Candidates.SheetURL, e.cfg.Candidates.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return connector.NewSheetsSource(svc, e.cfg.Candidates.SheetRange, e.mapper, 0), nil

	default:
		return nil, fmt.Errorf("%s: no candidate source: set --db, --sheet or --candidates: %w", op, models.ErrInvalidConfiguration)
	}
}

// verifier wires the matcher and classifier around source.
func (e *engine) verifier(source services.CandidateSource) (*verification.Service, error) {
	matcher, err := matching.NewMatcher(e.cfg.MatchingConfig())
	if err != nil {
		return nil, err
	}
	classifier, err := classify.NewClassifier(e.cfg.ClassifyConfig())
	if err != nil {
		return nil, err
	}
	return verification.NewService(source, matcher, classifier, e.cfg.VerificationConfig())
}

// invoices converts the mapped rows of a statement. vendor fills in the vendor
// name for statements that carry it only in their title.
func (f *mappedFile) invoices(vendor string) ([]models.InvoiceRecord, error) {
	conv, err := records.NewConverter(f.mappings())
	if err != nil && vendor == "" {
		return nil, err
	}
	if err != nil {
		conv = converterWithVendorOnly(f.mappings())
	}

	invoices := conv.Invoices(f.table.Rows)
	for i := range invoices {
		if invoices[i].VendorName == "" {
			invoices[i].VendorName = vendor
		}
	}
	return invoices, nil
}

// converterWithVendorOnly builds a converter for files that map no identifying
// column; the vendor name then comes from the command line.
func converterWithVendorOnly(mappings []models.HeaderMapping) *records.Converter {
	columns := make(map[string]int)
	for i, m := range mappings {
		if _, seen := columns[m.MappedField]; m.IsMapped() && !seen {
			columns[m.MappedField] = i
		}
	}
	return records.FromColumns(columns)
}
