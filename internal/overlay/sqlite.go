package overlay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	vendor_key      TEXT NOT NULL,
	header_key      TEXT NOT NULL,
	original_header TEXT NOT NULL,
	mapped_field    TEXT NOT NULL,
	updated_at      TEXT NOT NULL,
	PRIMARY KEY (vendor_key, header_key)
);
CREATE TABLE IF NOT EXISTS templates (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	vendor_key TEXT NOT NULL DEFAULT '',
	skip_rows  INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS template_mappings (
	template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	header      TEXT NOT NULL,
	field       TEXT NOT NULL,
	PRIMARY KEY (template_id, position)
);`

// SQLiteStore implements Store on a SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLite opens (creating if needed) the overlay database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	const op = "overlay.OpenSQLite"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", op, path, err)
	}
	// A single connection serializes writers; SQLite allows one at a time anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: enable foreign keys: %w", op, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: create schema: %w", op, err)
	}

	s := &SQLiteStore{db: db, log: logger.WithComponent("overlay")}
	s.log.Debug().Str("path", path).Msg("Overlay database ready")
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Lookup(ctx context.Context, vendorKey, originalHeader string) (*models.Override, error) {
	const op = "overlay.Lookup"

	vk := VendorKey(vendorKey)
	var field string
	err := s.db.QueryRowContext(ctx,
		`SELECT mapped_field FROM preferences WHERE vendor_key = ? AND header_key = ?`,
		vk, HeaderKey(originalHeader),
	).Scan(&field)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Override{
		MappedField: field,
		Method:      models.MethodUserConfirmed,
		Source:      vk,
	}, nil
}

func (s *SQLiteStore) LookupTemplate(ctx context.Context, templateID string) (*models.Template, error) {
	const op = "overlay.LookupTemplate"

	t := &models.Template{ID: templateID}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, vendor_key, skip_rows FROM templates WHERE id = ?`, templateID,
	).Scan(&t.Name, &t.VendorKey, &t.SkipRows)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mappings, err := s.templateMappings(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.FieldMappings = mappings
	return t, nil
}

func (s *SQLiteStore) templateMappings(ctx context.Context, templateID string) ([]models.TemplateFieldMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT header, field FROM template_mappings WHERE template_id = ? ORDER BY position`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TemplateFieldMapping
	for rows.Next() {
		var fm models.TemplateFieldMapping
		if err := rows.Scan(&fm.Header, &fm.Field); err != nil {
			return nil, err
		}
		out = append(out, fm)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePreference(ctx context.Context, vendorKey, originalHeader, mappedField string) error {
	const op = "overlay.SavePreference"

	if err := validatePreference(originalHeader, mappedField); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (vendor_key, header_key, original_header, mapped_field, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (vendor_key, header_key) DO UPDATE SET
			original_header = excluded.original_header,
			mapped_field = excluded.mapped_field,
			updated_at = excluded.updated_at`,
		VendorKey(vendorKey), HeaderKey(originalHeader), originalHeader, mappedField,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("vendor", vendorKey).
		Str("header", originalHeader).
		Str("field", mappedField).
		Msg("Preference saved")
	return nil
}

func (s *SQLiteStore) DeletePreference(ctx context.Context, vendorKey, originalHeader string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE vendor_key = ? AND header_key = ?`,
		VendorKey(vendorKey), HeaderKey(originalHeader))
	if err != nil {
		return fmt.Errorf("overlay.DeletePreference: %w", err)
	}
	return nil
}

// SaveTemplate inserts or replaces t, assigning a new id when t.ID is empty.
func (s *SQLiteStore) SaveTemplate(ctx context.Context, t *models.Template) error {
	const op = "overlay.SaveTemplate"

	if err := ValidateTemplate(t); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO templates (id, name, vendor_key, skip_rows, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			vendor_key = excluded.vendor_key,
			skip_rows = excluded.skip_rows,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, t.VendorKey, t.SkipRows, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%s: upsert template: %w", op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_mappings WHERE template_id = ?`, t.ID); err != nil {
		return fmt.Errorf("%s: clear mappings: %w", op, err)
	}
	for i, fm := range t.FieldMappings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO template_mappings (template_id, position, header, field) VALUES (?, ?, ?, ?)`,
			t.ID, i, fm.Header, fm.Field); err != nil {
			return fmt.Errorf("%s: insert mapping %q: %w", op, fm.Header, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	s.log.Info().
		Str("template_id", t.ID).
		Str("name", t.Name).
		Int("mappings", len(t.FieldMappings)).
		Msg("Template saved")
	return nil
}

func (s *SQLiteStore) ListTemplates(ctx context.Context) ([]models.Template, error) {
	const op = "overlay.ListTemplates"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, vendor_key, skip_rows FROM templates ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.Name, &t.VendorKey, &t.SkipRows); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Mappings are read after the cursor is closed; the pool holds one connection.
	for i := range out {
		mappings, err := s.templateMappings(ctx, out[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out[i].FieldMappings = mappings
	}
	return out, nil
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, templateID string) error {
	const op = "overlay.DeleteTemplate"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM template_mappings WHERE template_id = ?`, templateID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, templateID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %s: %w", op, templateID, ErrTemplateNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	s.log.Info().Str("template_id", templateID).Msg("Template deleted")
	return nil
}
