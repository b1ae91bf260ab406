// Package connector provides candidate sources backed by the system of record.
package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

const dateLayout = "2006-01-02"

// ErrMissingSourceID is returned when importing a candidate without an id.
var ErrMissingSourceID = errors.New("candidate has no source id")

const invoicesSchema = `
CREATE TABLE IF NOT EXISTS invoices (
	source_id      TEXT PRIMARY KEY,
	invoice_number TEXT NOT NULL DEFAULT '',
	vendor_name    TEXT NOT NULL DEFAULT '',
	customer_name  TEXT NOT NULL DEFAULT '',
	invoice_date   TEXT NOT NULL DEFAULT '',
	total_amount   REAL,
	facility_name  TEXT NOT NULL DEFAULT '',
	po_number      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_invoices_number ON invoices (lower(trim(invoice_number)));
CREATE INDEX IF NOT EXISTS idx_invoices_date ON invoices (invoice_date);`

// An invoice-number hit is returned regardless of date; a vendor hit must
// also fall inside the date window. Vendor names match as substrings in
// either direction so "Acme" finds "Acme Corp" and vice versa.
const searchQuery = `
SELECT source_id, invoice_number, vendor_name, customer_name, invoice_date,
       total_amount, facility_name, po_number
FROM invoices
WHERE (?1 <> '' AND lower(trim(invoice_number)) = lower(?1))
   OR (?2 <> ''
       AND (instr(lower(vendor_name), lower(?2)) > 0 OR instr(lower(?2), lower(vendor_name)) > 0)
       AND vendor_name <> ''
       AND (?3 = '' OR invoice_date >= ?3)
       AND (?4 = '' OR invoice_date <= ?4))
ORDER BY invoice_date, source_id
LIMIT ?5`

// SQLiteSource searches an invoices table in a SQLite database.
type SQLiteSource struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLiteSource opens (creating if needed) the candidate database at path.
func OpenSQLiteSource(ctx context.Context, path string) (*SQLiteSource, error) {
	const op = "connector.OpenSQLiteSource"

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: open %s: %w", op, path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, invoicesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: create schema: %w", op, err)
	}

	s := &SQLiteSource{db: db, log: logger.WithComponent("connector")}
	s.log.Debug().Str("path", path).Msg("Candidate database ready")
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Search returns invoices whose number equals the criteria's, or whose vendor
// matches it within the date window.
func (s *SQLiteSource) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.CandidateRecord, error) {
	const op = "connector.Search"

	number := strings.TrimSpace(criteria.InvoiceNumber)
	vendor := strings.TrimSpace(criteria.VendorName)
	if number == "" && vendor == "" {
		return nil, nil
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, searchQuery,
		number, vendor, formatDate(criteria.DateFrom), formatDate(criteria.DateTo), limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.CandidateRecord
	for rows.Next() {
		var (
			c      models.CandidateRecord
			date   string
			amount sql.NullFloat64
		)
		if err := rows.Scan(&c.SourceID, &c.InvoiceNumber, &c.VendorName, &c.CustomerName,
			&date, &amount, &c.FacilityName, &c.PONumber); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		if date != "" {
			if t, err := time.Parse(dateLayout, date); err == nil {
				c.InvoiceDate = t
			} else {
				s.log.Warn().Str("source_id", c.SourceID).Str("date_str", date).Msg("Unparseable invoice date in candidate row")
			}
		}
		if amount.Valid {
			c.TotalAmount = models.Amount(amount.Float64)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Debug().
		Str("invoice_number", number).
		Str("vendor", vendor).
		Int("candidates", len(out)).
		Msg("Candidate search completed")
	return out, nil
}

// Upsert inserts or replaces candidate rows keyed by SourceID.
func (s *SQLiteSource) Upsert(ctx context.Context, candidates []models.CandidateRecord) error {
	const op = "connector.Upsert"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO invoices (source_id, invoice_number, vendor_name, customer_name,
			invoice_date, total_amount, facility_name, po_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id) DO UPDATE SET
			invoice_number = excluded.invoice_number,
			vendor_name = excluded.vendor_name,
			customer_name = excluded.customer_name,
			invoice_date = excluded.invoice_date,
			total_amount = excluded.total_amount,
			facility_name = excluded.facility_name,
			po_number = excluded.po_number`)
	if err != nil {
		return fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		if strings.TrimSpace(c.SourceID) == "" {
			return fmt.Errorf("%s: invoice %q: %w", op, c.InvoiceNumber, ErrMissingSourceID)
		}
		var amount sql.NullFloat64
		if c.TotalAmount != nil {
			amount = sql.NullFloat64{Float64: *c.TotalAmount, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, c.SourceID, c.InvoiceNumber, c.VendorName, c.CustomerName,
			formatDate(c.InvoiceDate), amount, c.FacilityName, c.PONumber); err != nil {
			return fmt.Errorf("%s: insert %s: %w", op, c.SourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}

	s.log.Info().Int("rows", len(candidates)).Msg("Candidates imported")
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
