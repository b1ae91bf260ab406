package connector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gauravpcu/vendor-statements-sub000/internal/mapping"
	"github.com/gauravpcu/vendor-statements-sub000/internal/records"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// sourceIDHeaders are the header labels read as the candidate id column.
var sourceIDHeaders = map[string]struct{}{
	"source_id": {},
	"source id": {},
	"id":        {},
	"record id": {},
}

// HeaderMapper maps table headers onto canonical fields.
type HeaderMapper interface {
	MapHeaders(ctx context.Context, reqs []mapping.Request) []mapping.Result
}

// MemorySource searches a fixed candidate list, for exports and tests.
type MemorySource struct {
	candidates []models.CandidateRecord
}

// NewMemorySource returns a source over a copy of candidates.
func NewMemorySource(candidates []models.CandidateRecord) *MemorySource {
	return &MemorySource{candidates: append([]models.CandidateRecord(nil), candidates...)}
}

// Search applies the same selection rules as the SQLite source.
func (s *MemorySource) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.CandidateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Filter(s.candidates, criteria), nil
}

// Len returns the number of candidates held.
func (s *MemorySource) Len() int {
	return len(s.candidates)
}

// Filter selects candidates whose invoice number equals the criteria's, or
// whose vendor matches it inside the date window. Results are ordered by
// date then source id and cut at the criteria's limit.
func Filter(candidates []models.CandidateRecord, criteria models.SearchCriteria) []models.CandidateRecord {
	number := strings.ToLower(strings.TrimSpace(criteria.InvoiceNumber))
	vendor := strings.ToLower(strings.TrimSpace(criteria.VendorName))
	if number == "" && vendor == "" {
		return nil
	}

	var out []models.CandidateRecord
	for _, c := range candidates {
		if number != "" && strings.ToLower(strings.TrimSpace(c.InvoiceNumber)) == number {
			out = append(out, c)
			continue
		}
		if vendor != "" && vendorMatches(vendor, strings.ToLower(c.VendorName)) && criteria.InDateWindow(c.InvoiceDate) {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].InvoiceDate.Equal(out[j].InvoiceDate) {
			return out[i].InvoiceDate.Before(out[j].InvoiceDate)
		}
		return out[i].SourceID < out[j].SourceID
	})
	if criteria.Limit > 0 && len(out) > criteria.Limit {
		out = out[:criteria.Limit]
	}
	return out
}

func vendorMatches(query, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return strings.Contains(name, query) || strings.Contains(query, name)
}

// CandidatesFromTable maps the headers of a system-of-record table and
// converts its rows into candidates. A header named like "id" or
// "source_id" supplies the candidate ids; otherwise ids are "<prefix>:<row>".
func CandidatesFromTable(ctx context.Context, mapper HeaderMapper, headers []string, rows [][]string, prefix string) ([]models.CandidateRecord, error) {
	const op = "connector.CandidatesFromTable"

	results := mapper.MapHeaders(ctx, mapping.Requests(headers, "", "", false))
	mappings := make([]models.HeaderMapping, len(results))
	for i, r := range results {
		mappings[i] = r.Mapping
		if _, ok := sourceIDHeaders[strings.ToLower(strings.TrimSpace(headers[i]))]; ok {
			mappings[i].MappedField = records.FieldSourceID
		}
	}

	conv, err := records.NewConverter(mappings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return conv.Candidates(rows, prefix), nil
}
