package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/gauravpcu/vendor-statements-sub000/internal/logger"
	"github.com/gauravpcu/vendor-statements-sub000/internal/records"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

const snapshotKey = "candidates"

// RangeReader reads a range of cell values, as sheets.Service does.
type RangeReader interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
}

// SheetsSource serves candidates from a spreadsheet range whose first row is
// the header. The sheet is read once per TTL and searched in memory.
type SheetsSource struct {
	reader    RangeReader
	rangeSpec string
	mapper    HeaderMapper
	snapshot  *cache.Cache
	loadMu    sync.Mutex
	log       zerolog.Logger
}

// NewSheetsSource creates a source over rangeSpec (for example "Invoices!A:H").
// A zero ttl keeps the first snapshot for the life of the source.
func NewSheetsSource(reader RangeReader, rangeSpec string, mapper HeaderMapper, ttl time.Duration) *SheetsSource {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &SheetsSource{
		reader:    reader,
		rangeSpec: rangeSpec,
		mapper:    mapper,
		snapshot:  cache.New(ttl, 10*time.Minute),
		log:       logger.WithComponent("connector"),
	}
}

func (s *SheetsSource) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.CandidateRecord, error) {
	candidates, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(candidates, criteria), nil
}

func (s *SheetsSource) load(ctx context.Context) ([]models.CandidateRecord, error) {
	const op = "connector.SheetsSource"

	if v, ok := s.snapshot.Get(snapshotKey); ok {
		return v.([]models.CandidateRecord), nil
	}

	// Concurrent searches in a batch share one read.
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if v, ok := s.snapshot.Get(snapshotKey); ok {
		return v.([]models.CandidateRecord), nil
	}

	values, err := s.reader.ReadRange(ctx, s.rangeSpec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: range %s is empty", op, s.rangeSpec)
	}

	headers := records.Cells(values[0])
	rows := make([][]string, 0, len(values)-1)
	for _, row := range values[1:] {
		rows = append(rows, records.Cells(row))
	}

	candidates, err := CandidatesFromTable(ctx, s.mapper, headers, rows, "sheet")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.snapshot.SetDefault(snapshotKey, candidates)

	s.log.Info().
		Str("range", s.rangeSpec).
		Int("candidates", len(candidates)).
		Msg("Loaded candidate sheet")
	return candidates, nil
}
