package connector

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravpcu/vendor-statements-sub000/internal/fields"
	"github.com/gauravpcu/vendor-statements-sub000/internal/mapping"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func window(from, to int) (time.Time, time.Time) {
	return day(from), time.Date(2024, time.March, to, 23, 59, 59, 0, time.UTC)
}

var fixtures = []models.CandidateRecord{
	{SourceID: "a", InvoiceNumber: "INV-100", VendorName: "Acme Corp", InvoiceDate: day(1), TotalAmount: models.Amount(100)},
	{SourceID: "b", InvoiceNumber: "INV-200", VendorName: "Acme Corp", InvoiceDate: day(10), TotalAmount: models.Amount(250.5)},
	{SourceID: "c", InvoiceNumber: "X-1", VendorName: "Globex", InvoiceDate: day(10)},
	{SourceID: "d", InvoiceNumber: "inv-100 ", VendorName: "Other Vendor", InvoiceDate: day(28), PONumber: "PO-9"},
}

func sourceIDs(list []models.CandidateRecord) []string {
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.SourceID
	}
	return ids
}

// searchCases run against every source implementation.
var searchCases = []struct {
	name     string
	criteria func() models.SearchCriteria
	want     []string
}{
	{
		name: "invoice number ignores date window and case",
		criteria: func() models.SearchCriteria {
			from, to := window(20, 22)
			return models.SearchCriteria{InvoiceNumber: "INV-100", DateFrom: from, DateTo: to}
		},
		want: []string{"a", "d"},
	},
	{
		name: "vendor substring inside window",
		criteria: func() models.SearchCriteria {
			from, to := window(7, 13)
			return models.SearchCriteria{VendorName: "acme", DateFrom: from, DateTo: to}
		},
		want: []string{"b"},
	},
	{
		name: "stored vendor inside longer query",
		criteria: func() models.SearchCriteria {
			from, to := window(7, 13)
			return models.SearchCriteria{VendorName: "Globex Corporation", DateFrom: from, DateTo: to}
		},
		want: []string{"c"},
	},
	{
		name: "number or vendor",
		criteria: func() models.SearchCriteria {
			from, to := window(7, 13)
			return models.SearchCriteria{InvoiceNumber: "X-1", VendorName: "Acme", DateFrom: from, DateTo: to}
		},
		want: []string{"b", "c"},
	},
	{
		name: "limit",
		criteria: func() models.SearchCriteria {
			return models.SearchCriteria{VendorName: "Acme", Limit: 1}
		},
		want: []string{"a"},
	},
	{
		name:     "empty criteria",
		criteria: func() models.SearchCriteria { return models.SearchCriteria{} },
		want:     []string{},
	},
}

func openSource(t *testing.T) *SQLiteSource {
	t.Helper()
	src, err := OpenSQLiteSource(context.Background(), filepath.Join(t.TempDir(), "candidates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	require.NoError(t, src.Upsert(context.Background(), fixtures))
	return src
}

func TestSQLiteSourceSearch(t *testing.T) {
	src := openSource(t)
	for _, tc := range searchCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := src.Search(context.Background(), tc.criteria())
			require.NoError(t, err)
			assert.Equal(t, tc.want, sourceIDs(got))
		})
	}
}

func TestMemorySourceSearch(t *testing.T) {
	src := NewMemorySource(fixtures)
	assert.Equal(t, len(fixtures), src.Len())
	for _, tc := range searchCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := src.Search(context.Background(), tc.criteria())
			require.NoError(t, err)
			assert.Equal(t, tc.want, sourceIDs(got))
		})
	}
}

func TestSQLiteSourceRoundTripsFields(t *testing.T) {
	src := openSource(t)

	got, err := src.Search(context.Background(), models.SearchCriteria{InvoiceNumber: "INV-200"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme Corp", got[0].VendorName)
	assert.True(t, got[0].InvoiceDate.Equal(day(10)))
	require.NotNil(t, got[0].TotalAmount)
	assert.InDelta(t, 250.5, *got[0].TotalAmount, 1e-9)

	got, err = src.Search(context.Background(), models.SearchCriteria{InvoiceNumber: "X-1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].TotalAmount)
}

func TestSQLiteSourceUpsert(t *testing.T) {
	src := openSource(t)
	ctx := context.Background()

	require.NoError(t, src.Upsert(ctx, []models.CandidateRecord{{SourceID: "c", InvoiceNumber: "X-2", VendorName: "Globex"}}))
	got, err := src.Search(ctx, models.SearchCriteria{InvoiceNumber: "X-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, sourceIDs(got))

	err = src.Upsert(ctx, []models.CandidateRecord{{InvoiceNumber: "no-id"}})
	assert.ErrorIs(t, err, ErrMissingSourceID)
}

func TestMemorySourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemorySource(fixtures).Search(ctx, models.SearchCriteria{InvoiceNumber: "INV-100"})
	assert.ErrorIs(t, err, context.Canceled)
}

func newMapper(t *testing.T) *mapping.Mapper {
	t.Helper()
	registry, err := fields.Default()
	require.NoError(t, err)
	m, err := mapping.NewMapper(mapping.DefaultConfig(), registry, nil, nil)
	require.NoError(t, err)
	return m
}

func TestCandidatesFromTable(t *testing.T) {
	headers := []string{"ID", "Invoice Number", "Vendor", "Date", "Amount"}
	rows := [][]string{
		{"erp-1", "INV-1", "Acme", "2024-03-01", "10.00"},
		{"", "INV-2", "Acme", "03/02/2024", "$20.00"},
	}

	got, err := CandidatesFromTable(context.Background(), newMapper(t), headers, rows, "erp")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "erp-1", got[0].SourceID)
	assert.Equal(t, "erp:2", got[1].SourceID)
	assert.True(t, got[1].InvoiceDate.Equal(day(2)))
	require.NotNil(t, got[1].TotalAmount)
	assert.InDelta(t, 20.0, *got[1].TotalAmount, 1e-9)

	_, err = CandidatesFromTable(context.Background(), newMapper(t), []string{"Amount"}, rows, "erp")
	assert.Error(t, err)
}

type fakeRangeReader struct {
	calls  atomic.Int32
	values [][]interface{}
	err    error
}

func (f *fakeRangeReader) ReadRange(_ context.Context, _ string) ([][]interface{}, error) {
	f.calls.Add(1)
	return f.values, f.err
}

func TestSheetsSourceLoadsOnce(t *testing.T) {
	reader := &fakeRangeReader{values: [][]interface{}{
		{"Invoice #", "Vendor", "Date", "Amount"},
		{"INV-1", "Acme", "2024-03-01", 10.5},
		{"INV-2", "Globex", "2024-03-02", "7"},
	}}
	src := NewSheetsSource(reader, "Invoices!A:D", newMapper(t), 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := src.Search(context.Background(), models.SearchCriteria{InvoiceNumber: "inv-1"})
			assert.NoError(t, err)
			assert.Equal(t, []string{"sheet:1"}, sourceIDs(got))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), reader.calls.Load())
}

func TestSheetsSourceErrors(t *testing.T) {
	src := NewSheetsSource(&fakeRangeReader{err: errors.New("quota exceeded")}, "Invoices!A:D", newMapper(t), time.Minute)
	_, err := src.Search(context.Background(), models.SearchCriteria{InvoiceNumber: "INV-1"})
	assert.ErrorContains(t, err, "quota exceeded")

	src = NewSheetsSource(&fakeRangeReader{}, "Invoices!A:D", newMapper(t), time.Minute)
	_, err = src.Search(context.Background(), models.SearchCriteria{InvoiceNumber: "INV-1"})
	assert.Error(t, err)
}
