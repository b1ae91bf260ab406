package mapping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravpcu/vendor-statements-sub000/internal/fields"
	"github.com/gauravpcu/vendor-statements-sub000/internal/overlay"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

type stubOracle struct {
	suggestions []models.MappingSuggestion
	err         error
	delay       time.Duration
	calls       int
}

func (s *stubOracle) Suggest(ctx context.Context, _, _ string) ([]models.MappingSuggestion, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.MappingSuggestion(nil), s.suggestions...), nil
}

func scenarioRegistry(t *testing.T) *fields.Registry {
	t.Helper()
	r, err := fields.New([]models.CanonicalField{
		{Name: "InvoiceID", DisplayName: "Invoice ID", Aliases: []string{"Invoice Number", "Inv #"}},
		{Name: "PONumber", DisplayName: "PO Number", Aliases: []string{"PO Number", "P.O. #"}},
		{Name: "Reference", DisplayName: "Reference", Aliases: []string{"Inv Ref", "Ref"}},
		{Name: "VendorName", DisplayName: "Vendor", Aliases: []string{"Supplier"}},
		{Name: "Amount", DisplayName: "Amount", Aliases: []string{"Total", "Invoice Total"}},
	})
	require.NoError(t, err)
	return r
}

func newMapper(t *testing.T, r *fields.Registry, o *overlay.MemoryStore, oracle *stubOracle) *Mapper {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OracleTimeout = 200 * time.Millisecond

	var m *Mapper
	var err error
	switch {
	case o != nil && oracle != nil:
		m, err = NewMapper(cfg, r, o, oracle)
	case o != nil:
		m, err = NewMapper(cfg, r, o, nil)
	case oracle != nil:
		m, err = NewMapper(cfg, r, nil, oracle)
	default:
		m, err = NewMapper(cfg, r, nil, nil)
	}
	require.NoError(t, err)
	return m
}

func TestMapHeader_ExactAlias(t *testing.T) {
	r, err := fields.Default()
	require.NoError(t, err)
	m := newMapper(t, r, nil, nil)

	for _, header := range []string{"Invoice No", "  invoice   NO ", "INVOICE_NUMBER", "Invoice Number"} {
		res := m.MapHeader(context.Background(), Request{Header: header})
		assert.Equal(t, "invoice_number", res.Mapping.MappedField, header)
		assert.Equal(t, models.MethodExactAlias, res.Mapping.Method, header)
		assert.Equal(t, 100.0, res.Mapping.ConfidenceScore, header)
		assert.Equal(t, header, res.Mapping.OriginalHeader)
		assert.NoError(t, res.Err)
	}
}

func TestMapHeader_FuzzyAbbreviation(t *testing.T) {
	m := newMapper(t, scenarioRegistry(t), nil, nil)

	res := m.MapHeader(context.Background(), Request{Header: "PO #"})
	assert.Equal(t, "PONumber", res.Mapping.MappedField)
	assert.Equal(t, models.MethodFuzzyAlias, res.Mapping.Method)
	assert.GreaterOrEqual(t, res.Mapping.ConfidenceScore, 70.0)
	assert.Less(t, res.Mapping.ConfidenceScore, 100.0)
}

func TestMapHeader_BelowFloorIsUnmapped(t *testing.T) {
	m := newMapper(t, scenarioRegistry(t), nil, nil)

	res := m.MapHeader(context.Background(), Request{Header: "zzqx"})
	assert.Equal(t, models.UnmappedField, res.Mapping.MappedField)
	assert.Equal(t, models.MethodUnmapped, res.Mapping.Method)
	assert.Equal(t, 0.0, res.Mapping.ConfidenceScore)
	assert.Empty(t, res.Mapping.Error)
	assert.False(t, res.Mapping.IsMapped())
}

func TestMapHeader_EmptyHeader(t *testing.T) {
	m := newMapper(t, scenarioRegistry(t), nil, nil)

	for _, header := range []string{"", "   ", "\t"} {
		res := m.MapHeader(context.Background(), Request{Header: header})
		assert.Equal(t, models.UnmappedField, res.Mapping.MappedField)
		assert.Equal(t, "empty header", res.Mapping.Error)
		assert.ErrorIs(t, res.Err, ErrEmptyHeader)
		assert.True(t, IsInputError(res.Err))
		assert.NotNil(t, res.Suggestions)
	}
}

func TestMapHeader_AmbiguousExactMatch(t *testing.T) {
	r, err := fields.New([]models.CanonicalField{
		{Name: "invoice_number", Aliases: []string{"Number"}},
		{Name: "po_number", Aliases: []string{"Number"}},
	})
	require.NoError(t, err)
	oracle := &stubOracle{suggestions: []models.MappingSuggestion{
		{SuggestedField: "po_number", Confidence: 0.95, AutoApply: true},
	}}
	m := newMapper(t, r, nil, oracle)

	res := m.MapHeader(context.Background(), Request{Header: "number", Suggest: true})
	assert.Equal(t, models.UnmappedField, res.Mapping.MappedField)
	assert.Equal(t, models.MethodUnmapped, res.Mapping.Method)
	assert.Contains(t, res.Mapping.Error, "ambiguous header")
	assert.Contains(t, res.Mapping.Error, "invoice_number, po_number")
	assert.ErrorIs(t, res.Err, ErrAmbiguousHeader)

	// Both candidates are still offered as alternatives.
	require.GreaterOrEqual(t, len(res.Suggestions), 2)
	assert.Equal(t, "invoice_number", res.Suggestions[0].SuggestedField)
	assert.Equal(t, models.MethodExactAlias, res.Suggestions[0].Method)
	assert.Equal(t, "po_number", res.Suggestions[1].SuggestedField)
}

func TestMapHeader_TemplateOverrideWins(t *testing.T) {
	ctx := context.Background()
	store := overlay.NewMemoryStore()
	tpl := &models.Template{
		Name:          "acme",
		FieldMappings: []models.TemplateFieldMapping{{Header: "Inv Ref", Field: "InvoiceID"}},
	}
	require.NoError(t, store.SaveTemplate(ctx, tpl))
	require.NoError(t, store.SavePreference(ctx, "acme", "Inv Ref", "Amount"))

	oracle := &stubOracle{suggestions: []models.MappingSuggestion{
		{SuggestedField: "Reference", Confidence: 0.99, AutoApply: true},
	}}
	m := newMapper(t, scenarioRegistry(t), store, oracle)

	// "Inv Ref" is an exact alias of Reference, and the oracle insists on it too.
	for i := 0; i < 3; i++ {
		res := m.MapHeader(ctx, Request{Header: "Inv Ref", VendorKey: "acme", TemplateID: tpl.ID, Suggest: true})
		assert.Equal(t, "InvoiceID", res.Mapping.MappedField)
		assert.Equal(t, models.MethodTemplateOverride, res.Mapping.Method)
		assert.Equal(t, 100.0, res.Mapping.ConfidenceScore)
		require.NotEmpty(t, res.Suggestions)
		assert.Equal(t, "Reference", res.Suggestions[0].SuggestedField)
	}
}

func TestMapHeader_PreferenceOverride(t *testing.T) {
	ctx := context.Background()
	store := overlay.NewMemoryStore()
	require.NoError(t, store.SavePreference(ctx, "Acme", "Total", "InvoiceID"))
	m := newMapper(t, scenarioRegistry(t), store, nil)

	res := m.MapHeader(ctx, Request{Header: "total", VendorKey: "acme"})
	assert.Equal(t, "InvoiceID", res.Mapping.MappedField)
	assert.Equal(t, models.MethodUserConfirmed, res.Mapping.Method)
	assert.Equal(t, 100.0, res.Mapping.ConfidenceScore)

	// Another vendor gets the computed mapping.
	res = m.MapHeader(ctx, Request{Header: "total", VendorKey: "globex"})
	assert.Equal(t, "Amount", res.Mapping.MappedField)
	assert.Equal(t, models.MethodExactAlias, res.Mapping.Method)

	// A missing template falls through to preferences.
	res = m.MapHeader(ctx, Request{Header: "total", VendorKey: "acme", TemplateID: "missing"})
	assert.Equal(t, models.MethodUserConfirmed, res.Mapping.Method)
}

func TestMapHeader_OracleReplacesComputedMapping(t *testing.T) {
	tests := []struct {
		name       string
		suggestion models.MappingSuggestion
		wantField  string
		wantMethod models.MappingMethod
	}{
		{
			name:       "confident auto-apply",
			suggestion: models.MappingSuggestion{SuggestedField: "Reference", Confidence: 0.9, AutoApply: true},
			wantField:  "Reference",
			wantMethod: models.MethodAISuggested,
		},
		{
			name:       "at threshold is not enough",
			suggestion: models.MappingSuggestion{SuggestedField: "Reference", Confidence: 0.8, AutoApply: true},
			wantField:  "PONumber",
			wantMethod: models.MethodFuzzyAlias,
		},
		{
			name:       "confident without auto-apply",
			suggestion: models.MappingSuggestion{SuggestedField: "Reference", Confidence: 0.95},
			wantField:  "PONumber",
			wantMethod: models.MethodFuzzyAlias,
		},
		{
			name:       "unknown field is dropped",
			suggestion: models.MappingSuggestion{SuggestedField: "Nope", Confidence: 0.99, AutoApply: true},
			wantField:  "PONumber",
			wantMethod: models.MethodFuzzyAlias,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &stubOracle{suggestions: []models.MappingSuggestion{tt.suggestion}}
			m := newMapper(t, scenarioRegistry(t), nil, oracle)

			res := m.MapHeader(context.Background(), Request{Header: "PO #", Suggest: true})
			assert.Equal(t, tt.wantField, res.Mapping.MappedField)
			assert.Equal(t, tt.wantMethod, res.Mapping.Method)
			if tt.wantMethod == models.MethodAISuggested {
				assert.Equal(t, 90.0, res.Mapping.ConfidenceScore)
			}
			for _, s := range res.Suggestions {
				assert.NotEqual(t, "Nope", s.SuggestedField)
			}
		})
	}
}

func TestMapHeader_OracleOnlyWhenRequested(t *testing.T) {
	oracle := &stubOracle{suggestions: []models.MappingSuggestion{
		{SuggestedField: "Reference", Confidence: 0.9, AutoApply: true},
	}}
	m := newMapper(t, scenarioRegistry(t), nil, oracle)

	res := m.MapHeader(context.Background(), Request{Header: "PO #"})
	assert.Equal(t, models.MethodFuzzyAlias, res.Mapping.Method)
	assert.Equal(t, 0, oracle.calls)
}

func TestMapHeader_OracleFailureFallsBack(t *testing.T) {
	for name, oracle := range map[string]*stubOracle{
		"error":   {err: errors.New("503 service unavailable")},
		"timeout": {delay: 5 * time.Second, suggestions: []models.MappingSuggestion{{SuggestedField: "Reference", Confidence: 0.99, AutoApply: true}}},
	} {
		t.Run(name, func(t *testing.T) {
			m := newMapper(t, scenarioRegistry(t), nil, oracle)

			start := time.Now()
			res := m.MapHeader(context.Background(), Request{Header: "Invoice Num", Suggest: true})
			assert.Less(t, time.Since(start), 2*time.Second)

			assert.Equal(t, "InvoiceID", res.Mapping.MappedField)
			assert.Equal(t, models.MethodFuzzyAlias, res.Mapping.Method)
			require.NotEmpty(t, res.Suggestions)
			for _, s := range res.Suggestions {
				assert.NotEqual(t, models.MethodAISuggested, s.Method)
			}
		})
	}
}

// ctxBlindOracle sleeps for its full delay regardless of the context.
type ctxBlindOracle struct {
	delay time.Duration
}

func (o ctxBlindOracle) Suggest(context.Context, string, string) ([]models.MappingSuggestion, error) {
	time.Sleep(o.delay)
	return []models.MappingSuggestion{{SuggestedField: "Reference", Confidence: 0.99, AutoApply: true}}, nil
}

func TestMapHeader_OracleIgnoringContextIsCutOff(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OracleTimeout = 50 * time.Millisecond
	m, err := NewMapper(cfg, scenarioRegistry(t), nil, ctxBlindOracle{delay: 2 * time.Second})
	require.NoError(t, err)

	start := time.Now()
	res := m.MapHeader(context.Background(), Request{Header: "Invoice Num", Suggest: true})
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, "InvoiceID", res.Mapping.MappedField)
	assert.Equal(t, models.MethodFuzzyAlias, res.Mapping.Method)
	for _, s := range res.Suggestions {
		assert.NotEqual(t, models.MethodAISuggested, s.Method)
	}
}

func TestMapHeader_SuggestionsAreRankedAndCapped(t *testing.T) {
	oracle := &stubOracle{suggestions: []models.MappingSuggestion{
		{SuggestedField: "VendorName", Confidence: 0.6, Reason: "guess"},
		{SuggestedField: "Amount", Confidence: 0.6, Reason: "guess"},
		{SuggestedField: "InvoiceID", Confidence: 0.2, Reason: "weak"},
	}}
	r := scenarioRegistry(t)
	cfg := DefaultConfig()
	cfg.MaxSuggestions = 3
	m, err := NewMapper(cfg, r, nil, oracle)
	require.NoError(t, err)

	res := m.MapHeader(context.Background(), Request{Header: "Invoice Total", Suggest: true})
	assert.Equal(t, "Amount", res.Mapping.MappedField)
	assert.Equal(t, models.MethodExactAlias, res.Mapping.Method)

	require.Len(t, res.Suggestions, 3)
	assert.Equal(t, "Amount", res.Suggestions[0].SuggestedField)
	assert.Equal(t, 1.0, res.Suggestions[0].Confidence)
	assert.True(t, res.Suggestions[0].AutoApply)
	for i := 1; i < len(res.Suggestions); i++ {
		prev, cur := res.Suggestions[i-1], res.Suggestions[i]
		assert.GreaterOrEqual(t, prev.Confidence, cur.Confidence)
		if prev.Confidence == cur.Confidence && prev.Method == cur.Method {
			assert.Less(t, prev.SuggestedField, cur.SuggestedField)
		}
	}
}

func TestMapHeader_ConfidenceBounds(t *testing.T) {
	r, err := fields.Default()
	require.NoError(t, err)
	m := newMapper(t, r, nil, nil)

	headers := []string{"Inv#", "Datum", "Amt Due", "Facility", "Cust", "P/O", "Description of goods", "x", "ÜBERWEISUNG", "12345"}
	for _, h := range headers {
		res := m.MapHeader(context.Background(), Request{Header: h})
		assert.GreaterOrEqual(t, res.Mapping.ConfidenceScore, 0.0, h)
		assert.LessOrEqual(t, res.Mapping.ConfidenceScore, 100.0, h)
		for _, s := range res.Suggestions {
			assert.GreaterOrEqual(t, s.Confidence, 0.0, h)
			assert.LessOrEqual(t, s.Confidence, 1.0, h)
		}
	}
}

func TestMapHeaders_OrderedAndIndependent(t *testing.T) {
	r, err := fields.Default()
	require.NoError(t, err)
	m := newMapper(t, r, nil, nil)

	headers := []string{"Invoice No", "Amount", "", "Invoice No", "Vendor", "Date"}
	results := m.MapHeaders(context.Background(), Requests(headers, "", "", false))
	require.Len(t, results, len(headers))
	for i, res := range results {
		assert.Equal(t, headers[i], res.Mapping.OriginalHeader)
	}
	assert.Equal(t, "invoice_number", results[0].Mapping.MappedField)
	assert.Equal(t, "invoice_number", results[3].Mapping.MappedField)
	assert.Equal(t, "total_amount", results[1].Mapping.MappedField)
	assert.Equal(t, "empty header", results[2].Mapping.Error)
	assert.Equal(t, "vendor_name", results[4].Mapping.MappedField)
	assert.Equal(t, "invoice_date", results[5].Mapping.MappedField)
}

func TestMapHeaders_Cancelled(t *testing.T) {
	r, err := fields.Default()
	require.NoError(t, err)
	m := newMapper(t, r, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := m.MapHeaders(ctx, Requests([]string{"Invoice No", "Amount"}, "", "", false))
	require.Len(t, results, 2)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled)
		assert.Equal(t, models.UnmappedField, res.Mapping.MappedField)
	}
}

func TestNewMapper_RejectsInvalidConfiguration(t *testing.T) {
	r := scenarioRegistry(t)

	cfg := DefaultConfig()
	cfg.FuzzyFloor = 1.5
	_, err := NewMapper(cfg, r, nil, nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.MaxSuggestions = 0
	_, err = NewMapper(cfg, r, nil, nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)

	_, err = NewMapper(DefaultConfig(), nil, nil, nil)
	assert.ErrorIs(t, err, models.ErrMissingFieldDefinitions)
}

func TestApplyTemplate(t *testing.T) {
	ctx := context.Background()
	store := overlay.NewMemoryStore()
	tpl := &models.Template{
		Name:          "acme",
		VendorKey:     "acme",
		SkipRows:      3,
		FieldMappings: []models.TemplateFieldMapping{{Header: "Ref #", Field: "InvoiceID"}},
	}
	require.NoError(t, store.SaveTemplate(ctx, tpl))
	m := newMapper(t, scenarioRegistry(t), store, nil)

	var gotSkip int
	extract := func(_ context.Context, skipRows int) ([]string, error) {
		gotSkip = skipRows
		return []string{"Ref #", "Supplier"}, nil
	}

	applied, results, err := m.ApplyTemplate(ctx, tpl.ID, extract, false)
	require.NoError(t, err)
	assert.Equal(t, 3, gotSkip)
	assert.Equal(t, tpl.ID, applied.ID)
	require.Len(t, results, 2)
	assert.Equal(t, models.MethodTemplateOverride, results[0].Mapping.Method)
	assert.Equal(t, "InvoiceID", results[0].Mapping.MappedField)
	assert.Equal(t, "VendorName", results[1].Mapping.MappedField)

	_, _, err = m.ApplyTemplate(ctx, "missing", extract, false)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.ErrorIs(t, err, overlay.ErrTemplateNotFound)

	_, _, err = m.ApplyTemplate(ctx, tpl.ID, func(context.Context, int) ([]string, error) {
		return nil, errors.New("file vanished")
	}, false)
	assert.Error(t, err)
}

func TestTemplateFromResults(t *testing.T) {
	results := []Result{
		{Mapping: models.HeaderMapping{OriginalHeader: "Inv", MappedField: "invoice_number", Method: models.MethodFuzzyAlias}},
		{Mapping: models.HeaderMapping{OriginalHeader: "??", MappedField: models.UnmappedField, Method: models.MethodUnmapped}},
		{Mapping: models.HeaderMapping{OriginalHeader: "inv ", MappedField: "po_number", Method: models.MethodFuzzyAlias}},
	}
	tpl := TemplateFromResults("acme", "acme", 1, results)
	require.Len(t, tpl.FieldMappings, 1)
	assert.Equal(t, "Inv", tpl.FieldMappings[0].Header)
	assert.NoError(t, overlay.ValidateTemplate(tpl))
}
