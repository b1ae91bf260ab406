package fields

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

func TestDefault(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "invoice_number", r.Names()[0])
	assert.True(t, r.Has("po_number"))
	assert.False(t, r.Has("PONumber"))

	f, ok := r.Get("po_number")
	require.True(t, ok)
	assert.Equal(t, "PO Number", f.DisplayName)

	for label, names := range r.exact {
		assert.Len(t, names, 1, "label %q is declared by several fields", label)
	}
}

func TestExactMatches(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"invoice_number"}, r.ExactMatches("  INVOICE   no "))
	assert.Equal(t, []string{"vendor_name"}, r.ExactMatches("vendor_name"))
	assert.Equal(t, []string{"po_number"}, r.ExactMatches("p.o. #"))
	assert.Empty(t, r.ExactMatches("something else"))
}

func TestParse_KeepsDocumentOrder(t *testing.T) {
	r, err := Parse([]byte(`
zeta:
  display_name: Zeta
  aliases: [z]
alpha:
  aliases: [a, "  A "]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, r.Names())

	f, _ := r.Get("alpha")
	assert.Equal(t, "alpha", f.DisplayName)
	assert.Equal(t, []string{"alpha", "a"}, r.Labels("alpha"))
}

func TestParse_SharedAliasIsIndexedForBothFields(t *testing.T) {
	r, err := Parse([]byte(`
invoice_number:
  aliases: [Number]
po_number:
  aliases: [Number]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice_number", "po_number"}, r.ExactMatches("number"))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty document", "", models.ErrMissingFieldDefinitions},
		{"empty mapping", "{}", models.ErrMissingFieldDefinitions},
		{"not a mapping", "- a\n- b\n", models.ErrInvalidConfiguration},
		{"bad aliases", "x:\n  aliases: {a: 1}\n", models.ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New([]models.CanonicalField{{Name: "a"}, {Name: "a"}})
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)

	_, err = New([]models.CanonicalField{{Name: " "}})
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	require.NoError(t, os.WriteFile(path, []byte("amount:\n  aliases: [Total]\n"), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	r, err = Load("")
	require.NoError(t, err)
	assert.Greater(t, r.Len(), 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault_EveryAliasLineSurvivesParsing(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	loaded := make(map[string]bool)
	for _, f := range r.Fields() {
		for _, a := range f.Aliases {
			loaded[a] = true
			assert.Contains(t, r.ExactMatches(a), f.Name, "alias %q", a)
		}
	}

	for _, line := range strings.Split(string(defaultDefinitions), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- ") {
			continue
		}
		alias := strings.Trim(strings.TrimPrefix(trimmed, "- "), `"`)
		assert.True(t, loaded[alias], "alias line %q was not loaded verbatim", trimmed)
	}

	assert.Equal(t, []string{"invoice_number"}, r.ExactMatches("Invoice #"))
	assert.Equal(t, []string{"invoice_number"}, r.ExactMatches("Inv #"))
	assert.Equal(t, []string{"po_number"}, r.ExactMatches("P.O. #"))
}
