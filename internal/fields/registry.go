// Package fields holds the canonical target schema that statement headers are
// mapped onto. A Registry is immutable after construction and safe to share.
package fields

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gauravpcu/vendor-statements-sub000/internal/similarity"
	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

//go:embed defaults.yaml
var defaultDefinitions []byte

type definition struct {
	DisplayName string   `yaml:"display_name"`
	Aliases     []string `yaml:"aliases"`
}

// Registry is the read-only set of canonical fields with precomputed alias tables.
type Registry struct {
	fields []models.CanonicalField
	byName map[string]int

	// labels[i] holds the normalized name and aliases of fields[i]
	labels [][]string

	// exact maps a normalized label to the sorted names of every field that declares it
	exact map[string][]string
}

// New validates the definitions and builds the alias tables.
func New(defs []models.CanonicalField) (*Registry, error) {
	const op = "fields.New"

	if len(defs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrMissingFieldDefinitions)
	}

	r := &Registry{
		fields: make([]models.CanonicalField, 0, len(defs)),
		byName: make(map[string]int, len(defs)),
		labels: make([][]string, 0, len(defs)),
		exact:  make(map[string][]string),
	}

	for _, d := range defs {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%s: field with empty name: %w", op, models.ErrInvalidConfiguration)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("%s: duplicate field %q: %w", op, name, models.ErrInvalidConfiguration)
		}

		field := models.CanonicalField{
			Name:        name,
			DisplayName: d.DisplayName,
			Aliases:     append([]string(nil), d.Aliases...),
		}
		if field.DisplayName == "" {
			field.DisplayName = name
		}

		seen := make(map[string]struct{})
		var labels []string
		for _, raw := range append([]string{name, field.DisplayName}, field.Aliases...) {
			label := similarity.Normalize(raw)
			if label == "" {
				continue
			}
			if _, ok := seen[label]; ok {
				continue
			}
			seen[label] = struct{}{}
			labels = append(labels, label)
			r.exact[label] = append(r.exact[label], name)
		}

		r.byName[name] = len(r.fields)
		r.fields = append(r.fields, field)
		r.labels = append(r.labels, labels)
	}

	for label := range r.exact {
		sort.Strings(r.exact[label])
	}

	return r, nil
}

// Parse reads `{field_name: {display_name, aliases[]}}` YAML, keeping document order.
func Parse(data []byte) (*Registry, error) {
	const op = "fields.Parse"

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, models.ErrInvalidConfiguration, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s: %w", op, models.ErrMissingFieldDefinitions)
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping of field names: %w", op, models.ErrInvalidConfiguration)
	}

	defs := make([]models.CanonicalField, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		var def definition
		if err := root.Content[i+1].Decode(&def); err != nil {
			return nil, fmt.Errorf("%s: field %q: %w: %v", op, root.Content[i].Value, models.ErrInvalidConfiguration, err)
		}
		defs = append(defs, models.CanonicalField{
			Name:        root.Content[i].Value,
			DisplayName: def.DisplayName,
			Aliases:     def.Aliases,
		})
	}

	return New(defs)
}

// LoadFile reads field definitions from a YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fields.LoadFile: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in vendor statement schema.
func Default() (*Registry, error) {
	return Parse(defaultDefinitions)
}

// Load reads path when set and falls back to the built-in schema otherwise.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}

// Fields returns a copy of the canonical fields in definition order.
func (r *Registry) Fields() []models.CanonicalField {
	out := make([]models.CanonicalField, len(r.fields))
	copy(out, r.fields)
	return out
}

// Names returns the field names in definition order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Name
	}
	return out
}

// Get returns the field with the given name.
func (r *Registry) Get(name string) (models.CanonicalField, bool) {
	i, ok := r.byName[name]
	if !ok {
		return models.CanonicalField{}, false
	}
	return r.fields[i], true
}

// Has reports whether name is a canonical field.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// ExactMatches returns the sorted names of every field whose name, display name
// or alias equals header after normalization.
func (r *Registry) ExactMatches(header string) []string {
	return r.exact[similarity.Normalize(header)]
}

// Labels returns the normalized name and aliases of the named field.
func (r *Registry) Labels(name string) []string {
	i, ok := r.byName[name]
	if !ok {
		return nil
	}
	return r.labels[i]
}

// Len returns the number of canonical fields.
func (r *Registry) Len() int {
	return len(r.fields)
}
