package overlay

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gauravpcu/vendor-statements-sub000/pkg/models"
)

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu sync.RWMutex

	preferences map[string]map[string]string // vendor key -> header key -> field
	templates   map[string]models.Template
}

// NewMemoryStore creates an empty in-memory overlay.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		preferences: make(map[string]map[string]string),
		templates:   make(map[string]models.Template),
	}
}

func (s *MemoryStore) Lookup(_ context.Context, vendorKey, originalHeader string) (*models.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vk := VendorKey(vendorKey)
	field, ok := s.preferences[vk][HeaderKey(originalHeader)]
	if !ok {
		return nil, nil
	}
	return &models.Override{
		MappedField: field,
		Method:      models.MethodUserConfirmed,
		Source:      vk,
	}, nil
}

func (s *MemoryStore) LookupTemplate(_ context.Context, templateID string) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[templateID]
	if !ok {
		return nil, nil
	}
	return cloneTemplate(t), nil
}

func (s *MemoryStore) SavePreference(_ context.Context, vendorKey, originalHeader, mappedField string) error {
	if err := validatePreference(originalHeader, mappedField); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vk := VendorKey(vendorKey)
	if s.preferences[vk] == nil {
		s.preferences[vk] = make(map[string]string)
	}
	s.preferences[vk][HeaderKey(originalHeader)] = mappedField
	return nil
}

func (s *MemoryStore) DeletePreference(_ context.Context, vendorKey, originalHeader string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.preferences[VendorKey(vendorKey)], HeaderKey(originalHeader))
	return nil
}

// SaveTemplate stores t, assigning a new id when t.ID is empty.
func (s *MemoryStore) SaveTemplate(_ context.Context, t *models.Template) error {
	if err := ValidateTemplate(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.templates[t.ID] = *cloneTemplate(*t)
	return nil
}

func (s *MemoryStore) ListTemplates(_ context.Context) ([]models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, *cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) DeleteTemplate(_ context.Context, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[templateID]; !ok {
		return ErrTemplateNotFound
	}
	delete(s.templates, templateID)
	return nil
}

func cloneTemplate(t models.Template) *models.Template {
	t.FieldMappings = append([]models.TemplateFieldMapping(nil), t.FieldMappings...)
	return &t
}
