// Package templates holds the message template catalog and the selection
// engine that picks one template for a response context.
package templates

import (
	"sync"

	"github.com/fixwork/missedcall/internal/domain"
)

// Store is the in-memory template catalog. Templates are operator data,
// loaded at startup and read-only to the delivery pipeline.
type Store struct {
	mu        sync.RWMutex
	byID      map[string]*domain.MessageTemplate
	insertion []string
}

// NewStore creates a store seeded with the given templates.
func NewStore(tmpls ...domain.MessageTemplate) *Store {
	s := &Store{
		byID: make(map[string]*domain.MessageTemplate),
	}
	for i := range tmpls {
		s.Put(tmpls[i])
	}
	return s
}

// Put adds or replaces a template.
func (s *Store) Put(t domain.MessageTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; !exists {
		s.insertion = append(s.insertion, t.ID)
	}
	s.byID[t.ID] = &t
}

// Get returns the template with the given id, or nil.
func (s *Store) Get(id string) *domain.MessageTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil
	}
	clone := *t
	return &clone
}

// List returns all templates in insertion order.
func (s *Store) List() []domain.MessageTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MessageTemplate, 0, len(s.insertion))
	for _, id := range s.insertion {
		out = append(out, *s.byID[id])
	}
	return out
}

// FirstActive returns the first active template of the given category that
// may be sent on platform, or nil if the tier is empty. Insertion order
// keeps the lookup deterministic when several templates share a category.
func (s *Store) FirstActive(category domain.TemplateCategory, platform domain.Platform) *domain.MessageTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.insertion {
		t := s.byID[id]
		if !t.IsActive || t.Category != category {
			continue
		}
		if !t.SupportsPlatform(platform) {
			continue
		}
		clone := *t
		return &clone
	}
	return nil
}
