package community

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for registry operations. Callers match with errors.Is.
var (
	// ErrConflict is returned by Create when the id is already taken.
	ErrConflict = errors.New("community already exists")

	// ErrNotFound is returned when an operation references an unknown id.
	ErrNotFound = errors.New("community not found")
)

// Store is a thread-safe in-memory registry of communities. A single mutex
// guards the whole map, which is sufficient at this scale: operations are
// pure map lookups and rule-slice copies, and no lock is ever held across
// a network call.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*Community
	order []string // insertion order for List
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{
		byID: make(map[string]*Community),
	}
}

// Create registers a new community under the given id. The rules slice may
// be nil or empty ("start with zero rules"). The existence check and the
// insert happen under one lock acquisition, so two concurrent Create calls
// with the same id yield exactly one success.
func (s *Store) Create(id string, rules []string) (*Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; ok {
		return nil, fmt.Errorf("community: create %q: %w", id, ErrConflict)
	}

	c := &Community{ID: id, Rules: copyRules(rules)}
	s.byID[id] = c
	s.order = append(s.order, id)
	return c.clone(), nil
}

// Get returns a copy of the community with the given id.
func (s *Store) Get(id string) (*Community, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("community: get %q: %w", id, ErrNotFound)
	}
	return c.clone(), nil
}

// SetRules replaces the community's entire rule set atomically. Readers
// observe either the previous rule set or the new one, never a mix.
// An empty slice is valid and means "no rules, so every message passes".
func (s *Store) SetRules(id string, rules []string) (*Community, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("community: set rules %q: %w", id, ErrNotFound)
	}

	c.Rules = copyRules(rules)
	return c.clone(), nil
}

// Delete removes a community from the registry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("community: delete %q: %w", id, ErrNotFound)
	}

	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List returns copies of all communities in insertion order.
func (s *Store) List() []*Community {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Community, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].clone())
	}
	return out
}

// Count returns the number of registered communities.
func (s *Store) Count() int {
	s.mu.RLock()
	n := len(s.byID)
	s.mu.RUnlock()
	return n
}
