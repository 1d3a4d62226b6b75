package liveset

import (
	"sort"
	"sync"

	"github.com/specialistvlad/resgraph/internal/scene"
)

// Reader is the read side of the live set handed to object consumers.
type Reader interface {
	Get(id string) (*scene.Resolved, bool)
	Lookup(id string) (scene.Object, bool)
	Snapshot() scene.ResolvedObjectSet
	IDs() []string
	Len() int
	Generation() uint64
}

// Store is an in-memory ResolvedObjectSet guarded by a RWMutex.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]*scene.Resolved
	generation uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(map[string]*scene.Resolved)}
}

// Get returns the resolved entry for id.
func (s *Store) Get(id string) (*scene.Resolved, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entries[id]
	return r, ok
}

// Lookup implements scene.Index over the live objects.
func (s *Store) Lookup(id string) (scene.Object, bool) {
	r, ok := s.Get(id)
	if !ok {
		return nil, false
	}
	return r.Object, true
}

// Snapshot returns a copy of the current id to entry mapping. The entries
// themselves are shared and immutable.
func (s *Store) Snapshot() scene.ResolvedObjectSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(scene.ResolvedObjectSet, len(s.entries))
	for id, r := range s.entries {
		out[id] = r
	}
	return out
}

// IDs returns the live ids sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Generation counts the swaps applied so far.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Swap atomically publishes replace and deletes remove. An id present in
// both is replaced. It returns the entries that were overwritten or
// deleted, keyed by id.
func (s *Store) Swap(replace scene.ResolvedObjectSet, remove []string) map[string]*scene.Resolved {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := make(map[string]*scene.Resolved)
	for _, id := range remove {
		if _, replaced := replace[id]; replaced {
			continue
		}
		if old, ok := s.entries[id]; ok {
			previous[id] = old
			delete(s.entries, id)
		}
	}
	for id, r := range replace {
		if old, ok := s.entries[id]; ok {
			previous[id] = old
		}
		s.entries[id] = r
	}
	s.generation++
	return previous
}
