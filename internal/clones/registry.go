// Package clones tracks private copies of shared objects made for a single
// consumer.
//
// At most one clone exists per (original, consumer) pair. A clone lives as
// long as its consumer keeps requesting it: it is destroyed when the
// consumer is released or rebuilt without it.
package clones

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/resgraph/internal/diag"
	"github.com/specialistvlad/resgraph/internal/scene"
)

// Record ties a clone to the original it copies and the consumer that
// owns it.
type Record struct {
	Original string
	Consumer string
	Clone    string
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the clone id generator.
func WithIDGenerator(fn func(originalID, consumerID string) string) Option {
	return func(r *Registry) { r.newID = fn }
}

// Registry stores clones keyed by (original, consumer). It is safe for
// concurrent use but is meant to be owned by a single reconciler.
type Registry struct {
	mu      sync.RWMutex
	lookup  scene.Index
	newID   func(originalID, consumerID string) string
	entries map[pair]*entry
	byClone map[string]*entry
}

type pair struct{ original, consumer string }

type entry struct {
	Record
	object scene.Object
	// source is the original instance the clone was copied from.
	source scene.Object
}

// New creates an empty registry. lookup supplies originals for GetOrCreate.
func New(lookup scene.Index, opts ...Option) *Registry {
	r := &Registry{
		lookup:  lookup,
		newID:   DefaultID,
		entries: make(map[pair]*entry),
		byClone: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultID returns `<original>@<consumer>#<random suffix>`. The suffix
// gives a recreated clone a new identity.
func DefaultID(originalID, consumerID string) string {
	return fmt.Sprintf("%s@%s#%s", originalID, consumerID, uuid.NewString()[:8])
}

// GetOrCreate returns the clone of originalID owned by consumerID, creating
// it from the original's current state if none exists.
func (r *Registry) GetOrCreate(originalID, consumerID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[pair{originalID, consumerID}]; ok {
		return e.Clone, nil
	}
	if r.lookup == nil {
		return "", fmt.Errorf("clone %q for %q: registry has no lookup", originalID, consumerID)
	}
	original, ok := r.lookup.Lookup(originalID)
	if !ok {
		return "", fmt.Errorf("clone %q for %q: original not found", originalID, consumerID)
	}
	e, err := r.copyOf(original, consumerID)
	if err != nil {
		return "", err
	}
	r.put(e)
	return e.Clone, nil
}

// Register installs clone as the copy of originalID for consumerID. The
// last registered clone wins; a displaced clone is destroyed.
func (r *Registry) Register(originalID, consumerID string, clone scene.Object) {
	r.mu.Lock()
	displaced := r.put(&entry{
		Record: Record{Original: originalID, Consumer: consumerID, Clone: clone.ID()},
		object: clone,
	})
	r.mu.Unlock()

	if displaced != nil && displaced.object != clone {
		destroy(displaced.object)
	}
}

// ReleaseClonesFor destroys every clone owned by consumerID and returns
// their ids.
func (r *Registry) ReleaseClonesFor(consumerID string) []string {
	return r.releaseWhere(consumerID, func(*entry) bool { return true })
}

// Retain destroys the clones owned by consumerID whose original is not in
// originals and returns their ids.
func (r *Registry) Retain(consumerID string, originals []string) []string {
	keep := make(map[string]struct{}, len(originals))
	for _, o := range originals {
		keep[o] = struct{}{}
	}
	return r.releaseWhere(consumerID, func(e *entry) bool {
		_, ok := keep[e.Original]
		return !ok
	})
}

func (r *Registry) releaseWhere(consumerID string, match func(*entry) bool) []string {
	r.mu.Lock()
	var released []*entry
	for p, e := range r.entries {
		if p.consumer == consumerID && match(e) {
			released = append(released, e)
			r.drop(e)
		}
	}
	r.mu.Unlock()

	sort.Slice(released, func(i, j int) bool { return released[i].Clone < released[j].Clone })
	ids := make([]string, len(released))
	for i, e := range released {
		destroy(e.object)
		ids[i] = e.Clone
	}
	return ids
}

// Lookup returns the clone id for a pair.
func (r *Registry) Lookup(originalID, consumerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[pair{originalID, consumerID}]
	if !ok {
		return "", false
	}
	return e.Clone, true
}

// Object returns the clone object with the given clone id.
func (r *Registry) Object(cloneID string) (scene.Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byClone[cloneID]
	if !ok {
		return nil, false
	}
	return e.object, true
}

// Record returns the record of the clone with the given id.
func (r *Registry) Record(cloneID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byClone[cloneID]
	if !ok {
		return Record{}, false
	}
	return e.Record, true
}

// IsClone reports whether id names a registered clone.
func (r *Registry) IsClone(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byClone[id]
	return ok
}

// Records returns every record sorted by clone id.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Record)
	}
	sortRecords(out)
	return out
}

// ClonesOf returns the records owned by consumerID sorted by clone id.
func (r *Registry) ClonesOf(consumerID string) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Record
	for p, e := range r.entries {
		if p.consumer == consumerID {
			out = append(out, e.Record)
		}
	}
	sortRecords(out)
	return out
}

// Rewrite returns the id a consumer's edge toward targetID must point at:
// the consumer's clone of the target when one is registered, otherwise the
// target itself.
func (r *Registry) Rewrite(consumerID, targetID string) string {
	if id, ok := r.Lookup(targetID, consumerID); ok {
		return id
	}
	return targetID
}

// Len returns the number of registered clones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CheckLeaks returns a CloneLeakError for every clone whose consumer is no
// longer alive.
func (r *Registry) CheckLeaks(alive func(consumerID string) bool) []error {
	var errs []error
	for _, rec := range r.Records() {
		if !alive(rec.Consumer) {
			errs = append(errs, &diag.CloneLeakError{Clone: rec.Clone, Original: rec.Original, Consumer: rec.Consumer})
		}
	}
	return errs
}

// copyOf builds an unregistered clone of original for consumerID.
func (r *Registry) copyOf(original scene.Object, consumerID string) (*entry, error) {
	cloner, ok := original.(scene.Cloner)
	if !ok {
		return nil, fmt.Errorf("object %q of type %q cannot be cloned", original.ID(), original.Type())
	}
	id := r.newID(original.ID(), consumerID)
	clone := cloner.Clone(id)
	if clone == nil || clone.ID() != id {
		return nil, fmt.Errorf("clone of %q did not take the id %q", original.ID(), id)
	}
	return &entry{
		Record: Record{Original: original.ID(), Consumer: consumerID, Clone: id},
		object: clone,
		source: original,
	}, nil
}

// put installs e and returns the entry it displaced. Callers hold mu.
func (r *Registry) put(e *entry) *entry {
	p := pair{e.Original, e.Consumer}
	displaced := r.entries[p]
	if displaced != nil {
		delete(r.byClone, displaced.Clone)
	}
	r.entries[p] = e
	r.byClone[e.Clone] = e
	return displaced
}

// drop removes e. Callers hold mu.
func (r *Registry) drop(e *entry) {
	p := pair{e.Original, e.Consumer}
	if r.entries[p] == e {
		delete(r.entries, p)
	}
	delete(r.byClone, e.Clone)
}

func destroy(obj scene.Object) {
	if d, ok := obj.(scene.Destroyer); ok {
		d.OnDestroy()
	}
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Clone < recs[j].Clone })
}
