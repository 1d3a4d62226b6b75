package clones

import (
	"sort"

	"github.com/specialistvlad/resgraph/internal/scene"
)

// Txn stages the clones requested while one set of consumers is rebuilt.
// Nothing in the registry changes until Commit.
type Txn struct {
	r         *Registry
	pending   map[pair]*entry
	requested map[string]map[string]struct{}
}

// Retired is a clone that left the registry. The caller unpublishes it and
// then destroys it with Destroy.
type Retired struct {
	Record
	Object scene.Object
}

// Begin starts a transaction.
func (r *Registry) Begin() *Txn {
	return &Txn{
		r:         r,
		pending:   make(map[pair]*entry),
		requested: make(map[string]map[string]struct{}),
	}
}

// Acquire returns the clone of original for consumerID. A registered clone
// copied from this exact original instance is reused; otherwise a fresh
// clone is staged, so a rebuilt original yields a new clone.
func (t *Txn) Acquire(original scene.Object, consumerID string) (Record, scene.Object, error) {
	p := pair{original.ID(), consumerID}
	if t.requested[consumerID] == nil {
		t.requested[consumerID] = make(map[string]struct{})
	}
	t.requested[consumerID][p.original] = struct{}{}

	if e, ok := t.pending[p]; ok && e.source == original {
		return e.Record, e.object, nil
	}

	t.r.mu.RLock()
	existing, ok := t.r.entries[p]
	t.r.mu.RUnlock()
	if ok && existing.source == original {
		delete(t.pending, p)
		return existing.Record, existing.object, nil
	}

	e, err := t.r.copyOf(original, consumerID)
	if err != nil {
		return Record{}, nil, err
	}
	if stale, ok := t.pending[p]; ok {
		destroy(stale.object)
	}
	t.pending[p] = e
	return e.Record, e.object, nil
}

// Commit applies the transaction for the consumers in rebuilt: their staged
// clones are registered and clones they no longer request are dropped.
// Staged clones of any other consumer are destroyed. The returned clones
// left the registry and are still alive.
func (t *Txn) Commit(rebuilt []string) []Retired {
	ok := make(map[string]struct{}, len(rebuilt))
	for _, c := range rebuilt {
		ok[c] = struct{}{}
	}

	var discard []*entry
	var retired []Retired

	t.r.mu.Lock()
	for p, e := range t.pending {
		if _, accepted := ok[p.consumer]; !accepted {
			discard = append(discard, e)
			continue
		}
		if displaced := t.r.put(e); displaced != nil {
			retired = append(retired, Retired{Record: displaced.Record, Object: displaced.object})
		}
	}
	for p, e := range t.r.entries {
		if _, accepted := ok[p.consumer]; !accepted {
			continue
		}
		if _, wanted := t.requested[p.consumer][p.original]; wanted {
			continue
		}
		t.r.drop(e)
		retired = append(retired, Retired{Record: e.Record, Object: e.object})
	}
	t.r.mu.Unlock()

	for _, e := range discard {
		destroy(e.object)
	}
	t.pending = make(map[pair]*entry)

	sort.Slice(retired, func(i, j int) bool { return retired[i].Clone < retired[j].Clone })
	return retired
}

// Destroy runs the destruction hook of every retired clone.
func Destroy(retired []Retired) {
	for _, r := range retired {
		destroy(r.Object)
	}
}
