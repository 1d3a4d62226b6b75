package liveset

import (
	"fmt"
	"sync"
	"testing"

	"github.com/specialistvlad/resgraph/internal/scene"
	"github.com/specialistvlad/resgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id, typ string) *scene.Resolved {
	return &scene.Resolved{Object: &testutil.PlainObject{IDValue: id, TypeValue: typ}}
}

func TestSwap(t *testing.T) {
	s := New()
	assert.Zero(t, s.Len())

	a1, b1 := entry("a", "v1"), entry("b", "v1")
	prev := s.Swap(scene.ResolvedObjectSet{"a": a1, "b": b1}, nil)
	assert.Empty(t, prev)
	assert.Equal(t, []string{"a", "b"}, s.IDs())
	assert.Equal(t, uint64(1), s.Generation())

	a2, c := entry("a", "v2"), entry("c", "v1")
	prev = s.Swap(scene.ResolvedObjectSet{"a": a2, "c": c}, []string{"b", "missing"})
	assert.Equal(t, map[string]*scene.Resolved{"a": a1, "b": b1}, prev)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, a2, got)
	_, ok = s.Get("b")
	assert.False(t, ok)

	obj, ok := s.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, "c", obj.ID())
	assert.Equal(t, uint64(2), s.Generation())
}

func TestSwap_ReplaceWinsOverRemove(t *testing.T) {
	s := New()
	s.Swap(scene.ResolvedObjectSet{"a": entry("a", "v1")}, nil)

	a2 := entry("a", "v2")
	s.Swap(scene.ResolvedObjectSet{"a": a2}, []string{"a"})

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, a2, got)
}

func TestSnapshot_IsIsolated(t *testing.T) {
	s := New()
	s.Swap(scene.ResolvedObjectSet{"a": entry("a", "v1")}, nil)

	snap := s.Snapshot()
	s.Swap(scene.ResolvedObjectSet{"b": entry("b", "v1")}, []string{"a"})

	assert.Contains(t, snap, "a")
	assert.NotContains(t, snap, "b")
}

// Readers must never observe a swap half applied: every snapshot holds a
// and b from the same generation.
func TestSwap_AtomicForConcurrentReaders(t *testing.T) {
	s := New()
	s.Swap(scene.ResolvedObjectSet{"a": entry("a", "gen0"), "b": entry("b", "gen0")}, nil)

	const swaps = 200
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := s.Snapshot()
				a, b := snap["a"], snap["b"]
				if assert.NotNil(t, a) && assert.NotNil(t, b) {
					assert.Equal(t, a.Object.Type(), b.Object.Type())
				}
			}
		}()
	}

	for i := 1; i <= swaps; i++ {
		gen := fmt.Sprintf("gen%d", i)
		s.Swap(scene.ResolvedObjectSet{"a": entry("a", gen), "b": entry("b", gen)}, nil)
	}
	close(done)
	wg.Wait()

	assert.Equal(t, uint64(swaps+1), s.Generation())
}
