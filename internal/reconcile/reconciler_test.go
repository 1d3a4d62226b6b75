package reconcile

import (
	"context"
	"testing"

	"github.com/specialistvlad/resgraph/internal/diag"
	"github.com/specialistvlad/resgraph/internal/proppath"
	"github.com/specialistvlad/resgraph/internal/scene"
	"github.com/specialistvlad/resgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadABCD builds the scene A -> B -> C with C linked to /assets/f.png and
// an unrelated D linked to /assets/g.png. Every object lives in its own
// scene file.
func loadABCD(t *testing.T) (*fakeScene, *Reconciler, context.Context) {
	t.Helper()

	f := newFakeScene()
	f.put("A", []fakePtr{ref("next", "B")})
	f.put("B", []fakePtr{ref("next", "C")})
	f.put("C", nil, "/assets/f.png")
	f.put("D", nil, "/assets/g.png")

	ctx, _ := testutil.Context(t)
	r := New(f, []string{"/scene"}, WithFileExists(f.fileExists))
	rep, err := r.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, rep.Failed)
	require.Equal(t, []string{"A", "B", "C", "D"}, rep.Added)

	f.recorder.Reset()
	return f, r, ctx
}

func liveObject(t *testing.T, r *Reconciler, id string) scene.Object {
	t.Helper()
	obj, ok := r.Live().Lookup(id)
	require.True(t, ok, "object %q must be live", id)
	return obj
}

func TestLoad_InitializesInDependencyOrder(t *testing.T) {
	f := newFakeScene()
	f.put("A", []fakePtr{ref("next", "B")})
	f.put("B", []fakePtr{ref("next", "C")})
	f.put("C", nil, "/assets/f.png")
	f.put("D", nil)

	ctx, _ := testutil.Context(t)
	r := New(f, nil, WithFileExists(f.fileExists))
	rep, err := r.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"init:C", "init:D", "init:B", "init:A"}, f.recorder.Events())
	assert.Equal(t, uint64(1), rep.Pass)
	assert.Equal(t, []string{"A", "B", "C", "D"}, r.Live().IDs())
	assert.Equal(t, StateIdle, r.State())

	bound, ok := f.latest("A").Bound("next")
	require.True(t, ok)
	assert.Same(t, f.latest("B"), bound)
}

func TestAffectedObjects(t *testing.T) {
	_, r, _ := loadABCD(t)

	assert.Equal(t, []string{"A", "B", "C"}, AffectedObjects([]string{"/assets/f.png"}, r.Graph()))
	assert.Equal(t, []string{"D"}, AffectedObjects([]string{"/assets/g.png"}, r.Graph()))
	assert.Equal(t, []string{"A"}, AffectedObjects([]string{"/scene/A.hcl"}, r.Graph()))
	assert.Empty(t, AffectedObjects([]string{"/assets/unrelated.png"}, r.Graph()))
	assert.Empty(t, AffectedObjects(nil, r.Graph()))
	assert.Nil(t, AffectedObjects([]string{"/assets/f.png"}, nil))
}

func TestReconcile_ChangedFileRebuildsOnlyAffected(t *testing.T) {
	f, r, ctx := loadABCD(t)
	before := map[string]scene.Object{}
	for _, id := range []string{"A", "B", "C", "D"} {
		before[id] = liveObject(t, r, id)
	}

	rep, err := r.Reconcile(ctx, []string{"/assets/f.png"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, rep.Affected)
	assert.Equal(t, []string{"A", "B", "C"}, rep.Replaced)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, []string{"A", "B", "C"}, rep.Changed())

	assert.Same(t, before["D"], liveObject(t, r, "D"), "unaffected objects keep their identity")
	for _, id := range []string{"A", "B", "C"} {
		assert.NotSame(t, before[id], liveObject(t, r, id))
		assert.Same(t, f.latest(id), liveObject(t, r, id))
		assert.Equal(t, 1, before[id].(*testutil.MockObject).Destroyed())
	}
	assert.Zero(t, before["D"].(*testutil.MockObject).Destroyed())

	assert.Equal(t, []string{
		"init:C", "init:B", "init:A",
		"destroy:A", "destroy:B", "destroy:C",
	}, f.recorder.Events())
}

func TestReconcile_UnrelatedFileAffectsNothing(t *testing.T) {
	f, r, ctx := loadABCD(t)
	d := liveObject(t, r, "D")

	rep, err := r.Reconcile(ctx, []string{"/assets/unrelated.png"})
	require.NoError(t, err)

	assert.Empty(t, rep.Affected)
	assert.Empty(t, rep.Changed())
	assert.True(t, rep.Empty())
	assert.Same(t, d, liveObject(t, r, "D"))
	assert.Empty(t, f.recorder.Events())
}

func TestReconcile_BrokenLinkIsolatesFailure(t *testing.T) {
	f, r, ctx := loadABCD(t)
	oldA, oldB, oldC, oldD := liveObject(t, r, "A"), liveObject(t, r, "B"), liveObject(t, r, "C"), liveObject(t, r, "D")

	f.remove("C")
	rep, err := r.Reconcile(ctx, []string{"/scene/C.hcl"})
	require.NoError(t, err)

	dangling := diag.As[*diag.DanglingReferenceError](rep.Diagnostics)
	require.Len(t, dangling, 1)
	assert.Equal(t, "B", dangling[0].Owner())
	assert.Equal(t, "C", dangling[0].Target)
	assert.Equal(t, "next", dangling[0].Path.String())

	depFailed := diag.As[*diag.DependencyFailedError](rep.Diagnostics)
	require.Len(t, depFailed, 1)
	assert.Equal(t, "A", depFailed[0].Owner())

	assert.Equal(t, []string{"A", "B"}, rep.Failed)
	assert.Equal(t, []string{"C"}, rep.Retained)
	assert.Empty(t, rep.Removed)
	assert.Empty(t, rep.Replaced)

	// Failed objects keep their previous state, and so does what they use.
	assert.Same(t, oldA, liveObject(t, r, "A"))
	assert.Same(t, oldB, liveObject(t, r, "B"))
	assert.Same(t, oldC, liveObject(t, r, "C"))
	assert.Same(t, oldD, liveObject(t, r, "D"))
	assert.Zero(t, oldC.(*testutil.MockObject).Destroyed())
	assert.NotContains(t, rep.Affected, "D")

	// Restoring C retries the failed objects.
	f.put("C", nil, "/assets/f.png")
	rep, err = r.Reconcile(ctx, []string{"/scene/C.hcl"})
	require.NoError(t, err)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, []string{"A", "B", "C"}, rep.Replaced)
	assert.Same(t, oldD, liveObject(t, r, "D"))
	assert.Equal(t, 1, oldC.(*testutil.MockObject).Destroyed())
}

func TestReconcile_RemovedObjectIsDestroyed(t *testing.T) {
	f, r, ctx := loadABCD(t)
	oldD := liveObject(t, r, "D")

	f.remove("D")
	rep, err := r.Reconcile(ctx, []string{"/scene/D.hcl"})
	require.NoError(t, err)

	assert.Equal(t, []string{"D"}, rep.Removed)
	assert.Equal(t, []string{"D"}, rep.Changed())
	_, ok := r.Live().Get("D")
	assert.False(t, ok)
	assert.Equal(t, 1, oldD.(*testutil.MockObject).Destroyed())
	assert.False(t, r.Graph().Has("object:D"))
}

func TestReconcile_NewObject(t *testing.T) {
	f, r, ctx := loadABCD(t)
	d := liveObject(t, r, "D")

	f.put("E", []fakePtr{ref("dep", "D")})
	rep, err := r.Reconcile(ctx, []string{"/scene/E.hcl"})
	require.NoError(t, err)

	assert.Equal(t, []string{"E"}, rep.Added)
	assert.Empty(t, rep.Replaced)
	bound, ok := f.latest("E").Bound("dep")
	require.True(t, ok)
	assert.Same(t, d, bound)
	assert.Same(t, d, liveObject(t, r, "D"))
}

func TestReconcile_InitFailureKeepsPreviousState(t *testing.T) {
	f, r, ctx := loadABCD(t)
	oldA, oldC := liveObject(t, r, "A"), liveObject(t, r, "C")

	f.failInit("C", errBoom)
	rep, err := r.Reconcile(ctx, []string{"/assets/f.png"})
	require.NoError(t, err)

	initErrs := diag.As[*diag.InitError](rep.Diagnostics)
	require.Len(t, initErrs, 1)
	assert.ErrorIs(t, initErrs[0], errBoom)
	assert.Equal(t, []string{"A", "B", "C"}, rep.Failed)
	assert.Same(t, oldA, liveObject(t, r, "A"))
	assert.Same(t, oldC, liveObject(t, r, "C"))
	assert.Zero(t, oldC.(*testutil.MockObject).Destroyed())
}

func TestReconcile_FailedObjectKeepsReplacedDependency(t *testing.T) {
	f, r, ctx := loadABCD(t)
	oldB, oldC := liveObject(t, r, "B"), liveObject(t, r, "C")

	f.failInit("B", errBoom)
	f.put("X", []fakePtr{ref("next", "C")})
	rep, err := r.Reconcile(ctx, []string{"/assets/f.png"})
	require.NoError(t, err)

	held := diag.As[*diag.HeldError](rep.Diagnostics)
	require.Len(t, held, 1)
	assert.Equal(t, "C", held[0].Owner())
	assert.Equal(t, "B", held[0].Holder)

	depFailed := diag.As[*diag.DependencyFailedError](rep.Diagnostics)
	require.Len(t, depFailed, 2)
	assert.Equal(t, "A", depFailed[0].Owner())
	assert.Equal(t, "X", depFailed[1].Owner())
	assert.Equal(t, "C", depFailed[1].Dependency)

	assert.Equal(t, []string{"A", "B", "C", "X"}, rep.Failed)
	assert.Empty(t, rep.Replaced)
	assert.Empty(t, rep.Added)

	// The live B still uses the old C, so the old C stays.
	assert.Same(t, oldB, liveObject(t, r, "B"))
	assert.Same(t, oldC, liveObject(t, r, "C"))
	bound, ok := oldB.(*testutil.MockObject).Bound("next")
	require.True(t, ok)
	assert.Same(t, oldC, bound)
	assert.Zero(t, oldC.(*testutil.MockObject).Destroyed())

	// Fresh instances that were initialized and then held are destroyed.
	assert.Equal(t, 1, f.latest("C").Inits())
	assert.Equal(t, 1, f.latest("C").Destroyed())
	assert.Equal(t, 1, f.latest("X").Destroyed())
	_, ok = r.Live().Get("X")
	assert.False(t, ok)
	assert.Equal(t, []string{
		"init:C", "init:B", "init:X",
		"destroy:X", "destroy:C",
	}, f.recorder.Events())

	// Fixing B rebuilds everything that was held back.
	f.failInit("B", nil)
	rep, err = r.Reconcile(ctx, []string{"/scene/B.hcl"})
	require.NoError(t, err)
	assert.Empty(t, rep.Failed)
	assert.Equal(t, []string{"A", "B", "C"}, rep.Replaced)
	assert.Equal(t, []string{"X"}, rep.Added)
	assert.Equal(t, 1, oldC.(*testutil.MockObject).Destroyed())
	assert.Same(t, f.latest("C"), liveObject(t, r, "C"))
}

func TestReconcile_CycleFailureDestroysInitializedPartner(t *testing.T) {
	f := newFakeScene()
	f.put("A", []fakePtr{ref("peer", "B")})
	f.put("B", []fakePtr{ref("peer", "A")})

	ctx, _ := testutil.Context(t)
	r := New(f, nil, WithFileExists(f.fileExists))
	rep, err := r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, rep.Added)
	oldA, oldB := liveObject(t, r, "A"), liveObject(t, r, "B")
	f.recorder.Reset()

	f.failInit("B", errBoom)
	rep, err = r.Reconcile(ctx, []string{"/scene/A.hcl", "/scene/B.hcl"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, rep.Failed)
	newA := f.latest("A")
	assert.NotSame(t, oldA, newA)
	assert.Equal(t, 1, newA.Inits())
	assert.Equal(t, 1, newA.Destroyed())
	assert.Equal(t, []string{"init:A", "init:B", "destroy:A"}, f.recorder.Events())

	assert.Same(t, oldA, liveObject(t, r, "A"))
	assert.Same(t, oldB, liveObject(t, r, "B"))
	assert.Zero(t, oldA.(*testutil.MockObject).Destroyed())
	assert.Zero(t, oldB.(*testutil.MockObject).Destroyed())
}

func TestReconcile_MissingFiles(t *testing.T) {
	f := newFakeScene()
	f.put("opt", nil, "/assets/later.png")
	f.put("req", nil)
	f.missing["/assets/later.png"] = true
	f.missing["/scene/req.hcl"] = true

	ctx, _ := testutil.Context(t)
	r := New(f, nil, WithFileExists(f.fileExists))
	rep, err := r.Load(ctx)
	require.NoError(t, err)

	missing := diag.As[*diag.MissingFileError](rep.Diagnostics)
	require.Len(t, missing, 2)
	assert.Equal(t, []string{"opt"}, rep.Added)
	assert.Equal(t, []string{"req"}, rep.Failed)
	assert.True(t, r.Graph().Has("file:/assets/later.png"), "a missing file stays watched")
	assert.Contains(t, r.WatchedFiles(), "/scene/req.hcl")
}

func TestReconcile_SelfReference(t *testing.T) {
	f := newFakeScene()
	f.put("A", []fakePtr{ref("self", "A")})

	ctx, _ := testutil.Context(t)
	r := New(f, nil, WithFileExists(f.fileExists))
	rep, err := r.Load(ctx)
	require.NoError(t, err)

	cycles := diag.As[*diag.CycleError](rep.Diagnostics)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"A"}, cycles[0].Members)
	assert.False(t, rep.Diagnostics.HasErrors())
	assert.Equal(t, []string{"A"}, rep.Added)
}

func TestReconcile_Clones(t *testing.T) {
	f := newFakeScene()
	f.put("T", nil, "/assets/t.png")
	f.put("M", []fakePtr{clone("albedo", "T")})
	f.put("N", []fakePtr{ref("mat", "M")})

	ctx, _ := testutil.Context(t)
	r := New(f, nil, WithFileExists(f.fileExists))
	rep, err := r.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, rep.Failed)

	recs := r.Clones().ClonesOf("M")
	require.Len(t, recs, 1)
	firstClone := recs[0].Clone
	assert.Equal(t, "T", recs[0].Original)
	assert.Equal(t, []string{firstClone}, rep.ClonesCreated)

	bound, ok := f.latest("M").Bound("albedo")
	require.True(t, ok)
	assert.Equal(t, firstClone, bound.ID())
	assert.Same(t, bound, liveObject(t, r, firstClone))

	entry, ok := r.Live().Get("M")
	require.True(t, ok)
	target, _ := entry.Target(proppath.New("albedo"))
	assert.Equal(t, firstClone, target)

	// The consumer's edge goes through its clone.
	deps := r.Graph().DependenciesOf("object:M")
	assert.Contains(t, deps, "object:"+firstClone)
	assert.NotContains(t, deps, "object:T")
	assert.Equal(t, []string{"object:T"}, r.Graph().DependenciesOf("object:"+firstClone))
	assert.Contains(t, AffectedObjects([]string{"/assets/t.png"}, r.Graph()), firstClone)

	t.Run("rebuilding only the consumer reuses the clone", func(t *testing.T) {
		rep, err := r.Reconcile(ctx, []string{"/scene/M.hcl"})
		require.NoError(t, err)
		assert.Equal(t, []string{"M", "N"}, rep.Replaced)
		assert.Empty(t, rep.ClonesCreated)
		assert.Empty(t, rep.ClonesReleased)
		id, _ := r.Clones().Lookup("T", "M")
		assert.Equal(t, firstClone, id)
	})

	t.Run("rebuilding the original recreates the clone", func(t *testing.T) {
		oldClone, ok := r.Clones().Object(firstClone)
		require.True(t, ok)

		rep, err := r.Reconcile(ctx, []string{"/assets/t.png"})
		require.NoError(t, err)
		assert.Equal(t, []string{"M", "N", "T"}, rep.Replaced)
		require.Len(t, rep.ClonesCreated, 1)
		assert.NotEqual(t, firstClone, rep.ClonesCreated[0])
		assert.Equal(t, []string{firstClone}, rep.ClonesReleased)
		assert.Equal(t, 1, oldClone.(*testutil.MockObject).Destroyed())
		_, ok = r.Live().Get(firstClone)
		assert.False(t, ok)
	})

	t.Run("consumer that stops cloning releases the clone", func(t *testing.T) {
		cloneID, _ := r.Clones().Lookup("T", "M")
		f.put("M", []fakePtr{ref("albedo", "T")})

		rep, err := r.Reconcile(ctx, []string{"/scene/M.hcl"})
		require.NoError(t, err)
		assert.Equal(t, []string{cloneID}, rep.ClonesReleased)
		assert.Zero(t, r.Clones().Len())
		_, ok := r.Live().Get(cloneID)
		assert.False(t, ok)
	})
}

func TestReconcile_RemovedConsumerReleasesClones(t *testing.T) {
	f := newFakeScene()
	f.put("T", nil)
	f.put("M", []fakePtr{clone("albedo", "T")})

	ctx, _ := testutil.Context(t)
	r := New(f, nil, WithFileExists(f.fileExists))
	_, err := r.Load(ctx)
	require.NoError(t, err)
	cloneID, ok := r.Clones().Lookup("T", "M")
	require.True(t, ok)

	f.remove("M")
	rep, err := r.Reconcile(ctx, []string{"/scene/M.hcl"})
	require.NoError(t, err)

	assert.Equal(t, []string{"M"}, rep.Removed)
	assert.Equal(t, []string{cloneID}, rep.ClonesReleased)
	_, ok = r.Live().Get(cloneID)
	assert.False(t, ok)

	alive := func(consumer string) bool {
		_, ok := r.Live().Get(consumer)
		return ok
	}
	assert.Empty(t, r.Clones().CheckLeaks(alive))
}

func TestReconcile_StateAndLoadError(t *testing.T) {
	f, r, ctx := loadABCD(t)

	var observed State
	f.onLoad = func() { observed = r.State() }
	_, err := r.Reconcile(ctx, []string{"/assets/f.png"})
	require.NoError(t, err)
	assert.Equal(t, StateRebuilding, observed)
	assert.Equal(t, StateIdle, r.State())

	a := liveObject(t, r, "A")
	f.loadErr = errBoom
	_, err = r.Reconcile(ctx, []string{"/assets/f.png"})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateIdle, r.State())
	assert.Same(t, a, liveObject(t, r, "A"))
}

func TestReconcile_Deterministic(t *testing.T) {
	var orders [][]string
	for i := 0; i < 3; i++ {
		_, r, _ := loadABCD(t)
		orders = append(orders, r.Graph().ObjectOrder())
	}
	assert.Equal(t, orders[0], orders[1])
	assert.Equal(t, orders[1], orders[2])
	assert.Equal(t, []string{"C", "D", "B", "A"}, orders[0])
}
