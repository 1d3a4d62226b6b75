package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/specialistvlad/resgraph/internal/proppath"
	"github.com/specialistvlad/resgraph/internal/scene"
	"github.com/specialistvlad/resgraph/internal/testutil"
)

// fakeScene is an in-memory scene.Loader. Every Load builds fresh
// instances, the way a real deserializer does.
type fakeScene struct {
	mu       sync.Mutex
	defs     map[string]*fakeDef
	missing  map[string]bool
	loadErr  error
	onLoad   func()
	recorder *testutil.Recorder
	// built records every instance created, per id, in creation order.
	built map[string][]*testutil.MockObject
}

type fakeDef struct {
	typ     string
	source  string
	ptrs    []fakePtr
	files   []string
	initErr error
}

type fakePtr struct {
	path, target string
	clone        bool
}

func newFakeScene() *fakeScene {
	return &fakeScene{
		defs:     make(map[string]*fakeDef),
		missing:  make(map[string]bool),
		recorder: &testutil.Recorder{},
		built:    make(map[string][]*testutil.MockObject),
	}
}

// put declares id in its own scene file /scene/<id>.hcl.
func (f *fakeScene) put(id string, ptrs []fakePtr, files ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defs[id] = &fakeDef{typ: "Thing", source: "/scene/" + id + ".hcl", ptrs: ptrs, files: files}
}

func (f *fakeScene) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.defs, id)
}

func (f *fakeScene) failInit(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defs[id].initErr = err
}

func (f *fakeScene) fileExists(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.missing[path]
}

func (f *fakeScene) latest(id string) *testutil.MockObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.built[id]
	if len(b) == 0 {
		return nil
	}
	return b[len(b)-1]
}

func (f *fakeScene) Load(_ context.Context, _ ...string) (*scene.Snapshot, error) {
	if f.onLoad != nil {
		f.onLoad()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}

	ids := make([]string, 0, len(f.defs))
	for id := range f.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snap := &scene.Snapshot{Sources: make(map[string]string)}
	for _, id := range ids {
		d := f.defs[id]
		obj := testutil.NewMockObject(id, d.typ)
		obj.Recorder = f.recorder
		obj.InitErr = d.initErr
		f.built[id] = append(f.built[id], obj)

		snap.Objects = append(snap.Objects, obj)
		snap.Sources[id] = d.source
		snap.FileLinks = append(snap.FileLinks, scene.FileLink{Owner: id, Path: d.source, Required: true})
		for _, file := range d.files {
			snap.FileLinks = append(snap.FileLinks, scene.FileLink{Owner: id, Path: file})
		}
		for _, p := range d.ptrs {
			snap.Pointers = append(snap.Pointers, scene.UnresolvedPointer{
				Owner:  id,
				Path:   proppath.MustParse(p.path),
				Target: p.target,
				Clone:  p.clone,
			})
		}
	}
	return snap, nil
}

var errBoom = errors.New("boom")

func ref(path, target string) fakePtr   { return fakePtr{path: path, target: target} }
func clone(path, target string) fakePtr { return fakePtr{path: path, target: target, clone: true} }
