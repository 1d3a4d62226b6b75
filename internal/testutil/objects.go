package testutil

import (
	"context"
	"sync"

	"github.com/specialistvlad/resgraph/internal/proppath"
	"github.com/specialistvlad/resgraph/internal/scene"
)

// Recorder collects lifecycle events ("init:A", "destroy:B") from test
// objects in the order they happen. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) add(event string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Reset clears the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// MockObject is a scene object implementing every capability interface. It
// records what the engine does to it.
type MockObject struct {
	id       string
	typ      string
	Recorder *Recorder
	// InitErr is returned from Init when set.
	InitErr error

	mu         sync.Mutex
	bound      map[string]scene.Object
	inits      int
	destroyed  int
	clonedFrom string
}

// NewMockObject creates a test object with the given id and type.
func NewMockObject(id, typ string) *MockObject {
	return &MockObject{id: id, typ: typ, bound: make(map[string]scene.Object)}
}

func (o *MockObject) ID() string   { return o.id }
func (o *MockObject) Type() string { return o.typ }

// BindPointer implements scene.Binder.
func (o *MockObject) BindPointer(path proppath.Path, target scene.Object) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bound[path.String()] = target
	return nil
}

// Clone implements scene.Cloner.
func (o *MockObject) Clone(id string) scene.Object {
	o.mu.Lock()
	defer o.mu.Unlock()
	c := NewMockObject(id, o.typ)
	c.Recorder = o.Recorder
	c.clonedFrom = o.id
	for k, v := range o.bound {
		c.bound[k] = v
	}
	return c
}

// Init implements scene.Initializer.
func (o *MockObject) Init(context.Context) error {
	o.mu.Lock()
	o.inits++
	o.mu.Unlock()
	o.Recorder.add("init:" + o.id)
	return o.InitErr
}

// OnDestroy implements scene.Destroyer.
func (o *MockObject) OnDestroy() {
	o.mu.Lock()
	o.destroyed++
	o.mu.Unlock()
	o.Recorder.add("destroy:" + o.id)
}

// Bound returns the object bound to the property at path.
func (o *MockObject) Bound(path string) (scene.Object, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	obj, ok := o.bound[path]
	return obj, ok
}

// Inits returns how many times Init ran.
func (o *MockObject) Inits() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inits
}

// Destroyed returns how many times OnDestroy ran.
func (o *MockObject) Destroyed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.destroyed
}

// ClonedFrom returns the id of the object this one was cloned from.
func (o *MockObject) ClonedFrom() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clonedFrom
}

// PlainObject implements only scene.Object.
type PlainObject struct {
	IDValue   string
	TypeValue string
}

func (o *PlainObject) ID() string   { return o.IDValue }
func (o *PlainObject) Type() string { return o.TypeValue }

// Index builds a scene.MapIndex from objects.
func Index(objects ...scene.Object) scene.MapIndex {
	idx := make(scene.MapIndex, len(objects))
	for _, obj := range objects {
		idx[obj.ID()] = obj
	}
	return idx
}

// Ptr builds an unresolved pointer with a parsed property path.
func Ptr(owner, path, target string) scene.UnresolvedPointer {
	return scene.UnresolvedPointer{Owner: owner, Path: proppath.MustParse(path), Target: target}
}
