package hclscene

import (
	"maps"
	"slices"
	"sync"

	"github.com/specialistvlad/resgraph/internal/proppath"
	"github.com/specialistvlad/resgraph/internal/scene"
	"github.com/zclconf/go-cty/cty"
)

// Object is a scene object declared by an object block. Attribute values are
// kept as cty values; scene function calls are stored as their target id or
// absolute file path.
type Object struct {
	id         string
	typ        string
	source     string
	attrs      map[string]cty.Value
	clonedFrom string

	mu    sync.RWMutex
	bound map[string]scene.Object
}

var (
	_ scene.Binder = (*Object)(nil)
	_ scene.Cloner = (*Object)(nil)
)

func newObject(def *objectDef, source string) *Object {
	return &Object{
		id:     def.id,
		typ:    def.typ,
		source: source,
		attrs:  def.attrs,
		bound:  make(map[string]scene.Object),
	}
}

func (o *Object) ID() string   { return o.id }
func (o *Object) Type() string { return o.typ }

// Source is the scene file that declared the object.
func (o *Object) Source() string { return o.source }

// ClonedFrom returns the id of the original for a clone, or "".
func (o *Object) ClonedFrom() string { return o.clonedFrom }

// Attr returns the value of a top-level attribute.
func (o *Object) Attr(name string) (cty.Value, bool) {
	v, ok := o.attrs[name]
	return v, ok
}

// AttrNames returns the declared attribute names, sorted.
func (o *Object) AttrNames() []string {
	return slices.Sorted(maps.Keys(o.attrs))
}

// BindPointer implements scene.Binder.
func (o *Object) BindPointer(path proppath.Path, target scene.Object) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bound[path.String()] = target
	return nil
}

// Bound returns the object bound to the pointer property at path.
func (o *Object) Bound(path string) (scene.Object, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.bound[path]
	return t, ok
}

// Clone implements scene.Cloner. Attribute values are immutable and shared;
// bindings are copied.
func (o *Object) Clone(id string) scene.Object {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return &Object{
		id:         id,
		typ:        o.typ,
		source:     o.source,
		attrs:      o.attrs,
		clonedFrom: o.id,
		bound:      maps.Clone(o.bound),
	}
}
