package objgraph

import (
	"fmt"

	"github.com/specialistvlad/resgraph/internal/proppath"
	"github.com/specialistvlad/resgraph/internal/scene"
)

// Kind is the case tag of an Item.
type Kind int

const (
	// KindObject marks an item wrapping a deserialized object.
	KindObject Kind = iota + 1
	// KindFile marks an item wrapping a file on disk.
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Item is a graph node: either an object or a file. The zero Item is
// invalid; use ObjectItem or FileItem.
type Item struct {
	kind  Kind
	id    string
	obj   scene.Object
	types *scene.TypeIndex
}

// ObjectItem wraps a live object. types is the type-partitioned index the
// object was loaded with and may be nil.
func ObjectItem(obj scene.Object, types *scene.TypeIndex) Item {
	return Item{kind: KindObject, id: obj.ID(), obj: obj, types: types}
}

// FileItem wraps a normalized absolute file path.
func FileItem(path string) Item {
	return Item{kind: KindFile, id: path}
}

func (i Item) Kind() Kind { return i.kind }

// ID is the object id or the file path.
func (i Item) ID() string { return i.id }

// Key is the identity of the item inside a graph.
func (i Item) Key() string { return key(i.kind, i.id) }

// Object returns the wrapped object, or nil for a file item.
func (i Item) Object() scene.Object { return i.obj }

// Types returns the type index of an object item.
func (i Item) Types() *scene.TypeIndex { return i.types }

// IsZero reports whether the item was never constructed.
func (i Item) IsZero() bool { return i.kind == 0 }

func (i Item) String() string { return i.Key() }

// ObjectKey returns the graph key of the object with the given id.
func ObjectKey(id string) string { return key(KindObject, id) }

// FileKey returns the graph key of the file at path.
func FileKey(path string) string { return key(KindFile, path) }

func key(k Kind, id string) string {
	return k.String() + ":" + id
}

// Edge is an outgoing dependency of an item.
type Edge struct {
	Kind   Kind
	Target string
	// Path is the property that produced the edge, if known.
	Path proppath.Path
}

// ObjectEdge is a dependency on another object.
func ObjectEdge(target string, path proppath.Path) Edge {
	return Edge{Kind: KindObject, Target: target, Path: path}
}

// FileEdge is a dependency on a file.
func FileEdge(path string) Edge {
	return Edge{Kind: KindFile, Target: path}
}

// Key returns the graph key of the edge target.
func (e Edge) Key() string { return key(e.Kind, e.Target) }

// EdgeFunc returns the outgoing dependencies of an item. It must be a pure
// function of the snapshot being built.
type EdgeFunc func(Item) []Edge
