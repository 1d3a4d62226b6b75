package scene

import (
	"context"

	"github.com/specialistvlad/resgraph/internal/proppath"
)

// Object is an identifiable, typed unit of scene state.
type Object interface {
	// ID is the stable identifier other objects use to point at this one.
	ID() string
	// Type is the declared type tag used for pointer type checks.
	Type() string
}

// Binder is implemented by objects that want to receive the live target of a
// pointer property once it has been resolved.
type Binder interface {
	BindPointer(path proppath.Path, target Object) error
}

// Cloner is implemented by objects that can be privately copied for a single
// consumer. The copy must carry the given id and must not share mutable
// state with the receiver.
type Cloner interface {
	Clone(id string) Object
}

// Initializer is implemented by objects with initialization side effects.
// Init runs after all of the object's pointers are bound and after every
// object it depends on has been initialized.
type Initializer interface {
	Init(ctx context.Context) error
}

// Destroyer is implemented by objects that release resources when they are
// replaced, removed or released.
type Destroyer interface {
	OnDestroy()
}

// UnresolvedPointer is a pointer property recorded by id during
// deserialization, waiting to be bound to a live object.
type UnresolvedPointer struct {
	// Owner is the id of the object holding the property.
	Owner string
	// Path locates the property inside the owner.
	Path proppath.Path
	// Target is the id the property refers to.
	Target string
	// ExpectedType is the type the property can hold. Empty accepts any type.
	ExpectedType string
	// Clone requests a private copy of the target for the owner.
	Clone bool
}

// FileLink records that an object depends on a file on disk.
type FileLink struct {
	// Owner is the id of the object holding the link.
	Owner string
	// Path is the normalized absolute path of the file.
	Path string
	// Required makes a missing file fatal for the owner.
	Required bool
}

// Binding is a resolved pointer property.
type Binding struct {
	Path   proppath.Path
	Target string
}

// Resolved is a live object together with the bindings of its pointers.
// A Resolved value is never mutated after it has been published.
type Resolved struct {
	Object   Object
	Bindings []Binding
}

// Target returns the id bound to the property at path.
func (r *Resolved) Target(path proppath.Path) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, b := range r.Bindings {
		if b.Path.Equal(path) {
			return b.Target, true
		}
	}
	return "", false
}
