// Package diag classifies the failures produced while building, resolving and
// reconciling an object graph.
//
// Every failure is a typed error so callers can use errors.As to pick out a
// kind. A Diagnostics list pairs each error with a severity; the core only
// classifies failures and never formats them for the user.
package diag

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/resgraph/internal/proppath"
)

// Owned is implemented by errors that belong to a single object.
type Owned interface {
	Owner() string
}

// CycleError reports a strongly connected component of the dependency graph.
// A one-member cycle is a self-reference.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	if len(e.Members) == 1 {
		return fmt.Sprintf("dependency cycle: %q references itself", e.Members[0])
	}
	return fmt.Sprintf("dependency cycle among %d items: %s", len(e.Members), strings.Join(e.Members, ", "))
}

// Contains reports whether id is part of the cycle.
func (e *CycleError) Contains(id string) bool {
	for _, m := range e.Members {
		if m == id {
			return true
		}
	}
	return false
}

// DanglingReferenceError reports a pointer whose target id does not exist.
type DanglingReferenceError struct {
	OwnerID string
	Path    proppath.Path
	Target  string
}

func (e *DanglingReferenceError) Error() string {
	if e.Path.IsEmpty() {
		return fmt.Sprintf("object %q depends on missing object %q", e.OwnerID, e.Target)
	}
	return fmt.Sprintf("object %q: property %q points to missing object %q", e.OwnerID, e.Path.String(), e.Target)
}

func (e *DanglingReferenceError) Owner() string { return e.OwnerID }

// MissingFileError reports a linked file that is absent from disk.
type MissingFileError struct {
	OwnerID  string
	File     string
	Required bool
}

func (e *MissingFileError) Error() string {
	if e.Required {
		return fmt.Sprintf("object %q requires missing file %q", e.OwnerID, e.File)
	}
	return fmt.Sprintf("object %q links to file %q which does not exist yet", e.OwnerID, e.File)
}

func (e *MissingFileError) Owner() string { return e.OwnerID }

// TypeMismatchError reports a pointer whose target exists but has a type the
// property cannot hold.
type TypeMismatchError struct {
	OwnerID  string
	Path     proppath.Path
	Target   string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("object %q: property %q expects %s but %q is a %s",
		e.OwnerID, e.Path.String(), e.Expected, e.Target, e.Actual)
}

func (e *TypeMismatchError) Owner() string { return e.OwnerID }

// DependencyFailedError reports an object excluded because something it
// depends on failed.
type DependencyFailedError struct {
	OwnerID    string
	Dependency string
}

func (e *DependencyFailedError) Error() string {
	return fmt.Sprintf("object %q skipped due to failure of dependency %q", e.OwnerID, e.Dependency)
}

func (e *DependencyFailedError) Owner() string { return e.OwnerID }

// HeldError reports an object that was rebuilt successfully but kept its
// previous instance, because the previous state of a failed object still
// references it.
type HeldError struct {
	OwnerID string
	Holder  string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("object %q kept its previous state: %q still references it", e.OwnerID, e.Holder)
}

func (e *HeldError) Owner() string { return e.OwnerID }

// InitError wraps the error returned by an object's initializer.
type InitError struct {
	OwnerID string
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("object %q failed to initialize: %v", e.OwnerID, e.Err)
}

func (e *InitError) Owner() string { return e.OwnerID }

func (e *InitError) Unwrap() error { return e.Err }

// CloneLeakError is a programming defect: a clone outlived its consumer.
type CloneLeakError struct {
	Clone    string
	Original string
	Consumer string
}

func (e *CloneLeakError) Error() string {
	return fmt.Sprintf("clone %q of %q outlived its consumer %q", e.Clone, e.Original, e.Consumer)
}

func (e *CloneLeakError) Owner() string { return e.Consumer }

// BindError reports a pointer whose target was found but could not be
// assigned to the owner, or a clone that could not be produced.
type BindError struct {
	OwnerID string
	Path    proppath.Path
	Target  string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("object %q: cannot bind property %q to %q: %v", e.OwnerID, e.Path.String(), e.Target, e.Err)
}

func (e *BindError) Owner() string { return e.OwnerID }

func (e *BindError) Unwrap() error { return e.Err }
