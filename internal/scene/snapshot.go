package scene

import (
	"context"
	"fmt"
	"sort"
)

// Loader is the interface for a format-specific scene deserializer.
type Loader interface {
	// Load reads every scene file found under the given paths and returns
	// the combined Snapshot. Each call returns freshly constructed objects.
	Load(ctx context.Context, paths ...string) (*Snapshot, error)
}

// Snapshot is the output of one deserialization pass: the minimum contract
// a scene format must supply to the engine.
type Snapshot struct {
	Objects   []Object
	Pointers  []UnresolvedPointer
	FileLinks []FileLink
	// Sources maps an object id to the scene file that defined it.
	Sources map[string]string
	// Types checks pointer type compatibility. Nil means ExactTypes.
	Types TypeChecker
}

// Validate checks the preconditions the engine relies on: object ids are
// unique and non-empty, and every pointer and file link has an owner that
// exists in the snapshot.
func (s *Snapshot) Validate() error {
	ids := make(map[string]struct{}, len(s.Objects))
	for _, obj := range s.Objects {
		if obj == nil {
			return fmt.Errorf("snapshot contains a nil object")
		}
		id := obj.ID()
		if id == "" {
			return fmt.Errorf("object of type %q has an empty id", obj.Type())
		}
		if _, dup := ids[id]; dup {
			return fmt.Errorf("duplicate object id %q", id)
		}
		ids[id] = struct{}{}
	}
	for _, p := range s.Pointers {
		if _, ok := ids[p.Owner]; !ok {
			return fmt.Errorf("pointer %q has unknown owner %q", p.Path.String(), p.Owner)
		}
	}
	for _, l := range s.FileLinks {
		if _, ok := ids[l.Owner]; !ok {
			return fmt.Errorf("file link %q has unknown owner %q", l.Path, l.Owner)
		}
	}
	return nil
}

// Index returns a lookup over the snapshot's objects.
func (s *Snapshot) Index() MapIndex {
	idx := make(MapIndex, len(s.Objects))
	for _, obj := range s.Objects {
		idx[obj.ID()] = obj
	}
	return idx
}

// TypeChecker returns the snapshot's type checker, defaulting to ExactTypes.
func (s *Snapshot) TypeChecker() TypeChecker {
	if s.Types == nil {
		return ExactTypes{}
	}
	return s.Types
}

// PointersByOwner groups pointer records by owning object id.
func (s *Snapshot) PointersByOwner() map[string][]UnresolvedPointer {
	out := make(map[string][]UnresolvedPointer)
	for _, p := range s.Pointers {
		out[p.Owner] = append(out[p.Owner], p)
	}
	return out
}

// FileLinksByOwner groups file links by owning object id.
func (s *Snapshot) FileLinksByOwner() map[string][]FileLink {
	out := make(map[string][]FileLink)
	for _, l := range s.FileLinks {
		out[l.Owner] = append(out[l.Owner], l)
	}
	return out
}

// Files returns every distinct linked file path, sorted.
func (s *Snapshot) Files() []string {
	seen := make(map[string]struct{})
	var files []string
	for _, l := range s.FileLinks {
		if _, ok := seen[l.Path]; ok {
			continue
		}
		seen[l.Path] = struct{}{}
		files = append(files, l.Path)
	}
	sort.Strings(files)
	return files
}
