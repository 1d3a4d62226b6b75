// Package resolver binds unresolved pointer records to live objects.
//
// Resolve walks owners in dependency order, checks every pointer, and
// collects all failures instead of stopping at the first one. An object
// fails when one of its own pointers fails or when anything it points at
// fails; every other object still resolves.
package resolver

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/resgraph/internal/diag"
	"github.com/specialistvlad/resgraph/internal/scene"
)

var errNotClonable = errors.New("target does not support cloning")

// Resolve binds the pointers of every in-scope object listed in order.
// index supplies the live object for both owners and targets. The result
// holds one entry per successfully resolved object plus the clones created
// for them.
func Resolve(order []string, pointers []scene.UnresolvedPointer, index scene.Index, opts ...Option) (scene.ResolvedObjectSet, diag.Diagnostics) {
	r := &run{
		cfg:         newConfig(opts),
		index:       index,
		position:    make(map[string]int),
		byOwner:     make(map[string][]scene.UnresolvedPointer),
		dependents:  make(map[string][]string),
		failed:      make(map[string]struct{}),
		result:      make(scene.ResolvedObjectSet),
		clonesOf:    make(map[string][]string),
		initialized: make(map[string]scene.Object),
	}
	r.prepare(order, pointers)
	r.check()
	r.propagate(r.cfg.failed...)
	r.bind()
	return r.result, r.diags
}

type run struct {
	cfg   *config
	index scene.Index

	// order holds the in-scope owners, dependencies first.
	order    []string
	position map[string]int
	byOwner  map[string][]scene.UnresolvedPointer
	// dependents maps a target id to the in-scope owners pointing at it.
	dependents map[string][]string

	failed   map[string]struct{}
	diags    diag.Diagnostics
	result   scene.ResolvedObjectSet
	clonesOf map[string][]string
	// initialized holds the owners whose Init succeeded in this run.
	initialized map[string]scene.Object
}

func (r *run) prepare(order []string, pointers []scene.UnresolvedPointer) {
	for _, id := range order {
		if _, dup := r.position[id]; dup || !r.inScope(id) {
			continue
		}
		r.position[id] = len(r.order)
		r.order = append(r.order, id)
	}

	for _, p := range pointers {
		if _, ok := r.position[p.Owner]; !ok {
			continue
		}
		r.byOwner[p.Owner] = append(r.byOwner[p.Owner], p)
	}

	for _, owner := range r.order {
		seen := make(map[string]struct{})
		for _, p := range r.byOwner[owner] {
			if _, dup := seen[p.Target]; dup {
				continue
			}
			seen[p.Target] = struct{}{}
			r.dependents[p.Target] = append(r.dependents[p.Target], owner)
		}
	}
}

func (r *run) inScope(id string) bool {
	if r.cfg.scope == nil {
		return true
	}
	_, ok := r.cfg.scope[id]
	return ok
}

// check validates every pointer and file link without binding anything.
func (r *run) check() {
	links := make(map[string][]scene.FileLink)
	for _, l := range r.cfg.fileLinks {
		links[l.Owner] = append(links[l.Owner], l)
	}

	for _, owner := range r.order {
		if _, ok := r.index.Lookup(owner); !ok {
			r.diags = append(r.diags, diag.Error(fmt.Errorf("object %q is not in the index", owner)))
			r.failed[owner] = struct{}{}
			continue
		}
		for _, p := range r.byOwner[owner] {
			if err := r.checkPointer(p); err != nil {
				r.diags = append(r.diags, diag.Error(err))
				r.failed[owner] = struct{}{}
			}
		}
		for _, l := range links[owner] {
			if r.cfg.fileExists(l.Path) {
				continue
			}
			err := &diag.MissingFileError{OwnerID: owner, File: l.Path, Required: l.Required}
			if l.Required {
				r.diags = append(r.diags, diag.Error(err))
				r.failed[owner] = struct{}{}
			} else {
				r.diags = append(r.diags, diag.Warning(err))
			}
		}
	}
}

func (r *run) checkPointer(p scene.UnresolvedPointer) error {
	target, ok := r.index.Lookup(p.Target)
	if !ok {
		return &diag.DanglingReferenceError{OwnerID: p.Owner, Path: p.Path, Target: p.Target}
	}
	if !r.cfg.types.Compatible(target.Type(), p.ExpectedType) {
		return &diag.TypeMismatchError{
			OwnerID:  p.Owner,
			Path:     p.Path,
			Target:   p.Target,
			Expected: p.ExpectedType,
			Actual:   target.Type(),
		}
	}
	if p.Clone && r.cfg.cloner != nil {
		if _, ok := target.(scene.Cloner); !ok {
			return &diag.BindError{OwnerID: p.Owner, Path: p.Path, Target: p.Target, Err: errNotClonable}
		}
	}
	return nil
}

// propagate fails every in-scope owner that transitively points at one of
// the given failed ids, until nothing changes.
func (r *run) propagate(failed ...string) {
	queue := append([]string(nil), failed...)
	for _, id := range failed {
		r.fail(id)
	}
	for _, id := range r.order {
		if _, ok := r.failed[id]; ok {
			queue = append(queue, id)
		}
	}

	visited := make(map[string]struct{})
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, done := visited[id]; done {
			continue
		}
		visited[id] = struct{}{}
		for _, dep := range r.dependents[id] {
			if _, already := r.failed[dep]; already {
				continue
			}
			r.fail(dep)
			r.diags = append(r.diags, diag.Error(&diag.DependencyFailedError{OwnerID: dep, Dependency: id}))
			queue = append(queue, dep)
		}
	}
}

// fail marks id failed and drops anything already resolved for it. An
// instance that was already initialized is destroyed, since it never
// reaches the result.
func (r *run) fail(id string) {
	r.failed[id] = struct{}{}
	if obj, ok := r.initialized[id]; ok {
		delete(r.initialized, id)
		if d, ok := obj.(scene.Destroyer); ok {
			d.OnDestroy()
		}
	}
	delete(r.result, id)
	for _, c := range r.clonesOf[id] {
		delete(r.result, c)
	}
	delete(r.clonesOf, id)
}

// bind assigns pointers and initializes objects in order. A failure here
// propagates immediately so later dependents are skipped and earlier cycle
// members are pruned.
func (r *run) bind() {
	for _, owner := range r.order {
		if _, ok := r.failed[owner]; ok {
			continue
		}
		if err := r.bindOwner(owner); err != nil {
			r.diags = append(r.diags, diag.Error(err))
			r.fail(owner)
			r.propagate(owner)
		}
	}
}

func (r *run) bindOwner(owner string) error {
	obj, _ := r.index.Lookup(owner)
	binder, canBind := obj.(scene.Binder)

	bindings := make([]scene.Binding, 0, len(r.byOwner[owner]))
	for _, p := range r.byOwner[owner] {
		target, _ := r.index.Lookup(p.Target)

		if p.Clone && r.cfg.cloner != nil {
			original := r.result[p.Target]
			if original == nil {
				original = &scene.Resolved{Object: target}
			}
			clone, err := r.cfg.cloner(original, owner)
			if err != nil {
				return &diag.BindError{OwnerID: owner, Path: p.Path, Target: p.Target, Err: err}
			}
			r.result[clone.Object.ID()] = clone
			r.clonesOf[owner] = append(r.clonesOf[owner], clone.Object.ID())
			target = clone.Object
		}

		if canBind {
			if err := binder.BindPointer(p.Path, target); err != nil {
				return &diag.BindError{OwnerID: owner, Path: p.Path, Target: target.ID(), Err: err}
			}
		}
		bindings = append(bindings, scene.Binding{Path: p.Path, Target: target.ID()})
	}

	if init, ok := obj.(scene.Initializer); ok && r.cfg.initialize {
		if err := init.Init(r.cfg.ctx); err != nil {
			return &diag.InitError{OwnerID: owner, Err: err}
		}
		r.initialized[owner] = obj
	}

	r.result[owner] = &scene.Resolved{Object: obj, Bindings: bindings}
	return nil
}
