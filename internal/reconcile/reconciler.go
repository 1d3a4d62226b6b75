package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/resgraph/internal/clones"
	"github.com/specialistvlad/resgraph/internal/ctxlog"
	"github.com/specialistvlad/resgraph/internal/diag"
	"github.com/specialistvlad/resgraph/internal/fsutil"
	"github.com/specialistvlad/resgraph/internal/liveset"
	"github.com/specialistvlad/resgraph/internal/objgraph"
	"github.com/specialistvlad/resgraph/internal/proppath"
	"github.com/specialistvlad/resgraph/internal/resolver"
	"github.com/specialistvlad/resgraph/internal/scene"
)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLiveSet publishes into store instead of a private one.
func WithLiveSet(store *liveset.Store) Option {
	return func(r *Reconciler) { r.live = store }
}

// WithCloneRegistry uses reg for clones instead of a private one.
func WithCloneRegistry(reg *clones.Registry) Option {
	return func(r *Reconciler) { r.clones = reg }
}

// WithFileExists replaces the check used for linked files.
func WithFileExists(fn func(path string) bool) Option {
	return func(r *Reconciler) { r.fileExists = fn }
}

// Reconciler owns the live object set of one scene and rebuilds the parts
// of it affected by file changes.
type Reconciler struct {
	loader     scene.Loader
	paths      []string
	live       *liveset.Store
	clones     *clones.Registry
	fileExists func(string) bool

	state atomic.Int32
	graph atomic.Pointer[objgraph.Graph]

	// mu serializes passes. Everything below is owned by the running pass.
	mu     sync.Mutex
	passes uint64
	// liveDefs holds the definition each live object was built from.
	liveDefs map[string]definition
	// failedDefs holds the latest definition of objects that failed to
	// rebuild and are still declared by the scene.
	failedDefs map[string]failedDef
	sources    map[string]string
}

type definition struct {
	pointers []scene.UnresolvedPointer
	links    []scene.FileLink
}

type failedDef struct {
	definition
	object scene.Object
}

// New creates a Reconciler that loads the scene at paths through loader.
func New(loader scene.Loader, paths []string, opts ...Option) *Reconciler {
	r := &Reconciler{
		loader:     loader,
		paths:      append([]string(nil), paths...),
		fileExists: fsutil.Exists,
		liveDefs:   make(map[string]definition),
		failedDefs: make(map[string]failedDef),
		sources:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.live == nil {
		r.live = liveset.New()
	}
	if r.clones == nil {
		r.clones = clones.New(r.live)
	}
	return r
}

// State returns the current phase.
func (r *Reconciler) State() State { return State(r.state.Load()) }

// Graph returns the dependency graph of the live scene, or nil before the
// first pass.
func (r *Reconciler) Graph() *objgraph.Graph { return r.graph.Load() }

// Live returns the live object set.
func (r *Reconciler) Live() *liveset.Store { return r.live }

// Clones returns the clone registry.
func (r *Reconciler) Clones() *clones.Registry { return r.clones }

// WatchedFiles returns every file whose change can affect the scene: the
// graph's file nodes and the files that defined the current objects.
func (r *Reconciler) WatchedFiles() []string {
	seen := make(map[string]struct{})
	if g := r.Graph(); g != nil {
		for _, f := range g.Files() {
			seen[f] = struct{}{}
		}
	}
	r.mu.Lock()
	for _, f := range r.sources {
		seen[f] = struct{}{}
	}
	r.mu.Unlock()
	return sortedSet(seen)
}

// Load runs a full pass in which every object is affected.
func (r *Reconciler) Load(ctx context.Context) (*Report, error) {
	return r.run(ctx, nil, true)
}

// Reconcile runs an incremental pass for the changed files.
func (r *Reconciler) Reconcile(ctx context.Context, changed []string) (*Report, error) {
	return r.run(ctx, changed, false)
}

func (r *Reconciler) setState(s State) { r.state.Store(int32(s)) }

func (r *Reconciler) run(ctx context.Context, changed []string, full bool) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.setState(StateIdle)

	r.passes++
	rep := &Report{Pass: r.passes, ChangedFiles: normalizePaths(changed)}
	ctx, logger := ctxlog.With(ctx, "pass", rep.Pass)

	r.setState(StateScanning)
	affected := make(map[string]struct{})
	if full {
		for _, id := range r.live.IDs() {
			if !r.clones.IsClone(id) {
				affected[id] = struct{}{}
			}
		}
	} else {
		for _, id := range AffectedObjects(rep.ChangedFiles, r.Graph()) {
			if !r.clones.IsClone(id) {
				affected[id] = struct{}{}
			}
		}
	}
	logger.Debug("Scanned for affected objects.", "changed_files", len(rep.ChangedFiles), "affected", len(affected))

	r.setState(StateRebuilding)
	snap, err := r.loader.Load(ctx, r.paths...)
	if err != nil {
		return rep, fmt.Errorf("loading scene: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return rep, fmt.Errorf("invalid scene snapshot: %w", err)
	}
	p := r.newPass(snap, rep, affected, full)

	if len(p.scope) == 0 && len(p.removed) == 0 {
		rep.Affected = sortedSet(affected)
		logger.Debug("Nothing to rebuild.")
		r.sources = snap.Sources
		return rep, nil
	}

	if err := p.rebuild(ctx); err != nil {
		return rep, err
	}

	r.setState(StateSwapping)
	p.swap(ctx)

	logger.Info("Reconciliation pass finished.",
		"affected", len(rep.Affected),
		"added", len(rep.Added),
		"replaced", len(rep.Replaced),
		"removed", len(rep.Removed),
		"failed", len(rep.Failed),
	)
	if len(rep.Failed) > 0 {
		logger.Warn("Objects kept their previous state after failing to rebuild.", "failed", rep.Failed)
	}
	return rep, nil
}

// pass holds the working state of a single reconciliation.
type pass struct {
	r    *Reconciler
	rep  *Report
	snap *scene.Snapshot

	snapIndex scene.MapIndex
	defs      map[string]definition
	// scope holds the ids rebuilt in this pass.
	scope   map[string]struct{}
	removed map[string]struct{}

	graph    *objgraph.Graph
	resolved scene.ResolvedObjectSet
	txn      *clones.Txn
	retired  []clones.Retired
	// succeeded and failed partition scope.
	succeeded []string
	failed    []string
	retained  map[string]struct{}
	dropped   map[string]struct{}
	// cloneOrigin and cloneConsumer map the clones acquired in this pass to
	// their original and consumer ids.
	cloneOrigin   map[string]string
	cloneConsumer map[string]string
}

func (r *Reconciler) newPass(snap *scene.Snapshot, rep *Report, affected map[string]struct{}, full bool) *pass {
	p := &pass{
		r:         r,
		rep:       rep,
		snap:      snap,
		snapIndex: snap.Index(),
		defs:      make(map[string]definition, len(snap.Objects)),
		scope:     make(map[string]struct{}),
		removed:   make(map[string]struct{}),
		retained:  make(map[string]struct{}),
		dropped:   make(map[string]struct{}),

		cloneOrigin:   make(map[string]string),
		cloneConsumer: make(map[string]string),
	}

	for _, ptr := range snap.Pointers {
		d := p.defs[ptr.Owner]
		d.pointers = append(d.pointers, ptr)
		p.defs[ptr.Owner] = d
	}
	for _, l := range snap.FileLinks {
		d := p.defs[l.Owner]
		d.links = append(d.links, l)
		p.defs[l.Owner] = d
	}

	changed := make(map[string]struct{}, len(rep.ChangedFiles))
	for _, f := range rep.ChangedFiles {
		changed[f] = struct{}{}
	}

	for _, obj := range snap.Objects {
		id := obj.ID()
		_, isLive := r.live.Get(id)
		_, hadFailed := r.failedDefs[id]
		_, sourceChanged := changed[snap.Sources[id]]
		if full || !isLive || hadFailed || sourceChanged {
			affected[id] = struct{}{}
		}
	}
	for id := range r.liveDefs {
		if _, ok := p.snapIndex[id]; !ok {
			affected[id] = struct{}{}
			p.removed[id] = struct{}{}
		}
	}
	for id := range affected {
		if _, ok := p.snapIndex[id]; ok {
			p.scope[id] = struct{}{}
		}
	}
	rep.Affected = sortedSet(affected)
	return p
}

// instance returns the object that represents id in this pass: the fresh
// one when id is rebuilt, the live one otherwise.
func (p *pass) instance(id string) (scene.Object, bool) {
	if _, ok := p.scope[id]; ok {
		return p.snapIndex.Lookup(id)
	}
	if _, ok := p.snapIndex[id]; !ok {
		return nil, false
	}
	return p.r.live.Lookup(id)
}

func (p *pass) rebuild(ctx context.Context) error {
	types := scene.NewTypeIndex(p.snap.Objects)
	items := make([]objgraph.Item, 0, len(p.snap.Objects))
	for _, obj := range p.snap.Objects {
		inst, ok := p.instance(obj.ID())
		if !ok {
			return fmt.Errorf("object %q is neither rebuilt nor live", obj.ID())
		}
		items = append(items, objgraph.ObjectItem(inst, types))
	}

	g, gdiags, err := objgraph.Build(items, p.edgesOf, objgraph.Options{AllowMissingFiles: true})
	if err != nil {
		return fmt.Errorf("building dependency graph: %w", err)
	}
	p.graph = g
	for _, c := range diag.As[*diag.CycleError](gdiags) {
		if p.touchesScope(c.Members) {
			p.rep.Diagnostics = append(p.rep.Diagnostics, diag.Warning(c))
		}
	}

	p.txn = p.r.clones.Begin()
	resolved, rdiags := resolver.Resolve(
		g.ObjectOrder(),
		p.snap.Pointers,
		scene.IndexFunc(p.instance),
		resolver.WithTypes(p.snap.TypeChecker()),
		resolver.WithFileLinks(p.snap.FileLinks),
		resolver.WithFileExists(p.r.fileExists),
		resolver.WithScope(sortedSet(p.scope)),
		resolver.WithCloner(p.cloneFor),
		resolver.WithInit(ctx),
	)
	p.resolved = resolved
	p.rep.Diagnostics = append(p.rep.Diagnostics, rdiags...)

	for _, id := range g.ObjectOrder() {
		if _, ok := p.scope[id]; !ok {
			continue
		}
		if _, ok := resolved[id]; ok {
			p.succeeded = append(p.succeeded, id)
		} else {
			p.failed = append(p.failed, id)
		}
	}
	p.hold()
	p.rep.Diagnostics.Sort()
	p.retired = p.txn.Commit(p.succeeded)
	p.retain()
	return nil
}

func (p *pass) edgesOf(item objgraph.Item) []objgraph.Edge {
	d := p.defs[item.ID()]
	edges := make([]objgraph.Edge, 0, len(d.pointers)+len(d.links))
	for _, ptr := range d.pointers {
		edges = append(edges, objgraph.ObjectEdge(ptr.Target, ptr.Path))
	}
	for _, l := range d.links {
		edges = append(edges, objgraph.FileEdge(l.Path))
	}
	return edges
}

func (p *pass) touchesScope(ids []string) bool {
	for _, id := range ids {
		if _, ok := p.scope[id]; ok {
			return true
		}
	}
	return false
}

// cloneFor is the resolver's clone hook. Originals outside the scope come
// from the live set together with their bindings.
func (p *pass) cloneFor(original *scene.Resolved, consumer string) (*scene.Resolved, error) {
	bindings := original.Bindings
	if bindings == nil {
		if live, ok := p.r.live.Get(original.Object.ID()); ok && live.Object == original.Object {
			bindings = live.Bindings
		}
	}
	_, obj, err := p.txn.Acquire(original.Object, consumer)
	if err != nil {
		return nil, err
	}
	p.cloneOrigin[obj.ID()] = original.Object.ID()
	p.cloneConsumer[obj.ID()] = consumer
	return &scene.Resolved{Object: obj, Bindings: bindings}, nil
}

// hold keeps a rebuilt object on its previous instance while the previous
// state of a failed object still references it. A rebuilt object bound to a
// held fresh instance, directly or through a clone, is held as well. Held
// objects count as failed and their fresh instances are destroyed.
func (p *pass) hold() {
	succeeded := make(map[string]struct{}, len(p.succeeded))
	for _, id := range p.succeeded {
		succeeded[id] = struct{}{}
	}

	held := make(map[string]struct{})
	visited := make(map[string]struct{})
	queue := append([]string(nil), p.failed...)
	for {
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if _, done := visited[id]; done {
				continue
			}
			visited[id] = struct{}{}

			entry, ok := p.r.live.Get(id)
			if !ok {
				continue
			}
			for _, b := range entry.Bindings {
				target := b.Target
				if rec, isClone := p.r.clones.Record(target); isClone {
					queue = append(queue, target)
					target = rec.Original
				}
				if _, rebuilt := succeeded[target]; rebuilt {
					if _, already := held[target]; !already {
						held[target] = struct{}{}
						p.rep.Diagnostics = append(p.rep.Diagnostics, diag.Warning(&diag.HeldError{OwnerID: target, Holder: id}))
					}
				}
				queue = append(queue, target)
			}
		}

		grew := false
		for _, id := range p.succeeded {
			if _, ok := held[id]; ok {
				continue
			}
			for _, b := range p.resolved[id].Bindings {
				dep := b.Target
				if orig, isClone := p.cloneOrigin[dep]; isClone {
					dep = orig
				}
				if _, ok := held[dep]; !ok {
					continue
				}
				held[id] = struct{}{}
				p.rep.Diagnostics = append(p.rep.Diagnostics, diag.Error(&diag.DependencyFailedError{OwnerID: id, Dependency: dep}))
				queue = append(queue, id)
				grew = true
				break
			}
		}
		if !grew {
			break
		}
	}
	if len(held) == 0 {
		return
	}

	kept := make([]string, 0, len(p.succeeded))
	var fresh []string
	for _, id := range p.succeeded {
		if _, ok := held[id]; ok {
			fresh = append(fresh, id)
			continue
		}
		kept = append(kept, id)
	}
	p.succeeded = kept
	p.failed = append(p.failed, fresh...)

	for i := len(fresh) - 1; i >= 0; i-- {
		id := fresh[i]
		if d, ok := p.resolved[id].Object.(scene.Destroyer); ok {
			d.OnDestroy()
		}
		delete(p.resolved, id)
	}
	for c, consumer := range p.cloneConsumer {
		if _, ok := held[consumer]; ok {
			delete(p.resolved, c)
		}
	}
}

// retain keeps removed objects alive while an object that failed to
// rebuild, and therefore keeps its old state, still points at them.
func (p *pass) retain() {
	var queue []string
	for _, id := range p.failed {
		if _, ok := p.r.live.Get(id); ok {
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

		entry, ok := p.r.live.Get(id)
		if !ok {
			continue
		}
		for _, b := range entry.Bindings {
			target := b.Target
			if rec, isClone := p.r.clones.Record(target); isClone {
				queue = append(queue, target)
				target = rec.Original
			}
			if _, removed := p.removed[target]; removed {
				p.retained[target] = struct{}{}
			}
			queue = append(queue, target)
		}
	}
	for id := range p.removed {
		if _, ok := p.retained[id]; !ok {
			p.dropped[id] = struct{}{}
		}
	}
}

func (p *pass) swap(ctx context.Context) {
	r := p.r
	oldGraph := r.Graph()

	replace := make(scene.ResolvedObjectSet, len(p.resolved))
	for id, res := range p.resolved {
		replace[id] = res
	}
	var remove []string
	for id := range p.dropped {
		remove = append(remove, id)
	}
	for _, rt := range p.retired {
		remove = append(remove, rt.Clone)
	}
	var releasedConsumers []string
	for id := range p.dropped {
		if recs := r.clones.ClonesOf(id); len(recs) > 0 {
			releasedConsumers = append(releasedConsumers, id)
			for _, rec := range recs {
				remove = append(remove, rec.Clone)
			}
		}
	}
	sort.Strings(remove)

	previous := r.live.Swap(replace, remove)

	for _, id := range p.succeeded {
		if _, existed := previous[id]; existed {
			p.rep.Replaced = append(p.rep.Replaced, id)
		} else {
			p.rep.Added = append(p.rep.Added, id)
		}
	}
	for id, res := range p.resolved {
		if _, own := p.scope[id]; own {
			continue
		}
		if old, existed := previous[id]; !existed || old.Object != res.Object {
			p.rep.ClonesCreated = append(p.rep.ClonesCreated, id)
		}
	}
	sort.Strings(p.rep.Added)
	sort.Strings(p.rep.Replaced)
	sort.Strings(p.rep.ClonesCreated)
	p.rep.Removed = sortedSet(p.dropped)
	p.rep.Retained = sortedSet(p.retained)
	p.rep.Failed = append([]string(nil), p.failed...)
	sort.Strings(p.rep.Failed)

	// Destroy in reverse initialization order: dependents first.
	var doomed []string
	for id, old := range previous {
		if r.clones.IsClone(id) || isRetiredClone(p.retired, id) {
			continue
		}
		if res, ok := replace[id]; ok && res.Object == old.Object {
			continue
		}
		doomed = append(doomed, id)
	}
	sortByPositionDesc(doomed, oldGraph)
	for _, id := range doomed {
		if d, ok := previous[id].Object.(scene.Destroyer); ok {
			d.OnDestroy()
		}
	}

	clones.Destroy(p.retired)
	for _, rt := range p.retired {
		p.rep.ClonesReleased = append(p.rep.ClonesReleased, rt.Clone)
	}
	for _, id := range releasedConsumers {
		p.rep.ClonesReleased = append(p.rep.ClonesReleased, r.clones.ReleaseClonesFor(id)...)
	}
	sort.Strings(p.rep.ClonesReleased)

	p.commitBookkeeping()
	r.graph.Store(p.liveGraph(ctx))
}

func isRetiredClone(retired []clones.Retired, id string) bool {
	for _, rt := range retired {
		if rt.Clone == id {
			return true
		}
	}
	return false
}

func (p *pass) commitBookkeeping() {
	r := p.r
	for _, id := range p.succeeded {
		r.liveDefs[id] = p.defs[id]
		delete(r.failedDefs, id)
	}
	for id := range p.dropped {
		delete(r.liveDefs, id)
	}
	for _, id := range p.failed {
		obj, _ := p.snapIndex.Lookup(id)
		r.failedDefs[id] = failedDef{definition: p.defs[id], object: obj}
	}
	for id := range r.failedDefs {
		if _, declared := p.snapIndex[id]; !declared {
			delete(r.failedDefs, id)
		}
	}
	r.sources = p.snap.Sources
}

// liveGraph builds the graph the next pass scans: live objects and clones,
// plus objects that failed without a previous state so their files are
// still watched. Consumer edges are routed through their clones.
func (p *pass) liveGraph(ctx context.Context) *objgraph.Graph {
	r := p.r
	var items []objgraph.Item
	edges := make(map[string][]objgraph.Edge)

	add := func(id string, obj scene.Object, d definition) {
		items = append(items, objgraph.ObjectItem(obj, nil))
		for _, ptr := range d.pointers {
			target := ptr.Target
			if ptr.Clone {
				target = r.clones.Rewrite(id, target)
			}
			edges[id] = append(edges[id], objgraph.ObjectEdge(target, ptr.Path))
		}
		for _, l := range d.links {
			edges[id] = append(edges[id], objgraph.FileEdge(l.Path))
		}
	}

	for _, id := range r.live.IDs() {
		entry, _ := r.live.Get(id)
		if rec, isClone := r.clones.Record(id); isClone {
			items = append(items, objgraph.ObjectItem(entry.Object, nil))
			edges[id] = []objgraph.Edge{objgraph.ObjectEdge(rec.Original, proppath.Path{})}
			continue
		}
		d := r.liveDefs[id]
		if f, failed := r.failedDefs[id]; failed {
			d.pointers = append(append([]scene.UnresolvedPointer(nil), d.pointers...), f.pointers...)
			d.links = append(append([]scene.FileLink(nil), d.links...), f.links...)
		}
		add(id, entry.Object, d)
	}
	for id, f := range r.failedDefs {
		if _, live := r.live.Get(id); !live && f.object != nil {
			add(id, f.object, f.definition)
		}
	}

	g, _, err := objgraph.Build(items, func(item objgraph.Item) []objgraph.Edge {
		return edges[item.ID()]
	}, objgraph.Options{AllowMissingFiles: true})
	if err != nil {
		ctxlog.FromContext(ctx).Error("Failed to build the live dependency graph.", "error", err)
		return p.graph
	}
	return g
}

func sortByPositionDesc(ids []string, g *objgraph.Graph) {
	pos := func(id string) int {
		if g == nil {
			return -1
		}
		if i, ok := g.Position(objgraph.ObjectKey(id)); ok {
			return i
		}
		return -1
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := pos(ids[i]), pos(ids[j])
		if pi != pj {
			return pi > pj
		}
		return ids[i] < ids[j]
	})
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
