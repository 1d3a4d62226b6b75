package hclscene

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/resgraph/internal/ctxlog"
	"github.com/specialistvlad/resgraph/internal/fsutil"
	"github.com/specialistvlad/resgraph/internal/proppath"
	"github.com/specialistvlad/resgraph/internal/scene"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"
)

// Extension is the file extension of scene files.
const Extension = ".hcl"

const defaultCacheSize = 256

// Loader is the HCL implementation of scene.Loader.
type Loader struct {
	workers int
	cache   *lru.Cache[string, *cachedFile]
	parses  atomic.Int64
}

// Option configures a Loader.
type Option func(*loaderConfig)

type loaderConfig struct {
	workers   int
	cacheSize int
}

// WithParseWorkers bounds the number of files parsed concurrently.
func WithParseWorkers(n int) Option {
	return func(c *loaderConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithCacheSize sets the number of parsed files kept in memory.
func WithCacheSize(n int) Option {
	return func(c *loaderConfig) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// NewLoader creates a new HCL scene loader.
func NewLoader(opts ...Option) (*Loader, error) {
	cfg := loaderConfig{workers: runtime.NumCPU(), cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	cache, err := lru.New[string, *cachedFile](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}
	return &Loader{workers: cfg.workers, cache: cache}, nil
}

// Parses returns how many files were parsed from disk since the loader was
// created. Cache hits are not counted.
func (l *Loader) Parses() int64 {
	return l.parses.Load()
}

// fileRoot decodes the top-level blocks of a scene file.
type fileRoot struct {
	Types   []*typeBlock   `hcl:"type,block"`
	Objects []*objectBlock `hcl:"object,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

type typeBlock struct {
	Name string `hcl:"name,label"`
	Base string `hcl:"base,optional"`
}

type objectBlock struct {
	Type string   `hcl:"type,label"`
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

// fileDef is the decoded, immutable content of one scene file.
type fileDef struct {
	path    string
	types   []*typeBlock
	objects []*objectDef
}

type objectDef struct {
	id    string
	typ   string
	attrs map[string]cty.Value
	links []propLink
}

type cachedFile struct {
	modTime time.Time
	size    int64
	def     *fileDef
}

// Load implements scene.Loader. Files are parsed in parallel; unchanged
// files are served from the parse cache.
func (l *Loader) Load(ctx context.Context, paths ...string) (*scene.Snapshot, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL scene loader started.", "path_count", len(paths))

	files, err := FindSceneFiles(paths...)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered scene files.", "count", len(files))

	defs := make([]*fileDef, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			def, err := l.parse(gctx, file)
			if err != nil {
				return err
			}
			defs[i] = def
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap, err := assemble(defs)
	if err != nil {
		return nil, err
	}
	logger.Debug("Scene loading complete.", "objects", len(snap.Objects), "pointers", len(snap.Pointers), "file_links", len(snap.FileLinks))
	return snap, nil
}

func (l *Loader) parse(ctx context.Context, file string) (*fileDef, error) {
	logger := ctxlog.FromContext(ctx)

	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("error accessing scene file %s: %w", file, err)
	}
	if c, ok := l.cache.Get(file); ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		logger.Debug("Scene file served from cache.", "file", file)
		return c.def, nil
	}

	src, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file %s: %w", file, err)
	}
	def, err := decodeFile(file, src)
	if err != nil {
		return nil, err
	}
	l.parses.Add(1)
	l.cache.Add(file, &cachedFile{modTime: info.ModTime(), size: info.Size(), def: def})
	logger.Debug("Scene file parsed.", "file", file, "objects", len(def.objects))
	return def, nil
}

func decodeFile(path string, src []byte) (*fileDef, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse scene file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode scene file %s: %w", path, diags)
	}

	evalCtx := &hcl.EvalContext{Functions: functions(filepath.Dir(path))}
	def := &fileDef{path: path, types: root.Types}
	for _, blk := range root.Objects {
		obj, err := decodeObject(blk, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("object %q in %s: %w", blk.ID, path, err)
		}
		def.objects = append(def.objects, obj)
	}
	return def, nil
}

func decodeObject(blk *objectBlock, evalCtx *hcl.EvalContext) (*objectDef, error) {
	if blk.ID == "" {
		return nil, errors.New("object id must not be empty")
	}
	attrs, diags := blk.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}

	obj := &objectDef{id: blk.ID, typ: blk.Type, attrs: make(map[string]cty.Value, len(attrs))}
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %q: %w", name, diags)
		}
		obj.attrs[name] = lower(val, proppath.New(name), &obj.links)
	}
	sort.Slice(obj.links, func(i, j int) bool {
		return obj.links[i].path.String() < obj.links[j].path.String()
	})
	return obj, nil
}

// assemble merges decoded files into a snapshot with fresh objects.
func assemble(defs []*fileDef) (*scene.Snapshot, error) {
	snap := &scene.Snapshot{Sources: make(map[string]string)}
	hierarchy := scene.Hierarchy{}
	typeSource := make(map[string]string)

	for _, def := range defs {
		for _, t := range def.types {
			if prev, ok := typeSource[t.Name]; ok && hierarchy[t.Name] != t.Base {
				return nil, fmt.Errorf("type %q declared with different bases in %s and %s", t.Name, prev, def.path)
			}
			typeSource[t.Name] = def.path
			hierarchy[t.Name] = t.Base
		}
	}

	for _, def := range defs {
		for _, od := range def.objects {
			if prev, ok := snap.Sources[od.id]; ok {
				return nil, fmt.Errorf("duplicate object id %q declared in %s and %s", od.id, prev, def.path)
			}
			snap.Sources[od.id] = def.path
			snap.Objects = append(snap.Objects, newObject(od, def.path))
			snap.FileLinks = append(snap.FileLinks, scene.FileLink{Owner: od.id, Path: def.path, Required: true})

			for _, pl := range od.links {
				switch pl.link.kind {
				case linkRef, linkClone:
					snap.Pointers = append(snap.Pointers, scene.UnresolvedPointer{
						Owner:        od.id,
						Path:         pl.path,
						Target:       pl.link.target,
						ExpectedType: pl.link.expected,
						Clone:        pl.link.kind == linkClone,
					})
				case linkFile, linkRequiredFile:
					snap.FileLinks = append(snap.FileLinks, scene.FileLink{
						Owner:    od.id,
						Path:     pl.link.target,
						Required: pl.link.kind == linkRequiredFile,
					})
				}
			}
		}
	}
	snap.Types = hierarchy
	return snap, nil
}

// FindSceneFiles returns the absolute paths of all scene files under paths,
// sorted. A path may be a directory or a single scene file; paths that do not
// exist are skipped.
func FindSceneFiles(paths ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			files = append(files, p)
		}
	}

	for _, raw := range paths {
		p, err := fsutil.NormalizePath("", raw)
		if err != nil {
			return nil, fmt.Errorf("invalid scene path %s: %w", raw, err)
		}
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", p, err)
		}
		if !info.IsDir() {
			if filepath.Ext(p) == Extension {
				add(p)
			}
			continue
		}
		found, err := fsutil.FindByExtension(p, Extension)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", p, err)
		}
		for _, f := range found {
			add(f)
		}
	}
	sort.Strings(files)
	return files, nil
}
