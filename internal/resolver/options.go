package resolver

import (
	"context"

	"github.com/specialistvlad/resgraph/internal/fsutil"
	"github.com/specialistvlad/resgraph/internal/scene"
)

// CloneFunc produces the private copy of original for consumer. original
// carries the bindings the resolver knows for it.
type CloneFunc func(original *scene.Resolved, consumerID string) (*scene.Resolved, error)

// Option configures a Resolve call.
type Option func(*config)

type config struct {
	ctx        context.Context
	types      scene.TypeChecker
	fileLinks  []scene.FileLink
	fileExists func(path string) bool
	scope      map[string]struct{}
	failed     []string
	cloner     CloneFunc
	initialize bool
}

func newConfig(opts []Option) *config {
	c := &config{
		ctx:        context.Background(),
		types:      scene.ExactTypes{},
		fileExists: fsutil.Exists,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTypes sets the checker used for expected pointer types.
func WithTypes(tc scene.TypeChecker) Option {
	return func(c *config) {
		if tc != nil {
			c.types = tc
		}
	}
}

// WithFileLinks makes the resolver check that linked files exist.
func WithFileLinks(links []scene.FileLink) Option {
	return func(c *config) { c.fileLinks = links }
}

// WithFileExists replaces the default existence check.
func WithFileExists(fn func(path string) bool) Option {
	return func(c *config) {
		if fn != nil {
			c.fileExists = fn
		}
	}
}

// WithScope restricts resolution to the given object ids. Pointers to ids
// outside the scope bind to whatever the index holds.
func WithScope(ids []string) Option {
	return func(c *config) {
		c.scope = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			c.scope[id] = struct{}{}
		}
	}
}

// WithFailed marks objects as failed before resolution starts. Their
// failure propagates to everything that points at them.
func WithFailed(ids ...string) Option {
	return func(c *config) { c.failed = append(c.failed, ids...) }
}

// WithCloner sets the hook that serves pointers requesting a clone.
func WithCloner(fn CloneFunc) Option {
	return func(c *config) { c.cloner = fn }
}

// WithInit runs scene.Initializer.Init on every resolved object, in order,
// right after its pointers are bound.
func WithInit(ctx context.Context) Option {
	return func(c *config) {
		c.initialize = true
		if ctx != nil {
			c.ctx = ctx
		}
	}
}
