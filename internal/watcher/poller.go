// Package watcher detects changes to files on disk by polling.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/specialistvlad/resgraph/internal/ctxlog"
	"github.com/specialistvlad/resgraph/internal/fsutil"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Poller reports files that were modified, created or deleted since the
// previous poll. The watched set is the union of the explicit file list and
// every file with the scan extension under the scan roots.
type Poller struct {
	interval time.Duration
	files    func() []string
	roots    []string
	ext      string

	mu     sync.Mutex
	primed bool
	known  map[string]fileState
}

type fileState struct {
	exists  bool
	modTime time.Time
	size    int64
}

// Option configures a Poller.
type Option func(*Poller)

// WithFiles sets the function returning the explicitly watched files. It is
// called on every poll so the set may change over time.
func WithFiles(fn func() []string) Option {
	return func(p *Poller) { p.files = fn }
}

// WithScan watches every file ending in ext under roots, including files
// created after the poller started.
func WithScan(ext string, roots ...string) Option {
	return func(p *Poller) {
		p.ext = ext
		p.roots = append(p.roots, roots...)
	}
}

// New creates a poller. A non-positive interval means DefaultInterval.
func New(interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{interval: interval, known: make(map[string]fileState)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the polling interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Prime records the current state of the watched set without reporting it.
func (p *Poller) Prime() error {
	_, err := p.poll()
	return err
}

// Poll scans the watched set once and returns the changed paths, sorted.
func (p *Poller) Poll() ([]string, error) {
	return p.poll()
}

func (p *Poller) poll() ([]string, error) {
	candidates, explicit, err := p.candidates()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	primed := p.primed
	next := make(map[string]fileState, len(candidates))
	var changed []string
	for path := range candidates {
		st, err := stat(path)
		if err != nil {
			return nil, err
		}
		prev, seen := p.known[path]
		switch {
		case seen && !prev.same(st):
			changed = append(changed, path)
		case !seen && primed && st.exists:
			changed = append(changed, path)
		}
		next[path] = st
	}
	// A deleted file is reported once; it stays watched only while it is
	// still requested explicitly.
	for path, st := range next {
		if _, ok := explicit[path]; !st.exists && !ok {
			delete(next, path)
		}
	}
	p.known = next
	p.primed = true

	sort.Strings(changed)
	return changed, nil
}

// candidates returns every path to stat and the subset that was requested
// explicitly.
func (p *Poller) candidates() (map[string]struct{}, map[string]struct{}, error) {
	set := make(map[string]struct{})
	explicit := make(map[string]struct{})

	p.mu.Lock()
	for path, st := range p.known {
		if st.exists {
			set[path] = struct{}{}
		}
	}
	p.mu.Unlock()

	if p.files != nil {
		for _, f := range p.files() {
			set[f] = struct{}{}
			explicit[f] = struct{}{}
		}
	}
	for _, root := range p.roots {
		abs, err := fsutil.NormalizePath("", root)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid watch root %s: %w", root, err)
		}
		if !fsutil.Exists(abs) {
			continue
		}
		found, err := fsutil.FindByExtension(abs, p.ext)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan %s: %w", abs, err)
		}
		for _, f := range found {
			set[f] = struct{}{}
		}
	}
	return set, explicit, nil
}

func (s fileState) same(o fileState) bool {
	return s.exists == o.exists && s.size == o.size && s.modTime.Equal(o.modTime)
}

func stat(path string) (fileState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileState{}, nil
		}
		return fileState{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return fileState{exists: true, modTime: info.ModTime(), size: info.Size()}, nil
}

// Run polls until ctx is cancelled and passes every non-empty batch of
// changed paths to onChange. Poll errors are logged and retried on the next
// tick.
func (p *Poller) Run(ctx context.Context, onChange func([]string)) error {
	logger := ctxlog.FromContext(ctx)
	if err := p.Prime(); err != nil {
		logger.Warn("Initial file scan failed.", "error", err)
	}
	logger.Info("File watcher started.", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("File watcher stopped.")
			return nil
		case <-ticker.C:
		}

		changed, err := p.poll()
		if err != nil {
			logger.Warn("File poll failed.", "error", err)
			continue
		}
		if len(changed) == 0 {
			continue
		}
		logger.Debug("File changes detected.", "count", len(changed), "files", changed)
		onChange(changed)
	}
}
