package reconcile

import (
	"context"
	"sort"
	"sync"

	"github.com/specialistvlad/resgraph/internal/ctxlog"
)

// Passer runs one reconciliation pass.
type Passer interface {
	Reconcile(ctx context.Context, changed []string) (*Report, error)
}

// ReportFunc receives the outcome of every pass the queue runs.
type ReportFunc func(rep *Report, err error)

// Queue serializes file change batches into reconciliation passes. At most
// one pass runs at a time; paths submitted while it runs are merged into
// the next pass. A running pass is never cancelled.
type Queue struct {
	passer   Passer
	onReport ReportFunc

	mu      sync.Mutex
	pending map[string]struct{}
	wake    chan struct{}
}

// NewQueue creates a queue feeding passer. onReport may be nil.
func NewQueue(passer Passer, onReport ReportFunc) *Queue {
	return &Queue{
		passer:   passer,
		onReport: onReport,
		pending:  make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// Submit adds changed paths to the next pass.
func (q *Queue) Submit(paths ...string) {
	if len(paths) == 0 {
		return
	}
	q.mu.Lock()
	for _, p := range paths {
		q.pending[p] = struct{}{}
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of paths waiting for the next pass.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run processes batches until ctx is cancelled. A pass that has started
// runs to completion even if ctx is cancelled meanwhile.
func (q *Queue) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Reconciliation queue started.")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Reconciliation queue stopped.")
			return nil
		case <-q.wake:
		}

		batch := q.drain()
		if len(batch) == 0 {
			continue
		}
		logger.Debug("Starting reconciliation pass.", "changed_files", len(batch))
		rep, err := q.passer.Reconcile(context.WithoutCancel(ctx), batch)
		if err != nil {
			logger.Error("Reconciliation pass failed.", "error", err)
		}
		if q.onReport != nil {
			q.onReport(rep, err)
		}
	}
}

func (q *Queue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := make([]string, 0, len(q.pending))
	for p := range q.pending {
		batch = append(batch, p)
	}
	q.pending = make(map[string]struct{})
	sort.Strings(batch)
	return batch
}
