// Package reload notifies editors and viewers that the live scene changed.
package reload

import (
	"context"
	"errors"
	"time"

	"github.com/specialistvlad/resgraph/internal/reconcile"
)

// Event is the message sent to reload subscribers after a pass.
type Event struct {
	Pass     uint64    `json:"pass"`
	Time     time.Time `json:"time"`
	Changed  []string  `json:"changed_files,omitempty"`
	Added    []string  `json:"added,omitempty"`
	Replaced []string  `json:"replaced,omitempty"`
	Removed  []string  `json:"removed,omitempty"`
	Failed   []string  `json:"failed,omitempty"`
	Errors   int       `json:"errors"`
	Warnings int       `json:"warnings"`
}

// EventFromReport builds the event announcing rep.
func EventFromReport(rep *reconcile.Report, now time.Time) Event {
	return Event{
		Pass:     rep.Pass,
		Time:     now.UTC(),
		Changed:  rep.ChangedFiles,
		Added:    rep.Added,
		Replaced: rep.Replaced,
		Removed:  rep.Removed,
		Failed:   rep.Failed,
		Errors:   len(rep.Diagnostics.Errs()),
		Warnings: len(rep.Diagnostics.Warnings()),
	}
}

// Publisher delivers reload events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
