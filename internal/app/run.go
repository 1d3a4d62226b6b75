package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/resgraph/internal/ctxlog"
	"github.com/specialistvlad/resgraph/internal/hclscene"
	"github.com/specialistvlad/resgraph/internal/reconcile"
	"github.com/specialistvlad/resgraph/internal/reload"
	"github.com/specialistvlad/resgraph/internal/watcher"
	"golang.org/x/sync/errgroup"
)

// ErrSceneHasErrors is returned by Run in strict mode when the initial load
// reported error diagnostics.
var ErrSceneHasErrors = errors.New("scene has errors")

// Run loads the scene and, in watch mode, keeps it live until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	rep, err := a.reconciler.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scene: %w", err)
	}
	a.printReport(rep)
	if a.config.Strict && rep.Diagnostics.HasErrors() {
		return fmt.Errorf("%w: %d errors", ErrSceneHasErrors, len(rep.Diagnostics.Errs()))
	}

	if !a.config.Watch {
		a.logger.Debug("App.Run method finished.")
		return nil
	}
	return a.watch(ctx)
}

// watch runs the file watcher, the reconciliation queue and the HTTP server
// in one group. The first failure or ctx cancellation stops all of them.
func (a *App) watch(ctx context.Context) error {
	publisher, closePublishers, err := a.publishers(ctx)
	if err != nil {
		return err
	}
	defer closePublishers()

	queue := reconcile.NewQueue(a.reconciler, func(rep *reconcile.Report, err error) {
		a.onReport(ctx, publisher, rep, err)
	})
	poller := watcher.New(a.config.PollInterval,
		watcher.WithScan(hclscene.Extension, a.config.ScenePaths...),
		watcher.WithFiles(a.reconciler.WatchedFiles),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return queue.Run(gctx) })
	g.Go(func() error {
		return poller.Run(gctx, func(changed []string) { queue.Submit(changed...) })
	})
	if a.config.HealthcheckPort > 0 {
		g.Go(func() error { return a.serveHTTP(gctx) })
	} else {
		a.logger.Warn("Health check server not started: disabled")
	}

	a.logger.Info("👀 Watching scene for changes.", "paths", a.config.ScenePaths, "interval", poller.Interval().String())
	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("🏁 Watch stopped.")
	return nil
}

func (a *App) publishers(ctx context.Context) (reload.Publisher, func(), error) {
	pubs := reload.Multi{a.hub}
	closeAll := func() {}
	if a.config.ReloadURL != "" {
		sio, err := reload.NewSocketIO(ctx, a.config.ReloadURL, a.config.ReloadNamespace)
		if err != nil {
			return nil, nil, err
		}
		pubs = append(pubs, sio)
		closeAll = sio.Close
	}
	return pubs, closeAll, nil
}

func (a *App) onReport(ctx context.Context, publisher reload.Publisher, rep *reconcile.Report, err error) {
	if err != nil {
		// The previous live set stays in place.
		fmt.Fprintf(a.outW, "%s %v\n", a.paint(styleError, "reload failed:"), err)
		return
	}
	a.printReport(rep)
	if rep.Empty() {
		return
	}
	if err := publisher.Publish(ctx, reload.EventFromReport(rep, time.Now())); err != nil {
		a.logger.Warn("Publishing reload event failed.", "pass", rep.Pass, "error", err)
	}
}
