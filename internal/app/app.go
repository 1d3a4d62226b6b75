package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/resgraph/internal/ctxlog"
	"github.com/specialistvlad/resgraph/internal/liveset"
	"github.com/specialistvlad/resgraph/internal/reconcile"
	"github.com/specialistvlad/resgraph/internal/reload"
	"github.com/specialistvlad/resgraph/internal/scene"
)

// App encapsulates the application's dependencies, configuration and
// lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	reconciler *reconcile.Reconciler
	hub        *reload.Hub
	httpServer *http.Server
}

// NewApp creates an App with its own logger writing to outW. Nothing is
// loaded until Run.
func NewApp(outW io.Writer, cfg *Config, loader scene.Loader) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("scene loader is required")
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	a := &App{
		ctx:        ctx,
		outW:       outW,
		logger:     logger,
		config:     cfg,
		reconciler: reconcile.New(loader, cfg.ScenePaths),
		hub:        reload.NewHub(ctx),
	}
	logger.Debug("App created.", "scene_paths", cfg.ScenePaths, "watch", cfg.Watch)
	return a, nil
}

// Live returns the live object set. Primarily for tests and embedding.
func (a *App) Live() *liveset.Store {
	return a.reconciler.Live()
}

// Reconciler returns the app's reconciler.
func (a *App) Reconciler() *reconcile.Reconciler {
	return a.reconciler
}
