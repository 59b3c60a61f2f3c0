// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmd assembles the router components from configuration and runs
// the API service.
package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/archive"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/dispatch"
	"github.com/traylinx/bhasharouter/internal/evalrun"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/intelligence"
	"github.com/traylinx/bhasharouter/internal/intelligence/evaluation"
	"github.com/traylinx/bhasharouter/internal/metrics"
	"github.com/traylinx/bhasharouter/internal/routing"
	"github.com/traylinx/bhasharouter/internal/store"
	"github.com/traylinx/bhasharouter/internal/util"
)

// App holds every long-lived component of the router.
type App struct {
	Config   *config.Config
	StateBox *util.StateBox

	EventBus  *hooks.EventBus
	Hooks     *hooks.HookManager
	Metrics   *metrics.Metrics
	Service   *intelligence.Service
	Registry  *dispatch.Registry
	Assistant *dispatch.Assistant
	Harness   *evaluation.Harness
	Runner    *evalrun.Runner
	RunStore  store.RunStore
}

// BuildOptions select the optional parts of the app.
type BuildOptions struct {
	// Dispatch builds the handler registry and the assistant.
	Dispatch bool
	// Hooks loads automation hooks when the configuration enables them.
	Hooks bool
}

// Build initializes the routing service and the components around it.
// Run history and archiving degrade to disabled with a warning when their
// backends cannot be reached.
//
// Parameters:
//   - ctx: Context for model loading and store initialization
//   - cfg: The validated configuration
//   - opts: Optional parts to build
//
// Returns:
//   - *App: The assembled app; call Close when done
//   - error: An error if the routing service cannot start
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (*App, error) {
	sb, err := util.NewStateBoxAt(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:   cfg,
		StateBox: sb,
		EventBus: hooks.NewEventBus(),
		Metrics:  metrics.New(1000),
	}
	app.Metrics.Subscribe(app.EventBus)

	if opts.Hooks && cfg.Hooks.Enabled {
		app.startHooks()
	}

	app.Service = intelligence.NewService(cfg, sb)
	app.Service.SetEventBus(app.EventBus)
	if err := app.Service.Initialize(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize routing service: %w", err)
	}

	if opts.Dispatch {
		registry, err := dispatch.NewRegistryFromConfig(cfg.Dispatch)
		if err != nil {
			app.Close()
			return nil, err
		}
		registry.SetEventBus(app.EventBus)
		app.Registry = registry
		app.Assistant = dispatch.NewAssistant(app.Service, registry)
		if configured := registry.Configured(); len(configured) < routing.NumHandlers {
			log.Infof("Dispatch endpoints configured for %d of %d handlers: %v", len(configured), routing.NumHandlers, configured)
		}
	}

	app.Harness = evaluation.NewHarness(app.Service, cfg.Evaluation.Workers)
	app.Harness.SetEventBus(app.EventBus)
	app.Runner = evalrun.New(app.Harness, cfg.Evaluation.Corpus)

	runStore, err := store.Open(ctx, cfg.Evaluation.Store, sb)
	if err != nil {
		log.Warnf("Evaluation run history disabled: %v", err)
	} else if runStore != nil {
		app.RunStore = runStore
		app.Runner.SetStore(runStore)
	}

	archiver, err := archive.New(cfg.Evaluation.Archive)
	switch {
	case err != nil:
		log.Warnf("Evaluation archive disabled: %v", err)
	case archiver != nil:
		if err := archiver.EnsureBucket(ctx); err != nil {
			log.Warnf("Evaluation archive disabled: %v", err)
		} else {
			app.Runner.SetUploader(archiver)
		}
	}

	return app, nil
}

func (a *App) startHooks() {
	dir := a.Config.Hooks.Dir
	if dir == "" {
		dir = a.StateBox.HooksDir()
	}
	manager, err := hooks.NewHookManager(dir, a.EventBus)
	if err != nil {
		log.Warnf("Hooks disabled: %v", err)
		return
	}
	if err := manager.LoadHooks(); err != nil {
		log.Warnf("Failed to load hooks: %v", err)
	}
	manager.SubscribeToAllEvents()
	if a.Config.Hooks.Watch {
		if err := manager.StartWatcher(); err != nil {
			log.Warnf("Hooks watcher disabled: %v", err)
		}
	}
	a.Hooks = manager
}

// Close releases every component in reverse start order.
func (a *App) Close() {
	if a.Registry != nil {
		a.Registry.Close()
	}
	if a.RunStore != nil {
		if err := a.RunStore.Close(); err != nil {
			log.Warnf("Failed to close run store: %v", err)
		}
	}
	if a.Service != nil {
		if err := a.Service.Shutdown(); err != nil {
			log.Warnf("Failed to shut down routing service: %v", err)
		}
	}
	if a.Hooks != nil {
		a.Hooks.Stop()
	}
	a.EventBus.Shutdown()
}
