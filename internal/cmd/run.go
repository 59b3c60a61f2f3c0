// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/api"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/util"
)

// shutdownTimeout bounds the graceful API shutdown.
const shutdownTimeout = 15 * time.Second

// StartService builds the router and serves the API until SIGINT or SIGTERM.
//
// Parameters:
//   - cfg: The application configuration
//
// Returns:
//   - error: An error if the service could not start
func StartService(cfg *config.Config) error {
	ctxSignal, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := Build(ctxSignal, cfg, BuildOptions{Dispatch: true, Hooks: true})
	if err != nil {
		return err
	}
	defer app.Close()

	if err := util.HardenPermissions(app.StateBox); err != nil {
		log.Warnf("Failed to harden state directory permissions: %v", err)
	}

	server := api.NewServer(cfg, app.Service,
		api.WithAssistant(app.Assistant),
		api.WithRunner(app.Runner),
		api.WithMetrics(app.Metrics),
		api.WithEventBus(app.EventBus),
		api.WithStateBox(app.StateBox),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctxSignal.Done():
		log.Info("Shutdown signal received")
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return server.Stop(ctx)
}
