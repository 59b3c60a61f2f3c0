// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command routereval evaluates and inspects the language router from the
// command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/traylinx/bhasharouter/internal/buildinfo"
	"github.com/traylinx/bhasharouter/internal/cmd"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/logging"
)

var (
	configFile string
	stateDir   string
	debug      bool
)

func main() {
	logging.SetupBaseLogger()
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "routereval",
		Short:         "Evaluate and inspect the Hindi/English/Hinglish request router",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetLogLevel(debug)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "path to the router config file")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory for models and run history")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(evalCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(historyCmd())
	return rootCmd
}

// loadConfig reads the config file, falling back to defaults when it is
// missing.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigOptional(configFile, true)
	if err != nil {
		return nil, err
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildApp loads the configuration and starts the routing service without
// dispatch or hooks. mutate, when set, adjusts the configuration first.
func buildApp(ctx context.Context, mutate func(cfg *config.Config)) (*cmd.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	app, err := cmd.Build(ctx, cfg, cmd.BuildOptions{})
	if err != nil {
		return nil, err
	}
	log.Debugf("Routing service ready: %+v", app.Service.Status())
	return app, nil
}
