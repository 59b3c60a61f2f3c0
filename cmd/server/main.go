// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the bhasharouter server.
// The server detects the language of each request and routes it to one of
// the Bhasha assistant handlers over an HTTP and WebSocket API.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/buildinfo"
	"github.com/traylinx/bhasharouter/internal/cmd"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/logging"
	"github.com/traylinx/bhasharouter/internal/util"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hooks" {
		handleHooksCommand(os.Args[2:])
		return
	}

	var (
		configPath  string
		stateDir    string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.StringVar(&stateDir, "state-dir", "", "State directory (overrides "+util.EnvStateDir+")")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("bhasharouter %s (commit %s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// A missing .env is the normal case.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to load .env: %v", err)
	}

	optional := configPath == ""
	if optional {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		configPath = filepath.Join(wd, "config.yaml")
	}

	cfg, err := config.LoadConfigOptional(configPath, optional)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logging.SetLogLevel(cfg.Debug)
	sb, err := util.NewStateBoxAt(cfg.StateDir)
	if err != nil {
		log.Fatalf("failed to resolve state directory: %v", err)
	}
	if err := logging.ConfigureLogOutput(sb.LogsDir(), cfg.LoggingToFile, cfg.LogsMaxTotalSizeMB); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}
	defer logging.Close()

	log.Infof("bhasharouter %s starting (config %s, state %s)", buildinfo.Version, configPath, sb.RootPath())
	if sb.IsReadOnly() {
		log.Info("State directory is read-only")
	}

	if err := cmd.StartService(cfg); err != nil {
		log.Errorf("service stopped with error: %v", err)
		logging.Close()
		os.Exit(1)
	}
}
