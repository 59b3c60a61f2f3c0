// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/evalrun"
	"github.com/traylinx/bhasharouter/internal/intelligence/evaluation"
	"github.com/traylinx/bhasharouter/internal/util"
)

// watchDebounce collapses the burst of events editors emit on save.
const watchDebounce = 500 * time.Millisecond

type evalFlags struct {
	corpus  string
	filter  string
	workers int
	jsonOut bool
	archive bool
	out     string
	open    bool
	watch   bool
}

func evalCmd() *cobra.Command {
	var f evalFlags

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure routing accuracy over the labeled corpus",
		Long: `Runs every corpus case through the router and prints the accuracy
report. Runs are recorded in the run history when a store is configured.

Use --filter to evaluate a slice of the corpus, for example:
  routereval eval --filter 'ExpectedLanguage == "hinglish"'
  routereval eval --filter 'ExpectedHandler in ["poem_generator", "nani_kahaniyan"]'
  routereval eval --corpus data/corpus_extended.yaml --filter 'Index >= 80'

Use --watch to re-run the evaluation whenever the corpus file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), func(cfg *config.Config) {
				if f.workers > 0 {
					cfg.Evaluation.Workers = f.workers
				}
			})
			if err != nil {
				return err
			}
			defer app.Close()

			corpus := f.corpus
			if corpus == "" {
				corpus = app.Config.Evaluation.Corpus
			}
			opts := evalrun.Options{Corpus: corpus, Filter: f.filter, Archive: f.archive}

			if err := runOnce(cmd.Context(), cmd.OutOrStdout(), app.Runner, opts, f); err != nil && !f.watch {
				return err
			}
			if !f.watch {
				return nil
			}
			return watchCorpus(cmd.Context(), corpus, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s changed, re-running evaluation\n\n", corpus)
				if err := runOnce(cmd.Context(), cmd.OutOrStdout(), app.Runner, opts, f); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				}
			})
		},
	}

	cmd.Flags().StringVar(&f.corpus, "corpus", "", "corpus file (defaults to evaluation.corpus)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "expr filter over corpus cases")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent routing decisions (defaults to evaluation.workers)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the run record as JSON")
	cmd.Flags().BoolVar(&f.archive, "archive", false, "upload the run record to the configured archive")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "also write the run record as JSON to this file")
	cmd.Flags().BoolVar(&f.open, "open", false, "open the --out file when the run finishes")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "re-run when the corpus file changes")
	return cmd
}

// runOnce executes one evaluation and writes its report.
func runOnce(ctx context.Context, out io.Writer, runner *evalrun.Runner, opts evalrun.Options, f evalFlags) error {
	outcome, err := runner.Run(ctx, opts)
	if err != nil {
		return err
	}
	rec := outcome.Record

	if f.jsonOut {
		if err := rec.WriteJSON(out); err != nil {
			return err
		}
	} else {
		report := &evaluation.Report{Metrics: rec.Metrics, Results: rec.Results}
		if err := report.WriteText(out); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nRun %s", rec.RunID)
		if outcome.Stored {
			fmt.Fprint(out, " (stored)")
		}
		if outcome.ArchiveKey != "" {
			fmt.Fprintf(out, ", archived as %s", outcome.ArchiveKey)
		}
		fmt.Fprintln(out)
	}

	if f.out == "" {
		return nil
	}
	if err := writeRecordFile(f.out, rec); err != nil {
		return err
	}
	if f.open {
		if err := open.Run(f.out); err != nil {
			log.Warnf("Failed to open %s: %v", f.out, err)
		}
	}
	return nil
}

func writeRecordFile(path string, rec *evaluation.RunRecord) error {
	if err := util.SecureWriteJSON(nil, path, rec, &util.SecureWriteOptions{Permissions: 0o644}); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

// isCorpusEvent reports whether ev changed the file at path.
func isCorpusEvent(ev fsnotify.Event, path string) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(path) {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// watchCorpus calls rerun after each settled change to path until ctx ends.
// The parent directory is watched so editors that replace the file on save
// keep triggering runs.
func watchCorpus(ctx context.Context, path string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create corpus watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	log.Infof("Watching %s for changes (Ctrl+C to stop)", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isCorpusEvent(ev, path) {
				pending = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Errorf("Corpus watcher error: %v", err)
		case <-pending:
			pending = nil
			rerun()
		}
	}
}
