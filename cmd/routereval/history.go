// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/traylinx/bhasharouter/internal/intelligence/evaluation"
	"github.com/traylinx/bhasharouter/internal/store"
)

var errHistoryDisabled = errors.New("run history is disabled; set evaluation.store.driver in the config")

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent evaluation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.RunStore == nil {
				return errHistoryDisabled
			}

			runs, err := app.RunStore.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeRuns(cmd.OutOrStdout(), runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")

	cmd.AddCommand(historyShowCmd())
	return cmd
}

func historyShowCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print the report of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer app.Close()
			if app.RunStore == nil {
				return errHistoryDisabled
			}

			rec, err := app.RunStore.Load(cmd.Context(), args[0])
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("no run with id %s", args[0])
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return rec.WriteJSON(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s on %s (%s)\n", rec.RunID, rec.Corpus, rec.GeneratedAt.Format("2006-01-02 15:04:05"))
			if rec.Filter != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Filter: %s\n", rec.Filter)
			}
			report := &evaluation.Report{Metrics: rec.Metrics, Results: rec.Results}
			return report.WriteText(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the run record as JSON")
	return cmd
}

func writeRuns(out io.Writer, runs []store.RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No evaluation runs recorded.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tCREATED\tCORPUS\tFILTER\tCORRECT\tACCURACY")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%.2f%%\n",
			r.RunID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Corpus, r.Filter, r.Correct, r.Total, r.Accuracy*100)
	}
	return w.Flush()
}
