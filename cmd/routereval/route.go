// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/traylinx/bhasharouter/internal/intelligence"
	"github.com/traylinx/bhasharouter/internal/routing"
)

func routeCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "route [text]",
		Short: "Show the routing decision for one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer app.Close()

			d, err := app.Service.Route(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			}
			return writeDecision(cmd.OutOrStdout(), d)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the decision as JSON")
	return cmd
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [text]",
		Short: "Detect the language of a request",
		Long: `Classifies the text as hindi, english or hinglish using the configured
word lists. No models are loaded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			svc := intelligence.NewService(cfg, nil)
			fmt.Fprintln(cmd.OutOrStdout(), svc.Detect(strings.Join(args, " ")))
			return nil
		},
	}
}

// writeDecision renders a decision as an aligned table.
func writeDecision(out io.Writer, d *routing.Decision) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SELECTED\t%s\n", d.Selected)
	fmt.Fprintf(w, "CONFIDENCE\t%.3f\n", d.Confidence)
	fmt.Fprintf(w, "LANGUAGE\t%s\n", d.Language)
	fmt.Fprintf(w, "METHOD\t%s\n", d.Method)
	for _, c := range []*routing.ScoredCandidate{d.Similarity, d.Classifier} {
		if c != nil {
			fmt.Fprintf(w, "%s\t%s (%.3f)\n", strings.ToUpper(string(c.Method)), c.Handler, c.Score)
		}
	}
	fmt.Fprintf(w, "REASONING\t%s\n", d.Reasoning)
	return w.Flush()
}
