// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package evalrun runs a full evaluation pass: load and filter the corpus,
// score it, then record and archive the result.
package evalrun

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/intelligence/evaluation"
	"github.com/traylinx/bhasharouter/internal/store"
)

// Uploader stores a report payload and returns its object key.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, payload []byte) (string, error)
}

// Options select the corpus slice of one run.
type Options struct {
	// Corpus overrides the runner's default corpus path.
	Corpus string
	// Filter is an expr boolean expression over each case.
	Filter string
	// Archive uploads the report when an uploader is configured.
	Archive bool
}

// Outcome is a completed run.
type Outcome struct {
	Record     *evaluation.RunRecord `json:"record"`
	Stored     bool                  `json:"stored"`
	ArchiveKey string                `json:"archive_key,omitempty"`
}

// Runner ties the harness to the run store and the archive. Store and archive
// failures are logged; they never fail a run.
type Runner struct {
	harness  *evaluation.Harness
	corpus   string
	store    store.RunStore
	uploader Uploader
	now      func() time.Time
}

// New creates a runner over the default corpus path.
func New(harness *evaluation.Harness, corpus string) *Runner {
	return &Runner{harness: harness, corpus: corpus, now: time.Now}
}

// SetStore records every run in s. A nil store disables history.
func (r *Runner) SetStore(s store.RunStore) {
	r.store = s
}

// SetUploader archives runs with u when Options.Archive is set.
func (r *Runner) SetUploader(u Uploader) {
	r.uploader = u
}

// Store returns the configured run store, or nil.
func (r *Runner) Store() store.RunStore {
	return r.store
}

// Run evaluates the selected corpus slice.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	corpus := opts.Corpus
	if corpus == "" {
		corpus = r.corpus
	}
	cases, err := evaluation.LoadCorpus(corpus)
	if err != nil {
		return nil, err
	}
	cases, err = evaluation.Filter(cases, opts.Filter)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("filter %q selects no cases", opts.Filter)
	}

	report, err := r.harness.Run(ctx, cases)
	if err != nil {
		return nil, err
	}

	prov, err := evaluation.CorpusProvenance(corpus)
	if err != nil {
		log.Warnf("failed to compute corpus provenance: %v", err)
	}

	rec := &evaluation.RunRecord{
		RunID:       uuid.NewString(),
		GeneratedAt: r.now().UTC(),
		Corpus:      corpus,
		Filter:      opts.Filter,
		Provenance:  prov,
		Metrics:     report.Metrics,
		Results:     report.Results,
	}
	out := &Outcome{Record: rec}

	if r.store != nil {
		if err := r.store.Save(ctx, rec); err != nil {
			log.Warnf("failed to record evaluation run %s: %v", rec.RunID, err)
		} else {
			out.Stored = true
		}
	}

	if opts.Archive && r.uploader != nil {
		var buf bytes.Buffer
		if err := rec.WriteJSON(&buf); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s-%s.json", rec.GeneratedAt.Format("20060102T150405Z"), rec.RunID)
		key, err := r.uploader.Upload(ctx, name, "application/json", buf.Bytes())
		if err != nil {
			log.Warnf("failed to archive evaluation run %s: %v", rec.RunID, err)
		} else {
			out.ArchiveKey = key
		}
	}

	log.WithFields(log.Fields{
		"run_id":   rec.RunID,
		"cases":    len(cases),
		"accuracy": rec.Metrics.OverallAccuracy,
		"stored":   out.Stored,
	}).Info("evaluation run finished")
	return out, nil
}
