// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package evaluation measures routing accuracy over a labeled corpus.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/routing"
	"golang.org/x/sync/errgroup"
)

// Decider is the routing decision the harness measures.
type Decider interface {
	Decide(ctx context.Context, text string) (*routing.Decision, error)
}

// Report is the full outcome of one evaluation pass.
type Report struct {
	Metrics *Metrics     `json:"overall_stats"`
	Results []CaseResult `json:"detailed_results"`
}

// Harness drives a Decider over a corpus.
type Harness struct {
	decider  Decider
	workers  int
	eventBus *hooks.EventBus
}

// NewHarness creates a harness evaluating up to workers cases at a time.
// Values below one run the corpus sequentially.
//
// Parameters:
//   - decider: The routing decision under test
//   - workers: Maximum number of concurrent decisions
//
// Returns:
//   - *Harness: A harness ready to evaluate
func NewHarness(decider Decider, workers int) *Harness {
	if workers < 1 {
		workers = 1
	}
	return &Harness{decider: decider, workers: workers}
}

// SetEventBus publishes evaluation_completed events to bus.
func (h *Harness) SetEventBus(bus *hooks.EventBus) {
	h.eventBus = bus
}

// Evaluate runs every case and returns the aggregate metrics.
func (h *Harness) Evaluate(ctx context.Context, cases []TestCase) (*Metrics, error) {
	report, err := h.Run(ctx, cases)
	if err != nil {
		return nil, err
	}
	return report.Metrics, nil
}

// outcome is the per-index slot a worker fills.
type outcome struct {
	result  CaseResult
	invalid error
	failed  error
}

// Run evaluates every case and returns the metrics together with the per-case
// results in corpus order.
//
// Invalid cases and cases whose decision fails are excluded from the
// aggregates and listed in Metrics.Invalid and Metrics.Failed. Cancelling ctx
// aborts the run.
func (h *Harness) Run(ctx context.Context, cases []TestCase) (*Report, error) {
	if h.decider == nil {
		return nil, fmt.Errorf("evaluation harness has no decider")
	}
	start := time.Now()

	slots := make([]outcome, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for i := range cases {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = h.evaluateCase(gctx, i, cases[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation aborted: %w", err)
	}

	acc := newAccumulator()
	report := &Report{Results: make([]CaseResult, 0, len(cases))}
	var invalid, failed []ExcludedCase
	for i, slot := range slots {
		switch {
		case slot.invalid != nil:
			invalid = append(invalid, ExcludedCase{Index: i, Input: cases[i].Input, Reason: slot.invalid.Error()})
		case slot.failed != nil:
			failed = append(failed, ExcludedCase{Index: i, Input: cases[i].Input, Reason: slot.failed.Error()})
		default:
			acc.add(slot.result)
			report.Results = append(report.Results, slot.result)
		}
	}
	report.Metrics = acc.metrics()
	report.Metrics.Invalid = invalid
	report.Metrics.Failed = failed

	log.WithFields(log.Fields{
		"total":    report.Metrics.Total,
		"correct":  report.Metrics.Correct,
		"accuracy": fmt.Sprintf("%.3f", report.Metrics.OverallAccuracy),
		"invalid":  len(invalid),
		"failed":   len(failed),
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("evaluation completed")
	h.publish(report.Metrics)

	return report, nil
}

func (h *Harness) evaluateCase(ctx context.Context, index int, tc TestCase) outcome {
	if err := tc.Validate(); err != nil {
		log.Warnf("skipping corpus case %d: %v", index, err)
		return outcome{invalid: &CaseError{Index: index, Input: tc.Input, Err: err}}
	}

	d, err := h.decider.Decide(ctx, tc.Input)
	if err == nil && (d == nil || !d.Selected.Valid()) {
		err = fmt.Errorf("decider returned an invalid decision")
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return outcome{failed: ctx.Err()}
		}
		log.Warnf("corpus case %d failed: %v", index, err)
		return outcome{failed: &CaseError{Index: index, Input: tc.Input, Err: err}}
	}

	return outcome{result: CaseResult{
		Index:            index,
		Case:             tc,
		Selected:         d.Selected,
		Confidence:       d.Confidence,
		Method:           d.Method,
		DetectedLanguage: d.Language,
		Reasoning:        d.Reasoning,
		Correct:          d.Selected == tc.ExpectedHandler,
	}}
}

func (h *Harness) publish(m *Metrics) {
	if h.eventBus == nil {
		return
	}
	h.eventBus.PublishAsync(&hooks.EventContext{
		Event:      hooks.EventEvaluationCompleted,
		Timestamp:  time.Now(),
		Confidence: m.OverallAccuracy,
		Data: map[string]interface{}{
			"total":    m.Total,
			"correct":  m.Correct,
			"accuracy": m.OverallAccuracy,
			"invalid":  len(m.Invalid),
			"failed":   len(m.Failed),
		},
	})
}
