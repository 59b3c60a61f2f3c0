// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package intelligence combines language detection, similarity ranking and
// intent classification into a single routing decision.
//
// The Arbiter consults a primary scoring method first and falls back to the
// secondary method when the primary top candidate misses its threshold.
// When neither method is confident the request is routed to the
// clarification outcome instead of a guessed handler.
package intelligence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/intelligence/language"
	"github.com/traylinx/bhasharouter/internal/logging"
	"github.com/traylinx/bhasharouter/internal/routing"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single sub-router call.
const DefaultTimeout = 2 * time.Second

// Ranker scores every handler for a request with one method.
type Ranker interface {
	Rank(ctx context.Context, text string) ([]routing.ScoredCandidate, error)
	Method() routing.Method
}

// Policy selects the primary method and per-call limits.
type Policy struct {
	// Primary is consulted first. The other scoring method is the fallback.
	Primary routing.Method

	// Timeout bounds each sub-router call.
	Timeout time.Duration

	// Concurrent issues both sub-router calls at once. The decision is the
	// same as in sequential mode.
	Concurrent bool
}

// DefaultPolicy returns the classifier-first policy.
func DefaultPolicy() Policy {
	return Policy{Primary: routing.MethodClassifier, Timeout: DefaultTimeout}
}

// Arbiter produces routing decisions. It holds no mutable state after
// construction and is safe for concurrent use.
type Arbiter struct {
	detector   *language.Detector
	thresholds *routing.ThresholdTable
	rankers    map[routing.Method]Ranker
	policy     Policy
	eventBus   *hooks.EventBus
}

// NewArbiter creates an Arbiter.
//
// Parameters:
//   - detector: Language detector applied to every request
//   - thresholds: Acceptance thresholds per method, handler and language
//   - similarity: Similarity ranker, may be nil
//   - classifier: Classifier ranker, may be nil
//   - policy: Primary method and call limits
//
// Returns:
//   - *Arbiter: The arbiter
//   - error: An error when neither ranker is configured or the policy is invalid
func NewArbiter(detector *language.Detector, thresholds *routing.ThresholdTable, similarity, classifier Ranker, policy Policy) (*Arbiter, error) {
	if detector == nil {
		return nil, fmt.Errorf("arbiter requires a language detector")
	}
	if thresholds == nil {
		return nil, fmt.Errorf("arbiter requires a threshold table")
	}
	if policy.Primary == "" {
		policy.Primary = routing.MethodClassifier
	}
	if policy.Primary != routing.MethodSimilarity && policy.Primary != routing.MethodClassifier {
		return nil, fmt.Errorf("primary method must be similarity or classifier, got %q", policy.Primary)
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultTimeout
	}

	rankers := make(map[routing.Method]Ranker, 2)
	for m, r := range map[routing.Method]Ranker{routing.MethodSimilarity: similarity, routing.MethodClassifier: classifier} {
		if r == nil {
			continue
		}
		if r.Method() != m {
			return nil, fmt.Errorf("%s ranker reports method %s", m, r.Method())
		}
		rankers[m] = r
	}
	if len(rankers) == 0 {
		return nil, fmt.Errorf("arbiter requires at least one of the similarity and classifier rankers")
	}

	return &Arbiter{
		detector:   detector,
		thresholds: thresholds,
		rankers:    rankers,
		policy:     policy,
	}, nil
}

// SetEventBus sets the event bus for publishing routing events.
func (a *Arbiter) SetEventBus(bus *hooks.EventBus) {
	a.eventBus = bus
}

// Policy returns the effective policy.
func (a *Arbiter) Policy() Policy {
	return a.policy
}

// Available reports whether a ranker is configured for m.
func (a *Arbiter) Available(m routing.Method) bool {
	_, ok := a.rankers[m]
	return ok
}

// Detect exposes the arbiter's language detector.
func (a *Arbiter) Detect(text string) routing.Language {
	return a.detector.Detect(text)
}

// rankResult is the outcome of one sub-router call.
type rankResult struct {
	candidates []routing.ScoredCandidate
	err        error
}

// Decide routes text to a handler or to the clarification outcome.
//
// The returned error is ctx.Err() when the caller cancelled, or wraps
// routing.ErrNoRoutingMethod when neither method could be used. A decision
// is never produced together with an error.
func (a *Arbiter) Decide(ctx context.Context, text string) (*routing.Decision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lang := a.detector.Detect(text)
	if strings.TrimSpace(text) == "" {
		d := &routing.Decision{
			Selected:   routing.NeedsClarification,
			Confidence: 0,
			Language:   lang,
			Method:     routing.MethodFused,
			Reasoning:  fmt.Sprintf("Empty request, clarification needed, Language: %s", lang),
		}
		a.publishDecision(ctx, d)
		return d, nil
	}

	primary := a.policy.Primary
	secondary := primary.Other()

	var prefetched map[routing.Method]rankResult
	if a.policy.Concurrent && len(a.rankers) == 2 {
		prefetched = a.rankBoth(ctx, text)
	}
	result := func(m routing.Method) rankResult {
		if r, ok := prefetched[m]; ok {
			return r
		}
		return a.rank(ctx, m, text)
	}

	d := &routing.Decision{Language: lang}
	var (
		reasons  []string
		causes   []error
		usable   int
		observed []float64
	)

	for _, m := range []routing.Method{primary, secondary} {
		if !a.Available(m) {
			causes = append(causes, fmt.Errorf("%w: %s router not configured", routing.ErrCapabilityUnavailable, m))
			reasons = append(reasons, fmt.Sprintf("%s not configured", methodLabel(m)))
			continue
		}

		res := result(m)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if res.err != nil {
			causes = append(causes, res.err)
			reasons = append(reasons, fmt.Sprintf("%s unavailable (%v)", methodLabel(m), res.err))
			a.publishUnavailable(ctx, m, res.err)
			continue
		}
		usable++

		top, ok := routing.Top(res.candidates)
		if !ok {
			reasons = append(reasons, fmt.Sprintf("%s produced no candidates", methodLabel(m)))
			continue
		}
		record(d, top)

		threshold := a.thresholds.Threshold(m, top.Handler, lang)
		if a.thresholds.Passes(top, lang) {
			reasons = append(reasons, fmt.Sprintf("%s: %.3f for %s (threshold: %.3f, margin: %+.3f)",
				methodLabel(m), top.Score, top.Handler, threshold, top.Score-threshold))
			d.Selected = top.Handler
			d.Confidence = top.Score
			d.Method = m
			d.Reasoning = formatReasoning(reasons, "", lang)
			a.logDecision(ctx, d)
			a.publishDecision(ctx, d)
			return d, nil
		}

		observed = append(observed, top.Score)
		reasons = append(reasons, fmt.Sprintf("%s too low for %s: %.3f (threshold: %.3f, margin: %+.3f)",
			methodLabel(m), top.Handler, top.Score, threshold, top.Score-threshold))
	}

	if usable == 0 {
		err := errors.Join(append([]error{routing.ErrNoRoutingMethod}, causes...)...)
		a.publishFailure(ctx, lang, err)
		logging.FromContext(ctx).WithField("language", lang).Errorf("routing failed: %v", err)
		return nil, err
	}

	d.Selected = routing.NeedsClarification
	d.Method = routing.MethodFused
	d.Confidence = maxScore(observed)
	d.Reasoning = formatReasoning(reasons, "no handler cleared its threshold, clarification needed", lang)
	a.logDecision(ctx, d)
	a.publishDecision(ctx, d)
	return d, nil
}

// rank runs one sub-router under the policy timeout. Errors, timeouts,
// panics and malformed rankings are reported as ErrCapabilityUnavailable.
func (a *Arbiter) rank(ctx context.Context, m routing.Method, text string) rankResult {
	r := a.rankers[m]
	rctx, cancel := context.WithTimeout(ctx, a.policy.Timeout)
	defer cancel()

	ch := make(chan rankResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- rankResult{err: fmt.Errorf("%w: %s router panicked: %v", routing.ErrCapabilityUnavailable, m, p)}
			}
		}()
		cs, err := r.Rank(rctx, text)
		ch <- rankResult{candidates: cs, err: err}
	}()

	var res rankResult
	select {
	case res = <-ch:
	case <-rctx.Done():
		if ctx.Err() != nil {
			return rankResult{err: ctx.Err()}
		}
		return rankResult{err: fmt.Errorf("%w: %s router timed out after %s", routing.ErrCapabilityUnavailable, m, a.policy.Timeout)}
	}

	if res.err != nil {
		if ctx.Err() != nil {
			return rankResult{err: ctx.Err()}
		}
		if !errors.Is(res.err, routing.ErrCapabilityUnavailable) {
			res.err = fmt.Errorf("%w: %s: %w", routing.ErrCapabilityUnavailable, m, res.err)
		}
		return res
	}

	candidates := make([]routing.ScoredCandidate, 0, len(res.candidates))
	for _, c := range res.candidates {
		if !c.Handler.IsHandler() || c.Method != m || !m.InRange(c.Score) {
			return rankResult{err: fmt.Errorf("%w: %s produced an invalid candidate %s=%v", routing.ErrCapabilityUnavailable, m, c.Handler, c.Score)}
		}
		candidates = append(candidates, c)
	}
	routing.SortCandidates(candidates)
	return rankResult{candidates: candidates}
}

// rankBoth issues both sub-router calls at once.
func (a *Arbiter) rankBoth(ctx context.Context, text string) map[routing.Method]rankResult {
	var sim, clf rankResult
	var g errgroup.Group
	g.Go(func() error {
		sim = a.rank(ctx, routing.MethodSimilarity, text)
		return nil
	})
	g.Go(func() error {
		clf = a.rank(ctx, routing.MethodClassifier, text)
		return nil
	})
	_ = g.Wait()
	return map[routing.Method]rankResult{
		routing.MethodSimilarity: sim,
		routing.MethodClassifier: clf,
	}
}

func record(d *routing.Decision, top routing.ScoredCandidate) {
	c := top
	switch top.Method {
	case routing.MethodSimilarity:
		d.Similarity = &c
	case routing.MethodClassifier:
		d.Classifier = &c
	}
}

func methodLabel(m routing.Method) string {
	switch m {
	case routing.MethodSimilarity:
		return "Semantic similarity"
	case routing.MethodClassifier:
		return "Classifier confidence"
	}
	return string(m)
}

func formatReasoning(parts []string, outcome string, lang routing.Language) string {
	s := strings.Join(parts, ", fallback to ")
	if outcome != "" {
		s += "; " + outcome
	}
	return fmt.Sprintf("%s, Language: %s", s, lang)
}

// maxScore returns the largest observed score, or 0 when nothing was observed.
func maxScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	return best
}

func (a *Arbiter) logDecision(ctx context.Context, d *routing.Decision) {
	entry := logging.FromContext(ctx).WithFields(log.Fields(d.Fields()))
	if d.Accepted() {
		entry.Debugf("routed request: %s", d.Reasoning)
		return
	}
	entry.Infof("request needs clarification: %s", d.Reasoning)
}

func (a *Arbiter) publishDecision(ctx context.Context, d *routing.Decision) {
	if a.eventBus == nil {
		return
	}

	data := map[string]interface{}{"reasoning": d.Reasoning}
	if d.Similarity != nil {
		data["similarity_handler"] = string(d.Similarity.Handler)
		data["similarity_score"] = d.Similarity.Score
	}
	if d.Classifier != nil {
		data["classifier_handler"] = string(d.Classifier.Handler)
		data["classifier_score"] = d.Classifier.Score
	}

	event := hooks.EventRoutingDecision
	if !d.Accepted() {
		event = hooks.EventClarificationNeeded
	}
	a.eventBus.PublishAsync(&hooks.EventContext{
		Event:      event,
		Timestamp:  time.Now(),
		RequestID:  logging.RequestID(ctx),
		Handler:    string(d.Selected),
		Method:     string(d.Method),
		Language:   string(d.Language),
		Confidence: d.Confidence,
		Data:       data,
	})
}

func (a *Arbiter) publishUnavailable(ctx context.Context, m routing.Method, err error) {
	logging.FromContext(ctx).WithField("method", m).Warnf("routing method unavailable: %v", err)
	if a.eventBus == nil {
		return
	}
	a.eventBus.PublishAsync(&hooks.EventContext{
		Event:        hooks.EventCapabilityUnavailable,
		Timestamp:    time.Now(),
		RequestID:    logging.RequestID(ctx),
		Method:       string(m),
		Error:        err,
		ErrorMessage: err.Error(),
	})
}

func (a *Arbiter) publishFailure(ctx context.Context, lang routing.Language, err error) {
	if a.eventBus == nil {
		return
	}
	a.eventBus.PublishAsync(&hooks.EventContext{
		Event:        hooks.EventRoutingFailed,
		Timestamp:    time.Now(),
		RequestID:    logging.RequestID(ctx),
		Language:     string(lang),
		Error:        err,
		ErrorMessage: err.Error(),
	})
}
