// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package classifier ranks handlers by the probability an intent classifier
// assigns to each of them.
package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/traylinx/bhasharouter/internal/intelligence/confidence"
	"github.com/traylinx/bhasharouter/internal/routing"
)

// Classifier predicts a probability distribution over its labels.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, text string) (confidence.Distribution, error)
	Labels() []string
}

// LabelMap maps classifier labels to handlers. Labels mapped to
// routing.NeedsClarification stand for "none of the above".
type LabelMap map[string]routing.HandlerID

// DefaultLabelMap maps the intent names of the bundled classifier, and every
// handler id, to its handler.
func DefaultLabelMap() LabelMap {
	m := LabelMap{
		"recipe_suggestion":    routing.HandlerRecipe,
		"story_telling":        routing.HandlerStory,
		"poem_generation":      routing.HandlerPoem,
		"music_recommendation": routing.HandlerMusic,
		"food_location":        routing.HandlerRestaurant,
		"other":                routing.NeedsClarification,
	}
	for _, h := range routing.Outcomes() {
		m[string(h)] = h
	}
	return m
}

// Validate checks that every target is a known outcome and every label in
// labels is mapped.
func (m LabelMap) Validate(labels []string) error {
	for label, h := range m {
		if !h.Valid() {
			return fmt.Errorf("label %q: %w: %q", label, routing.ErrUnknownHandler, h)
		}
	}
	var missing []string
	for _, l := range labels {
		if _, ok := m[l]; !ok {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("classifier labels without a handler mapping: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Router turns a classifier distribution into a handler ranking.
type Router struct {
	clf    Classifier
	labels LabelMap
	scorer *confidence.Scorer
}

// NewRouter creates a classifier router. A nil label map uses DefaultLabelMap.
func NewRouter(clf Classifier, labels LabelMap) (*Router, error) {
	if clf == nil {
		return nil, fmt.Errorf("classifier router needs a classifier")
	}
	if labels == nil {
		labels = DefaultLabelMap()
	}
	if err := labels.Validate(clf.Labels()); err != nil {
		return nil, err
	}

	copied := make(LabelMap, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	return &Router{clf: clf, labels: copied, scorer: confidence.NewScorer()}, nil
}

// Method identifies the scores produced by this router.
func (r *Router) Method() routing.Method {
	return routing.MethodClassifier
}

// Scorer returns the confidence statistics of this router.
func (r *Router) Scorer() *confidence.Scorer {
	return r.scorer
}

// Rank returns all five handlers sorted by descending probability. Blank
// text yields an empty ranking. Classifier failures, invalid distributions
// and unmapped labels wrap routing.ErrCapabilityUnavailable.
//
// Parameters:
//   - ctx: Context passed to the classifier
//   - text: The request text
//
// Returns:
//   - []routing.ScoredCandidate: Ranked candidates with scores in [0, 1]
//   - error: Capability failure
func (r *Router) Rank(ctx context.Context, text string) ([]routing.ScoredCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	dist, err := r.clf.Classify(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: classify: %w", routing.ErrCapabilityUnavailable, err)
	}
	if err := dist.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid distribution: %w", routing.ErrCapabilityUnavailable, err)
	}

	var scores [routing.NumHandlers]float64
	for label, p := range dist {
		h, ok := r.labels[label]
		if !ok {
			return nil, fmt.Errorf("%w: unmapped label %q", routing.ErrCapabilityUnavailable, label)
		}
		if h.IsHandler() {
			scores[h.Rank()] += p
		}
	}

	candidates := make([]routing.ScoredCandidate, 0, len(scores))
	for _, h := range routing.Handlers() {
		// summing mapped labels can drift past 1 by rounding
		p := min(scores[h.Rank()], 1)
		candidates = append(candidates, routing.ScoredCandidate{Handler: h, Score: p, Method: routing.MethodClassifier})
	}
	routing.SortCandidates(candidates)

	r.scorer.Observe(candidates[0].Score)
	return candidates, nil
}
