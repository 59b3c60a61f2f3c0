// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package confidence validates classifier probability distributions and
// tracks how confident the classifier tends to be.
package confidence

import (
	"fmt"
	"math"
	"sync"

	"github.com/tidwall/gjson"
)

// SumTolerance is how far a distribution may sum away from 1.
const SumTolerance = 0.01

// Distribution maps classifier labels to probabilities.
type Distribution map[string]float64

// Validate checks that every probability is finite and in [0, 1] and that
// the total is within SumTolerance of 1.
func (d Distribution) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("empty distribution")
	}
	var sum float64
	for label, p := range d {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
			return fmt.Errorf("probability for %q out of range: %v", label, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > SumTolerance {
		return fmt.Errorf("probabilities sum to %.4f", sum)
	}
	return nil
}

// Softmax converts logits into a Distribution over labels.
func Softmax(labels []string, logits []float32) (Distribution, error) {
	if len(labels) != len(logits) {
		return nil, fmt.Errorf("got %d logits for %d labels", len(logits), len(labels))
	}
	if len(logits) == 0 {
		return nil, fmt.Errorf("no logits")
	}

	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, float64(l))
	}

	exps := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		exps[i] = math.Exp(float64(l) - maxLogit)
		sum += exps[i]
	}

	d := make(Distribution, len(labels))
	for i, label := range labels {
		d[label] += exps[i] / sum
	}
	return d, nil
}

// Parse extracts a Distribution from a classifier JSON response. Two shapes
// are accepted:
//
//	{"probabilities": {"story_telling": 0.9, ...}}
//	{"predictions": [{"label": "story_telling", "score": 0.9}, ...]}
func Parse(body []byte) (Distribution, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse classification JSON")
	}

	d := make(Distribution)
	if probs := gjson.GetBytes(body, "probabilities"); probs.IsObject() {
		var bad error
		probs.ForEach(func(key, value gjson.Result) bool {
			if value.Type != gjson.Number {
				bad = fmt.Errorf("probability for %q is not a number", key.String())
				return false
			}
			d[key.String()] += value.Float()
			return true
		})
		return d, bad
	}

	preds := gjson.GetBytes(body, "predictions")
	if !preds.IsArray() {
		return nil, fmt.Errorf("classification JSON has neither probabilities nor predictions")
	}
	for _, p := range preds.Array() {
		label, score := p.Get("label"), p.Get("score")
		if label.Type != gjson.String || score.Type != gjson.Number {
			return nil, fmt.Errorf("malformed prediction %s", p.Raw)
		}
		d[label.String()] += score.Float()
	}
	return d, nil
}

// Scorer tracks the distribution of top-label confidences.
type Scorer struct {
	mu                   sync.RWMutex
	totalClassifications int
	confidenceSum        float64
	lowConfidenceCount   int // < 0.60
	highConfidenceCount  int // > 0.90
}

// Metrics is a snapshot of a Scorer.
type Metrics struct {
	TotalClassifications int     `json:"total_classifications"`
	AverageConfidence    float64 `json:"average_confidence"`
	LowConfidenceCount   int     `json:"low_confidence_count"`
	HighConfidenceCount  int     `json:"high_confidence_count"`
}

// NewScorer creates a new Scorer instance.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Observe records the top probability of one classification.
func (s *Scorer) Observe(top float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalClassifications++
	s.confidenceSum += top
	if top < 0.60 {
		s.lowConfidenceCount++
	} else if top > 0.90 {
		s.highConfidenceCount++
	}
}

// GetMetrics returns confidence distribution metrics.
func (s *Scorer) GetMetrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := Metrics{
		TotalClassifications: s.totalClassifications,
		LowConfidenceCount:   s.lowConfidenceCount,
		HighConfidenceCount:  s.highConfidenceCount,
	}
	if s.totalClassifications > 0 {
		m.AverageConfidence = s.confidenceSum / float64(s.totalClassifications)
	}
	return m
}
