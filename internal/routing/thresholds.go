// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"fmt"
	"math"
)

const (
	// DefaultSimilarityThreshold is the per-handler cosine bar used when no
	// handler-specific value is configured.
	DefaultSimilarityThreshold = 0.30

	// DefaultClassifierThreshold is the per-handler probability bar used when
	// no handler-specific value is configured.
	DefaultClassifierThreshold = 0.55
)

// MethodThresholds is the configurable input for one scoring method.
type MethodThresholds struct {
	// Default applies to handlers without an entry in Handlers.
	Default float64

	// Handlers overrides Default per handler.
	Handlers map[HandlerID]float64

	// LanguageScale multiplies the handler threshold for requests detected
	// in that language. Missing languages use 1.0.
	LanguageScale map[Language]float64
}

// DefaultThresholds returns the tuned defaults: a lower similarity bar for
// Hinglish and Hindi phrasing, and a flat classifier bar.
func DefaultThresholds() map[Method]MethodThresholds {
	return map[Method]MethodThresholds{
		MethodSimilarity: {
			Default: DefaultSimilarityThreshold,
			LanguageScale: map[Language]float64{
				Hinglish: 0.85,
				Hindi:    0.95,
			},
		},
		MethodClassifier: {
			Default: DefaultClassifierThreshold,
		},
	}
}

type methodTable struct {
	base  [len(handlers)]float64
	scale map[Language]float64
}

// ThresholdTable holds per-method, per-handler minimum acceptance scores.
// It is immutable after NewThresholdTable returns.
type ThresholdTable struct {
	methods map[Method]*methodTable
}

// NewThresholdTable validates spec and freezes it into a ThresholdTable.
// Both scoring methods must be present.
func NewThresholdTable(spec map[Method]MethodThresholds) (*ThresholdTable, error) {
	t := &ThresholdTable{methods: make(map[Method]*methodTable, 2)}

	for _, m := range []Method{MethodSimilarity, MethodClassifier} {
		ms, ok := spec[m]
		if !ok {
			return nil, fmt.Errorf("thresholds for method %s are missing", m)
		}
		if !m.InRange(ms.Default) {
			return nil, fmt.Errorf("%s default threshold %v outside method range", m, ms.Default)
		}

		mt := &methodTable{scale: make(map[Language]float64, len(ms.LanguageScale))}
		for i := range mt.base {
			mt.base[i] = ms.Default
		}
		for h, v := range ms.Handlers {
			if !h.IsHandler() {
				return nil, fmt.Errorf("%s threshold: %w: %q", m, ErrUnknownHandler, h)
			}
			if !m.InRange(v) {
				return nil, fmt.Errorf("%s threshold for %s: %v outside method range", m, h, v)
			}
			mt.base[h.Rank()] = v
		}
		for l, s := range ms.LanguageScale {
			if !l.Valid() {
				return nil, fmt.Errorf("%s language scale: %w: %q", m, ErrUnknownLanguage, l)
			}
			if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
				return nil, fmt.Errorf("%s language scale for %s must be positive, got %v", m, l, s)
			}
			mt.scale[l] = s
		}
		t.methods[m] = mt
	}

	return t, nil
}

// Base returns the unscaled threshold for handler h under method m.
// Unknown handlers and methods get +Inf so they never pass.
func (t *ThresholdTable) Base(m Method, h HandlerID) float64 {
	mt, ok := t.methods[m]
	if !ok || !h.IsHandler() {
		return math.Inf(1)
	}
	return mt.base[h.Rank()]
}

// Threshold returns the threshold for handler h under method m for a request
// detected in language l.
func (t *ThresholdTable) Threshold(m Method, h HandlerID, l Language) float64 {
	base := t.Base(m, h)
	if math.IsInf(base, 1) {
		return base
	}
	if s, ok := t.methods[m].scale[l]; ok {
		return base * s
	}
	return base
}

// Passes reports whether c meets its handler threshold for language l.
func (t *ThresholdTable) Passes(c ScoredCandidate, l Language) bool {
	if !c.Method.InRange(c.Score) {
		return false
	}
	return c.Score >= t.Threshold(c.Method, c.Handler, l)
}
