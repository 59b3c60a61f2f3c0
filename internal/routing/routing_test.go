// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHandlerID(t *testing.T) {
	tests := []struct {
		in      string
		want    HandlerID
		wantErr bool
	}{
		{"leftover_chef", HandlerRecipe, false},
		{"  Nani_Kahaniyan ", HandlerStory, false},
		{"clarification_needed", NeedsClarification, false},
		{"weather", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHandlerID(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnknownHandler))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandlerEnumeration(t *testing.T) {
	hs := Handlers()
	require.Len(t, hs, 5)
	for i, h := range hs {
		assert.Equal(t, i, h.Rank())
		assert.True(t, h.IsHandler())
	}

	assert.False(t, NeedsClarification.IsHandler())
	assert.True(t, NeedsClarification.Valid())
	assert.False(t, HandlerID("weather").Valid())

	// mutating the copy must not affect the enumeration
	hs[0] = "mutated"
	assert.Equal(t, HandlerRecipe, Handlers()[0])

	outcomes := Outcomes()
	assert.Equal(t, NeedsClarification, outcomes[len(outcomes)-1])
}

func TestParseLanguage(t *testing.T) {
	l, err := ParseLanguage("HINGLISH")
	require.NoError(t, err)
	assert.Equal(t, Hinglish, l)

	_, err = ParseLanguage("mixed")
	assert.True(t, errors.Is(err, ErrUnknownLanguage))
}

func TestMethodRange(t *testing.T) {
	assert.True(t, MethodSimilarity.InRange(-1))
	assert.True(t, MethodSimilarity.InRange(1))
	assert.False(t, MethodClassifier.InRange(-0.1))
	assert.False(t, MethodClassifier.InRange(math.NaN()))
	assert.False(t, MethodFused.InRange(math.Inf(1)))
	assert.Equal(t, MethodClassifier, MethodSimilarity.Other())
	assert.Equal(t, Method(""), MethodFused.Other())

	_, err := ParseMethod("fused")
	assert.Error(t, err)
}

func TestThresholdTable(t *testing.T) {
	methods := DefaultThresholds()
	sim := methods[MethodSimilarity]
	sim.Handlers = map[HandlerID]float64{HandlerMusic: 0.5}
	methods[MethodSimilarity] = sim

	table, err := NewThresholdTable(methods)
	require.NoError(t, err)

	assert.InDelta(t, 0.30, table.Base(MethodSimilarity, HandlerRecipe), 1e-9)
	assert.InDelta(t, 0.50, table.Base(MethodSimilarity, HandlerMusic), 1e-9)
	assert.InDelta(t, 0.50*0.85, table.Threshold(MethodSimilarity, HandlerMusic, Hinglish), 1e-9)
	assert.InDelta(t, 0.30*0.95, table.Threshold(MethodSimilarity, HandlerRecipe, Hindi), 1e-9)
	assert.InDelta(t, 0.55, table.Threshold(MethodClassifier, HandlerPoem, Hinglish), 1e-9)
	assert.True(t, math.IsInf(table.Threshold(MethodFused, HandlerPoem, English), 1))
	assert.True(t, math.IsInf(table.Threshold(MethodClassifier, NeedsClarification, English), 1))

	// the table must not alias the caller's maps
	sim.Handlers[HandlerMusic] = 0.9
	assert.InDelta(t, 0.50, table.Base(MethodSimilarity, HandlerMusic), 1e-9)
}

func TestThresholdTableValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[Method]MethodThresholds)
	}{
		{"missing method", func(s map[Method]MethodThresholds) { delete(s, MethodClassifier) }},
		{"classifier default above one", func(s map[Method]MethodThresholds) {
			c := s[MethodClassifier]
			c.Default = 1.5
			s[MethodClassifier] = c
		}},
		{"sentinel threshold", func(s map[Method]MethodThresholds) {
			c := s[MethodClassifier]
			c.Handlers = map[HandlerID]float64{NeedsClarification: 0.2}
			s[MethodClassifier] = c
		}},
		{"zero language scale", func(s map[Method]MethodThresholds) {
			c := s[MethodSimilarity]
			c.LanguageScale = map[Language]float64{Hindi: 0}
			s[MethodSimilarity] = c
		}},
		{"nan handler threshold", func(s map[Method]MethodThresholds) {
			c := s[MethodSimilarity]
			c.Handlers = map[HandlerID]float64{HandlerPoem: math.NaN()}
			s[MethodSimilarity] = c
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			methods := DefaultThresholds()
			tt.mutate(methods)
			_, err := NewThresholdTable(methods)
			assert.Error(t, err)
		})
	}
}

func TestThresholdPasses(t *testing.T) {
	table, err := NewThresholdTable(DefaultThresholds())
	require.NoError(t, err)

	assert.True(t, table.Passes(ScoredCandidate{HandlerStory, 0.55, MethodClassifier}, English))
	assert.False(t, table.Passes(ScoredCandidate{HandlerStory, 0.549, MethodClassifier}, English))
	assert.True(t, table.Passes(ScoredCandidate{HandlerStory, 0.26, MethodSimilarity}, Hinglish))
	assert.False(t, table.Passes(ScoredCandidate{HandlerStory, 0.26, MethodSimilarity}, English))
	assert.False(t, table.Passes(ScoredCandidate{HandlerStory, math.NaN(), MethodSimilarity}, English))
	assert.False(t, table.Passes(ScoredCandidate{NeedsClarification, 0.99, MethodClassifier}, English))
}

func TestSortCandidates(t *testing.T) {
	cs := []ScoredCandidate{
		{HandlerRestaurant, 0.4, MethodSimilarity},
		{HandlerPoem, 0.7, MethodSimilarity},
		{HandlerStory, 0.4, MethodSimilarity},
		{HandlerRecipe, 0.4, MethodSimilarity},
	}
	SortCandidates(cs)

	want := []HandlerID{HandlerPoem, HandlerRecipe, HandlerStory, HandlerRestaurant}
	for i, h := range want {
		assert.Equal(t, h, cs[i].Handler)
	}

	top, ok := Top(cs)
	assert.True(t, ok)
	assert.Equal(t, HandlerPoem, top.Handler)

	_, ok = Top(nil)
	assert.False(t, ok)
}
