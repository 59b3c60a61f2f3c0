// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evaluation

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/routing"
)

// tableDecider answers from a fixed text -> decision table.
type tableDecider struct {
	decisions map[string]*routing.Decision
	errs      map[string]error
	calls     atomic.Int32
}

func (d *tableDecider) Decide(ctx context.Context, text string) (*routing.Decision, error) {
	d.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := d.errs[text]; ok {
		return nil, err
	}
	if dec, ok := d.decisions[text]; ok {
		cp := *dec
		return &cp, nil
	}
	return &routing.Decision{Selected: routing.NeedsClarification, Language: routing.English, Method: routing.MethodFused}, nil
}

func decision(h routing.HandlerID, conf float64, m routing.Method, l routing.Language) *routing.Decision {
	return &routing.Decision{Selected: h, Confidence: conf, Method: m, Language: l}
}

func fiveCases() ([]TestCase, *tableDecider) {
	cases := []TestCase{
		{Input: "Ghar mein sirf chawal aur dal hai", ExpectedHandler: routing.HandlerRecipe, ExpectedLanguage: routing.Hinglish, MinConfidence: 0.3},
		{Input: "Tell me a bedtime story", ExpectedHandler: routing.HandlerStory, ExpectedLanguage: routing.English, MinConfidence: 0.5},
		{Input: "प्रेम पर कविता लिखिए", ExpectedHandler: routing.HandlerPoem, ExpectedLanguage: routing.Hindi, MinConfidence: 0.5},
		{Input: "Purane gaane recommend karo", ExpectedHandler: routing.HandlerMusic, ExpectedLanguage: routing.Hinglish, MinConfidence: 0.5},
		{Input: "Good restaurants near me", ExpectedHandler: routing.HandlerRestaurant, ExpectedLanguage: routing.English, MinConfidence: 0.5},
	}
	d := &tableDecider{decisions: map[string]*routing.Decision{
		cases[0].Input: decision(routing.HandlerRecipe, 0.41, routing.MethodSimilarity, routing.Hinglish),
		cases[1].Input: decision(routing.HandlerStory, 0.92, routing.MethodClassifier, routing.English),
		cases[2].Input: decision(routing.HandlerPoem, 0.88, routing.MethodClassifier, routing.Hindi),
		// misrouted to the story handler
		cases[3].Input: decision(routing.HandlerStory, 0.61, routing.MethodClassifier, routing.Hinglish),
		cases[4].Input: decision(routing.HandlerRestaurant, 0.45, routing.MethodClassifier, routing.English),
	}}
	return cases, d
}

func TestEvaluateFourOfFive(t *testing.T) {
	cases, d := fiveCases()
	m, err := NewHarness(d, 2).Evaluate(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, 5, m.Total)
	assert.Equal(t, 4, m.Correct)
	assert.Equal(t, 0.8, m.OverallAccuracy)

	story := m.PerHandler[routing.HandlerStory]
	assert.Equal(t, 0.5, story.Precision)
	assert.Equal(t, 1.0, story.Recall)
	assert.InDelta(t, 2.0/3.0, story.F1, 1e-12)

	music := m.PerHandler[routing.HandlerMusic]
	assert.Equal(t, 0.0, music.Precision, "never predicted means precision 0")
	assert.Equal(t, 0.0, music.Recall)
	assert.Equal(t, 0.0, music.F1)

	assert.Equal(t, 0.5, m.PerLanguage[routing.Hinglish])
	assert.Equal(t, 1.0, m.PerLanguage[routing.English])
	assert.Equal(t, 1.0, m.PerLanguage[routing.Hindi])

	assert.Equal(t, 1, m.ConfusionMatrix[routing.HandlerMusic][routing.HandlerStory])
	assert.Equal(t, 1, m.ConfusionMatrix[routing.HandlerStory][routing.HandlerStory])
	assert.Equal(t, []float64{0.92, 0.61}, m.ConfidenceSamples[routing.HandlerStory])

	assert.Equal(t, 4, m.MethodDistribution[routing.MethodClassifier].Count)
	assert.Equal(t, 0.75, m.MethodDistribution[routing.MethodClassifier].Accuracy)
	assert.Equal(t, 1, m.MethodDistribution[routing.MethodSimilarity].Count)
	assert.Equal(t, map[routing.Language]LanguageMetrics{
		routing.English:  {Count: 2, Correct: 2, Accuracy: 1},
		routing.Hindi:    {Count: 1, Correct: 1, Accuracy: 1},
		routing.Hinglish: {Count: 1, Correct: 0, Accuracy: 0},
	}, m.MethodDistribution[routing.MethodClassifier].ByLanguage)
	assert.Equal(t, map[routing.Language]LanguageMetrics{
		routing.Hinglish: {Count: 1, Correct: 1, Accuracy: 1},
	}, m.MethodDistribution[routing.MethodSimilarity].ByLanguage)
	assert.Equal(t, 1.0, m.LanguageDetectionAccuracy)
	assert.Equal(t, 1, m.BelowMinConfidence, "the restaurant case is correct at 0.45 < 0.5")
	assert.InDelta(t, (0.41+0.92+0.88+0.61+0.45)/5, m.AverageConfidence, 1e-12)

	_, hasSentinel := m.PerHandler[routing.NeedsClarification]
	assert.False(t, hasSentinel)
	assert.Len(t, m.PerHandler, routing.NumHandlers)
}

func TestEvaluateClarificationIsExactMatch(t *testing.T) {
	cases := []TestCase{
		{Input: "Music", ExpectedHandler: routing.NeedsClarification, ExpectedLanguage: routing.English},
		{Input: "Tell me a story", ExpectedHandler: routing.HandlerStory, ExpectedLanguage: routing.English},
	}
	d := &tableDecider{decisions: map[string]*routing.Decision{}}

	m, err := NewHarness(d, 1).Evaluate(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Correct)
	assert.Equal(t, 1.0, m.PerHandler[routing.NeedsClarification].Recall)
	assert.Equal(t, 0.5, m.PerHandler[routing.NeedsClarification].Precision)
	assert.Equal(t, 0.0, m.PerHandler[routing.HandlerStory].Recall)
}

func TestEvaluateExcludesInvalidAndFailedCases(t *testing.T) {
	cases, d := fiveCases()
	cases = append(cases,
		TestCase{Input: "weather today", ExpectedHandler: "weather", ExpectedLanguage: routing.English},
		TestCase{Input: "kuch bhi", ExpectedHandler: routing.HandlerPoem, ExpectedLanguage: "tamil"},
		TestCase{Input: "nan", ExpectedHandler: routing.HandlerPoem, ExpectedLanguage: routing.English, MinConfidence: math.NaN()},
		TestCase{Input: "broken", ExpectedHandler: routing.HandlerPoem, ExpectedLanguage: routing.English},
	)
	d.errs = map[string]error{"broken": routing.ErrNoRoutingMethod}

	m, err := NewHarness(d, 3).Evaluate(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, 5, m.Total)
	assert.Equal(t, 0.8, m.OverallAccuracy)
	require.Len(t, m.Invalid, 3)
	assert.Equal(t, 5, m.Invalid[0].Index)
	assert.Equal(t, 6, m.Invalid[1].Index)
	assert.Equal(t, 7, m.Invalid[2].Index)
	assert.Contains(t, m.Invalid[0].Reason, "unknown handler")
	require.Len(t, m.Failed, 1)
	assert.Equal(t, 8, m.Failed[0].Index)
	assert.Contains(t, m.Failed[0].Reason, "no routing method")
}

func TestEvaluateListsUndecodableCases(t *testing.T) {
	cases, err := ParseCorpus([]byte(`
cases:
  - input: "Tell me a bedtime story"
    expected_handler: nani_kahaniyan
    expected_language: english
  - input: "Good restaurants near me"
    expected_handler: food_locator
    expected_language: english
    min_confidence: high
  - 42
`))
	require.NoError(t, err)

	d := &tableDecider{decisions: map[string]*routing.Decision{
		"Tell me a bedtime story": decision(routing.HandlerStory, 0.9, routing.MethodSimilarity, routing.English),
	}}
	m, err := NewHarness(d, 2).Evaluate(context.Background(), cases)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Total)
	assert.Equal(t, 1.0, m.OverallAccuracy)
	require.Len(t, m.Invalid, 2)
	assert.Equal(t, 1, m.Invalid[0].Index)
	assert.Equal(t, "Good restaurants near me", m.Invalid[0].Input)
	assert.Equal(t, 2, m.Invalid[1].Index)
	assert.Contains(t, m.Invalid[1].Reason, "not a mapping")
	assert.Equal(t, int32(1), d.calls.Load(), "undecodable cases never reach the decider")
}

func TestEvaluateConfusionRowsMatchExpectedCounts(t *testing.T) {
	cases, d := fiveCases()
	cases = append(cases, cases...)
	m, err := NewHarness(d, 4).Evaluate(context.Background(), cases)
	require.NoError(t, err)

	expected := map[routing.HandlerID]int{}
	for _, tc := range cases {
		expected[tc.ExpectedHandler]++
	}
	for h, row := range m.ConfusionMatrix {
		sum := 0
		for _, n := range row {
			sum += n
		}
		assert.Equal(t, expected[h], sum, "row %s", h)
	}
	for _, hm := range m.PerHandler {
		assert.True(t, hm.Precision >= 0 && hm.Precision <= 1)
		assert.True(t, hm.Recall >= 0 && hm.Recall <= 1)
	}
}

func TestEvaluateIsByteIdenticalAcrossRuns(t *testing.T) {
	cases, d := fiveCases()
	m1, err := NewHarness(d, 1).Evaluate(context.Background(), cases)
	require.NoError(t, err)
	m2, err := NewHarness(d, 8).Evaluate(context.Background(), cases)
	require.NoError(t, err)

	b1, err := MarshalMetrics(m1)
	require.NoError(t, err)
	b2, err := MarshalMetrics(m2)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(b1, b2))
}

func TestEvaluateCancelled(t *testing.T) {
	cases, d := fiveCases()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHarness(d, 2).Evaluate(ctx, cases)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEvaluateEmptyCorpusAndNilDecider(t *testing.T) {
	m, err := NewHarness(&tableDecider{}, 0).Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Total)
	assert.Equal(t, 0.0, m.OverallAccuracy)
	assert.Len(t, m.PerHandler, routing.NumHandlers)

	_, err = NewHarness(nil, 1).Evaluate(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunReportsResultsInCorpusOrder(t *testing.T) {
	cases, d := fiveCases()
	report, err := NewHarness(d, 5).Run(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, report.Results, 5)
	for i, res := range report.Results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, cases[i].Input, res.Case.Input)
	}
	assert.False(t, report.Results[3].Correct)
}

func TestEvaluatePublishesCompletion(t *testing.T) {
	bus := hooks.NewEventBus()
	defer bus.Shutdown()
	got := make(chan *hooks.EventContext, 1)
	bus.Subscribe(hooks.EventEvaluationCompleted, func(ec *hooks.EventContext) { got <- ec })

	cases, d := fiveCases()
	h := NewHarness(d, 1)
	h.SetEventBus(bus)
	_, err := h.Evaluate(context.Background(), cases)
	require.NoError(t, err)

	select {
	case ec := <-got:
		assert.Equal(t, 0.8, ec.Confidence)
		assert.Equal(t, 5, ec.Data["total"])
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation_completed was not published")
	}
}
