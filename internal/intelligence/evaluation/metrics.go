// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evaluation

import (
	"github.com/traylinx/bhasharouter/internal/routing"
)

// HandlerMetrics holds precision, recall and F1 for one outcome.
type HandlerMetrics struct {
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	F1            float64 `json:"f1"`
	Predicted     int     `json:"predicted"`
	Expected      int     `json:"expected"`
	TruePositives int     `json:"true_positives"`
}

// MethodMetrics summarizes the decisions taken by one routing method.
// ByLanguage splits them by the expected language of the case.
type MethodMetrics struct {
	Count             int     `json:"count"`
	Correct           int     `json:"correct"`
	Accuracy          float64 `json:"accuracy"`
	AverageConfidence float64 `json:"avg_confidence"`

	ByLanguage map[routing.Language]LanguageMetrics `json:"by_language"`
}

// LanguageMetrics holds accuracy for one expected language.
type LanguageMetrics struct {
	Count    int     `json:"count"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

// ExcludedCase identifies a corpus entry left out of the aggregates.
type ExcludedCase struct {
	Index  int    `json:"index"`
	Input  string `json:"input"`
	Reason string `json:"reason"`
}

// Metrics is the aggregate result of one evaluation pass. It depends only on
// the corpus and the decisions, never on timing or execution order.
type Metrics struct {
	Total           int     `json:"total"`
	Correct         int     `json:"correct"`
	OverallAccuracy float64 `json:"overall_accuracy"`

	PerHandler        map[routing.HandlerID]HandlerMetrics            `json:"per_handler"`
	PerLanguage       map[routing.Language]float64                    `json:"per_language"`
	ConfusionMatrix   map[routing.HandlerID]map[routing.HandlerID]int `json:"confusion_matrix"`
	ConfidenceSamples map[routing.HandlerID][]float64                 `json:"confidence_samples"`

	LanguageBreakdown         map[routing.Language]LanguageMetrics `json:"language_breakdown"`
	MethodDistribution        map[routing.Method]MethodMetrics     `json:"method_distribution"`
	AverageConfidence         float64                              `json:"avg_confidence"`
	LanguageDetectionAccuracy float64                              `json:"language_detection_accuracy"`
	BelowMinConfidence        int                                  `json:"below_min_confidence"`

	Invalid []ExcludedCase `json:"invalid,omitempty"`
	Failed  []ExcludedCase `json:"failed,omitempty"`
}

// CaseResult pairs a test case with the decision taken for it.
type CaseResult struct {
	Index            int               `json:"index"`
	Case             TestCase          `json:"case"`
	Selected         routing.HandlerID `json:"selected"`
	Confidence       float64           `json:"confidence"`
	Method           routing.Method    `json:"method_used"`
	DetectedLanguage routing.Language  `json:"detected_language"`
	Reasoning        string            `json:"reasoning"`
	Correct          bool              `json:"correct"`
}

// accumulator folds case results into counts. Every update is a sum, so the
// fold order does not change the outcome.
type accumulator struct {
	total, correct int
	confidenceSum  float64
	languageHits   int
	belowMin       int
	predicted      map[routing.HandlerID]int
	expected       map[routing.HandlerID]int
	truePositives  map[routing.HandlerID]int
	language       map[routing.Language]*LanguageMetrics
	methods        map[routing.Method]*methodSums
	confusion      map[routing.HandlerID]map[routing.HandlerID]int
	samples        map[routing.HandlerID][]float64
}

type methodSums struct {
	count, correct int
	confidence     float64
	language       map[routing.Language]*LanguageMetrics
}

func newAccumulator() *accumulator {
	return &accumulator{
		predicted:     make(map[routing.HandlerID]int),
		expected:      make(map[routing.HandlerID]int),
		truePositives: make(map[routing.HandlerID]int),
		language:      make(map[routing.Language]*LanguageMetrics),
		methods:       make(map[routing.Method]*methodSums),
		confusion:     make(map[routing.HandlerID]map[routing.HandlerID]int),
		samples:       make(map[routing.HandlerID][]float64),
	}
}

func (a *accumulator) add(r CaseResult) {
	exp, got := r.Case.ExpectedHandler, r.Selected

	a.total++
	a.expected[exp]++
	a.predicted[got]++
	if r.Correct {
		a.correct++
		a.truePositives[got]++
		if r.Confidence < r.Case.MinConfidence {
			a.belowMin++
		}
	}

	countLanguage(a.language, r)
	if r.DetectedLanguage == r.Case.ExpectedLanguage {
		a.languageHits++
	}

	ms := a.methods[r.Method]
	if ms == nil {
		ms = &methodSums{language: make(map[routing.Language]*LanguageMetrics)}
		a.methods[r.Method] = ms
	}
	ms.count++
	ms.confidence += r.Confidence
	if r.Correct {
		ms.correct++
	}
	countLanguage(ms.language, r)
	a.confidenceSum += r.Confidence

	row := a.confusion[exp]
	if row == nil {
		row = make(map[routing.HandlerID]int)
		a.confusion[exp] = row
	}
	row[got]++

	a.samples[got] = append(a.samples[got], r.Confidence)
}

func countLanguage(counts map[routing.Language]*LanguageMetrics, r CaseResult) {
	lm := counts[r.Case.ExpectedLanguage]
	if lm == nil {
		lm = &LanguageMetrics{}
		counts[r.Case.ExpectedLanguage] = lm
	}
	lm.Count++
	if r.Correct {
		lm.Correct++
	}
}

func languageMetrics(counts map[routing.Language]*LanguageMetrics) map[routing.Language]LanguageMetrics {
	out := make(map[routing.Language]LanguageMetrics, len(counts))
	for lang, lm := range counts {
		out[lang] = LanguageMetrics{Count: lm.Count, Correct: lm.Correct, Accuracy: ratio(lm.Correct, lm.Count)}
	}
	return out
}

func (a *accumulator) metrics() *Metrics {
	m := &Metrics{
		Total:              a.total,
		Correct:            a.correct,
		OverallAccuracy:    ratio(a.correct, a.total),
		PerHandler:         make(map[routing.HandlerID]HandlerMetrics),
		PerLanguage:        make(map[routing.Language]float64),
		ConfusionMatrix:    a.confusion,
		ConfidenceSamples:  a.samples,
		MethodDistribution: make(map[routing.Method]MethodMetrics),
		BelowMinConfidence: a.belowMin,
	}
	if a.total > 0 {
		m.AverageConfidence = a.confidenceSum / float64(a.total)
		m.LanguageDetectionAccuracy = ratio(a.languageHits, a.total)
	}

	outcomes := routing.Handlers()
	if a.expected[routing.NeedsClarification] > 0 || a.predicted[routing.NeedsClarification] > 0 {
		outcomes = append(outcomes, routing.NeedsClarification)
	}
	for _, h := range outcomes {
		tp := a.truePositives[h]
		hm := HandlerMetrics{
			Precision:     ratio(tp, a.predicted[h]),
			Recall:        ratio(tp, a.expected[h]),
			Predicted:     a.predicted[h],
			Expected:      a.expected[h],
			TruePositives: tp,
		}
		if hm.Precision+hm.Recall > 0 {
			hm.F1 = 2 * hm.Precision * hm.Recall / (hm.Precision + hm.Recall)
		}
		m.PerHandler[h] = hm
	}

	m.LanguageBreakdown = languageMetrics(a.language)
	for lang, lm := range m.LanguageBreakdown {
		m.PerLanguage[lang] = lm.Accuracy
	}
	for method, ms := range a.methods {
		m.MethodDistribution[method] = MethodMetrics{
			Count:             ms.count,
			Correct:           ms.correct,
			Accuracy:          ratio(ms.correct, ms.count),
			AverageConfidence: ms.confidence / float64(ms.count),
			ByLanguage:        languageMetrics(ms.language),
		}
	}
	return m
}

// ratio returns n/d, or 0 when d is zero.
func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
