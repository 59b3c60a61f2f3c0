// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package routing defines the value types shared by the language detector,
// the two scoring routers, the arbiter and the evaluation harness.
// Everything in this package is immutable once constructed.
package routing

import (
	"fmt"
	"math"
	"strings"
)

// HandlerID identifies one of the fixed content handlers, or the
// clarification sentinel.
type HandlerID string

const (
	// HandlerRecipe suggests recipes from leftover ingredients.
	HandlerRecipe HandlerID = "leftover_chef"

	// HandlerStory tells moral and bedtime stories.
	HandlerStory HandlerID = "nani_kahaniyan"

	// HandlerPoem writes poems in Hindi, English or Hinglish.
	HandlerPoem HandlerID = "poem_generator"

	// HandlerMusic recommends nostalgic classic songs.
	HandlerMusic HandlerID = "vividh_bharti"

	// HandlerRestaurant finds food places nearby.
	HandlerRestaurant HandlerID = "food_locator"

	// NeedsClarification is the sentinel meaning no handler was confident enough.
	NeedsClarification HandlerID = "clarification_needed"
)

// NumHandlers is the number of content handlers.
const NumHandlers = 5

// handlers is the enumeration order. It doubles as the tie-break order.
var handlers = [NumHandlers]HandlerID{
	HandlerRecipe,
	HandlerStory,
	HandlerPoem,
	HandlerMusic,
	HandlerRestaurant,
}

// Handlers returns the five content handlers in enumeration order.
func Handlers() []HandlerID {
	out := make([]HandlerID, len(handlers))
	copy(out, handlers[:])
	return out
}

// Outcomes returns the handlers followed by the clarification sentinel.
func Outcomes() []HandlerID {
	return append(Handlers(), NeedsClarification)
}

// Rank returns the enumeration position of h. The sentinel sorts last and
// unknown identifiers after it.
func (h HandlerID) Rank() int {
	for i, known := range handlers {
		if known == h {
			return i
		}
	}
	if h == NeedsClarification {
		return len(handlers)
	}
	return len(handlers) + 1
}

// IsHandler reports whether h is one of the five content handlers.
func (h HandlerID) IsHandler() bool {
	return h.Rank() < len(handlers)
}

// Valid reports whether h is a handler or the clarification sentinel.
func (h HandlerID) Valid() bool {
	return h.Rank() <= len(handlers)
}

func (h HandlerID) String() string { return string(h) }

// ParseHandlerID converts a raw identifier into a HandlerID.
func ParseHandlerID(s string) (HandlerID, error) {
	h := HandlerID(strings.TrimSpace(strings.ToLower(s)))
	if !h.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownHandler, s)
	}
	return h, nil
}

// Language is the detected or labeled language of a request.
type Language string

const (
	// English is plain Roman-script English, and the default for text
	// without letters.
	English Language = "english"

	// Hindi is Devanagari text, including text that mixes in Roman words.
	Hindi Language = "hindi"

	// Hinglish is Roman-transliterated Hindi, often mixed with English words.
	Hinglish Language = "hinglish"
)

// Languages returns every supported language in a fixed order.
func Languages() []Language {
	return []Language{English, Hindi, Hinglish}
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	switch l {
	case English, Hindi, Hinglish:
		return true
	}
	return false
}

func (l Language) String() string { return string(l) }

// ParseLanguage converts a raw language name into a Language.
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.TrimSpace(strings.ToLower(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
	return l, nil
}

// Method names the scoring strategy that produced a score or decision.
type Method string

const (
	MethodSimilarity Method = "similarity"
	MethodClassifier Method = "classifier"
	// MethodFused marks a clarification reached after consulting both methods.
	MethodFused Method = "fused"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodSimilarity, MethodClassifier, MethodFused:
		return true
	}
	return false
}

// Other returns the opposite scoring method. MethodFused has no opposite.
func (m Method) Other() Method {
	switch m {
	case MethodSimilarity:
		return MethodClassifier
	case MethodClassifier:
		return MethodSimilarity
	}
	return ""
}

// Range returns the closed interval scores of this method fall into.
func (m Method) Range() (lo, hi float64) {
	if m == MethodClassifier {
		return 0, 1
	}
	return -1, 1
}

// InRange reports whether score is finite and inside the method's range.
func (m Method) InRange(score float64) bool {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return false
	}
	lo, hi := m.Range()
	return score >= lo && score <= hi
}

func (m Method) String() string { return string(m) }

// ParseMethod converts a raw method name into a scoring Method.
// Only similarity and classifier are accepted.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.TrimSpace(strings.ToLower(s)))
	switch m {
	case MethodSimilarity, MethodClassifier:
		return m, nil
	}
	return "", fmt.Errorf("unknown routing method %q", s)
}

// ScoredCandidate is one handler scored by one method.
type ScoredCandidate struct {
	Handler HandlerID `json:"handler"`
	Score   float64   `json:"score"`
	Method  Method    `json:"method"`
}

// Decision is the outcome of routing one request.
type Decision struct {
	Selected   HandlerID `json:"selected"`
	Confidence float64   `json:"confidence"`
	Language   Language  `json:"language"`
	Method     Method    `json:"method_used"`
	Reasoning  string    `json:"reasoning"`

	// Top candidates observed per method, nil when the method was not consulted
	// or was unavailable.
	Similarity *ScoredCandidate `json:"similarity,omitempty"`
	Classifier *ScoredCandidate `json:"classifier,omitempty"`
}

// Accepted reports whether the decision selected a content handler.
func (d *Decision) Accepted() bool {
	return d != nil && d.Selected.IsHandler()
}

// Fields returns the decision as structured log fields.
func (d *Decision) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"selected":   string(d.Selected),
		"confidence": d.Confidence,
		"language":   string(d.Language),
		"method":     string(d.Method),
	}
	if d.Similarity != nil {
		fields["similarity_top"] = fmt.Sprintf("%s:%.3f", d.Similarity.Handler, d.Similarity.Score)
	}
	if d.Classifier != nil {
		fields["classifier_top"] = fmt.Sprintf("%s:%.3f", d.Classifier.Handler, d.Classifier.Score)
	}
	return fields
}
