// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evaluation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/bhasharouter/internal/routing"
)

var (
	shippedCorpus  = filepath.Join("..", "..", "..", "data", "corpus.yaml")
	extendedCorpus = filepath.Join("..", "..", "..", "data", "corpus_extended.yaml")
)

func TestLoadShippedCorpus(t *testing.T) {
	cases, err := LoadCorpus(shippedCorpus)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(cases), 25)

	seen := map[routing.HandlerID]int{}
	langs := map[routing.Language]int{}
	for i, tc := range cases {
		assert.NoError(t, tc.Validate(), "case %d", i)
		seen[tc.ExpectedHandler]++
		langs[tc.ExpectedLanguage]++
	}
	for _, h := range routing.Outcomes() {
		assert.Positive(t, seen[h], "no case expects %s", h)
	}
	for _, l := range routing.Languages() {
		assert.Positive(t, langs[l], "no case in %s", l)
	}
	assert.Equal(t, "Ghar mein sirf chawal aur dal hai, kuch recipe batao", cases[1].Input)
}

func TestLoadExtendedCorpus(t *testing.T) {
	cases, err := LoadCorpus(extendedCorpus)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(cases), 500)

	seen := map[string]bool{}
	perHandler := map[routing.HandlerID]int{}
	for i, tc := range cases {
		require.NoError(t, tc.Validate(), "case %d", i)
		assert.False(t, seen[tc.Input], "duplicate input %q", tc.Input)
		seen[tc.Input] = true
		perHandler[tc.ExpectedHandler]++

		var devanagari, roman bool
		for _, r := range tc.Input {
			switch {
			case unicode.Is(unicode.Devanagari, r):
				devanagari = true
			case r <= unicode.MaxLatin1 && unicode.IsLetter(r):
				roman = true
			}
		}
		if devanagari && roman {
			assert.Equal(t, routing.Hindi, tc.ExpectedLanguage, "mixed script case %d %q", i, tc.Input)
		}
	}
	for _, h := range routing.Handlers() {
		assert.GreaterOrEqual(t, perHandler[h], 90, "too few cases for %s", h)
	}

	heldOut, err := Filter(cases, `Index >= 80`)
	require.NoError(t, err)
	assert.Len(t, heldOut, len(cases)-80)
}

func TestParseCorpus(t *testing.T) {
	cases, err := ParseCorpus([]byte(`
cases:
  - input: "Tell me a bedtime story"
    expected_handler: nani_kahaniyan
    expected_language: english
    min_confidence: 0.5
  - input: "Music"
    expected_handler: clarification_needed
    expected_language: english
`))
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, routing.HandlerStory, cases[0].ExpectedHandler)
	assert.Equal(t, 0.5, cases[0].MinConfidence)
	assert.Equal(t, routing.NeedsClarification, cases[1].ExpectedHandler)

	_, err = ParseCorpus([]byte("cases: []"))
	assert.Error(t, err)
	_, err = ParseCorpus([]byte("cases: [oops"))
	assert.Error(t, err)

	_, err = LoadCorpus(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseCorpusKeepsMalformedCases(t *testing.T) {
	cases, err := ParseCorpus([]byte(`
cases:
  - input: "Tell me a bedtime story"
    expected_handler: nani_kahaniyan
    expected_language: english
    min_confidence: 0.5
  - input: "Write a beautiful poem"
    expected_handler: poem_generator
    expected_language: english
    min_confidence: high
  - just a string
  - input: "Good restaurants near me"
    expected_handler: food_locator
    expected_language: english
`))
	require.NoError(t, err)
	require.Len(t, cases, 4)

	assert.NoError(t, cases[0].Validate())
	assert.NoError(t, cases[3].Validate())

	assert.Equal(t, "Write a beautiful poem", cases[1].Input)
	err = cases[1].Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCase)
	assert.Contains(t, err.Error(), "line 7")

	assert.Equal(t, "just a string", cases[2].Input)
	err = cases[2].Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCase)
	assert.Contains(t, err.Error(), "not a mapping")
}

func TestTestCaseValidate(t *testing.T) {
	ok := TestCase{Input: "x", ExpectedHandler: routing.HandlerPoem, ExpectedLanguage: routing.Hindi, MinConfidence: 0.4}
	assert.NoError(t, ok.Validate())

	tests := []struct {
		name   string
		mutate func(*TestCase)
		want   error
	}{
		{"unknown handler", func(tc *TestCase) { tc.ExpectedHandler = "weather" }, routing.ErrUnknownHandler},
		{"case sensitive handler", func(tc *TestCase) { tc.ExpectedHandler = "Poem_Generator" }, routing.ErrUnknownHandler},
		{"unknown language", func(tc *TestCase) { tc.ExpectedLanguage = "bengali" }, routing.ErrUnknownLanguage},
		{"confidence too high", func(tc *TestCase) { tc.MinConfidence = 1.5 }, ErrInvalidCase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := ok
			tt.mutate(&tc)
			err := tc.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.True(t, errors.Is(err, ErrInvalidCase))
		})
	}

	ce := &CaseError{Index: 3, Input: "x", Err: ErrInvalidCase}
	assert.ErrorIs(t, ce, ErrInvalidCase)
	assert.Contains(t, ce.Error(), "case 3")
}

func TestFilter(t *testing.T) {
	cases, err := LoadCorpus(shippedCorpus)
	require.NoError(t, err)

	all, err := Filter(cases, "  ")
	require.NoError(t, err)
	assert.Len(t, all, len(cases))

	hinglish, err := Filter(cases, `ExpectedLanguage == "hinglish" && ExpectedHandler != "food_locator"`)
	require.NoError(t, err)
	require.NotEmpty(t, hinglish)
	for _, tc := range hinglish {
		assert.Equal(t, routing.Hinglish, tc.ExpectedLanguage)
		assert.NotEqual(t, routing.HandlerRestaurant, tc.ExpectedHandler)
	}

	stories, err := Filter(cases, `Input contains "story" or Input contains "kahani"`)
	require.NoError(t, err)
	assert.NotEmpty(t, stories)

	tail, err := Filter(cases, `Index >= 20`)
	require.NoError(t, err)
	require.Len(t, tail, len(cases)-20)
	assert.Equal(t, cases[20].Input, tail[0].Input)

	_, err = Filter(cases, `ExpectedHandler +`)
	assert.Error(t, err)
	_, err = Filter(cases, `len(Input)`)
	assert.Error(t, err, "non-boolean expressions are rejected")
}

func TestCorpusProvenanceOutsideRepository(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cases: []\n"), 0o600))

	p, err := CorpusProvenance(path)
	require.NoError(t, err)
	assert.Len(t, p.CorpusSHA256, 64)
	assert.Empty(t, p.Commit)

	_, err = CorpusProvenance(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
