// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evaluation

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/traylinx/bhasharouter/internal/routing"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCase marks a corpus entry that cannot be evaluated.
var ErrInvalidCase = errors.New("invalid test case")

// TestCase is one labeled request of the evaluation corpus.
type TestCase struct {
	Input            string            `yaml:"input" json:"input"`
	ExpectedHandler  routing.HandlerID `yaml:"expected_handler" json:"expected_handler"`
	ExpectedLanguage routing.Language  `yaml:"expected_language" json:"expected_language"`
	// MinConfidence is the lowest confidence at which a correct decision is
	// considered comfortable. It is reported, never used to mark a case wrong.
	MinConfidence float64 `yaml:"min_confidence" json:"min_confidence"`
	Description   string  `yaml:"description,omitempty" json:"description,omitempty"`

	// decodeErr records a YAML type error for this entry alone.
	decodeErr error
}

// Validate checks the handler, the language and the minimum confidence.
func (tc TestCase) Validate() error {
	if tc.decodeErr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCase, tc.decodeErr)
	}
	if !tc.ExpectedHandler.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidCase, routing.ErrUnknownHandler, tc.ExpectedHandler)
	}
	if !tc.ExpectedLanguage.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidCase, routing.ErrUnknownLanguage, tc.ExpectedLanguage)
	}
	if math.IsNaN(tc.MinConfidence) || math.IsInf(tc.MinConfidence, 0) {
		return fmt.Errorf("%w: min_confidence is not finite", ErrInvalidCase)
	}
	if tc.MinConfidence < -1 || tc.MinConfidence > 1 {
		return fmt.Errorf("%w: min_confidence %v outside [-1, 1]", ErrInvalidCase, tc.MinConfidence)
	}
	return nil
}

// CaseError reports a corpus entry excluded from the metrics.
type CaseError struct {
	Index int
	Input string
	Err   error
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("case %d (%q): %v", e.Index, e.Input, e.Err)
}

func (e *CaseError) Unwrap() error {
	return e.Err
}

// corpusFile is the YAML layout of a corpus. Cases are decoded one by one
// so a malformed entry does not discard the rest.
type corpusFile struct {
	Cases []yaml.Node `yaml:"cases"`
}

// LoadCorpus reads a YAML corpus. Entries are returned in file order without
// validation; Evaluate reports invalid entries individually.
func LoadCorpus(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	return ParseCorpus(data)
}

// ParseCorpus decodes corpus YAML. An entry that does not decode into a
// TestCase is kept with its decode error, which Validate reports, so the
// harness lists it as invalid instead of failing the whole corpus.
func ParseCorpus(data []byte) ([]TestCase, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}
	if len(f.Cases) == 0 {
		return nil, fmt.Errorf("corpus has no cases")
	}

	cases := make([]TestCase, len(f.Cases))
	for i := range f.Cases {
		cases[i] = decodeCase(&f.Cases[i])
	}
	return cases, nil
}

func decodeCase(node *yaml.Node) TestCase {
	if node.Kind != yaml.MappingNode {
		return TestCase{
			Input:     node.Value,
			decodeErr: fmt.Errorf("line %d: case is not a mapping", node.Line),
		}
	}
	var tc TestCase
	if err := node.Decode(&tc); err != nil {
		tc.decodeErr = fmt.Errorf("line %d: %w", node.Line, err)
	}
	return tc
}

// filterEnv is the expression environment of Filter.
type filterEnv struct {
	Index            int
	Input            string
	ExpectedHandler  string
	ExpectedLanguage string
	MinConfidence    float64
	Description      string
}

// Filter returns the cases for which expression evaluates to true, e.g.
// `ExpectedLanguage == "hinglish" && ExpectedHandler != "food_locator"`.
// Index is the position of the case in the corpus, so `Index >= 80` selects
// a held-out tail. An empty expression returns cases unchanged.
func Filter(cases []TestCase, expression string) ([]TestCase, error) {
	if strings.TrimSpace(expression) == "" {
		return cases, nil
	}
	program, err := expr.Compile(expression, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}

	out := make([]TestCase, 0, len(cases))
	for i, tc := range cases {
		ok, err := matches(program, i, tc)
		if err != nil {
			return nil, fmt.Errorf("filter failed on %q: %w", tc.Input, err)
		}
		if ok {
			out = append(out, tc)
		}
	}
	return out, nil
}

func matches(program *vm.Program, index int, tc TestCase) (bool, error) {
	res, err := expr.Run(program, filterEnv{
		Index:            index,
		Input:            tc.Input,
		ExpectedHandler:  string(tc.ExpectedHandler),
		ExpectedLanguage: string(tc.ExpectedLanguage),
		MinConfidence:    tc.MinConfidence,
		Description:      tc.Description,
	})
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}
