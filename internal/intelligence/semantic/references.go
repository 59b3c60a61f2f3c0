// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package semantic ranks handlers by embedding similarity between a request
// and each handler's reference phrases.
package semantic

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/intelligence/embedding"
	"github.com/traylinx/bhasharouter/internal/routing"
)

// HandlerPhrases lists the reference phrases of one handler, grouped by the
// language they are written in.
type HandlerPhrases struct {
	Handler  routing.HandlerID `yaml:"handler" json:"handler"`
	English  []string          `yaml:"english" json:"english"`
	Hindi    []string          `yaml:"hindi" json:"hindi"`
	Hinglish []string          `yaml:"hinglish" json:"hinglish"`
}

// ReferenceFile is the structure of the references.yaml file.
type ReferenceFile struct {
	References []HandlerPhrases `yaml:"references" json:"references"`
}

// Phrase is a single reference phrase ready to be encoded.
type Phrase struct {
	Handler  routing.HandlerID
	Language routing.Language
	Text     string
}

// LoadReferenceFile reads and validates a references.yaml file.
//
// Parameters:
//   - path: Path to the reference phrase file
//
// Returns:
//   - *ReferenceFile: The parsed file
//   - error: Read, parse or validation failure
func LoadReferenceFile(path string) (*ReferenceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference file: %w", err)
	}

	var rf ReferenceFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse reference file: %w", err)
	}
	if _, err := rf.Phrases(); err != nil {
		return nil, fmt.Errorf("invalid reference file %s: %w", path, err)
	}
	return &rf, nil
}

// Phrases flattens the file into encodable phrases in file order.
// Blank phrases are dropped; unknown handlers and the clarification sentinel
// are rejected.
func (rf *ReferenceFile) Phrases() ([]Phrase, error) {
	var out []Phrase
	for _, hp := range rf.References {
		if !hp.Handler.IsHandler() {
			return nil, fmt.Errorf("%w: %q", routing.ErrUnknownHandler, hp.Handler)
		}
		groups := []struct {
			lang  routing.Language
			texts []string
		}{
			{routing.English, hp.English},
			{routing.Hindi, hp.Hindi},
			{routing.Hinglish, hp.Hinglish},
		}
		for _, g := range groups {
			for _, text := range g.texts {
				text = strings.TrimSpace(text)
				if text == "" {
					continue
				}
				out = append(out, Phrase{Handler: hp.Handler, Language: g.lang, Text: text})
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no reference phrases found")
	}
	return out, nil
}

// Reference is one encoded reference phrase.
type Reference struct {
	Text     string           `json:"text"`
	Language routing.Language `json:"language"`
	Vector   []float32        `json:"-"`
}

// ReferenceTable maps each handler to its encoded reference phrases.
// It is read-only after construction and safe for concurrent use.
type ReferenceTable struct {
	dim  int
	refs map[routing.HandlerID][]Reference
}

// NewReferenceTable assembles a table from already encoded references.
// Every vector must have length dim and finite components.
func NewReferenceTable(dim int, refs map[routing.HandlerID][]Reference) (*ReferenceTable, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("reference dimension must be positive, got %d", dim)
	}

	t := &ReferenceTable{dim: dim, refs: make(map[routing.HandlerID][]Reference, len(refs))}
	for h, rs := range refs {
		if !h.IsHandler() {
			return nil, fmt.Errorf("%w: %q", routing.ErrUnknownHandler, h)
		}
		for _, r := range rs {
			if err := t.add(h, r); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

// BuildReferenceTable encodes every phrase with enc. Any encoding failure
// aborts the build.
//
// Parameters:
//   - ctx: Context for the encoder calls
//   - enc: The encoder used for requests at routing time
//   - phrases: Phrases to encode
//
// Returns:
//   - *ReferenceTable: The encoded table
//   - error: Encoding or validation failure
func BuildReferenceTable(ctx context.Context, enc embedding.Encoder, phrases []Phrase) (*ReferenceTable, error) {
	t := &ReferenceTable{dim: enc.Dimension(), refs: make(map[routing.HandlerID][]Reference)}

	for _, p := range phrases {
		if !p.Handler.IsHandler() {
			return nil, fmt.Errorf("%w: %q", routing.ErrUnknownHandler, p.Handler)
		}
		v, err := enc.Encode(ctx, p.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to encode reference %q for %s: %w", p.Text, p.Handler, err)
		}
		if err := t.add(p.Handler, Reference{Text: p.Text, Language: p.Language, Vector: v}); err != nil {
			return nil, err
		}
	}

	log.Infof("Reference table built: %d phrases across %d handlers (dimension %d)", t.Size(), len(t.refs), t.dim)
	return t, nil
}

func (t *ReferenceTable) add(h routing.HandlerID, r Reference) error {
	if len(r.Vector) != t.dim {
		return fmt.Errorf("reference %q for %s has dimension %d, want %d", r.Text, h, len(r.Vector), t.dim)
	}
	if !embedding.Finite(r.Vector) {
		return fmt.Errorf("reference %q for %s has non-finite components", r.Text, h)
	}
	v := make([]float32, len(r.Vector))
	copy(v, r.Vector)
	r.Vector = v
	t.refs[h] = append(t.refs[h], r)
	return nil
}

// Dimension returns the vector length of every reference.
func (t *ReferenceTable) Dimension() int {
	return t.dim
}

// References returns the references of handler h. The slice must not be modified.
func (t *ReferenceTable) References(h routing.HandlerID) []Reference {
	return t.refs[h]
}

// Size returns the total number of references.
func (t *ReferenceTable) Size() int {
	n := 0
	for _, rs := range t.refs {
		n += len(rs)
	}
	return n
}
