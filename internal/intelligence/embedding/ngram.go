// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultNgramDimension is the bucket count of the hashing encoder.
	DefaultNgramDimension = 512

	defaultMinN = 2
	defaultMaxN = 4
)

// NgramEncoder is a model-free encoder that hashes whole words and
// boundary-padded character n-grams into signed buckets. Transliteration
// variants such as "achha" and "accha" share most of their n-grams, which
// keeps Hinglish spellings close without a trained model.
type NgramEncoder struct {
	dim  int
	minN int
	maxN int
}

// NewNgramEncoder creates a hashing encoder. Non-positive arguments fall
// back to defaults.
func NewNgramEncoder(dim, minN, maxN int) *NgramEncoder {
	if dim <= 0 {
		dim = DefaultNgramDimension
	}
	if minN <= 0 {
		minN = defaultMinN
	}
	if maxN < minN {
		maxN = max(minN, defaultMaxN)
	}
	return &NgramEncoder{dim: dim, minN: minN, maxN: maxN}
}

// Dimension returns the vector length.
func (e *NgramEncoder) Dimension() int {
	return e.dim
}

// Encode hashes text into an L2-normalized vector. Text without any word
// yields the zero vector.
func (e *NgramEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := make([]float32, e.dim)
	text = strings.ToLower(norm.NFC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})

	for _, w := range words {
		e.add(v, "w:"+w)

		padded := []rune("<" + w + ">")
		for n := e.minN; n <= e.maxN; n++ {
			for i := 0; i+n <= len(padded); i++ {
				e.add(v, string(padded[i:i+n]))
			}
		}
	}

	return Normalize(v), nil
}

func (e *NgramEncoder) add(v []float32, feature string) {
	h := fnv.New32a()
	h.Write([]byte(feature))
	sum := h.Sum32()

	idx := int(sum % uint32(e.dim))
	if sum&(1<<31) != 0 {
		v[idx]--
		return
	}
	v[idx]++
}
