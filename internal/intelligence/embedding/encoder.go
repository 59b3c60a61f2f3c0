// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package embedding turns request text into fixed-length vectors for
// similarity routing. It ships an ONNX sentence encoder and a dependency-free
// character n-gram encoder behind one Encoder interface.
package embedding

import (
	"context"
	"math"
)

// Encoder maps text to a fixed-length vector.
// Implementations must be safe for concurrent use.
type Encoder interface {
	// Encode returns the embedding of text. The returned slice has
	// Dimension() elements and must not be modified by the caller.
	Encode(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector length produced by Encode.
	Dimension() int
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths, empty input and zero vectors yield 0.
//
// Parameters:
//   - a: First embedding vector
//   - b: Second embedding vector
//
// Returns:
//   - float64: Cosine similarity score (-1.0 to 1.0)
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim))
}

// Normalize applies L2 normalization in place and returns v.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	if norm > 0 {
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
	}
	return v
}

// Finite reports whether every component of v is a finite number.
func Finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
