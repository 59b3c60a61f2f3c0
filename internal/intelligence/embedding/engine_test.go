// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantDim   int
		wantErr   bool
		errSubstr string
	}{
		{
			name:    "valid config",
			cfg:     Config{ModelPath: "/path/to/model.onnx", VocabPath: "/path/to/vocab.txt"},
			wantDim: EmbeddingDimension,
		},
		{
			name:    "custom dimension",
			cfg:     Config{ModelPath: "/path/to/model.onnx", Dimension: 768},
			wantDim: 768,
		},
		{
			name:      "missing model path",
			cfg:       Config{VocabPath: "/path/to/vocab.txt"},
			wantErr:   true,
			errSubstr: "model path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, engine.Dimension())
			assert.Equal(t, MaxSequenceLength, engine.maxLength)
		})
	}
}

func TestEngineNotInitialized(t *testing.T) {
	engine, err := NewEngine(Config{ModelPath: "/path/to/model.onnx"})
	require.NoError(t, err)

	_, err = engine.Encode(context.Background(), "test text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")

	_, err = engine.EncodeBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)

	assert.False(t, engine.IsEnabled())
	assert.NoError(t, engine.Shutdown())
}

func TestEngineEncodeCancelled(t *testing.T) {
	engine, err := NewEngine(Config{ModelPath: "/path/to/model.onnx"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Encode(ctx, "kahani")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineInitializeMissingModel(t *testing.T) {
	engine, err := NewEngine(Config{ModelPath: "/nonexistent/model.onnx"})
	require.NoError(t, err)

	err = engine.Initialize("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")
}

func TestEncodeBatchEmpty(t *testing.T) {
	engine, err := NewEngine(Config{ModelPath: "/path/to/model.onnx"})
	require.NoError(t, err)

	result, err := engine.EncodeBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, result)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"similar vectors", []float32{1, 1, 0}, []float32{1, 0, 0}, 0.7071},
		{"empty vectors", []float32{}, []float32{}, 0.0},
		{"different length vectors", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestMeanPooling(t *testing.T) {
	tests := []struct {
		name          string
		output        []float32
		attentionMask []int64
		seqLen        int
		expected      []float32
	}{
		{
			name:          "all tokens attended",
			output:        []float32{1, 2, 3, 4, 5, 6},
			attentionMask: []int64{1, 1},
			seqLen:        2,
			expected:      []float32{2.5, 3.5, 4.5},
		},
		{
			name:          "partial attention",
			output:        []float32{1, 2, 3, 4, 5, 6},
			attentionMask: []int64{1, 0},
			seqLen:        2,
			expected:      []float32{1, 2, 3},
		},
		{
			name:          "nothing attended",
			output:        []float32{1, 2, 3},
			attentionMask: []int64{0},
			seqLen:        1,
			expected:      []float32{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := meanPooling(tt.output, tt.attentionMask, tt.seqLen, 3)
			require.Len(t, result, len(tt.expected))
			for i := range tt.expected {
				assert.InDelta(t, tt.expected[i], result[i], 0.0001)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{"unit vector", []float32{1, 0, 0}, []float32{1, 0, 0}},
		{"non-unit vector", []float32{3, 4, 0}, []float32{0.6, 0.8, 0}},
		{"zero vector", []float32{0, 0, 0}, []float32{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(tt.input)
			for i := range tt.expected {
				assert.InDelta(t, tt.expected[i], result[i], 0.0001)
			}
		})
	}
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite([]float32{0, 1, -1}))
	assert.True(t, Finite(nil))
	assert.False(t, Finite([]float32{0, float32(math.NaN())}))
	assert.False(t, Finite([]float32{float32(math.Inf(-1))}))
}

// TestIntegration runs the full pipeline when a local model and runtime exist.
func TestIntegration(t *testing.T) {
	locator := NewModelLocator("")
	if !locator.ModelExists(DefaultModelName) {
		t.Skip("Embedding model not available under " + locator.BaseDir)
	}
	sharedLibPath := locator.SharedLibraryPath()
	if sharedLibPath == "" {
		t.Skip("ONNX runtime shared library not found.")
	}

	engine, err := NewEngine(Config{
		ModelPath: locator.ModelPath(DefaultModelName),
		VocabPath: locator.VocabPath(DefaultModelName),
	})
	require.NoError(t, err)
	require.NoError(t, engine.Initialize(sharedLibPath))
	defer engine.Shutdown()

	ctx := context.Background()
	story, err := engine.Encode(ctx, "Tell me a bedtime story")
	require.NoError(t, err)
	assert.Len(t, story, EmbeddingDimension)

	hindiStory, err := engine.Encode(ctx, "मुझे एक कहानी सुनाओ")
	require.NoError(t, err)
	food, err := engine.Encode(ctx, "Good restaurants near me")
	require.NoError(t, err)

	assert.Greater(t, CosineSimilarity(story, hindiStory), CosineSimilarity(story, food))
}
