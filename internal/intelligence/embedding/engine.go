// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// DefaultModelName is the multilingual sentence encoder used for
	// English, Hindi and Hinglish requests.
	DefaultModelName = "paraphrase-multilingual-MiniLM-L12-v2"

	// EmbeddingDimension is the output dimension of the MiniLM family.
	EmbeddingDimension = 384

	// MaxSequenceLength is the maximum input sequence length.
	MaxSequenceLength = 128

	defaultOutputName = "last_hidden_state"
)

// Engine is the ONNX sentence encoder. It runs a BERT-style model, mean-pools
// the token states under the attention mask and L2-normalizes the result.
type Engine struct {
	// session is the ONNX runtime session
	session *ort.DynamicAdvancedSession

	modelPath  string
	vocabPath  string
	outputName string

	tokenizer *SimpleTokenizer
	dimension int
	maxLength int
	enabled   bool

	// mu guards session lifetime; inference only takes the read lock
	mu sync.RWMutex
}

// Config holds configuration for the embedding engine.
type Config struct {
	// ModelPath is the path to the ONNX model file
	ModelPath string

	// VocabPath is the path to the WordPiece vocabulary file
	VocabPath string

	// SharedLibraryPath is the path to the ONNX runtime shared library
	SharedLibraryPath string

	// Dimension overrides EmbeddingDimension for other encoder families
	Dimension int

	// MaxLength overrides MaxSequenceLength
	MaxLength int

	// OutputName is the token-state output of the graph
	OutputName string
}

// NewEngine creates a new embedding engine with the given configuration.
// The engine is not usable until Initialize() is called.
//
// Parameters:
//   - cfg: Configuration for the engine
//
// Returns:
//   - *Engine: A new engine instance
//   - error: Any error encountered during creation
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = EmbeddingDimension
	}
	if cfg.MaxLength <= 2 {
		cfg.MaxLength = MaxSequenceLength
	}
	if cfg.OutputName == "" {
		cfg.OutputName = defaultOutputName
	}

	return &Engine{
		modelPath:  cfg.ModelPath,
		vocabPath:  cfg.VocabPath,
		outputName: cfg.OutputName,
		dimension:  cfg.Dimension,
		maxLength:  cfg.MaxLength,
	}, nil
}

// Initialize loads the ONNX model and the vocabulary.
//
// Parameters:
//   - sharedLibPath: Path to the ONNX runtime shared library
//
// Returns:
//   - error: Any error encountered during initialization
func (e *Engine) Initialize(sharedLibPath string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.enabled {
		return nil
	}
	if _, err := os.Stat(e.modelPath); err != nil {
		return fmt.Errorf("model file not found: %s", e.modelPath)
	}
	if err := InitRuntime(sharedLibPath); err != nil {
		return err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		e.modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{e.outputName},
		options,
	)
	if err != nil {
		return fmt.Errorf("failed to load ONNX model: %w", err)
	}

	tokenizer, err := NewSimpleTokenizer(e.vocabPath)
	if err != nil {
		session.Destroy()
		return fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	e.session = session
	e.tokenizer = tokenizer
	e.enabled = true
	log.Infof("Embedding engine initialized with model: %s", filepath.Base(filepath.Dir(e.modelPath)))

	return nil
}

// IsEnabled returns whether the engine is ready for inference.
func (e *Engine) IsEnabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// Dimension returns the embedding output dimension.
func (e *Engine) Dimension() int {
	return e.dimension
}

// Encode computes the normalized embedding of text.
//
// Parameters:
//   - ctx: Checked before inference starts; a running session call is not interrupted
//   - text: The input text to embed
//
// Returns:
//   - []float32: The embedding vector
//   - error: Any error encountered during embedding
func (e *Engine) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.enabled {
		return nil, fmt.Errorf("embedding engine not initialized")
	}

	tokens, err := e.tokenizer.Tokenize(text, e.maxLength)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}

	embedding, err := e.runInference(tokens)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return embedding, nil
}

// EncodeBatch computes embeddings for several texts, stopping at the first
// failure or when ctx is done.
func (e *Engine) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Encode(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings[i] = v
	}
	return embeddings, nil
}

// runInference executes the model. Must be called with the read lock held.
func (e *Engine) runInference(tokens *TokenizedInput) ([]float32, error) {
	seqLen := int64(len(tokens.InputIDs))
	shape := ort.NewShape(1, seqLen)

	inputIDs, err := ort.NewTensor(shape, tokens.InputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer inputIDs.Destroy()

	attentionMask, err := ort.NewTensor(shape, tokens.AttentionMask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer attentionMask.Destroy()

	tokenTypeIDs, err := ort.NewTensor(shape, tokens.TokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	defer tokenTypeIDs.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, seqLen, int64(e.dimension)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer output.Destroy()

	err = e.session.Run(
		[]ort.Value{inputIDs, attentionMask, tokenTypeIDs},
		[]ort.Value{output},
	)
	if err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}

	pooled := meanPooling(output.GetData(), tokens.AttentionMask, int(seqLen), e.dimension)
	return Normalize(pooled), nil
}

// meanPooling averages token states weighted by the attention mask.
func meanPooling(output []float32, attentionMask []int64, seqLen, dim int) []float32 {
	embedding := make([]float32, dim)
	var totalWeight float32

	for i := 0; i < seqLen; i++ {
		if attentionMask[i] != 1 {
			continue
		}
		for j := 0; j < dim; j++ {
			embedding[j] += output[i*dim+j]
		}
		totalWeight++
	}

	if totalWeight > 0 {
		for j := range embedding {
			embedding[j] /= totalWeight
		}
	}
	return embedding
}

// Shutdown releases the session. The shared runtime stays up for other users.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return nil
	}
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			log.Warnf("failed to destroy embedding session: %v", err)
		}
		e.session = nil
	}

	e.enabled = false
	log.Info("Embedding engine shut down")
	return nil
}
