// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/intelligence/confidence"
	"github.com/traylinx/bhasharouter/internal/intelligence/embedding"
	ort "github.com/yalue/onnxruntime_go"
)

// DefaultModelName is the fine-tuned multilingual intent classifier.
const DefaultModelName = "bhasha-intent-classifier"

// ONNXConfig configures an ONNX sequence classifier.
type ONNXConfig struct {
	// ModelPath is the path to the ONNX graph with a [1, labels] logits output
	ModelPath string

	// VocabPath is the WordPiece vocabulary of the model
	VocabPath string

	// LabelsPath lists the output labels, one per line, in logit order
	LabelsPath string

	// SharedLibraryPath is the ONNX runtime shared library
	SharedLibraryPath string

	// MaxLength caps the token sequence (default embedding.MaxSequenceLength)
	MaxLength int

	// OutputName is the logits output of the graph (default "logits")
	OutputName string
}

// ONNXClassifier runs a BERT-style sequence classification model and applies
// softmax to its logits.
type ONNXClassifier struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *embedding.SimpleTokenizer
	labels    []string
	maxLength int

	mu      sync.RWMutex
	enabled bool
}

// NewONNXClassifier loads the labels, the vocabulary and the model.
//
// Parameters:
//   - cfg: Model locations and options
//
// Returns:
//   - *ONNXClassifier: A ready classifier
//   - error: Any error encountered while loading
func NewONNXClassifier(cfg ONNXConfig) (*ONNXClassifier, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if cfg.MaxLength <= 2 {
		cfg.MaxLength = embedding.MaxSequenceLength
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "logits"
	}

	labels, err := ReadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if err := embedding.InitRuntime(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{cfg.OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load ONNX model: %w", err)
	}

	tokenizer, err := embedding.NewSimpleTokenizer(cfg.VocabPath)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}

	log.Infof("Intent classifier initialized with model %s (%d labels)", filepath.Base(filepath.Dir(cfg.ModelPath)), len(labels))
	return &ONNXClassifier{
		session:   session,
		tokenizer: tokenizer,
		labels:    labels,
		maxLength: cfg.MaxLength,
		enabled:   true,
	}, nil
}

// ReadLabels reads a label file with one label per line. Blank lines are
// skipped.
func ReadLabels(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("labels path is required")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer file.Close()

	var labels []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		l := strings.TrimSpace(scanner.Text())
		if l == "" {
			continue
		}
		if seen[l] {
			return nil, fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
		labels = append(labels, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels in %s", path)
	}
	return labels, nil
}

// Labels returns the output labels in logit order.
func (c *ONNXClassifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Classify returns the softmax distribution over the labels.
func (c *ONNXClassifier) Classify(ctx context.Context, text string) (confidence.Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.enabled {
		return nil, fmt.Errorf("intent classifier shut down")
	}

	tokens, err := c.tokenizer.Tokenize(text, c.maxLength)
	if err != nil {
		return nil, fmt.Errorf("tokenization failed: %w", err)
	}

	shape := ort.NewShape(1, int64(len(tokens.InputIDs)))
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

	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(c.labels))))
	if err != nil {
		return nil, fmt.Errorf("failed to create logits tensor: %w", err)
	}
	defer logits.Destroy()

	if err := c.session.Run(
		[]ort.Value{inputIDs, attentionMask, tokenTypeIDs},
		[]ort.Value{logits},
	); err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}

	return confidence.Softmax(c.labels, logits.GetData())
}

// Shutdown releases the session.
func (c *ONNXClassifier) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return nil
	}
	c.enabled = false
	if err := c.session.Destroy(); err != nil {
		return fmt.Errorf("failed to destroy classifier session: %w", err)
	}
	log.Info("Intent classifier shut down")
	return nil
}
