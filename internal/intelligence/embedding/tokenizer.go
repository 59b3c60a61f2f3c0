// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// TokenizedInput represents the tokenized output ready for model inference.
type TokenizedInput struct {
	// InputIDs are the token IDs
	InputIDs []int64

	// AttentionMask indicates which tokens are real (1) vs padding (0)
	AttentionMask []int64

	// TokenTypeIDs are segment IDs (0 for first segment)
	TokenTypeIDs []int64
}

// SimpleTokenizer is a WordPiece tokenizer for BERT-style multilingual models.
// Matching works on runes so Devanagari words split on character boundaries.
type SimpleTokenizer struct {
	vocab map[string]int64

	clsTokenID int64
	sepTokenID int64
	padTokenID int64
	unkTokenID int64
}

// NewSimpleTokenizer creates a tokenizer from a vocabulary file with one
// token per line. An empty path or a missing file falls back to a small
// built-in vocabulary.
//
// Parameters:
//   - vocabPath: Path to the vocabulary file
//
// Returns:
//   - *SimpleTokenizer: A new tokenizer instance
//   - error: Any error encountered while reading the file
func NewSimpleTokenizer(vocabPath string) (*SimpleTokenizer, error) {
	t := &SimpleTokenizer{vocab: make(map[string]int64)}

	if vocabPath == "" {
		t.initMinimalVocab()
		return t, nil
	}

	file, err := os.Open(vocabPath)
	if err != nil {
		log.Warnf("vocabulary %s unavailable, using built-in vocabulary: %v", vocabPath, err)
		t.initMinimalVocab()
		return t, nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var id int64
	for scanner.Scan() {
		t.vocab[scanner.Text()] = id
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading vocabulary: %w", err)
	}

	t.setSpecialTokenIDs()
	return t, nil
}

// initMinimalVocab installs special tokens and a handful of request words.
func (t *SimpleTokenizer) initMinimalVocab() {
	minimalVocab := []string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
		"the", "a", "an", "is", "are", "to", "of", "in", "for", "with",
		"and", "or", "me", "my", "i", "you", "what", "how", "where", "can",
		"tell", "write", "play", "find", "cook", "make", "suggest", "recommend",
		"story", "stories", "poem", "poetry", "song", "songs", "music", "radio",
		"recipe", "food", "restaurant", "restaurants", "dish", "leftover",
		"rice", "dal", "roti", "bread", "old", "near", "nearby", "bedtime", "moral",
		"kahani", "kavita", "gaane", "khana", "batao", "sunao", "karo", "hai", "kya",
		"कहानी", "कविता", "गाने", "गाना", "खाना", "रेस्टोरेंट", "संगीत",
		"##s", "##ed", "##ing", "##er", "##ly", "##na", "##ne", "##o",
	}

	for i, token := range minimalVocab {
		t.vocab[token] = int64(i)
	}
	t.setSpecialTokenIDs()
}

func (t *SimpleTokenizer) setSpecialTokenIDs() {
	if id, ok := t.vocab["[CLS]"]; ok {
		t.clsTokenID = id
	}
	if id, ok := t.vocab["[SEP]"]; ok {
		t.sepTokenID = id
	}
	if id, ok := t.vocab["[PAD]"]; ok {
		t.padTokenID = id
	}
	if id, ok := t.vocab["[UNK]"]; ok {
		t.unkTokenID = id
	}
}

// Tokenize converts text into model input wrapped in [CLS] ... [SEP].
//
// Parameters:
//   - text: The input text to tokenize
//   - maxLength: Maximum sequence length including special tokens
//
// Returns:
//   - *TokenizedInput: The tokenized output
//   - error: Returned when maxLength cannot hold the special tokens
func (t *SimpleTokenizer) Tokenize(text string, maxLength int) (*TokenizedInput, error) {
	if maxLength < 2 {
		return nil, fmt.Errorf("max length %d cannot hold special tokens", maxLength)
	}

	tokens := []int64{t.clsTokenID}
	for _, word := range strings.Fields(t.normalizeText(text)) {
		tokens = append(tokens, t.tokenizeWord(word)...)
		if len(tokens) >= maxLength-1 {
			break
		}
	}
	if len(tokens) > maxLength-1 {
		tokens = tokens[:maxLength-1]
	}
	tokens = append(tokens, t.sepTokenID)

	attentionMask := make([]int64, len(tokens))
	for i := range attentionMask {
		attentionMask[i] = 1
	}

	return &TokenizedInput{
		InputIDs:      tokens,
		AttentionMask: attentionMask,
		TokenTypeIDs:  make([]int64, len(tokens)),
	}, nil
}

// normalizeText lowercases, applies NFC and isolates punctuation.
func (t *SimpleTokenizer) normalizeText(text string) string {
	text = strings.ToLower(norm.NFC.String(text))

	var result strings.Builder
	for _, r := range text {
		if unicode.IsPunct(r) {
			result.WriteRune(' ')
			result.WriteRune(r)
			result.WriteRune(' ')
			continue
		}
		result.WriteRune(r)
	}

	return strings.Join(strings.Fields(result.String()), " ")
}

// tokenizeWord applies greedy longest-match WordPiece to a single word.
func (t *SimpleTokenizer) tokenizeWord(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}

	runes := []rune(word)
	var tokens []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				tokens = append(tokens, id)
				break
			}
		}

		if end == start {
			tokens = append(tokens, t.unkTokenID)
			start++
			continue
		}
		start = end
	}

	if len(tokens) == 0 {
		return []int64{t.unkTokenID}
	}
	return tokens
}

// VocabSize returns the size of the vocabulary.
func (t *SimpleTokenizer) VocabSize() int {
	return len(t.vocab)
}
