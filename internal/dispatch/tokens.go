// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tiktoken-go/tokenizer"
)

// TokenBudget truncates forwarded queries to a token limit.
type TokenBudget struct {
	// max is the token limit, 0 disables truncation.
	max   int
	codec tokenizer.Codec
}

// NewTokenBudget creates a budget of max cl100k tokens. If the encoding cannot
// be loaded the budget falls back to a words * 1.3 estimate.
func NewTokenBudget(max int) *TokenBudget {
	b := &TokenBudget{max: max}
	if max <= 0 {
		return b
	}
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.Warnf("tiktoken unavailable, using word estimate: %v", err)
		return b
	}
	b.codec = codec
	return b
}

// Count returns the number of tokens in text.
func (b *TokenBudget) Count(text string) int {
	if text == "" {
		return 0
	}
	if b.codec != nil {
		ids, _, err := b.codec.Encode(text)
		if err == nil {
			return len(ids)
		}
	}
	return int(float64(len(strings.Fields(text))) * 1.3)
}

// Truncate returns text cut to the budget and whether it was cut.
func (b *TokenBudget) Truncate(text string) (string, bool) {
	if b.max <= 0 || text == "" {
		return text, false
	}
	if b.codec == nil {
		words := strings.Fields(text)
		limit := int(float64(b.max) / 1.3)
		if len(words) <= limit {
			return text, false
		}
		return strings.Join(words[:limit], " "), true
	}

	ids, _, err := b.codec.Encode(text)
	if err != nil || len(ids) <= b.max {
		return text, false
	}
	out, err := b.codec.Decode(ids[:b.max])
	if err != nil {
		return text, false
	}
	// a cut inside a multi-byte rune leaves a partial sequence
	return strings.ToValidUTF8(out, ""), true
}
