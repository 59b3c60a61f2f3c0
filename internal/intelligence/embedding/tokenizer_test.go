// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokenizer, err := NewSimpleTokenizer("")
	require.NoError(t, err)

	tests := []struct {
		name      string
		text      string
		maxLength int
	}{
		{"english", "Tell me a bedtime story", 128},
		{"empty", "", 128},
		{"hinglish", "Ghar mein sirf chawal aur dal hai", 128},
		{"devanagari", "कोई कहानी सुनाइए", 128},
		{"punctuation", "Music, please!", 128},
		{"truncated", strings.Repeat("story ", 100), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tokenizer.Tokenize(tt.text, tt.maxLength)
			require.NoError(t, err)

			n := len(result.InputIDs)
			assert.Equal(t, n, len(result.AttentionMask))
			assert.Equal(t, n, len(result.TokenTypeIDs))
			assert.LessOrEqual(t, n, tt.maxLength)
			assert.Equal(t, tokenizer.clsTokenID, result.InputIDs[0])
			assert.Equal(t, tokenizer.sepTokenID, result.InputIDs[n-1])

			for i := range result.AttentionMask {
				assert.Equal(t, int64(1), result.AttentionMask[i])
				assert.Equal(t, int64(0), result.TokenTypeIDs[i])
			}
		})
	}

	_, err = tokenizer.Tokenize("story", 1)
	assert.Error(t, err)
}

func TestTokenizeWord(t *testing.T) {
	tokenizer, err := NewSimpleTokenizer("")
	require.NoError(t, err)

	assert.Equal(t, []int64{tokenizer.vocab["story"]}, tokenizer.tokenizeWord("story"))
	assert.Equal(t, []int64{tokenizer.vocab["कहानी"]}, tokenizer.tokenizeWord("कहानी"))

	// "songs" is in the vocabulary; "poems" splits into poem + ##s
	assert.Equal(t, []int64{tokenizer.vocab["poem"], tokenizer.vocab["##s"]}, tokenizer.tokenizeWord("poems"))

	for _, id := range tokenizer.tokenizeWord("zzz") {
		assert.Equal(t, tokenizer.unkTokenID, id)
	}
}

func TestNormalizeText(t *testing.T) {
	tokenizer, err := NewSimpleTokenizer("")
	require.NoError(t, err)

	assert.Equal(t, "hello world", tokenizer.normalizeText("  Hello    World  "))
	assert.Equal(t, "music , please !", tokenizer.normalizeText("Music,please!"))
	assert.Equal(t, "गाने बताइए ।", tokenizer.normalizeText("गाने बताइए।"))
}

func TestVocabularyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("[PAD]\n[UNK]\n[CLS]\n[SEP]\nkahani\n"), 0o644))

	tokenizer, err := NewSimpleTokenizer(path)
	require.NoError(t, err)
	assert.Equal(t, 5, tokenizer.VocabSize())
	assert.Equal(t, int64(2), tokenizer.clsTokenID)
	assert.Equal(t, int64(3), tokenizer.sepTokenID)
	assert.Equal(t, []int64{4}, tokenizer.tokenizeWord("kahani"))

	missing, err := NewSimpleTokenizer(filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	assert.Greater(t, missing.VocabSize(), 5)
}
