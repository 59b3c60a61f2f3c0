// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package language classifies request text as English, Hindi or Hinglish
// using script and lexical heuristics.
package language

import (
	"strings"
	"unicode"

	"github.com/traylinx/bhasharouter/internal/routing"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultDevanagariRatio is the fraction of Devanagari runes above which
	// text is Hindi.
	DefaultDevanagariRatio = 0.30

	// DefaultHinglishRatio is the fraction of Roman Hindi function words above
	// which text is Hinglish.
	DefaultHinglishRatio = 0.20
)

// DefaultHinglishWords is the curated list of Roman-transliterated Hindi words.
// English loan words that also occur in plain English requests are excluded.
var DefaultHinglishWords = []string{
	// particles and postpositions
	"hai", "hain", "tha", "thi", "mein", "se", "ka", "ki", "ko", "ke",
	"liye", "aur", "bhi", "toh", "na", "ho", "wala", "wali", "wale", "sirf",
	// question words
	"kya", "koi", "kuch", "kahan", "kaise", "kaisa", "kyun", "kab", "kitna", "kaun",
	// verbs and requests
	"batao", "bataiye", "karo", "karu", "karna", "sunao", "suna", "sunane", "dena",
	"lena", "chahiye", "milega", "banau", "banao", "banana", "banega", "likho",
	"baja",
	// everyday nouns
	"ghar", "khana", "khane", "paas", "yahan", "yaar", "bacchon", "bachon", "bacche",
	"kahani", "kavita", "shayari", "gaane", "purane", "dhaba", "jagah", "zamane",
	"chawal", "dal", "roti", "sabzi", "bacha", "hua", "nani",
	// adjectives and adverbs
	"achha", "achhi", "accha", "acchi", "bahut", "thoda", "zyada", "kam", "pehle",
	"mera", "meri", "tera", "apna",
}

// Config tunes the detector heuristics.
type Config struct {
	DevanagariRatio float64
	HinglishRatio   float64
	HinglishWords   []string
}

// Detector classifies text into a routing.Language.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	devanagariRatio float64
	hinglishRatio   float64
	words           map[string]struct{}
}

// NewDetector creates a detector. Zero values in cfg fall back to defaults.
func NewDetector(cfg Config) *Detector {
	if cfg.DevanagariRatio <= 0 {
		cfg.DevanagariRatio = DefaultDevanagariRatio
	}
	if cfg.HinglishRatio <= 0 {
		cfg.HinglishRatio = DefaultHinglishRatio
	}
	if len(cfg.HinglishWords) == 0 {
		cfg.HinglishWords = DefaultHinglishWords
	}

	words := make(map[string]struct{}, len(cfg.HinglishWords))
	for _, w := range cfg.HinglishWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words[w] = struct{}{}
		}
	}

	return &Detector{
		devanagariRatio: cfg.DevanagariRatio,
		hinglishRatio:   cfg.HinglishRatio,
		words:           words,
	}
}

// Detect returns the language of text.
//
// Devanagari script wins over any word statistics: text mixing Devanagari and
// Roman letters is always Hindi.
func (d *Detector) Detect(text string) routing.Language {
	text = norm.NFC.String(text)

	var scriptRunes, devanagari, roman int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		scriptRunes++
		switch {
		case unicode.Is(unicode.Devanagari, r):
			devanagari++
		case r <= unicode.MaxLatin1 && unicode.IsLetter(r):
			roman++
		}
	}

	if scriptRunes == 0 {
		return routing.English
	}
	if devanagari > 0 && roman > 0 {
		return routing.Hindi
	}
	if float64(devanagari)/float64(scriptRunes) > d.devanagariRatio {
		return routing.Hindi
	}

	words := Words(text)
	if len(words) == 0 {
		return routing.English
	}
	matches := 0
	for _, w := range words {
		if _, ok := d.words[w]; ok {
			matches++
		}
	}
	if float64(matches)/float64(len(words)) > d.hinglishRatio {
		return routing.Hinglish
	}

	return routing.English
}

// Words splits text into lower-cased tokens that contain at least one letter.
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r)
	})

	words := fields[:0]
	for _, f := range fields {
		if strings.IndexFunc(f, unicode.IsLetter) >= 0 {
			words = append(words, f)
		}
	}
	return words
}
