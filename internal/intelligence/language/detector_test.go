// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/traylinx/bhasharouter/internal/routing"
)

func TestDetect(t *testing.T) {
	d := NewDetector(Config{})

	tests := []struct {
		name string
		text string
		want routing.Language
	}{
		{"empty", "", routing.English},
		{"whitespace", "   \t\n", routing.English},
		{"numeric", "12345", routing.English},
		{"punctuation", "?!... ---", routing.English},
		{"english story", "Tell me a bedtime story", routing.English},
		{"english recipe with dal", "What can I cook with leftover rice and dal?", routing.English},
		{"english restaurants", "Good restaurants near me", routing.English},
		{"single word", "Music", routing.English},
		{"hinglish recipe", "Ghar mein sirf chawal aur dal hai", routing.Hinglish},
		{"hinglish music", "Purane gaane recommend karo", routing.Hinglish},
		{"hinglish with digits", "1900s ke nostalgic songs batao", routing.Hinglish},
		{"hinglish food", "Nearby food places batao", routing.Hinglish},
		{"hinglish question", "Yahan ke paas koi achha dhaba hai?", routing.Hinglish},
		{"hindi story", "कोई नैतिक कहानी सुनाइए", routing.Hindi},
		{"hindi with danda", "कुछ पुराने गाने बताइए।", routing.Hindi},
		{"hindi music", "कुछ पुराने गाने बताइए", routing.Hindi},
		{"mixed script is hindi", "मुझे pizza चाहिए", routing.Hindi},
		{"one devanagari word in english", "Tell me a story about कहानी", routing.Hindi},
		{"hindi digits only", "१२३", routing.Hindi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.text))
		})
	}
}

func TestDetectDeterministic(t *testing.T) {
	d := NewDetector(Config{})
	inputs := []string{"Story sunao bacchon ke liye", "प्रेम पर कविता लिखिए", "Write a beautiful poem"}
	for _, in := range inputs {
		first := d.Detect(in)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, d.Detect(in))
		}
	}
}

func TestDetectCustomConfig(t *testing.T) {
	// a strict ratio pushes lightly mixed text back to English
	d := NewDetector(Config{HinglishRatio: 0.5})
	assert.Equal(t, routing.English, d.Detect("Nearby food places batao"))
	assert.Equal(t, routing.Hinglish, d.Detect("Purane gaane recommend karo"))

	d = NewDetector(Config{HinglishWords: []string{"  Foo "}})
	assert.Equal(t, routing.Hinglish, d.Detect("foo bar"))
	assert.Equal(t, routing.English, d.Detect("kya hai"))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"leftover", "roti", "se", "kya", "banau"}, Words("Leftover roti se kya banau?"))
	assert.Equal(t, []string{"1900s", "ke"}, Words("1900s ke 42"))
	assert.Empty(t, Words("?? 12 !!"))
}
