// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"strings"

	"github.com/traylinx/bhasharouter/internal/routing"
)

// Params are the structured arguments passed to a handler.
type Params map[string]any

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every non-nil value of other over p.
func (p Params) Merge(other map[string]any) Params {
	for k, v := range other {
		if v != nil {
			p[k] = v
		}
	}
	return p
}

// DefaultParams returns the arguments a handler receives when the request
// names none.
func DefaultParams(h routing.HandlerID) Params {
	switch h {
	case routing.HandlerRecipe:
		return Params{"leftovers": []string{"mixed ingredients"}, "cuisine_type": "Indian"}
	case routing.HandlerStory:
		return Params{"age_group": "children", "moral_theme": "honesty", "language_preference": "hinglish"}
	case routing.HandlerPoem:
		return Params{"theme": "love", "style": "romantic", "language_preference": "hinglish"}
	case routing.HandlerMusic:
		return Params{"era": "1960s", "mood": "nostalgic"}
	case routing.HandlerRestaurant:
		return Params{"food_type": "all", "budget_range": "moderate"}
	}
	return Params{}
}

var knownLeftovers = []string{"rice", "dal", "roti", "sabzi", "bread", "chawal", "दाल", "रोटी", "चावल"}

// keywordRule sets key to value when any keyword occurs in the request.
type keywordRule struct {
	key      string
	value    string
	keywords []string
}

var keywordRules = map[routing.HandlerID][]keywordRule{
	routing.HandlerStory: {
		{"moral_theme", "kindness", []string{"kindness", "दयालु", "daya"}},
		{"moral_theme", "perseverance", []string{"hard work", "mehnat", "मेहनत"}},
	},
	routing.HandlerPoem: {
		{"theme", "nature", []string{"nature", "prakriti", "प्रकृति"}},
		{"theme", "friendship", []string{"friend", "dost", "दोस्त"}},
	},
	routing.HandlerMusic: {
		{"era", "1950s", []string{"1950"}},
		{"era", "1970s", []string{"1970"}},
	},
	routing.HandlerRestaurant: {
		{"budget_range", "budget", []string{"cheap", "budget", "sasta", "सस्ता"}},
		{"budget_range", "expensive", []string{"expensive", "fine dining", "mehenga", "महंगा"}},
	},
}

// ExtractParams derives handler arguments from keywords in text. The first
// matching rule per key wins.
func ExtractParams(h routing.HandlerID, lang routing.Language, text string) Params {
	p := DefaultParams(h)
	lower := strings.ToLower(text)

	switch h {
	case routing.HandlerRecipe:
		var found []string
		for _, item := range knownLeftovers {
			if strings.Contains(lower, item) {
				found = append(found, item)
			}
		}
		if len(found) > 0 {
			p["leftovers"] = found
		}
	case routing.HandlerStory, routing.HandlerPoem:
		p["language_preference"] = string(lang)
	}

	set := map[string]bool{}
	for _, rule := range keywordRules[h] {
		if set[rule.key] {
			continue
		}
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				p[rule.key] = rule.value
				set[rule.key] = true
				break
			}
		}
	}
	return p
}
