// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"context"
	"fmt"

	"github.com/traylinx/bhasharouter/internal/routing"
)

// Response statuses.
const (
	StatusSuccess       = "success"
	StatusClarification = "clarification_needed"
	StatusError         = "error"
)

const clarificationMessage = "मुझे समझ नहीं आया। कृपया स्पष्ट करें कि आप क्या चाहते हैं। / I didn't understand. Please clarify what you want."

// clarificationSuggestions are example phrasings per handler, in enumeration order.
var clarificationSuggestions = []string{
	"खाना बनाने के लिए - 'leftover se kya banau' या 'recipe batao'",
	"कहानी के लिए - 'story sunao' या 'bacchon ki kahani'",
	"कविता के लिए - 'poem sunao' या 'poetry chahiye'",
	"संगीत के लिए - 'purane gaane' या 'nostalgic music'",
	"खाने की जगह के लिए - 'nearby restaurant' या 'food places'",
}

// Decider routes a request.
type Decider interface {
	Decide(ctx context.Context, text string) (*routing.Decision, error)
}

// Response is the answer to an assist request.
type Response struct {
	Status      string            `json:"status"`
	Query       string            `json:"user_query"`
	Message     string            `json:"message,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Decision    *routing.Decision `json:"routing_info"`
	Result      *Result           `json:"tool_result,omitempty"`
}

// Assistant routes a request and dispatches it to the selected handler.
type Assistant struct {
	decider  Decider
	registry *Registry
}

// NewAssistant creates an assistant.
func NewAssistant(decider Decider, registry *Registry) *Assistant {
	return &Assistant{decider: decider, registry: registry}
}

// Assist routes text and calls the selected handler. Clarification and
// handler failures are reported in the response; only routing errors are
// returned as errors.
func (a *Assistant) Assist(ctx context.Context, text string) (*Response, error) {
	d, err := a.decider.Decide(ctx, text)
	if err != nil {
		return nil, err
	}
	resp := &Response{Query: text, Decision: d}

	if !d.Accepted() {
		resp.Status = StatusClarification
		resp.Message = clarificationMessage
		resp.Suggestions = append([]string(nil), clarificationSuggestions...)
		return resp, nil
	}

	params := a.registry.Params(ctx, d.Selected, d.Language, text)
	result, err := a.registry.Dispatch(ctx, d.Selected, d.Language, text, params)
	if err != nil {
		resp.Status = StatusError
		resp.Message = fmt.Sprintf("माफ करें, कुछ गलत हुआ। / Sorry, something went wrong: %v", err)
		return resp, nil
	}

	resp.Status = StatusSuccess
	resp.Result = result
	resp.Message = fmt.Sprintf("समझ गया! मैंने आपके लिए %s का उपयोग किया है। / Got it! I used %s for you.", d.Selected, d.Selected)
	return resp, nil
}
