// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dispatch connects routing decisions to the content handlers.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/logging"
	"github.com/traylinx/bhasharouter/internal/plugin"
	"github.com/traylinx/bhasharouter/internal/routing"
)

var (
	// ErrNotDispatchable is returned for the clarification sentinel and
	// unknown ids.
	ErrNotDispatchable = errors.New("handler cannot be dispatched")

	// ErrHandlerNotConfigured is returned when no handler is registered.
	ErrHandlerNotConfigured = errors.New("handler not configured")
)

// Result is the outcome of one dispatch.
type Result struct {
	Handler   routing.HandlerID `json:"handler"`
	Params    Params            `json:"params"`
	Content   json.RawMessage   `json:"content"`
	Truncated bool              `json:"query_truncated,omitempty"`
	LatencyMs int64             `json:"latency_ms"`
}

// Registry maps handler ids to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[routing.HandlerID]Handler
	lua      *plugin.LuaEngine
	budget   *TokenBudget
	eventBus *hooks.EventBus
}

// NewRegistry creates an empty registry. lua may be nil.
func NewRegistry(lua *plugin.LuaEngine, budget *TokenBudget) *Registry {
	if budget == nil {
		budget = NewTokenBudget(0)
	}
	return &Registry{
		handlers: make(map[routing.HandlerID]Handler),
		lua:      lua,
		budget:   budget,
	}
}

// NewRegistryFromConfig registers an HTTPHandler for every configured endpoint
// and loads the Lua extractors.
func NewRegistryFromConfig(cfg config.DispatchConfig) (*Registry, error) {
	var lua *plugin.LuaEngine
	if cfg.ExtractorsDir != "" {
		lua = plugin.NewLuaEngine(plugin.Config{Enabled: true, Dir: cfg.ExtractorsDir})
	}
	r := NewRegistry(lua, NewTokenBudget(cfg.MaxQueryTokens))

	names := make([]string, 0, len(cfg.Handlers))
	for name := range cfg.Handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h, err := routing.ParseHandlerID(name)
		if err != nil || !h.IsHandler() {
			return nil, fmt.Errorf("dispatch.handlers: %q is not a handler", name)
		}
		handler, err := NewHTTPHandler(cfg.Handlers[name])
		if err != nil {
			return nil, fmt.Errorf("dispatch.handlers[%s]: %w", name, err)
		}
		if err := r.Register(h, handler); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetEventBus publishes dispatch_failed events to bus.
func (r *Registry) SetEventBus(bus *hooks.EventBus) {
	r.eventBus = bus
}

// Register installs handler for h, replacing any previous one.
func (r *Registry) Register(h routing.HandlerID, handler Handler) error {
	if !h.IsHandler() {
		return fmt.Errorf("%w: %q", ErrNotDispatchable, h)
	}
	if handler == nil {
		return fmt.Errorf("nil handler for %s", h)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h] = handler
	return nil
}

// Configured lists the handlers with a registered implementation.
func (r *Registry) Configured() []routing.HandlerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []routing.HandlerID
	for _, h := range routing.Handlers() {
		if _, ok := r.handlers[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

// Params derives the arguments for h from text: defaults, then keyword rules,
// then the handler's Lua extractor when one is loaded. Extractor failures are
// logged and ignored.
func (r *Registry) Params(ctx context.Context, h routing.HandlerID, lang routing.Language, text string) Params {
	p := ExtractParams(h, lang, text)
	if r.lua == nil || !r.lua.Has(string(h)) {
		return p
	}
	out, err := r.lua.Run(ctx, string(h), map[string]any{
		"text":     text,
		"language": string(lang),
		"handler":  string(h),
		"params":   map[string]any(p.Clone()),
	})
	if err != nil {
		logging.FromContext(ctx).WithField("handler", h).Warnf("parameter extractor failed: %v", err)
		return p
	}
	return p.Merge(out)
}

// Dispatch sends the query and params to the handler registered for h.
func (r *Registry) Dispatch(ctx context.Context, h routing.HandlerID, lang routing.Language, query string, params Params) (*Result, error) {
	if !h.IsHandler() {
		return nil, fmt.Errorf("%w: %q", ErrNotDispatchable, h)
	}
	r.mu.RLock()
	handler, ok := r.handlers[h]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotConfigured, h)
	}
	if params == nil {
		params = DefaultParams(h)
	}

	forwarded, truncated := r.budget.Truncate(query)
	start := time.Now()
	content, err := handler.Handle(ctx, Request{Handler: h, Query: forwarded, Language: lang, Params: params})
	latency := time.Since(start)

	entry := logging.FromContext(ctx).WithFields(log.Fields{
		"handler":    h,
		"latency_ms": latency.Milliseconds(),
	})
	if err != nil {
		entry.Warnf("dispatch failed: %v", err)
		r.publishFailure(ctx, h, err)
		return nil, fmt.Errorf("dispatch to %s failed: %w", h, err)
	}
	entry.Debug("dispatch completed")

	return &Result{
		Handler:   h,
		Params:    params,
		Content:   content,
		Truncated: truncated,
		LatencyMs: latency.Milliseconds(),
	}, nil
}

func (r *Registry) publishFailure(ctx context.Context, h routing.HandlerID, err error) {
	if r.eventBus == nil {
		return
	}
	r.eventBus.PublishAsync(&hooks.EventContext{
		Event:        hooks.EventDispatchFailed,
		Timestamp:    time.Now(),
		RequestID:    logging.RequestID(ctx),
		Handler:      string(h),
		Error:        err,
		ErrorMessage: err.Error(),
	})
}

// Close releases the Lua engine.
func (r *Registry) Close() {
	if r.lua != nil {
		r.lua.Close()
	}
}
