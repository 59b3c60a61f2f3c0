// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/routing"
	"github.com/traylinx/bhasharouter/internal/util"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxResponseBytes = 4 << 20

// Request is what a handler receives.
type Request struct {
	Handler  routing.HandlerID
	Query    string
	Language routing.Language
	Params   Params
}

// Handler produces content for one handler id.
type Handler interface {
	Handle(ctx context.Context, req Request) (json.RawMessage, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (json.RawMessage, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// HandlerStatusError is returned when a downstream handler answers with a non-2xx status.
type HandlerStatusError struct {
	Code int
	Body string
}

func (e *HandlerStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("handler returned status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("handler returned status %d", e.Code)
}

// StatusCode returns the downstream status.
func (e *HandlerStatusError) StatusCode() int { return e.Code }

// HTTPHandler forwards requests to a remote content generator as
//
//	{"handler": ..., "query": ..., "language": ..., "params": {...}}
//
// and returns the "result" member of the response, or the whole body when the
// response has none.
type HTTPHandler struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// NewHTTPHandler builds a handler for ep. When ep names a token URL the client
// authenticates with the OAuth2 client credentials grant.
func NewHTTPHandler(ep config.HandlerEndpoint) (*HTTPHandler, error) {
	if ep.Endpoint == "" {
		return nil, fmt.Errorf("handler endpoint is required")
	}
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Client{Timeout: timeout}

	client := base
	if ep.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     ep.ClientID,
			ClientSecret: ep.ClientSecret,
			TokenURL:     ep.TokenURL,
			Scopes:       ep.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(ctx)
		client.Timeout = timeout
	}

	log.WithFields(log.Fields{
		"endpoint": ep.Endpoint,
		"headers":  util.MaskHeaders(ep.Headers),
		"oauth2":   ep.TokenURL != "",
	}).Debug("configured handler endpoint")

	return &HTTPHandler{endpoint: ep.Endpoint, headers: ep.Headers, client: client}, nil
}

// Handle posts the request and returns the handler's result.
func (h *HTTPHandler) Handle(ctx context.Context, req Request) (json.RawMessage, error) {
	body := []byte(`{}`)
	var err error
	for _, kv := range []struct {
		path  string
		value any
	}{
		{"handler", string(req.Handler)},
		{"query", req.Query},
		{"language", string(req.Language)},
		{"params", map[string]any(req.Params)},
	} {
		if body, err = sjson.SetBytes(body, kv.path, kv.value); err != nil {
			return nil, fmt.Errorf("failed to build handler request: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create handler request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	util.ApplyHeaders(httpReq, h.headers)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("handler request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read handler response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HandlerStatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if !gjson.ValidBytes(data) {
		// plain text content is wrapped as a JSON string
		quoted, err := json.Marshal(string(data))
		if err != nil {
			return nil, err
		}
		return quoted, nil
	}
	if result := gjson.GetBytes(data, "result"); result.Exists() {
		return json.RawMessage(result.Raw), nil
	}
	return json.RawMessage(data), nil
}
