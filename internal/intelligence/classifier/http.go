// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
	"github.com/traylinx/bhasharouter/internal/intelligence/confidence"
	"github.com/traylinx/bhasharouter/internal/util"
)

const maxResponseBytes = 1 << 20

// HTTPConfig configures a remote classifier endpoint.
type HTTPConfig struct {
	// Endpoint receives POST {"text": "..."} and answers with probabilities
	Endpoint string

	// Labels is the label set the endpoint can return
	Labels []string

	// APIKey is sent as a bearer token when set
	APIKey string

	// Timeout bounds one request (default 5s)
	Timeout time.Duration
}

// HTTPClassifier calls a remote intent classification service.
type HTTPClassifier struct {
	endpoint string
	labels   []string
	apiKey   string
	client   *http.Client
}

// NewHTTPClassifier creates a remote classifier.
func NewHTTPClassifier(cfg HTTPConfig) (*HTTPClassifier, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("classifier endpoint is required")
	}
	if len(cfg.Labels) == 0 {
		return nil, fmt.Errorf("classifier labels are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	labels := make([]string, len(cfg.Labels))
	copy(labels, cfg.Labels)
	log.WithFields(log.Fields{
		"endpoint": cfg.Endpoint,
		"labels":   len(labels),
		"api_key":  util.HideAPIKey(cfg.APIKey),
	}).Debug("configured remote classifier")
	return &HTTPClassifier{
		endpoint: cfg.Endpoint,
		labels:   labels,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Labels returns the configured label set.
func (c *HTTPClassifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Classify posts text to the endpoint and parses the returned distribution.
// Labels outside the configured set are rejected.
func (c *HTTPClassifier) Classify(ctx context.Context, text string) (confidence.Distribution, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "text", text)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	dist, err := confidence.Parse(data)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(c.labels))
	for _, l := range c.labels {
		known[l] = true
	}
	for label := range dist {
		if !known[label] {
			return nil, fmt.Errorf("classifier returned unknown label %q", label)
		}
	}
	return dist, nil
}
