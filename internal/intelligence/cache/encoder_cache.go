// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cache memoizes query embeddings so repeated requests and
// evaluation runs skip model inference.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/traylinx/bhasharouter/internal/intelligence/embedding"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxEntries bounds the number of cached embeddings.
	DefaultMaxEntries = 10000

	// DefaultTTL is how long an embedding stays cached.
	DefaultTTL = 30 * time.Minute
)

// Metrics is a snapshot of cache performance.
type Metrics struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hit_rate"`
}

// CachedEncoder wraps an embedding.Encoder with an expiring LRU keyed by the
// exact request text. Errors are never cached, and concurrent misses for the
// same text share one inner call.
type CachedEncoder struct {
	inner embedding.Encoder
	lru   *expirable.LRU[string, []float32]
	group singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewCachedEncoder creates a caching wrapper around inner.
//
// Parameters:
//   - inner: The encoder doing the actual work
//   - maxEntries: Maximum number of cached embeddings (<= 0 uses DefaultMaxEntries)
//   - ttl: Entry lifetime (<= 0 uses DefaultTTL)
//
// Returns:
//   - *CachedEncoder: A new cache instance
func NewCachedEncoder(inner embedding.Encoder, maxEntries int, ttl time.Duration) *CachedEncoder {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &CachedEncoder{inner: inner}
	c.lru = expirable.NewLRU[string, []float32](maxEntries, func(string, []float32) {
		c.evictions.Add(1)
	}, ttl)
	return c
}

// Dimension returns the dimension of the wrapped encoder.
func (c *CachedEncoder) Dimension() int {
	return c.inner.Dimension()
}

// Encode returns the cached embedding of text, computing it on a miss.
// The returned slice is shared and must not be modified.
func (c *CachedEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.lru.Get(text); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)

	res, err, _ := c.group.Do(text, func() (interface{}, error) {
		v, err := c.inner.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		c.lru.Add(text, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

// Purge removes every cached embedding.
func (c *CachedEncoder) Purge() {
	c.lru.Purge()
}

// Metrics returns a snapshot of the cache counters.
func (c *CachedEncoder) Metrics() Metrics {
	m := Metrics{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.lru.Len(),
	}
	if total := m.Hits + m.Misses; total > 0 {
		m.HitRate = float64(m.Hits) / float64(total)
	}
	return m
}
