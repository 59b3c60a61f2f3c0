// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/logging"
	"github.com/traylinx/bhasharouter/internal/util"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// requestContext tags each request with an id, taken from the client when it
// sends one.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = logging.NewRequestID()
		}
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)

		if s.eventBus != nil && c.Request.Method == http.MethodPost {
			s.eventBus.PublishAsync(&hooks.EventContext{
				Event:     hooks.EventRequestReceived,
				Timestamp: time.Now(),
				RequestID: id,
				Data:      map[string]interface{}{"path": c.FullPath()},
			})
		}
		c.Next()
	}
}

// accessLog logs each request and feeds the latency metrics.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		if s.metrics != nil {
			s.metrics.ObserveRequest(path, strconv.Itoa(status), latency)
		}

		entry := logging.FromContext(c.Request.Context()).WithFields(log.Fields{
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"latency_ms": latency.Milliseconds(),
			"client":     c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Warn("request failed")
		case path == "/healthz":
			entry.Trace("request served")
		default:
			entry.Debug("request served")
		}
	}
}

// bearerAuth checks the Authorization header against the bcrypt-hashed token.
// Verified tokens are remembered by digest so bcrypt runs once per token.
type bearerAuth struct {
	hash           string
	allowLocalhost bool
	verified       *expirable.LRU[string, bool]
}

func newBearerAuth(cfg config.AuthConfig) *bearerAuth {
	return &bearerAuth{
		hash:           cfg.Token,
		allowLocalhost: cfg.AllowLocalhost,
		verified:       expirable.NewLRU[string, bool](256, nil, 10*time.Minute),
	}
}

func (a *bearerAuth) check(token string) bool {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])
	if ok, found := a.verified.Get(key); found {
		return ok
	}
	ok := config.VerifySecret(a.hash, token)
	a.verified.Add(key, ok)
	return ok
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.auth.hash == "" {
			c.Next()
			return
		}
		if s.auth.allowLocalhost && util.IsLocalhostDirect(c) {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		if !s.auth.check(strings.TrimSpace(token)) {
			logging.FromContext(c.Request.Context()).Warnf("rejected API token from %s", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}
		c.Next()
	}
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	limiters *expirable.LRU[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](1000, nil, 5*time.Minute),
		rate:     rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:    burst,
	}
}

func (l *clientLimiter) allow(key string) bool {
	limiter, ok := l.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters.Add(key, limiter)
	}
	return limiter.Allow()
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		if !s.limiter.allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
