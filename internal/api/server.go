// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the router over HTTP. It serves routing decisions,
// the assist flow, evaluation runs and operational endpoints from a single
// gin engine that also accepts cleartext HTTP/2.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/dispatch"
	"github.com/traylinx/bhasharouter/internal/evalrun"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/intelligence"
	"github.com/traylinx/bhasharouter/internal/metrics"
	"github.com/traylinx/bhasharouter/internal/routing"
	"github.com/traylinx/bhasharouter/internal/util"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RoutingService decides handlers and reports which scoring methods are active.
type RoutingService interface {
	Route(ctx context.Context, text string) (*routing.Decision, error)
	Detect(text string) routing.Language
	Status() intelligence.Status
}

// Server is the HTTP API server.
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	server  *http.Server
	service RoutingService

	assistant *dispatch.Assistant
	runner    *evalrun.Runner
	metrics   *metrics.Metrics
	eventBus  *hooks.EventBus
	stateBox  *util.StateBox

	auth    *bearerAuth
	limiter *clientLimiter
}

// ServerOption configures optional server dependencies.
type ServerOption func(*Server)

// WithAssistant enables POST /v1/assist.
func WithAssistant(a *dispatch.Assistant) ServerOption {
	return func(s *Server) { s.assistant = a }
}

// WithRunner enables the evaluation endpoints.
func WithRunner(r *evalrun.Runner) ServerOption {
	return func(s *Server) { s.runner = r }
}

// WithMetrics enables /metrics and /v1/stats and records request latency.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithEventBus publishes request_received events to bus.
func WithEventBus(bus *hooks.EventBus) ServerOption {
	return func(s *Server) { s.eventBus = bus }
}

// WithStateBox enables the state directory status endpoint.
func WithStateBox(sb *util.StateBox) ServerOption {
	return func(s *Server) { s.stateBox = sb }
}

// NewServer creates the API server and registers its routes.
//
// Parameters:
//   - cfg: The server configuration
//   - service: The routing service answering /v1/route
//   - opts: Optional dependencies
//
// Returns:
//   - *Server: A server ready to Start
func NewServer(cfg *config.Config, service RoutingService, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		cfg:     cfg,
		service: service,
		auth:    newBearerAuth(cfg.Auth),
		limiter: newClientLimiter(cfg.RateLimit),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestContext(), s.accessLog())
	s.engine = engine
	s.registerRoutes()

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(engine, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	v1 := s.engine.Group("/v1", s.authenticate(), s.rateLimit())
	v1.POST("/route", s.handleRoute)
	v1.POST("/detect", s.handleDetect)
	v1.GET("/stream", s.handleStream)
	v1.POST("/assist", s.handleAssist)
	v1.POST("/evaluate", s.handleEvaluate)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.GET("/stats", s.handleStats)
	v1.GET("/state-box/status", StateBoxStatusHandler(s.stateBox))

	if s.metrics != nil {
		s.engine.GET("/metrics", s.authenticate(), gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Infof("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	log.Info("API server stopped")
	return nil
}
