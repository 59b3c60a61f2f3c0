// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/bhasharouter/internal/evalrun"
	"github.com/traylinx/bhasharouter/internal/logging"
	"github.com/traylinx/bhasharouter/internal/routing"
	"github.com/traylinx/bhasharouter/internal/store"
)

// maxTextBytes bounds the request text accepted by the routing endpoints.
const maxTextBytes = 8 << 10

// textRequest is the body of /v1/route, /v1/detect and /v1/assist.
type textRequest struct {
	Text string `json:"text"`
}

// evaluateRequest is the body of POST /v1/evaluate.
type evaluateRequest struct {
	Corpus  string `json:"corpus"`
	Filter  string `json:"filter"`
	Archive bool   `json:"archive"`
	// Detailed includes the per-case results in the response.
	Detailed bool `json:"detailed"`
}

func bindText(c *gin.Context) (string, bool) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
		return "", false
	}
	if len(req.Text) > maxTextBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "text is too long"})
		return "", false
	}
	return req.Text, true
}

// routingStatus maps a routing error to its HTTP status.
func routingStatus(err error) int {
	switch {
	case errors.Is(err, routing.ErrNoRoutingMethod):
		return http.StatusServiceUnavailable
	case errors.Is(err, routing.ErrEmptyInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth reports the active routing pipeline.
// GET /healthz
func (s *Server) handleHealth(c *gin.Context) {
	st := s.service.Status()
	code := http.StatusOK
	status := "ok"
	switch {
	case !st.Initialized:
		code, status = http.StatusServiceUnavailable, "unavailable"
	case !st.Similarity || !st.Classifier:
		status = "degraded"
	}
	c.JSON(code, gin.H{"status": status, "routing": st})
}

// handleRoute returns the routing decision for one request.
// POST /v1/route
func (s *Server) handleRoute(c *gin.Context) {
	text, ok := bindText(c)
	if !ok {
		return
	}
	d, err := s.service.Route(c.Request.Context(), text)
	if err != nil {
		logging.FromContext(c.Request.Context()).Warnf("routing failed: %v", err)
		c.JSON(routingStatus(err), gin.H{"error": "routing failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

// handleDetect returns the detected language.
// POST /v1/detect
func (s *Server) handleDetect(c *gin.Context) {
	text, ok := bindText(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": s.service.Detect(text)})
}

// handleAssist routes the request and calls the selected handler.
// POST /v1/assist
func (s *Server) handleAssist(c *gin.Context) {
	if s.assistant == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "dispatch is not configured"})
		return
	}
	text, ok := bindText(c)
	if !ok {
		return
	}
	resp, err := s.assistant.Assist(c.Request.Context(), text)
	if err != nil {
		c.JSON(routingStatus(err), gin.H{"error": "routing failed", "message": err.Error()})
		return
	}
	code := http.StatusOK
	if resp.Status == "error" {
		code = http.StatusBadGateway
	}
	c.JSON(code, resp)
}

// handleEvaluate runs the evaluation harness over the configured corpus.
// POST /v1/evaluate
func (s *Server) handleEvaluate(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "evaluation is not configured"})
		return
	}
	var req evaluateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
			return
		}
	}
	if req.Corpus != "" && !s.cfg.Debug {
		// arbitrary server-side paths are only accepted in debug mode
		c.JSON(http.StatusForbidden, gin.H{"error": "corpus override requires debug mode"})
		return
	}

	out, err := s.runner.Run(c.Request.Context(), evalrun.Options{Corpus: req.Corpus, Filter: req.Filter, Archive: req.Archive})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "evaluation failed", "message": err.Error()})
		return
	}
	if !req.Detailed {
		rec := *out.Record
		rec.Results = nil
		out.Record = &rec
	}
	c.JSON(http.StatusOK, out)
}

// handleListRuns lists recent evaluation runs.
// GET /v1/runs?limit=N
func (s *Server) handleListRuns(c *gin.Context) {
	st := s.runStore()
	if st == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false, "runs": []store.RunSummary{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := st.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs", "message": err.Error()})
		return
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "runs": runs})
}

// handleGetRun returns one stored evaluation run.
// GET /v1/runs/:id
func (s *Server) handleGetRun(c *gin.Context) {
	st := s.runStore()
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run history is disabled"})
		return
	}
	rec, err := st.Load(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleStats returns the routing counters.
// GET /v1/stats
func (s *Server) handleStats(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	snapshot := s.metrics.Snapshot()
	resp := gin.H{
		"enabled":                    true,
		"stats":                      snapshot,
		"clarification_rate_percent": snapshot.ClarificationRate(),
	}
	if cc := s.service.Status().ClassifierConfidence; cc != nil {
		resp["classifier_confidence"] = cc
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) runStore() store.RunStore {
	if s.runner == nil {
		return nil
	}
	return s.runner.Store()
}
