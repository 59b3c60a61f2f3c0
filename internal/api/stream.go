// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/traylinx/bhasharouter/internal/logging"
	"github.com/traylinx/bhasharouter/internal/routing"
)

// Stream message types.
const (
	StreamTypeDecision = "decision"
	StreamTypeError    = "error"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamIdleTimeout  = 2 * time.Minute
)

// StreamRequest is one request sent by a /v1/stream client.
type StreamRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// StreamResponse answers one StreamRequest with the same ID.
type StreamResponse struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Decision *routing.Decision `json:"decision,omitempty"`
	Error    string            `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// handleStream routes every text message of a websocket connection.
// Requests on one connection are answered in order.
// GET /v1/stream
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	client := c.ClientIP()
	entry := logging.FromContext(ctx)
	entry.Debug("stream opened")
	conn.SetReadLimit(maxTextBytes + 256)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamIdleTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				entry.Debugf("stream closed: %v", err)
			}
			return
		}

		resp := s.streamDecision(ctx, client, data)
		payload, err := json.Marshal(resp)
		if err != nil {
			entry.Warnf("failed to encode stream response: %v", err)
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			entry.Debugf("stream write failed: %v", err)
			return
		}
	}
}

func (s *Server) streamDecision(ctx context.Context, client string, data []byte) StreamResponse {
	var req StreamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return StreamResponse{Type: StreamTypeError, Error: "invalid message: " + err.Error()}
	}
	if s.limiter != nil && !s.limiter.allow(client) {
		return StreamResponse{ID: req.ID, Type: StreamTypeError, Error: http.StatusText(http.StatusTooManyRequests)}
	}
	d, err := s.service.Route(ctx, req.Text)
	if err != nil {
		return StreamResponse{ID: req.ID, Type: StreamTypeError, Error: err.Error()}
	}
	return StreamResponse{ID: req.ID, Type: StreamTypeDecision, Decision: d}
}
