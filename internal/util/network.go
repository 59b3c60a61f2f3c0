// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package util

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// IsLocalhostDirect reports whether the gin request comes from a loopback
// address without passing through a proxy.
func IsLocalhostDirect(c *gin.Context) bool {
	return IsLoopbackRequest(c.Request)
}

// IsLoopbackRequest reports whether r originates from a loopback address and
// carries no forwarding headers.
func IsLoopbackRequest(r *http.Request) bool {
	if r == nil {
		return false
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return false
	}
	return r.Header.Get("X-Forwarded-For") == "" &&
		r.Header.Get("X-Real-IP") == "" &&
		r.Header.Get("Forwarded") == ""
}
