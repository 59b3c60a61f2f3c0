// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/bhasharouter/internal/util"
)

func serveStateBox(t *testing.T, sb *util.StateBox) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/v1/state-box/status", StateBoxStatusHandler(sb))

	req, err := http.NewRequest("GET", "/v1/state-box/status", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStateBoxStatusHandler_Success(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv(util.EnvReadOnly, "0")

	sb, err := util.NewStateBoxAt(tempDir)
	if err != nil {
		t.Fatalf("Failed to create StateBox: %v", err)
	}

	if err := os.MkdirAll(sb.ModelsDir(), 0700); err != nil {
		t.Fatalf("Failed to create models directory: %v", err)
	}
	if err := os.MkdirAll(sb.EvaluationsDir(), 0700); err != nil {
		t.Fatalf("Failed to create evaluations directory: %v", err)
	}
	dbPath := filepath.Join(sb.EvaluationsDir(), "runs.db")
	if err := os.WriteFile(dbPath, []byte("test db"), 0600); err != nil {
		t.Fatalf("Failed to create database file: %v", err)
	}

	w := serveStateBox(t, sb)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}

	var status StateBoxStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if status.RootPath != tempDir {
		t.Errorf("Expected root path %s, got %s", tempDir, status.RootPath)
	}
	if status.ReadOnly {
		t.Error("Expected read-only to be false")
	}
	if !status.Initialized {
		t.Error("Expected initialized to be true")
	}
	if status.Models == nil || !status.Models.Exists {
		t.Error("Expected models directory to exist")
	}
	if status.Hooks == nil || status.Hooks.Exists {
		t.Error("Expected hooks directory to be reported missing")
	}
	if status.RunHistory == nil || !status.RunHistory.Exists {
		t.Fatal("Expected run history database to exist")
	}
	if status.PermissionStatus != "ok" {
		t.Errorf("Expected permission status 'ok', got '%s'", status.PermissionStatus)
	}
}

func TestStateBoxStatusHandler_PermissiveDatabase(t *testing.T) {
	sb, err := util.NewStateBoxAt(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create StateBox: %v", err)
	}
	if err := os.MkdirAll(sb.EvaluationsDir(), 0700); err != nil {
		t.Fatalf("Failed to create evaluations directory: %v", err)
	}
	dbPath := filepath.Join(sb.EvaluationsDir(), "runs.db")
	if err := os.WriteFile(dbPath, []byte("test db"), 0600); err != nil {
		t.Fatalf("Failed to create database file: %v", err)
	}
	if err := os.Chmod(dbPath, 0644); err != nil {
		t.Fatalf("Failed to chmod database file: %v", err)
	}

	var status StateBoxStatus
	if err := json.Unmarshal(serveStateBox(t, sb).Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if status.PermissionStatus != "warning" {
		t.Errorf("Expected permission status 'warning', got '%s'", status.PermissionStatus)
	}
	if len(status.Warnings) != 1 {
		t.Fatalf("Expected one warning, got %v", status.Warnings)
	}
	if want := filepath.Join("evaluations", "runs.db") + " has mode 0644, expected 0600"; status.Warnings[0] != want {
		t.Errorf("Expected warning %q, got %q", want, status.Warnings[0])
	}
}

func TestStateBoxStatusHandler_ReadOnlyMode(t *testing.T) {
	t.Setenv(util.EnvReadOnly, "1")

	sb, err := util.NewStateBoxAt(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create StateBox: %v", err)
	}

	w := serveStateBox(t, sb)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}

	var status StateBoxStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !status.ReadOnly {
		t.Error("Expected read-only to be true")
	}
}

func TestStateBoxStatusHandler_NilStateBox(t *testing.T) {
	w := serveStateBox(t, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestStateBoxStatusHandler_MissingRoot(t *testing.T) {
	sb, err := util.NewStateBoxAt(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("Failed to create StateBox: %v", err)
	}

	var status StateBoxStatus
	if err := json.Unmarshal(serveStateBox(t, sb).Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if status.PermissionStatus != "warning" {
		t.Errorf("Expected permission status 'warning', got '%s'", status.PermissionStatus)
	}
}
