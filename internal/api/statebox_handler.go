// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/bhasharouter/internal/util"
)

// StateBoxStatus represents the State Box status for API responses.
type StateBoxStatus struct {
	RootPath         string      `json:"root_path"`
	ReadOnly         bool        `json:"read_only"`
	Initialized      bool        `json:"initialized"`
	Models           *FileStatus `json:"models"`
	Hooks            *FileStatus `json:"hooks"`
	RunHistory       *FileStatus `json:"run_history"`
	PermissionStatus string      `json:"permission_status"` // "ok", "warning", "error"
	Warnings         []string    `json:"warnings,omitempty"`
	Errors           []string    `json:"errors,omitempty"`
}

// FileStatus represents the status of a State Box file or directory.
type FileStatus struct {
	Path    string    `json:"path"`
	Exists  bool      `json:"exists"`
	Size    int64     `json:"size"`
	Mode    string    `json:"mode"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// getFileStatus retrieves the status of a file at the given path.
func getFileStatus(path string) *FileStatus {
	status := &FileStatus{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return status
	}

	status.Exists = true
	status.Size = info.Size()
	status.Mode = info.Mode().String()
	status.ModTime = info.ModTime()
	return status
}

// auditStateBox adds a warning for every entry whose mode is wider than
// required and an error for every entry that could not be inspected.
func auditStateBox(sb *util.StateBox, status *StateBoxStatus) {
	results, err := util.AuditPermissions(sb)
	if err != nil {
		status.Errors = append(status.Errors, "Failed to audit State Box permissions")
		status.PermissionStatus = "error"
		return
	}
	for _, r := range results {
		rel, relErr := filepath.Rel(sb.RootPath(), r.Path)
		if relErr != nil {
			rel = r.Path
		}
		switch {
		case r.Error != nil:
			status.Errors = append(status.Errors, fmt.Sprintf("Failed to inspect %s", rel))
			status.PermissionStatus = "error"
		case r.NeedsCorrection():
			status.Warnings = append(status.Warnings, fmt.Sprintf("%s has mode %04o, expected %04o", rel, r.CurrentMode, r.RequiredMode))
			if status.PermissionStatus == "ok" {
				status.PermissionStatus = "warning"
			}
		}
	}
}

// StateBoxStatusHandler returns a handler for GET /v1/state-box/status.
// It reports the state directory and the permissions of the files the router
// keeps in it.
func StateBoxStatusHandler(sb *util.StateBox) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sb == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "State Box not initialized",
			})
			return
		}

		status := &StateBoxStatus{
			RootPath:         sb.RootPath(),
			ReadOnly:         sb.IsReadOnly(),
			Initialized:      true,
			PermissionStatus: "ok",
			Warnings:         []string{},
			Errors:           []string{},
		}

		_, err := os.Stat(sb.RootPath())
		switch {
		case os.IsNotExist(err):
			status.Warnings = append(status.Warnings, "State Box root directory does not exist")
			status.PermissionStatus = "warning"
		case err != nil:
			status.Errors = append(status.Errors, "Failed to access State Box root directory")
			status.PermissionStatus = "error"
		default:
			auditStateBox(sb, status)
		}

		status.Models = getFileStatus(sb.ModelsDir())
		status.Hooks = getFileStatus(sb.HooksDir())
		status.RunHistory = getFileStatus(filepath.Join(sb.EvaluationsDir(), "runs.db"))

		c.JSON(http.StatusOK, status)
	}
}
