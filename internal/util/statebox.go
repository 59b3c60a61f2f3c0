// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package util provides filesystem, header and network helpers shared by the
// bhasharouter server and tools.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// EnvStateDir overrides the state directory root.
	EnvStateDir = "BHASHA_STATE_DIR"
	// EnvReadOnly disables every write under the state directory when set to "1".
	EnvReadOnly = "BHASHA_READONLY"
	// DefaultStateDir is used when EnvStateDir is unset.
	DefaultStateDir = "~/.bhasharouter"
)

// StateBox owns the directory holding mutable router data: downloaded models,
// hook definitions, logs and evaluation artifacts.
type StateBox struct {
	rootPath string
	readOnly bool
	mu       sync.RWMutex
}

// NewStateBox reads BHASHA_STATE_DIR and BHASHA_READONLY and returns a StateBox
// rooted at the resolved directory. Nothing is created on disk.
func NewStateBox() (*StateBox, error) {
	return NewStateBoxAt(os.Getenv(EnvStateDir))
}

// NewStateBoxAt returns a StateBox rooted at dir. An empty dir falls back to
// BHASHA_STATE_DIR, then DefaultStateDir. Read-only mode still follows
// BHASHA_READONLY.
func NewStateBoxAt(dir string) (*StateBox, error) {
	if strings.TrimSpace(dir) == "" {
		dir = os.Getenv(EnvStateDir)
	}
	if strings.TrimSpace(dir) == "" {
		dir = DefaultStateDir
	}
	resolved, err := ExpandPath(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory: %w", err)
	}
	return &StateBox{
		rootPath: resolved,
		readOnly: os.Getenv(EnvReadOnly) == "1",
	}, nil
}

// RootPath returns the resolved root directory.
func (sb *StateBox) RootPath() string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.rootPath
}

// IsReadOnly reports whether writes are disabled.
func (sb *StateBox) IsReadOnly() bool {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.readOnly
}

// SetReadOnly toggles read-only mode.
func (sb *StateBox) SetReadOnly(readOnly bool) {
	sb.mu.Lock()
	sb.readOnly = readOnly
	sb.mu.Unlock()
}

// ModelsDir holds ONNX models, vocabularies and label files.
func (sb *StateBox) ModelsDir() string {
	return filepath.Join(sb.RootPath(), "models")
}

// HooksDir holds hook definitions.
func (sb *StateBox) HooksDir() string {
	return filepath.Join(sb.RootPath(), "hooks")
}

// LogsDir holds rotated log files.
func (sb *StateBox) LogsDir() string {
	return filepath.Join(sb.RootPath(), "logs")
}

// EvaluationsDir holds evaluation reports and the result store.
func (sb *StateBox) EvaluationsDir() string {
	return filepath.Join(sb.RootPath(), "evaluations")
}

// ResolvePath joins a relative path with the root. Absolute and tilde paths
// are expanded and returned without joining.
func (sb *StateBox) ResolvePath(relativePath string) string {
	if relativePath == "" {
		return sb.RootPath()
	}
	if strings.HasPrefix(relativePath, "~") || filepath.IsAbs(relativePath) {
		cleaned, err := ExpandPath(relativePath)
		if err != nil {
			return filepath.Clean(relativePath)
		}
		return cleaned
	}
	return filepath.Join(sb.RootPath(), relativePath)
}

// EnsureDir creates path with 0700 permissions when it does not exist.
func (sb *StateBox) EnsureDir(path string) error {
	if sb.IsReadOnly() {
		return ErrReadOnlyMode
	}
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat directory %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
