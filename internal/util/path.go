// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading tilde and returns a cleaned absolute path.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// WritablePath returns the state directory root when BHASHA_STATE_DIR is set
// and writes are allowed, and an empty string otherwise.
func WritablePath() string {
	if os.Getenv(EnvReadOnly) == "1" {
		return ""
	}
	dir := strings.TrimSpace(os.Getenv(EnvStateDir))
	if dir == "" {
		return ""
	}
	resolved, err := ExpandPath(dir)
	if err != nil {
		return ""
	}
	return resolved
}
