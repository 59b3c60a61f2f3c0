// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// AuditResult describes one directory or sensitive file under the state box.
type AuditResult struct {
	Path         string
	CurrentMode  os.FileMode
	RequiredMode os.FileMode
	WasCorrected bool
	Error        error
}

// NeedsCorrection reports whether the entry's mode differs from the required one.
func (r AuditResult) NeedsCorrection() bool {
	return r.Error == nil && r.CurrentMode != r.RequiredMode
}

// AuditPermissions lists directories (required 0700) and sensitive files
// (required 0600) under the state box without changing anything.
func AuditPermissions(sb *StateBox) ([]AuditResult, error) {
	return walkPermissions(sb, false)
}

// HardenPermissions corrects the modes reported by AuditPermissions. Failures
// on individual entries are logged and do not stop the walk. A missing state
// box root is not an error.
func HardenPermissions(sb *StateBox) error {
	if sb == nil {
		return fmt.Errorf("StateBox cannot be nil")
	}
	if _, err := os.Stat(sb.RootPath()); os.IsNotExist(err) {
		log.Debugf("permission hardening: state box root does not exist: %s", sb.RootPath())
		return nil
	}
	if sb.IsReadOnly() {
		return nil
	}

	results, err := walkPermissions(sb, true)
	if err != nil {
		return err
	}
	corrected, failed := 0, 0
	for _, r := range results {
		switch {
		case r.Error != nil:
			failed++
		case r.WasCorrected:
			corrected++
		}
	}
	if corrected > 0 {
		log.Infof("permission hardening: corrected %d file/directory permissions", corrected)
	}
	if failed > 0 {
		log.Warnf("permission hardening: encountered %d errors", failed)
	}
	return nil
}

func walkPermissions(sb *StateBox, fix bool) ([]AuditResult, error) {
	if sb == nil {
		return nil, fmt.Errorf("StateBox cannot be nil")
	}
	var results []AuditResult
	err := filepath.WalkDir(sb.RootPath(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("permission audit: failed to access %s: %v", path, err)
			results = append(results, AuditResult{Path: path, Error: err})
			return nil
		}
		var required os.FileMode
		switch {
		case d.IsDir():
			required = 0700
		case isSensitiveFile(path):
			required = 0600
		default:
			return nil
		}
		info, err := d.Info()
		if err != nil {
			results = append(results, AuditResult{Path: path, Error: err})
			return nil
		}
		r := AuditResult{Path: path, CurrentMode: info.Mode().Perm(), RequiredMode: required}
		if fix && r.NeedsCorrection() {
			if err := os.Chmod(path, required); err != nil {
				log.Warnf("permission hardening: failed to chmod %s from %04o to %04o: %v", path, r.CurrentMode, required, err)
				r.Error = err
			} else {
				log.Debugf("permission hardening: %s %04o -> %04o", path, r.CurrentMode, required)
				r.WasCorrected = true
			}
		}
		results = append(results, r)
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("failed to walk state box directory: %w", err)
	}
	return results, nil
}

// isSensitiveFile matches result stores, reports and hook definitions.
func isSensitiveFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".json", ".yaml", ".yml":
		return true
	}
	return false
}
