// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/bhasharouter/internal/intelligence/evaluation"
	"github.com/traylinx/bhasharouter/internal/util"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS evaluation_runs (
	run_id TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	corpus TEXT NOT NULL,
	filter TEXT NOT NULL DEFAULT '',
	total INTEGER NOT NULL,
	correct INTEGER NOT NULL,
	accuracy REAL NOT NULL,
	record TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluation_runs_created_at ON evaluation_runs(created_at);
`

// SQLiteStore keeps evaluation runs in a local SQLite file.
type SQLiteStore struct {
	runs          runTable
	dbPath        string
	retentionDays int
	enabled       bool
	stateBox      *util.StateBox
	mu            sync.RWMutex
}

// NewSQLiteStore creates a store backed by the SQLite file at dbPath.
//
// Parameters:
//   - dbPath: Database file; bare file names are placed in the evaluations directory
//   - retentionDays: Runs older than this are pruned; 0 keeps 365 days
//
// Returns:
//   - *SQLiteStore: A store to be initialized with Initialize
//   - error: An error if dbPath is empty
func NewSQLiteStore(dbPath string, retentionDays int) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if retentionDays <= 0 {
		retentionDays = 365
	}
	return &SQLiteStore{
		dbPath:        dbPath,
		retentionDays: retentionDays,
		runs: runTable{
			table:       DefaultRunTable,
			placeholder: func(int) string { return "?" },
		},
	}, nil
}

// SetStateBox resolves the database path inside the state directory.
// It must be called before Initialize.
func (s *SQLiteStore) SetStateBox(sb *util.StateBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateBox = sb
}

// Initialize opens the database and creates the schema. In read-only mode the
// file is opened read-only and must already exist.
func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stateBox != nil {
		if filepath.Base(s.dbPath) == s.dbPath {
			s.dbPath = filepath.Join(s.stateBox.EvaluationsDir(), s.dbPath)
		} else {
			s.dbPath = s.stateBox.ResolvePath(s.dbPath)
		}
	}

	readOnly := s.stateBox != nil && s.stateBox.IsReadOnly()
	dir := filepath.Dir(s.dbPath)
	switch {
	case readOnly:
		if _, err := os.Stat(s.dbPath); err != nil {
			return fmt.Errorf("run history unavailable in read-only mode: %w", err)
		}
	case s.stateBox != nil:
		if err := s.stateBox.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	default:
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := s.dbPath
	if readOnly {
		dsn = fmt.Sprintf("file:%s?mode=ro", s.dbPath)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if !readOnly {
		if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
			db.Close()
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	s.runs.db = db
	s.enabled = true
	log.Infof("evaluation run store initialized (db: %s, read-only: %v)", s.dbPath, readOnly)

	if !readOnly {
		s.pruneLocked(ctx)
	}
	return nil
}

// Path returns the resolved database path.
func (s *SQLiteStore) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dbPath
}

// Save records one run.
func (s *SQLiteStore) Save(ctx context.Context, rec *evaluation.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return fmt.Errorf("run store not initialized")
	}
	if s.stateBox != nil && s.stateBox.IsReadOnly() {
		return util.ErrReadOnlyMode
	}
	return s.runs.save(ctx, rec)
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return nil, fmt.Errorf("run store not initialized")
	}
	return s.runs.recent(ctx, limit)
}

// Load returns the full record of one run.
func (s *SQLiteStore) Load(ctx context.Context, runID string) (*evaluation.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return nil, fmt.Errorf("run store not initialized")
	}
	return s.runs.load(ctx, runID)
}

// pruneLocked removes runs older than the retention period.
func (s *SQLiteStore) pruneLocked(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	res, err := s.runs.db.ExecContext(ctx, "DELETE FROM evaluation_runs WHERE created_at < ?", cutoff)
	if err != nil {
		log.Warnf("failed to prune evaluation runs: %v", err)
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Infof("pruned %d evaluation runs older than %d days", n, s.retentionDays)
	}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil
	}
	s.enabled = false
	if err := s.runs.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
