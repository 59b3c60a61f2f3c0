// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store keeps the history of evaluation runs in SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/intelligence/evaluation"
	"github.com/traylinx/bhasharouter/internal/util"
)

// DefaultRunTable is the table holding evaluation runs.
const DefaultRunTable = "evaluation_runs"

// ErrRunNotFound is returned by Load for an unknown run id.
var ErrRunNotFound = errors.New("evaluation run not found")

// RunSummary is the headline of one stored run.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Corpus    string    `json:"corpus"`
	Filter    string    `json:"filter,omitempty"`
	Total     int       `json:"total"`
	Correct   int       `json:"correct"`
	Accuracy  float64   `json:"accuracy"`
}

// RunStore records evaluation runs.
type RunStore interface {
	Save(ctx context.Context, rec *evaluation.RunRecord) error
	Recent(ctx context.Context, limit int) ([]RunSummary, error)
	Load(ctx context.Context, runID string) (*evaluation.RunRecord, error)
	Close() error
}

// Open returns the run store selected by cfg, or nil when run history is
// disabled.
func Open(ctx context.Context, cfg config.StoreConfig, sb *util.StateBox) (RunStore, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case config.StoreSQLite:
		path := cfg.DSN
		if path == "" {
			path = "runs.db"
		}
		s, err := NewSQLiteStore(path, 0)
		if err != nil {
			return nil, err
		}
		s.SetStateBox(sb)
		if err := s.Initialize(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case config.StorePostgres:
		return NewPostgresStore(ctx, PostgresStoreConfig{DSN: cfg.DSN})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// runTable holds the SQL shared by both drivers. placeholder renders the
// n-th bind parameter in the driver's dialect.
type runTable struct {
	db          *sql.DB
	table       string
	placeholder func(n int) string
}

func (t *runTable) insertQuery() string {
	return fmt.Sprintf(
		"INSERT INTO %s (run_id, created_at, corpus, filter, total, correct, accuracy, record) VALUES (%s, %s, %s, %s, %s, %s, %s, %s)",
		t.table,
		t.placeholder(1), t.placeholder(2), t.placeholder(3), t.placeholder(4),
		t.placeholder(5), t.placeholder(6), t.placeholder(7), t.placeholder(8),
	)
}

func (t *runTable) recentQuery() string {
	return fmt.Sprintf(
		"SELECT run_id, created_at, corpus, filter, total, correct, accuracy FROM %s ORDER BY created_at DESC, run_id LIMIT %s",
		t.table, t.placeholder(1),
	)
}

func (t *runTable) loadQuery() string {
	return fmt.Sprintf("SELECT record FROM %s WHERE run_id = %s", t.table, t.placeholder(1))
}

func (t *runTable) save(ctx context.Context, rec *evaluation.RunRecord) error {
	if rec == nil || rec.Metrics == nil {
		return fmt.Errorf("run record has no metrics")
	}
	if rec.RunID == "" {
		return fmt.Errorf("run record has no id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}
	_, err = t.db.ExecContext(ctx, t.insertQuery(),
		rec.RunID,
		rec.GeneratedAt.UTC(),
		rec.Corpus,
		rec.Filter,
		rec.Metrics.Total,
		rec.Metrics.Correct,
		rec.Metrics.OverallAccuracy,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation run: %w", err)
	}
	return nil
}

func (t *runTable) recent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := t.db.QueryContext(ctx, t.recentQuery(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluation runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.CreatedAt, &s.Corpus, &s.Filter, &s.Total, &s.Correct, &s.Accuracy); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation run: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluation runs: %w", err)
	}
	return out, nil
}

func (t *runTable) load(ctx context.Context, runID string) (*evaluation.RunRecord, error) {
	var payload string
	err := t.db.QueryRowContext(ctx, t.loadQuery(), runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation run: %w", err)
	}
	var rec evaluation.RunRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode evaluation run: %w", err)
	}
	return &rec, nil
}
