// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/bhasharouter/internal/intelligence/evaluation"
)

// PostgresStoreConfig captures configuration required to initialize a Postgres-backed store.
type PostgresStoreConfig struct {
	DSN      string
	Schema   string
	RunTable string
}

// PostgresStore keeps evaluation runs in PostgreSQL so several hosts can
// share one history.
type PostgresStore struct {
	db   *sql.DB
	cfg  PostgresStoreConfig
	runs runTable
}

// NewPostgresStore connects to PostgreSQL and ensures the run table exists.
func NewPostgresStore(ctx context.Context, cfg PostgresStoreConfig) (*PostgresStore, error) {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres store: DSN is required")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping database: %w", err)
	}

	s := newPostgresStore(db, cfg)
	if err = s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Infof("evaluation run store connected to postgres (table: %s)", s.runs.table)
	return s, nil
}

func newPostgresStore(db *sql.DB, cfg PostgresStoreConfig) *PostgresStore {
	cfg.Schema = strings.TrimSpace(cfg.Schema)
	cfg.RunTable = strings.TrimSpace(cfg.RunTable)
	if cfg.RunTable == "" {
		cfg.RunTable = DefaultRunTable
	}
	s := &PostgresStore{db: db, cfg: cfg}
	s.runs = runTable{
		db:          db,
		table:       s.fullTableName(cfg.RunTable),
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
	return s
}

// EnsureSchema creates the schema and run table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s.cfg.Schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(s.cfg.Schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("postgres store: create schema: %w", err)
		}
	}
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		run_id TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		corpus TEXT NOT NULL,
		filter TEXT NOT NULL DEFAULT '',
		total INTEGER NOT NULL,
		correct INTEGER NOT NULL,
		accuracy DOUBLE PRECISION NOT NULL,
		record JSONB NOT NULL
	)`, s.runs.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres store: create run table: %w", err)
	}
	return nil
}

// Save records one run.
func (s *PostgresStore) Save(ctx context.Context, rec *evaluation.RunRecord) error {
	return s.runs.save(ctx, rec)
}

// Recent returns up to limit runs, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.runs.recent(ctx, limit)
}

// Load returns the full record of one run.
func (s *PostgresStore) Load(ctx context.Context, runID string) (*evaluation.RunRecord, error) {
	return s.runs.load(ctx, runID)
}

// Close releases the database connection.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) fullTableName(name string) string {
	if s.cfg.Schema == "" {
		return quoteIdentifier(name)
	}
	return quoteIdentifier(s.cfg.Schema) + "." + quoteIdentifier(name)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}
