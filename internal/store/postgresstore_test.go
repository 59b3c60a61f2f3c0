// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/traylinx/bhasharouter/internal/intelligence/evaluation"
)

func sampleRecord(id string) *evaluation.RunRecord {
	return &evaluation.RunRecord{
		RunID:       id,
		GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Corpus:      "data/corpus.yaml",
		Metrics:     &evaluation.Metrics{Total: 5, Correct: 4, OverallAccuracy: 0.8},
	}
}

func TestPostgresStoreSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	s := newPostgresStore(db, PostgresStoreConfig{Schema: "bhasha"})
	if s.runs.table != `"bhasha"."evaluation_runs"` {
		t.Fatalf("unexpected table name %s", s.runs.table)
	}

	rec := sampleRecord("run-1")
	mock.ExpectExec(regexp.QuoteMeta(s.runs.insertQuery())).
		WithArgs("run-1", rec.GeneratedAt, "data/corpus.yaml", "", 5, 4, 0.8, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.Save(context.Background(), rec); err != nil {
		t.Errorf("error was not expected while saving run: %s", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresStoreRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := newPostgresStore(db, PostgresStoreConfig{})
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"run_id", "created_at", "corpus", "filter", "total", "correct", "accuracy"}).
		AddRow("run-2", created.Add(time.Hour), "data/corpus.yaml", `ExpectedLanguage == "hindi"`, 8, 8, 1.0).
		AddRow("run-1", created, "data/corpus.yaml", "", 5, 4, 0.8)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT run_id, created_at, corpus, filter, total, correct, accuracy FROM "evaluation_runs" ORDER BY created_at DESC, run_id LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(rows)

	runs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("error was not expected while listing runs: %s", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-2" || runs[1].Accuracy != 0.8 {
		t.Errorf("unexpected runs: %+v", runs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresStoreLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := newPostgresStore(db, PostgresStoreConfig{RunTable: "runs"})
	query := regexp.QuoteMeta(`SELECT record FROM "runs" WHERE run_id = $1`)

	mock.ExpectQuery(query).WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"record"}).
			AddRow(`{"run_id":"run-1","corpus":"c.yaml","overall_stats":{"total":5,"correct":4,"overall_accuracy":0.8}}`))
	mock.ExpectQuery(query).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"record"}))

	rec, err := s.Load(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("error was not expected while loading run: %s", err)
	}
	if rec.Metrics == nil || rec.Metrics.OverallAccuracy != 0.8 {
		t.Errorf("unexpected record: %+v", rec)
	}

	_, err = s.Load(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := newPostgresStore(db, PostgresStoreConfig{Schema: `we"ird`})
	mock.ExpectExec(regexp.QuoteMeta(`CREATE SCHEMA IF NOT EXISTS "we""ird"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "we""ird"."evaluation_runs"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("error was not expected while creating schema: %s", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestSaveRejectsIncompleteRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := newPostgresStore(db, PostgresStoreConfig{})
	if err := s.Save(context.Background(), &evaluation.RunRecord{RunID: "x"}); err == nil {
		t.Error("expected error for a record without metrics")
	}
	if err := s.Save(context.Background(), &evaluation.RunRecord{Metrics: &evaluation.Metrics{}}); err == nil {
		t.Error("expected error for a record without id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
