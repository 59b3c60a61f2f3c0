// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestLogFormatter(t *testing.T) {
	entry := log.NewEntry(log.StandardLogger()).WithFields(log.Fields{
		requestIDField: "a1b2c3d4",
		"method":       "classifier",
		"handler":      "nani_kahaniyan",
	})
	entry.Time = time.Date(2026, 10, 19, 20, 14, 4, 0, time.UTC)
	entry.Level = log.WarnLevel
	entry.Message = "Routing decision\n"

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format() failed: %v", err)
	}
	want := "[2026-10-19 20:14:04] [a1b2c3d4] [warn ] Routing decision | handler=nani_kahaniyan, method=classifier\n"
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestLogFormatterWithoutRequestID(t *testing.T) {
	entry := log.NewEntry(log.StandardLogger())
	entry.Level = log.InfoLevel
	entry.Message = "ready"

	out, _ := (&LogFormatter{}).Format(entry)
	if !strings.Contains(string(out), "[--------] [info ] ready") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRequestIDContext(t *testing.T) {
	if RequestID(context.Background()) != "" {
		t.Error("expected empty request id")
	}
	id := NewRequestID()
	if len(id) != 8 {
		t.Errorf("expected 8 characters, got %q", id)
	}
	ctx := WithRequestID(context.Background(), id)
	if RequestID(ctx) != id {
		t.Errorf("expected %s, got %s", id, RequestID(ctx))
	}
	if FromContext(ctx).Data[requestIDField] != id {
		t.Error("entry is missing the request id")
	}
}

func TestEnforceLogDirLimit(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	write := func(name string, size int, age time.Duration) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
			t.Fatal(err)
		}
		_ = os.Chtimes(path, now.Add(-age), now.Add(-age))
		return path
	}
	oldest := write("main-2026-10-01.log", 400, 3*time.Hour)
	older := write("main-2026-10-02.log.gz", 400, 2*time.Hour)
	main := write(MainLogFile, 400, 4*time.Hour)
	other := write("notes.txt", 4000, 5*time.Hour)

	removed, err := enforceLogDirLimit(dir, 900, main)
	if err != nil {
		t.Fatalf("enforceLogDirLimit() failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removal, got %d", removed)
	}
	for path, want := range map[string]bool{oldest: false, older: true, main: true, other: true} {
		_, err := os.Stat(path)
		if exists := err == nil; exists != want {
			t.Errorf("%s exists=%v, want %v", filepath.Base(path), exists, want)
		}
	}
}

func TestResolveLogDir(t *testing.T) {
	if got := ResolveLogDir("/var/log/bhasha"); got != "/var/log/bhasha" {
		t.Errorf("explicit dir must win, got %s", got)
	}
	dir := t.TempDir()
	t.Setenv("BHASHA_STATE_DIR", dir)
	t.Setenv("BHASHA_READONLY", "")
	if got := ResolveLogDir(""); got != filepath.Join(dir, "logs") {
		t.Errorf("unexpected dir %s", got)
	}
}
