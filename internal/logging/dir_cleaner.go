// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const logDirCleanInterval = 5 * time.Minute

var (
	cleanerStop chan struct{}
	cleanerDone chan struct{}
)

// configureLogDirCleanerLocked restarts the cleaner goroutine. Callers hold writerMu.
func configureLogDirCleanerLocked(dir string, maxTotalMB int, protectedPath string) {
	stopLogDirCleanerLocked()
	if maxTotalMB <= 0 {
		return
	}
	limit := int64(maxTotalMB) * 1024 * 1024
	stop := make(chan struct{})
	done := make(chan struct{})
	cleanerStop, cleanerDone = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(logDirCleanInterval)
		defer ticker.Stop()
		for {
			if removed, err := enforceLogDirLimit(dir, limit, protectedPath); err != nil {
				log.Debugf("log dir cleaner: %v", err)
			} else if removed > 0 {
				log.Infof("log dir cleaner: removed %d old log files from %s", removed, dir)
			}
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// stopLogDirCleanerLocked stops the running cleaner. Callers hold writerMu.
func stopLogDirCleanerLocked() {
	if cleanerStop == nil {
		return
	}
	close(cleanerStop)
	<-cleanerDone
	cleanerStop, cleanerDone = nil, nil
}

// enforceLogDirLimit deletes the oldest *.log and *.log.gz files in dir until
// their total size is at most limit. protectedPath is never removed.
func enforceLogDirLimit(dir string, limit int64, protectedPath string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	type logFile struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []logFile
	var total int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".log.gz")) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		path := filepath.Join(dir, name)
		if path == protectedPath {
			continue
		}
		files = append(files, logFile{path: path, size: info.Size(), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	removed := 0
	for _, f := range files {
		if total <= limit {
			break
		}
		if err := os.Remove(f.path); err != nil {
			log.Warnf("log dir cleaner: failed to remove %s: %v", f.path, err)
			continue
		}
		total -= f.size
		removed++
	}
	return removed, nil
}
