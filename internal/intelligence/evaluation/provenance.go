// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evaluation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	log "github.com/sirupsen/logrus"
)

// Provenance identifies the exact corpus an evaluation ran against.
type Provenance struct {
	CorpusSHA256 string `json:"corpus_sha256"`
	Commit       string `json:"commit,omitempty"`
	Branch       string `json:"branch,omitempty"`
	Dirty        bool   `json:"dirty,omitempty"`
}

// CorpusProvenance hashes the corpus file and, when it lives inside a git
// work tree, records the checked out commit. Repository errors are logged
// and leave the git fields empty.
func CorpusProvenance(corpusPath string) (*Provenance, error) {
	data, err := os.ReadFile(corpusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	sum := sha256.Sum256(data)
	p := &Provenance{CorpusSHA256: hex.EncodeToString(sum[:])}

	abs, err := filepath.Abs(corpusPath)
	if err != nil {
		return p, nil
	}
	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		log.Debugf("corpus is not under version control: %v", err)
		return p, nil
	}
	head, err := repo.Head()
	if err != nil {
		log.Debugf("failed to resolve corpus repository HEAD: %v", err)
		return p, nil
	}
	p.Commit = head.Hash().String()
	if head.Name().IsBranch() {
		p.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return p, nil
	}
	status, err := wt.Status()
	if err != nil {
		log.Debugf("failed to read corpus repository status: %v", err)
		return p, nil
	}
	p.Dirty = !status.IsClean()
	return p, nil
}
