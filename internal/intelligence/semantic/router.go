// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/traylinx/bhasharouter/internal/intelligence/embedding"
	"github.com/traylinx/bhasharouter/internal/routing"
)

// Router ranks handlers by cosine similarity between the request embedding
// and the handler's closest reference phrase.
type Router struct {
	encoder embedding.Encoder
	table   *ReferenceTable
}

// NewRouter creates a similarity router. The encoder must produce vectors of
// the table's dimension.
func NewRouter(encoder embedding.Encoder, table *ReferenceTable) (*Router, error) {
	if encoder == nil || table == nil {
		return nil, fmt.Errorf("similarity router needs an encoder and a reference table")
	}
	if encoder.Dimension() != table.Dimension() {
		return nil, fmt.Errorf("encoder dimension %d does not match reference dimension %d",
			encoder.Dimension(), table.Dimension())
	}
	return &Router{encoder: encoder, table: table}, nil
}

// Method identifies the scores produced by this router.
func (r *Router) Method() routing.Method {
	return routing.MethodSimilarity
}

// Rank scores every handler that has at least one reference vector and
// returns them sorted by descending similarity. Blank text yields an empty
// ranking. Encoder failures and malformed vectors wrap
// routing.ErrCapabilityUnavailable.
//
// Parameters:
//   - ctx: Context passed to the encoder
//   - text: The request text
//
// Returns:
//   - []routing.ScoredCandidate: Ranked candidates with scores in [-1, 1]
//   - error: Capability failure
func (r *Router) Rank(ctx context.Context, text string) ([]routing.ScoredCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	query, err := r.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", routing.ErrCapabilityUnavailable, err)
	}
	if len(query) != r.table.Dimension() {
		return nil, fmt.Errorf("%w: request embedding has dimension %d, want %d",
			routing.ErrCapabilityUnavailable, len(query), r.table.Dimension())
	}
	if !embedding.Finite(query) {
		return nil, fmt.Errorf("%w: request embedding has non-finite components", routing.ErrCapabilityUnavailable)
	}

	candidates := make([]routing.ScoredCandidate, 0, len(routing.Handlers()))
	for _, h := range routing.Handlers() {
		refs := r.table.References(h)
		if len(refs) == 0 {
			continue
		}
		best := -1.0
		for _, ref := range refs {
			if sim := embedding.CosineSimilarity(query, ref.Vector); sim > best {
				best = sim
			}
		}
		candidates = append(candidates, routing.ScoredCandidate{
			Handler: h,
			Score:   best,
			Method:  routing.MethodSimilarity,
		})
	}

	routing.SortCandidates(candidates)
	return candidates, nil
}
