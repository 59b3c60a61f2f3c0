// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import "sort"

// SortCandidates orders candidates by descending score, breaking ties by
// handler enumeration order. The slice is sorted in place.
func SortCandidates(cs []ScoredCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Handler.Rank() < cs[j].Handler.Rank()
	})
}

// Top returns the first candidate of a ranking.
func Top(cs []ScoredCandidate) (ScoredCandidate, bool) {
	if len(cs) == 0 {
		return ScoredCandidate{}, false
	}
	return cs[0], true
}
