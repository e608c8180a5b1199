package facematch

import "math"

// DefaultThreshold is the acceptance distance for 128-d dlib descriptors.
const DefaultThreshold = 0.6

// Matcher resolves embeddings to gallery identities by nearest neighbour.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a matcher using threshold, or DefaultThreshold when
// threshold is not positive.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 || math.IsNaN(threshold) {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold}
}

// Match scans the whole gallery and returns the nearest entry. Ties resolve
// to the entry that comes first in gallery order. An empty gallery yields
// Unknown with infinite distance.
func (m *Matcher) Match(e Embedding, gallery Gallery) MatchResult {
	best := MatchResult{Identity: Unknown, Distance: math.Inf(1), Index: -1}

	for i, entry := range gallery {
		d := EuclideanDistance(e, entry.Embedding)
		// strict less keeps the earliest entry on ties
		if d < best.Distance {
			best.Distance = d
			best.Index = i
		}
	}

	if best.Index >= 0 && withinThreshold(best.Distance, m.Threshold) {
		best.Identity = gallery[best.Index].Identity
		best.Matched = true
	}
	return best
}

// MatchCandidates is Match restricted to the given gallery indexes, used after
// an approximate index has narrowed the search. Candidates are rescored exactly
// and ties still resolve to the lowest gallery index.
func (m *Matcher) MatchCandidates(e Embedding, gallery Gallery, candidates []int) MatchResult {
	best := MatchResult{Identity: Unknown, Distance: math.Inf(1), Index: -1}

	for _, i := range candidates {
		if i < 0 || i >= len(gallery) {
			continue
		}
		d := EuclideanDistance(e, gallery[i].Embedding)
		if d < best.Distance || (d == best.Distance && best.Index >= 0 && i < best.Index) {
			best.Distance = d
			best.Index = i
		}
	}

	if best.Index >= 0 && withinThreshold(best.Distance, m.Threshold) {
		best.Identity = gallery[best.Index].Identity
		best.Matched = true
	}
	return best
}
