package gallery

import (
	"fmt"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Index kinds accepted by NewIndex.
const (
	IndexLinear = "linear"
	IndexHNSW   = "hnsw"
)

// HNSW parameters.
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWCandidates is how many neighbours are rescored exactly per query.
	HNSWCandidates = 8

	// hnswMinEntries is the gallery size below which a graph is not worth building.
	hnswMinEntries = 64
)

// Index resolves an embedding to the nearest gallery identity.
type Index interface {
	Match(e facematch.Embedding) facematch.MatchResult
	Len() int
}

// NewIndex builds an index of the given kind over gallery.
func NewIndex(kind string, gallery facematch.Gallery, matcher *facematch.Matcher) (Index, error) {
	switch kind {
	case IndexLinear, "":
		return &LinearIndex{gallery: gallery, matcher: matcher}, nil
	case IndexHNSW:
		return NewHNSWIndex(gallery, matcher), nil
	default:
		return nil, fmt.Errorf("unknown match index %q", kind)
	}
}

// LinearIndex compares against every entry. Results are exact.
type LinearIndex struct {
	gallery facematch.Gallery
	matcher *facematch.Matcher
}

func (l *LinearIndex) Match(e facematch.Embedding) facematch.MatchResult {
	return l.matcher.Match(e, l.gallery)
}

func (l *LinearIndex) Len() int {
	return len(l.gallery)
}

// HNSWIndex narrows the search with an HNSW graph and rescores the
// candidates exactly. Small galleries fall back to a linear scan.
type HNSWIndex struct {
	graph   *hnsw.Graph[int]
	dims    int
	gallery facematch.Gallery
	matcher *facematch.Matcher
}

// NewHNSWIndex builds the graph keyed by gallery position.
func NewHNSWIndex(gallery facematch.Gallery, matcher *facematch.Matcher) *HNSWIndex {
	h := &HNSWIndex{gallery: gallery, matcher: matcher}
	if len(gallery) < hnswMinEntries {
		return h
	}

	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	dims := len(gallery[0].Embedding)
	for i, entry := range gallery {
		if len(entry.Embedding) != dims || dims == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, []float32(entry.Embedding)))
	}
	h.graph = g
	h.dims = dims
	return h
}

func (h *HNSWIndex) Match(e facematch.Embedding) facematch.MatchResult {
	if h.graph == nil || h.graph.Len() == 0 || len(e) != h.dims {
		return h.matcher.Match(e, h.gallery)
	}

	neighbors := h.graph.Search([]float32(e), HNSWCandidates)
	candidates := make([]int, len(neighbors))
	for i, n := range neighbors {
		candidates[i] = n.Key
	}
	return h.matcher.MatchCandidates(e, h.gallery, candidates)
}

func (h *HNSWIndex) Len() int {
	return len(h.gallery)
}
