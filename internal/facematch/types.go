// Package facematch holds the face gallery data model and the nearest-neighbour matcher
// shared between the live stream loop, the CLI and the web handlers.
package facematch

import "image"

// Identity is the label of an enrolled person. The zero value means unknown.
type Identity string

// Unknown is returned when no gallery entry is close enough.
const Unknown Identity = ""

// IsUnknown reports whether the identity is the unknown marker.
func (id Identity) IsUnknown() bool {
	return id == Unknown
}

func (id Identity) String() string {
	return string(id)
}

// Embedding is a fixed-length face descriptor produced by an embedder.
type Embedding []float32

// GalleryEntry pairs an enrolled identity with one reference embedding.
type GalleryEntry struct {
	Identity  Identity
	Embedding Embedding
	Source    string // enrollment image the embedding came from
}

// Gallery is the ordered set of reference embeddings. It is built once
// per load and only read afterwards, so sessions may share it.
type Gallery []GalleryEntry

// Identities returns the distinct identities in gallery order.
func (g Gallery) Identities() []Identity {
	seen := make(map[Identity]bool, len(g))
	out := make([]Identity, 0, len(g))
	for _, e := range g {
		if seen[e.Identity] {
			continue
		}
		seen[e.Identity] = true
		out = append(out, e.Identity)
	}
	return out
}

// Observation is a single detected face in a frame.
type Observation struct {
	Box       image.Rectangle // pixel coordinates in the frame
	Embedding Embedding
}

// MatchResult is the outcome of matching one embedding against a gallery.
type MatchResult struct {
	Identity Identity
	Distance float64 // distance to the nearest entry, +Inf for an empty gallery
	Index    int     // gallery index of the nearest entry, -1 when none
	Matched  bool    // true when Distance <= threshold
}
