// Package session holds the per live-session state: who has already been
// recorded and which gallery the session matches against.
package session

import (
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// DedupSet remembers identities already recorded in the current session.
type DedupSet struct {
	mu     sync.Mutex
	marked map[facematch.Identity]struct{}
	order  []facematch.Identity
}

func NewDedupSet() *DedupSet {
	return &DedupSet{marked: make(map[facematch.Identity]struct{})}
}

// ShouldRecord returns true only the first time an identity is offered.
// The unknown identity is never recorded.
func (d *DedupSet) ShouldRecord(id facematch.Identity) bool {
	if id.IsUnknown() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.marked[id]; ok {
		return false
	}
	d.marked[id] = struct{}{}
	d.order = append(d.order, id)
	return true
}

// Contains reports whether id has been recorded in this session.
func (d *DedupSet) Contains(id facematch.Identity) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.marked[id]
	return ok
}

func (d *DedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.marked)
}

// Marked returns recorded identities in the order they were first seen.
func (d *DedupSet) Marked() []facematch.Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.order)
}
