package session

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// ErrEmptyGallery means there is nobody to match against.
var ErrEmptyGallery = errors.New("no known faces found")

// Context is the state of one live attendance session. A fresh Context is
// created for every session start, which is the only place the dedup set resets.
type Context struct {
	ID            string
	StartedAt     time.Time
	Authenticated bool
	Gallery       facematch.Gallery
	Dedup         *DedupSet

	active atomic.Bool
}

// Start creates an active session over gallery. An empty gallery is rejected.
func Start(gallery facematch.Gallery, authenticated bool) (*Context, error) {
	if len(gallery) == 0 {
		return nil, ErrEmptyGallery
	}
	c := &Context{
		ID:            uuid.NewString(),
		StartedAt:     time.Now(),
		Authenticated: authenticated,
		Gallery:       gallery,
		Dedup:         NewDedupSet(),
	}
	c.active.Store(true)
	return c, nil
}

// Active reports whether the session should keep processing frames.
func (c *Context) Active() bool {
	return c.active.Load()
}

// Stop asks the loop to finish after the current frame.
func (c *Context) Stop() {
	c.active.Store(false)
}
