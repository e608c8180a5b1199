// Package ledger is the append-only attendance log.
package ledger

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// TimestampLayout is the on-disk timestamp format, second resolution.
const TimestampLayout = "2006-01-02 15:04:05"

// Backend names accepted by Open.
const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Event is one attendance mark.
type Event struct {
	Identity  facematch.Identity `json:"identity"`
	Timestamp time.Time          `json:"timestamp"`
	SessionID string             `json:"session_id,omitempty"`
}

// NewEvent builds an event with the timestamp truncated to whole seconds.
func NewEvent(id facematch.Identity, at time.Time, sessionID string) Event {
	return Event{Identity: id, Timestamp: at.Truncate(time.Second), SessionID: sessionID}
}

// Mark stamps the current time and appends an event for id.
func Mark(ctx context.Context, r Recorder, id facematch.Identity, sessionID string, now func() time.Time) (Event, error) {
	if now == nil {
		now = time.Now
	}
	e := NewEvent(id, now(), sessionID)
	if err := r.Append(ctx, e); err != nil {
		return Event{}, fmt.Errorf("record attendance for %s: %w", id, err)
	}
	return e, nil
}

// Recorder appends events. Append returns only after the event is durable
// and never deduplicates; that is the caller's job.
type Recorder interface {
	Append(ctx context.Context, e Event) error
}

// Reader lists every recorded event in append order.
type Reader interface {
	ReadAll(ctx context.Context) ([]Event, error)
}

type Ledger interface {
	Recorder
	Reader
	io.Closer
}

// Open creates the ledger selected by configuration.
func Open(ctx context.Context, cfg *config.Config) (Ledger, error) {
	switch cfg.Ledger.Backend {
	case BackendCSV, "":
		return NewCSV(cfg.Ledger.Path), nil
	case BackendSQLite:
		return OpenSQLite(cfg.Ledger.Path)
	case BackendPostgres:
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool, true), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}
