package ledger

import (
	"context"

	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Postgres stores events in the attendance table. Each append is its own
// committed statement.
type Postgres struct {
	pool     *postgres.Pool
	repo     *postgres.AttendanceRepository
	ownsPool bool
}

// NewPostgres wraps pool. When ownsPool is set Close also closes the pool.
func NewPostgres(pool *postgres.Pool, ownsPool bool) *Postgres {
	return &Postgres{pool: pool, repo: postgres.NewAttendanceRepository(pool), ownsPool: ownsPool}
}

func (p *Postgres) Append(ctx context.Context, e Event) error {
	_, err := p.repo.Insert(ctx, string(e.Identity), e.Timestamp, e.SessionID)
	return err
}

func (p *Postgres) ReadAll(ctx context.Context) ([]Event, error) {
	rows, err := p.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, Event{
			Identity:  facematch.Identity(r.Identity),
			Timestamp: r.MarkedAt.Local(),
			SessionID: r.SessionID,
		})
	}
	return events, nil
}

func (p *Postgres) Close() error {
	if !p.ownsPool {
		return nil
	}
	return p.pool.Close()
}
