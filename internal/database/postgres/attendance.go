package postgres

import (
	"context"
	"fmt"
	"time"
)

// AttendanceRow is one stored attendance mark.
type AttendanceRow struct {
	ID        int64
	Identity  string
	MarkedAt  time.Time
	SessionID string
}

// AttendanceRepository stores attendance marks in the attendance table.
type AttendanceRepository struct {
	pool *Pool
}

func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// Insert appends one mark. The row is committed when Insert returns.
func (r *AttendanceRepository) Insert(ctx context.Context, identity string, markedAt time.Time, sessionID string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		"INSERT INTO attendance (identity, marked_at, session_id) VALUES ($1, $2, $3) RETURNING id",
		identity, markedAt, sessionID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert attendance: %w", err)
	}
	return id, nil
}

// List returns all marks in insertion order.
func (r *AttendanceRepository) List(ctx context.Context) ([]AttendanceRow, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, identity, marked_at, session_id FROM attendance ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var result []AttendanceRow
	for rows.Next() {
		var row AttendanceRow
		if err := rows.Scan(&row.ID, &row.Identity, &row.MarkedAt, &row.SessionID); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return result, nil
}
