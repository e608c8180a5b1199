package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// DefaultSQLiteFile is used when no path is configured.
const DefaultSQLiteFile = "attendance.sqlite3"

// AttendanceRecord is the gorm model for one mark.
type AttendanceRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Identity  string    `gorm:"index:idx_attendance_identity;not null"`
	MarkedAt  time.Time `gorm:"index:idx_attendance_marked_at;not null"`
	SessionID string    `gorm:"type:varchar(36)"`
}

func (AttendanceRecord) TableName() string {
	return "attendance"
}

// SQLite stores events in a local SQLite database through gorm.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens or creates the database at path and migrates the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = DefaultSQLiteFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	// single writer keeps appends ordered
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&AttendanceRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, e Event) error {
	rec := AttendanceRecord{
		Identity:  string(e.Identity),
		MarkedAt:  e.Timestamp.Truncate(time.Second),
		SessionID: e.SessionID,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (s *SQLite) ReadAll(ctx context.Context) ([]Event, error) {
	var records []AttendanceRecord
	if err := s.db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}

	events := make([]Event, 0, len(records))
	for _, r := range records {
		events = append(events, Event{
			Identity:  facematch.Identity(r.Identity),
			Timestamp: r.MarkedAt.Local(),
			SessionID: r.SessionID,
		})
	}
	return events, nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
