package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// CSV stores events as "name,YYYY-MM-DD HH:MM:SS" rows without a header.
// Timestamps are written in local time.
type CSV struct {
	path string
	mu   sync.Mutex
}

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Path() string {
	return c.path
}

// Append writes one row and fsyncs the file before returning.
func (c *CSV) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{string(e.Identity), e.Timestamp.Local().Format(TimestampLayout)}); err != nil {
		f.Close()
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush ledger row: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}

// ReadAll returns all rows. A missing file is an empty ledger. Rows that do
// not parse are skipped.
func (c *CSV) ReadAll(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var events []Event
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		ts, err := time.ParseInLocation(TimestampLayout, record[1], time.Local)
		if err != nil {
			continue
		}
		events = append(events, Event{Identity: facematch.Identity(record[0]), Timestamp: ts})
	}
	return events, nil
}

func (c *CSV) Close() error {
	return nil
}
