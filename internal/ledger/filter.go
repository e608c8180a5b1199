package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Query narrows a ledger listing for display.
type Query struct {
	Name  string    // case and diacritics insensitive substring of the identity
	Since time.Time // inclusive, zero means no lower bound
	Until time.Time // exclusive, zero means no upper bound
}

// Filter returns events matching q, keeping their order.
func Filter(events []Event, q Query) []Event {
	name := facematch.NormalizePersonName(q.Name)
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if name != "" && !strings.Contains(facematch.NormalizePersonName(string(e.Identity)), name) {
			continue
		}
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !e.Timestamp.Before(q.Until) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IdentityCount is the number of marks for one identity.
type IdentityCount struct {
	Identity facematch.Identity `json:"identity"`
	Count    int                `json:"count"`
	Last     time.Time          `json:"last"`
}

// Summarize counts marks per identity, most marked first, ties by name.
func Summarize(events []Event) []IdentityCount {
	byID := make(map[facematch.Identity]*IdentityCount)
	for _, e := range events {
		c, ok := byID[e.Identity]
		if !ok {
			c = &IdentityCount{Identity: e.Identity}
			byID[e.Identity] = c
		}
		c.Count++
		if e.Timestamp.After(c.Last) {
			c.Last = e.Timestamp
		}
	}

	out := make([]IdentityCount, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

// ParseTime reads a query bound given as a date, a ledger timestamp or
// RFC 3339. Dates and ledger timestamps are local time.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.DateOnly, TimestampLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised time %q", s)
	}
	return t, nil
}
