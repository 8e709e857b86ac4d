// Package connlog keeps the bounded, newest-first audit trail of connection
// events.
package connlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zawrotmc/streamflow/internal/domain"
)

// DefaultMax is the retention used when none is configured.
const DefaultMax = 100

// Log is a bounded connection log. The zero value is not usable; use New.
type Log struct {
	mu      sync.RWMutex
	entries []domain.ConnectionLog // newest first
	max     int
	last    time.Time
	now     func() time.Time
}

// New creates a log retaining at most max entries.
func New(max int) *Log {
	if max <= 0 {
		max = DefaultMax
	}
	return &Log{
		entries: make([]domain.ConnectionLog, 0, max+1),
		max:     max,
		now:     time.Now,
	}
}

// Append assigns an id and timestamp to entry, stores it as the newest entry
// and evicts the oldest beyond the cap. The stored entry is returned.
func (l *Log) Append(entry domain.ConnectionLog) domain.ConnectionLog {
	if !entry.Level.Valid() {
		entry.Level = domain.LevelInfo
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now()
	if ts.Before(l.last) {
		ts = l.last
	}
	l.last = ts

	entry.ID = uuid.New().String()
	entry.Timestamp = ts

	l.entries = append(l.entries, domain.ConnectionLog{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = entry
	if len(l.entries) > l.max {
		clear(l.entries[l.max:])
		l.entries = l.entries[:l.max]
	}

	return entry
}

// Recent returns up to limit entries, newest first. A limit that is not
// positive or exceeds the log size returns every entry.
func (l *Log) Recent(limit int) []domain.ConnectionLog {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]domain.ConnectionLog, limit)
	copy(out, l.entries[:limit])
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Max returns the retention cap.
func (l *Log) Max() int {
	return l.max
}
