package jobs

import (
	"fmt"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the activity log.
const DefaultMaxEntries = 1000

// Entry is one line of the activity log.
type Entry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// ActivityLog keeps the most recent human-readable events for the
// dashboard. Once full, the oldest entry is evicted for each new one.
type ActivityLog struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
	nextID  int64
	now     func() time.Time
}

// NewActivityLog creates a log holding at most max entries.
func NewActivityLog(max int) *ActivityLog {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	return &ActivityLog{max: max, now: time.Now}
}

// Add appends an entry and returns it.
func (a *ActivityLog) Add(level, message string) Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	e := Entry{ID: a.nextID, Timestamp: a.now(), Level: level, Message: message}
	a.entries = append(a.entries, e)
	if len(a.entries) > a.max {
		a.entries = a.entries[len(a.entries)-a.max:]
	}
	return e
}

// Addf formats and appends an entry.
func (a *ActivityLog) Addf(level, format string, args ...interface{}) Entry {
	return a.Add(level, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the log, oldest first.
func (a *ActivityLog) Entries() []Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of entries held.
func (a *ActivityLog) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Max returns the capacity.
func (a *ActivityLog) Max() int {
	return a.max
}

// Clear drops every entry and returns how many there were. Ids keep
// increasing across clears.
func (a *ActivityLog) Clear() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.entries)
	a.entries = nil
	return n
}
