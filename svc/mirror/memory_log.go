package mirror

import (
	"context"
	"sync"
	"time"
)

// MemoryLog keeps the notification log in process memory.
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string]Entry
	orphans map[string]Orphan
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		entries: make(map[string]Entry),
		orphans: make(map[string]Orphan),
	}
}

// Begin claims e.ID under the log's lock.
func (l *MemoryLog) Begin(_ context.Context, e Entry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.entries[e.ID]; ok && !claimable(prev, e.ReceivedAt) {
		return false, nil
	}
	e.ClaimedAt = e.ReceivedAt
	e.ProcessedAt = time.Time{}
	e.Error = ""
	l.entries[e.ID] = e
	return true, nil
}

// claimable reports whether an existing entry may be claimed again at now.
func claimable(prev Entry, now time.Time) bool {
	if prev.Error != "" {
		return true
	}
	return prev.ProcessedAt.IsZero() && prev.ClaimedAt.Before(now.Add(-ClaimTTL))
}

// MarkProcessed records a successful run and the user it was applied to.
func (l *MemoryLog) MarkProcessed(_ context.Context, id, userID string, orphan bool, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[id]
	e.ID = id
	e.UserID = userID
	e.Orphan = orphan
	e.ProcessedAt = at
	e.Error = ""
	l.entries[id] = e
	return nil
}

// MarkFailed records a failed run; the entry can be claimed again.
func (l *MemoryLog) MarkFailed(_ context.Context, id, reason string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[id]
	e.ID = id
	e.Error = reason
	e.ProcessedAt = at
	l.entries[id] = e
	return nil
}

// SaveOrphan stores or replaces an orphan by key.
func (l *MemoryLog) SaveOrphan(_ context.Context, o Orphan) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orphans[o.Key] = o
	return nil
}

// Entry returns the log entry for a notification id.
func (l *MemoryLog) Entry(id string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	return e, ok
}

// Orphans returns all recorded orphans.
func (l *MemoryLog) Orphans() []Orphan {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Orphan, 0, len(l.orphans))
	for _, o := range l.orphans {
		out = append(out, o)
	}
	return out
}
