// Package progress tracks per-file processing status for polling consumers.
package progress

import (
	"fmt"
	"sync"
)

// Status is the current processing state of one file. Percent is clamped to
// [0,100] on write.
type Status struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
	Percent int    `json:"progress"`
}

// Tracker is a process-wide progress store keyed by (folder, filename).
// Writes replace the whole record (last writer wins at key granularity), so
// concurrent updaters never interleave partial state. Create one per process
// and inject it; it is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]Status
}

// NewTracker creates an empty progress tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]Status)}
}

func key(folderID, filename string) string {
	return fmt.Sprintf("%s/%s", folderID, filename)
}

// Update records the current phase, message and percent for a file,
// replacing any previous record. Percent values above 100 are clamped;
// negative values are floored at 0.
func (t *Tracker) Update(folderID, filename, phase, message string, percent int) {
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key(folderID, filename)] = Status{Phase: phase, Message: message, Percent: percent}
}

// Get returns the current status for a file and whether one is being
// tracked. Callers map a missing entry to a neutral "not processing" state.
func (t *Tracker) Get(folderID, filename string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[key(folderID, filename)]
	return s, ok
}

// Clear removes a file's progress record. Every processing path must call
// this on both success and failure so a finished file never shows a stale
// mid-phase status.
func (t *Tracker) Clear(folderID, filename string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key(folderID, filename))
}
