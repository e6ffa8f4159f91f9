package resilience

import (
	"sync"
	"time"
)

// historyCap bounds the per-service operation history.
const historyCap = 100

// HistoryEntry records the outcome of one executed operation.
type HistoryEntry struct {
	OperationID string
	Name        string
	Service     string
	Status      string // "success" or "failure"
	Duration    time.Duration
	Timestamp   time.Time
	Error       string
}

// historyLog is a bounded per-service FIFO of operation outcomes. It has its
// own lock because it is the one structure written by every concurrent call
// for the same service.
type historyLog struct {
	perService map[string][]HistoryEntry
	mu         sync.Mutex
}

func newHistoryLog() *historyLog {
	return &historyLog{perService: make(map[string][]HistoryEntry)}
}

func (h *historyLog) append(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := append(h.perService[entry.Service], entry)
	if len(entries) > historyCap {
		entries = entries[len(entries)-historyCap:]
	}

	h.perService[entry.Service] = entries
}

// entries returns a copy of the service's history, oldest first. A positive
// limit keeps only the most recent entries.
func (h *historyLog) entries(service string, limit int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored := h.perService[service]
	if limit > 0 && len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}

	out := make([]HistoryEntry, len(stored))
	copy(out, stored)

	return out
}
