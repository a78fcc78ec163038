package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tuncanbit/qrpay/internal/domain"
)

// MemoryJournal keeps entries in insertion order.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []domain.JournalEntry
}

func (j *MemoryJournal) Record(ctx context.Context, entry *domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	j.entries = append(j.entries, *entry)
	return nil
}

func (j *MemoryJournal) List(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.JournalEntry, len(j.entries))
	copy(out, j.entries)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Events returns the recorded event names in order.
func (j *MemoryJournal) Events() []domain.JournalEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]domain.JournalEvent, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e.Event)
	}
	return out
}
