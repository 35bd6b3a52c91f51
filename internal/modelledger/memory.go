package modelledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLedger keeps the chain in process memory.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemory returns a MemoryLedger holding only the genesis entry.
func NewMemory() *MemoryLedger {
	return &MemoryLedger{entries: []*Entry{genesis(time.Now().UTC())}}
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, ev Event) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, err := newEntry(l.entries[len(l.entries)-1], ev, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	l.entries = append(l.entries, e)
	return e, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, index int) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return nil, fmt.Errorf("index %d out of range", index)
	}
	return l.entries[index], nil
}

// Recent implements Ledger.
func (l *MemoryLedger) Recent(_ context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Entry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.entries[i])
	}
	return out, nil
}

// Len implements Ledger.
func (l *MemoryLedger) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var prev *Entry
	for _, curr := range l.entries {
		if err := verifyLink(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	return nil
}

// Root implements Ledger.
func (l *MemoryLedger) Root(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[len(l.entries)-1].Hash, nil
}
