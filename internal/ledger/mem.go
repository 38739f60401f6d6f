package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process Ledger used by tests. It does not survive a
// restart.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// Compile-time interface check.
var _ Ledger = (*Memory)(nil)

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[id]
	return ok, nil
}

func (m *Memory) Record(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[id] = struct{}{}
	return nil
}

func (m *Memory) Close() error { return nil }
