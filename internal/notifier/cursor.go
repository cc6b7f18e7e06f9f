package notifier

import (
	"context"
	"sync"
)

// CursorStore persists a consumer's last-seen position in the event log so a
// restart resumes where the previous process stopped instead of re-deriving
// the cursor from wall-clock time.
type CursorStore interface {
	// Load returns the consumer's cursor, or 0 when the consumer has no
	// recorded position yet.
	Load(ctx context.Context, consumer string) (int64, error)
	// Save records the consumer's cursor.
	Save(ctx context.Context, consumer string, cursor int64) error
}

// InMemoryCursors keeps cursors in process memory for tests and local runs.
type InMemoryCursors struct {
	mu      sync.RWMutex
	cursors map[string]int64
}

func NewInMemoryCursors() *InMemoryCursors {
	return &InMemoryCursors{cursors: make(map[string]int64)}
}

func (c *InMemoryCursors) Load(_ context.Context, consumer string) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursors[consumer], nil
}

func (c *InMemoryCursors) Save(_ context.Context, consumer string, cursor int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[consumer] = cursor
	return nil
}
