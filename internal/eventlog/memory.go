package eventlog

import (
	"context"
	"sync"

	"registrar/internal/judgement/models"
)

// InMemory is a process-local log for tests and local development.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	events []models.Event
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (l *InMemory) Append(_ context.Context, msg models.NotificationMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.events = append(l.events, models.Event{ID: l.nextID, Message: msg})
	return nil
}

func (l *InMemory) ReadAfter(_ context.Context, cursor int64) ([]models.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.Event
	for _, ev := range l.events {
		if ev.ID > cursor {
			out = append(out, ev)
		}
	}
	return out, nil
}
