package eventlog

import (
	"context"

	"registrar/internal/judgement/models"
)

// Log is the append-only record decoupling state mutation from notification
// delivery. Append assigns the next value of a strictly increasing,
// single-owner sequence; ReadAfter returns events with id > cursor in
// ascending id order. Id order is the log's total order: no reordering and
// no deduplication happen at this layer.
type Log interface {
	Append(ctx context.Context, msg models.NotificationMessage) error
	ReadAfter(ctx context.Context, cursor int64) ([]models.Event, error)
}
