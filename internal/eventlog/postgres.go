package eventlog

import (
	"context"
	"database/sql"
	"fmt"

	"registrar/internal/judgement/models"
)

// Postgres stores events in the judgement_events table. Ids come from the
// judgement_event_ids sequence: a durable, atomic increment-and-fetch shared
// by all writers, so the counter survives restarts and never reissues an id.
type Postgres struct {
	db *sql.DB
}

// AppendLockKey is the advisory lock key held for the duration of an append
// transaction. It keeps id assignment and commit in the same order across
// writers: an event with a higher id can never become visible before one
// with a lower id, so a reader that advances its cursor past id N has seen
// every event up to N.
const AppendLockKey int64 = 0x6a756467

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (l *Postgres) Append(ctx context.Context, msg models.NotificationMessage) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, AppendLockKey); err != nil {
		return fmt.Errorf("lock event log: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO judgement_events (id, kind, chain, address, field_value)
		 VALUES (nextval('judgement_event_ids'), $1, $2, $3, $4)`,
		msg.Kind, msg.Context.Chain, msg.Context.Address, msg.Field,
	); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

func (l *Postgres) ReadAfter(ctx context.Context, cursor int64) ([]models.Event, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, chain, address, field_value
		 FROM judgement_events
		 WHERE id > $1
		 ORDER BY id ASC`,
		cursor,
	)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Message.Kind, &ev.Message.Context.Chain, &ev.Message.Context.Address, &ev.Message.Field); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
