package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"registrar/internal/eventlog"
	"registrar/internal/judgement/models"
	"registrar/internal/notifier/metrics"
	"registrar/pkg/platform/sentinel"
)

// DefaultInterval is the polling cadence when none is configured.
const DefaultInterval = time.Second

// StateReader resolves the current judgement state for an event's context.
type StateReader interface {
	FetchState(ctx context.Context, ic models.IdentityContext) (models.JudgementState, error)
}

// Notifier periodically drains the event log past its cursor and forwards
// each event, paired with the owning identity's current judgement state, to
// the sink. Delivery is at-least-once: the cursor is persisted after
// processing, so a crash between delivery and cursor save redelivers.
type Notifier struct {
	log      eventlog.Log
	states   StateReader
	cursors  CursorStore
	sink     Sink
	consumer string
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Notifier.
type Option func(*Notifier)

// WithInterval overrides the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.interval = d
		}
	}
}

// WithLogger sets a logger for tick reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

func New(log eventlog.Log, states StateReader, cursors CursorStore, sink Sink, consumer string, opts ...Option) (*Notifier, error) {
	if log == nil || states == nil || cursors == nil || sink == nil {
		return nil, fmt.Errorf("event log, state reader, cursor store and sink are required")
	}
	if consumer == "" {
		return nil, fmt.Errorf("consumer name is required")
	}
	n := &Notifier{
		log:      log,
		states:   states,
		cursors:  cursors,
		sink:     sink,
		consumer: consumer,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Run polls until the context is cancelled. Tick errors are logged and the
// next tick retries from the persisted cursor; there is no mid-tick
// cancellation, a started pass runs to completion or error.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.tick(ctx); err != nil {
				if n.logger != nil {
					n.logger.ErrorContext(ctx, "notifier tick failed", "error", err)
				}
			}
		}
	}
}

// tick runs one polling pass. States are cached per context for the duration
// of the pass only; the cache never carries over to the next tick, so
// notifications always reflect the freshest state a tick can see.
func (n *Notifier) tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		n.metrics.ObserveTick(time.Since(start))
	}()

	cursor, err := n.cursors.Load(ctx, n.consumer)
	if err != nil {
		return err
	}
	events, err := n.log.ReadAfter(ctx, cursor)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		n.metrics.IncTick()
		return nil
	}

	cache := make(map[string]models.JudgementState)
	processed := cursor
	for _, ev := range events {
		key := ev.Message.Context.Key()
		state, ok := cache[key]
		if !ok {
			state, err = n.states.FetchState(ctx, ev.Message.Context)
			if errors.Is(err, sentinel.ErrNotFound) {
				// The record vanished between append and delivery. Skip the
				// event rather than wedging the whole log behind it.
				if n.logger != nil {
					n.logger.WarnContext(ctx, "no judgement state for event, skipping",
						"event_id", ev.ID,
						"context", ev.Message.Context.String(),
					)
				}
				n.metrics.IncSkipped()
				processed = ev.ID
				continue
			}
			if err != nil {
				return n.saveProgress(ctx, cursor, processed, err)
			}
			cache[key] = state
		}

		if err := n.sink.Notify(ctx, state, []models.NotificationMessage{ev.Message}); err != nil {
			return n.saveProgress(ctx, cursor, processed, err)
		}
		n.metrics.IncDelivered()
		processed = ev.ID
	}

	if err := n.cursors.Save(ctx, n.consumer, processed); err != nil {
		return err
	}
	n.metrics.IncTick()
	return nil
}

// saveProgress persists the cursor up to the last handled event before
// returning a mid-pass error, so the retry does not redeliver what already
// went out.
func (n *Notifier) saveProgress(ctx context.Context, loaded, processed int64, cause error) error {
	if processed > loaded {
		if err := n.cursors.Save(ctx, n.consumer, processed); err != nil && n.logger != nil {
			n.logger.ErrorContext(ctx, "failed to save cursor progress", "error", err)
		}
	}
	return cause
}
