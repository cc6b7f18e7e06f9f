package notifier

import (
	"context"
	"log/slog"

	"registrar/internal/judgement/models"
)

// Sink receives resolved notification batches from the notifier. The state
// is the identity's judgement state at delivery time, not at event creation:
// notifications always reflect latest truth.
type Sink interface {
	Notify(ctx context.Context, state models.JudgementState, events []models.NotificationMessage) error
}

// LogSink writes notifications to the logger. It is the default sink when no
// broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, state models.JudgementState, events []models.NotificationMessage) error {
	for _, ev := range events {
		s.logger.InfoContext(ctx, "notification",
			"kind", string(ev.Kind),
			"context", ev.Context.String(),
			"field", ev.Field,
			"fully_verified", state.IsFullyVerified,
		)
	}
	return nil
}
