package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"registrar/internal/eventlog"
	"registrar/internal/judgement/metrics"
	"registrar/internal/judgement/models"
	"registrar/internal/judgement/store"
	"registrar/pkg/platform/sentinel"
)

// Service owns the judgement write path: merging resubmitted requests,
// verifying inbound messages against pending challenges, and appending the
// resulting notifications to the event log. Storage failures surface to the
// caller unmodified; retry policy belongs there.
type Service struct {
	store   store.Store
	log     eventlog.Log
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a logger for verification reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(st store.Store, log eventlog.Log, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("judgement store is required")
	}
	if log == nil {
		return nil, fmt.Errorf("event log is required")
	}
	svc := &Service{store: st, log: log}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// SubmitRequest inserts a new judgement request, or merges it into the
// existing record for the same context. The merge keeps the stored field
// (with its challenge and verification progress) wherever the incoming
// request claims the same account, takes the incoming field otherwise, and
// drops stored fields absent from the request. Any non-empty merge forces
// is_fully_verified back to false pending re-check. Applying the same
// request twice yields the same stored state.
func (s *Service) SubmitRequest(ctx context.Context, request models.JudgementState) error {
	current, err := s.store.FindByContext(ctx, request.Context)
	if errors.Is(err, sentinel.ErrNotFound) {
		if err := s.store.Insert(ctx, request); err != nil {
			return err
		}
		s.metrics.IncRequest("created")
		s.logf(ctx, "judgement request created", "context", request.Context.String(), "fields", len(request.Fields))
		return nil
	}
	if err != nil {
		return err
	}

	merged := mergeFields(current.Fields, request.Fields)

	fullyVerified := current.IsFullyVerified
	if len(merged) > 0 {
		// A resubmission invalidates a prior full verification until the
		// merged field set has been re-checked.
		fullyVerified = false
	}

	if err := s.store.ReplaceFields(ctx, request.Context, merged, fullyVerified); err != nil {
		return err
	}
	s.metrics.IncRequest("merged")
	s.logf(ctx, "judgement request merged", "context", request.Context.String(), "fields", len(merged))
	return nil
}

// mergeFields resolves an incoming field sequence against the stored one.
// Order follows the incoming request. A stored field survives when the
// incoming request claims the same account (kind and value both match).
func mergeFields(current, incoming []models.IdentityField) []models.IdentityField {
	merged := make([]models.IdentityField, 0, len(incoming))
	for _, field := range incoming {
		kept := field
		for _, existing := range current {
			if existing.Kind == field.Kind && existing.Value == field.Value {
				kept = existing
				break
			}
		}
		merged = append(merged, kept)
	}
	return merged
}

// FetchState returns the current judgement state for a context.
// sentinel.ErrNotFound means no active request exists; that is a valid
// outcome, not a failure.
func (s *Service) FetchState(ctx context.Context, ic models.IdentityContext) (models.JudgementState, error) {
	return s.store.FindByContext(ctx, ic)
}

// MarkJudgementProvided records that a judgement was published on-chain for
// the context. The record itself is kept for audit; retention is the
// caller's policy.
func (s *Service) MarkJudgementProvided(ctx context.Context, ic models.IdentityContext) error {
	if err := s.log.Append(ctx, models.JudgementProvided(ic)); err != nil {
		return err
	}
	s.logf(ctx, "judgement provided", "context", ic.String())
	return nil
}

func (s *Service) logf(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}
