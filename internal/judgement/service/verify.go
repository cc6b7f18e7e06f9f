package service

import (
	"context"
	"fmt"
	"time"

	"registrar/internal/judgement/models"
)

// Outcome classifies how a single record responded to an inbound message.
type Outcome string

const (
	OutcomeValid                   Outcome = "valid"
	OutcomeInvalid                 Outcome = "invalid"
	OutcomeAlreadyVerified         Outcome = "already_verified"
	OutcomeSecondChallengeExpected Outcome = "second_challenge_expected"
	OutcomeNotFound                Outcome = "not_found"
)

// FieldSelectionError reports an internal consistency violation: a record
// matched the coarse field-value query but the expected field could not be
// located in it. This indicates an indexing bug, not bad user input, and
// should alert operators.
type FieldSelectionError struct {
	Context models.IdentityContext
	Origin  string
}

func (e *FieldSelectionError) Error() string {
	return fmt.Sprintf("field %q matched query but is missing from record %s", e.Origin, e.Context)
}

// VerifyMessage matches an inbound message against every pending field
// claiming its origin account and returns the notifications produced.
// Matching is by field value, not by context: whichever live records claim
// the origin are candidates. A message matching nothing is the common case
// for unsolicited or replayed traffic and yields an empty result.
//
// Verification is one-shot per proof stage. Success marks the challenge
// verified through a conditional positional update; losing that update to a
// concurrent writer produces no duplicate event. Failure increments the
// challenge's failed_attempts with no upper bound here. After each field
// update the record's full-verification flag is recomputed over the
// in-memory snapshot, and its transition to true is persisted and announced
// at most once per record per pass.
//
// Every produced notification is appended to the event log before returning.
func (s *Service) VerifyMessage(ctx context.Context, msg models.ExternalMessage) ([]models.NotificationMessage, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveVerifyLatency(time.Since(start))
	}()

	states, err := s.store.FindByFieldValue(ctx, msg.Origin)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		s.metrics.IncOutcome(string(OutcomeNotFound))
		return nil, nil
	}

	var events []models.NotificationMessage
	for i := range states {
		state := &states[i]

		outcome, produced, err := s.verifyAgainst(ctx, state, msg)
		if err != nil {
			return nil, err
		}
		events = append(events, produced...)
		s.metrics.IncOutcome(string(outcome))
		s.logf(ctx, "message verified",
			"context", state.Context.String(),
			"origin", msg.Origin,
			"outcome", string(outcome),
		)
	}

	for _, ev := range events {
		if err := s.log.Append(ctx, ev); err != nil {
			return nil, err
		}
	}
	return events, nil
}

// verifyAgainst evaluates the message against one matched record, mutating
// the in-memory snapshot alongside the persisted state.
func (s *Service) verifyAgainst(ctx context.Context, state *models.JudgementState, msg models.ExternalMessage) (Outcome, []models.NotificationMessage, error) {
	field := state.FieldByValue(msg.Origin)
	if field == nil {
		// The coarse query said this record claims the origin; not finding
		// the field here is a latent indexing bug.
		return "", nil, &FieldSelectionError{Context: state.Context, Origin: msg.Origin}
	}

	challenge := field.PendingChallenge()
	if challenge == nil {
		// One-shot: a verified field never re-verifies and never re-notifies.
		return OutcomeAlreadyVerified, nil, nil
	}

	var (
		outcome Outcome
		events  []models.NotificationMessage
	)
	if challenge.Accepts(msg) {
		changed, err := s.store.MarkChallengeVerified(ctx, msg.Origin, challenge.Value)
		if err != nil {
			return "", nil, err
		}
		if !changed {
			// A concurrent writer verified this challenge first; it also
			// owns the notification.
			return OutcomeAlreadyVerified, nil, nil
		}
		challenge.IsVerified = true

		if field.IsVerified() {
			outcome = OutcomeValid
			events = append(events, models.FieldVerified(state.Context, field.Value))
		} else {
			outcome = OutcomeSecondChallengeExpected
		}
	} else {
		if err := s.store.RecordFailedAttempt(ctx, msg.Origin, challenge.Value); err != nil {
			return "", nil, err
		}
		challenge.FailedAttempts++
		outcome = OutcomeInvalid
		events = append(events, models.FieldVerificationFailed(state.Context, field.Value))
	}

	if !state.IsFullyVerified && state.AllFieldsVerified() {
		if err := s.store.SetFullyVerified(ctx, state.Context); err != nil {
			return "", nil, err
		}
		state.IsFullyVerified = true
		events = append(events, models.IdentityFullyVerified(state.Context))
		s.metrics.IncFullyVerified()
	}
	return outcome, events, nil
}
