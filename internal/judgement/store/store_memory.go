package store

import (
	"context"
	"sync"

	"registrar/internal/judgement/models"
	"registrar/pkg/platform/sentinel"
)

// InMemory keeps judgement state in process memory. It backs unit tests and
// local development; the mutex stands in for the per-record atomicity the
// Postgres implementation gets from single-statement updates.
type InMemory struct {
	mu     sync.RWMutex
	states map[string]models.JudgementState
}

func NewInMemory() *InMemory {
	return &InMemory{states: make(map[string]models.JudgementState)}
}

func (s *InMemory) Insert(_ context.Context, state models.JudgementState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Context.Key()] = cloneState(state)
	return nil
}

func (s *InMemory) ReplaceFields(_ context.Context, ic models.IdentityContext, fields []models.IdentityField, fullyVerified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[ic.Key()]
	if !ok {
		return sentinel.ErrNotFound
	}
	state.Fields = cloneFields(fields)
	state.IsFullyVerified = fullyVerified
	s.states[ic.Key()] = state
	return nil
}

func (s *InMemory) FindByContext(_ context.Context, ic models.IdentityContext) (models.JudgementState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[ic.Key()]
	if !ok {
		return models.JudgementState{}, sentinel.ErrNotFound
	}
	return cloneState(state), nil
}

func (s *InMemory) FindByFieldValue(_ context.Context, origin string) ([]models.JudgementState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []models.JudgementState
	for _, state := range s.states {
		if state.FieldByValue(origin) != nil {
			matches = append(matches, cloneState(state))
		}
	}
	return matches, nil
}

func (s *InMemory) MarkChallengeVerified(_ context.Context, origin, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, state := range s.states {
		for i := range state.Fields {
			field := &state.Fields[i]
			if !field.Matches(origin) {
				continue
			}
			if field.Challenge.Value == token && !field.Challenge.IsVerified {
				field.Challenge.IsVerified = true
				s.states[key] = state
				return true, nil
			}
			if field.SecondChallenge != nil && field.SecondChallenge.Value == token && !field.SecondChallenge.IsVerified {
				field.SecondChallenge.IsVerified = true
				s.states[key] = state
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *InMemory) RecordFailedAttempt(_ context.Context, origin, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, state := range s.states {
		for i := range state.Fields {
			field := &state.Fields[i]
			if !field.Matches(origin) {
				continue
			}
			if field.Challenge.Value == token {
				field.Challenge.FailedAttempts++
				s.states[key] = state
				return nil
			}
			if field.SecondChallenge != nil && field.SecondChallenge.Value == token {
				field.SecondChallenge.FailedAttempts++
				s.states[key] = state
				return nil
			}
		}
	}
	return nil
}

func (s *InMemory) SetFullyVerified(_ context.Context, ic models.IdentityContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[ic.Key()]
	if !ok {
		return sentinel.ErrNotFound
	}
	state.IsFullyVerified = true
	s.states[ic.Key()] = state
	return nil
}

// cloneState deep-copies a record so callers never share field slices with
// the store's own copy.
func cloneState(state models.JudgementState) models.JudgementState {
	state.Fields = cloneFields(state.Fields)
	return state
}

func cloneFields(fields []models.IdentityField) []models.IdentityField {
	out := make([]models.IdentityField, len(fields))
	copy(out, fields)
	for i := range out {
		if out[i].SecondChallenge != nil {
			second := *out[i].SecondChallenge
			out[i].SecondChallenge = &second
		}
	}
	return out
}
