//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registrar/internal/judgement/models"
	"registrar/internal/judgement/store"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "judgement_fields", "judgement_states"))
}

func newTestState(values ...string) models.JudgementState {
	claims := make([]models.AccountClaim, 0, len(values))
	for _, v := range values {
		claims = append(claims, models.AccountClaim{Kind: models.FieldEmail, Value: v})
	}
	return models.NewJudgementState(
		models.IdentityContext{Chain: "polkadot", Address: uuid.NewString()},
		claims,
	)
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	state := newTestState("a@example.com", "b@example.com")
	second := models.NewChallenge()
	state.Fields[1].SecondChallenge = &second
	s.Require().NoError(s.store.Insert(s.ctx, state))

	found, err := s.store.FindByContext(s.ctx, state.Context)
	s.Require().NoError(err)
	s.Equal(state, found)
}

func (s *PostgresStoreSuite) TestFindByContextNotFound() {
	_, err := s.store.FindByContext(s.ctx, models.IdentityContext{Chain: "polkadot", Address: "missing"})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindByFieldValue() {
	state := newTestState("c@example.com")
	other := newTestState("d@example.com")
	s.Require().NoError(s.store.Insert(s.ctx, state))
	s.Require().NoError(s.store.Insert(s.ctx, other))

	matches, err := s.store.FindByFieldValue(s.ctx, "c@example.com")
	s.Require().NoError(err)
	s.Require().Len(matches, 1)
	s.Equal(state.Context, matches[0].Context)

	matches, err = s.store.FindByFieldValue(s.ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.Empty(matches)
}

func (s *PostgresStoreSuite) TestMarkChallengeVerifiedIsOneShot() {
	state := newTestState("e@example.com")
	token := state.Fields[0].Challenge.Value
	s.Require().NoError(s.store.Insert(s.ctx, state))

	changed, err := s.store.MarkChallengeVerified(s.ctx, "e@example.com", token)
	s.Require().NoError(err)
	s.True(changed)

	changed, err = s.store.MarkChallengeVerified(s.ctx, "e@example.com", token)
	s.Require().NoError(err)
	s.False(changed, "the conditional update must lose on the second write")

	found, err := s.store.FindByContext(s.ctx, state.Context)
	s.Require().NoError(err)
	s.True(found.Fields[0].Challenge.IsVerified)
}

func (s *PostgresStoreSuite) TestSecondChallengeVerification() {
	state := newTestState("f@example.com")
	second := models.NewChallenge()
	state.Fields[0].SecondChallenge = &second
	s.Require().NoError(s.store.Insert(s.ctx, state))

	changed, err := s.store.MarkChallengeVerified(s.ctx, "f@example.com", second.Value)
	s.Require().NoError(err)
	s.True(changed)

	found, err := s.store.FindByContext(s.ctx, state.Context)
	s.Require().NoError(err)
	s.False(found.Fields[0].Challenge.IsVerified)
	s.True(found.Fields[0].SecondChallenge.IsVerified)
}

func (s *PostgresStoreSuite) TestFailedAttempts() {
	state := newTestState("g@example.com")
	token := state.Fields[0].Challenge.Value
	s.Require().NoError(s.store.Insert(s.ctx, state))

	s.Require().NoError(s.store.RecordFailedAttempt(s.ctx, "g@example.com", token))
	s.Require().NoError(s.store.RecordFailedAttempt(s.ctx, "g@example.com", token))

	found, err := s.store.FindByContext(s.ctx, state.Context)
	s.Require().NoError(err)
	s.Equal(int64(2), found.Fields[0].Challenge.FailedAttempts)
}

func (s *PostgresStoreSuite) TestReplaceFieldsPreservesOrder() {
	state := newTestState("h@example.com", "i@example.com")
	s.Require().NoError(s.store.Insert(s.ctx, state))

	replacement := []models.IdentityField{
		models.NewIdentityField(models.FieldWeb, "h.example.com"),
		models.NewIdentityField(models.FieldEmail, "h@example.com"),
	}
	s.Require().NoError(s.store.ReplaceFields(s.ctx, state.Context, replacement, false))

	found, err := s.store.FindByContext(s.ctx, state.Context)
	s.Require().NoError(err)
	s.Require().Len(found.Fields, 2)
	s.Equal("h.example.com", found.Fields[0].Value)
	s.Equal("h@example.com", found.Fields[1].Value)
}

func (s *PostgresStoreSuite) TestSetFullyVerified() {
	state := newTestState("j@example.com")
	s.Require().NoError(s.store.Insert(s.ctx, state))

	s.Require().NoError(s.store.SetFullyVerified(s.ctx, state.Context))

	found, err := s.store.FindByContext(s.ctx, state.Context)
	s.Require().NoError(err)
	s.True(found.IsFullyVerified)

	err = s.store.SetFullyVerified(s.ctx, models.IdentityContext{Chain: "polkadot", Address: "missing"})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
