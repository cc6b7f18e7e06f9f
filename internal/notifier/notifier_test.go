package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"registrar/internal/eventlog"
	"registrar/internal/judgement/models"
	"registrar/pkg/platform/sentinel"
)

// countingStates resolves judgement states from a fixed map while counting
// lookups, to observe the per-tick cache.
type countingStates struct {
	states  map[string]models.JudgementState
	lookups int
}

func (r *countingStates) FetchState(_ context.Context, ic models.IdentityContext) (models.JudgementState, error) {
	r.lookups++
	state, ok := r.states[ic.Key()]
	if !ok {
		return models.JudgementState{}, sentinel.ErrNotFound
	}
	return state, nil
}

type delivery struct {
	state  models.JudgementState
	events []models.NotificationMessage
}

type recordingSink struct {
	deliveries []delivery
	failAfter  int // fail on delivery index failAfter when >= 0
}

func (s *recordingSink) Notify(_ context.Context, state models.JudgementState, events []models.NotificationMessage) error {
	if s.failAfter >= 0 && len(s.deliveries) == s.failAfter {
		return errors.New("sink unavailable")
	}
	s.deliveries = append(s.deliveries, delivery{state: state, events: events})
	return nil
}

type NotifierSuite struct {
	suite.Suite
	ctx     context.Context
	log     *eventlog.InMemory
	states  *countingStates
	cursors *InMemoryCursors
	sink    *recordingSink
}

func (s *NotifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.log = eventlog.NewInMemory()
	s.states = &countingStates{states: make(map[string]models.JudgementState)}
	s.cursors = NewInMemoryCursors()
	s.sink = &recordingSink{failAfter: -1}
}

func TestNotifierSuite(t *testing.T) {
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) newNotifier() *Notifier {
	n, err := New(s.log, s.states, s.cursors, s.sink, "test-consumer")
	s.Require().NoError(err)
	return n
}

func (s *NotifierSuite) addIdentity(address string, fullyVerified bool) models.IdentityContext {
	ic := models.IdentityContext{Chain: "polkadot", Address: address}
	s.states.states[ic.Key()] = models.JudgementState{
		Context:         ic,
		Fields:          []models.IdentityField{models.NewIdentityField(models.FieldEmail, address+"@example.com")},
		IsFullyVerified: fullyVerified,
	}
	return ic
}

func (s *NotifierSuite) TestDeliversEventsInOrder() {
	ic := s.addIdentity("1abc", true)
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(ic, "1abc@example.com")))
	s.Require().NoError(s.log.Append(s.ctx, models.IdentityFullyVerified(ic)))

	s.Require().NoError(s.newNotifier().tick(s.ctx))

	s.Require().Len(s.sink.deliveries, 2)
	s.Equal(models.KindFieldVerified, s.sink.deliveries[0].events[0].Kind)
	s.Equal(models.KindIdentityFullyVerified, s.sink.deliveries[1].events[0].Kind)
	s.True(s.sink.deliveries[0].state.IsFullyVerified, "delivered state reflects latest truth")

	cursor, err := s.cursors.Load(s.ctx, "test-consumer")
	s.Require().NoError(err)
	s.Equal(int64(2), cursor)
}

func (s *NotifierSuite) TestCachesStatePerTick() {
	ic := s.addIdentity("2def", false)
	other := s.addIdentity("3ghi", false)
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(ic, "a")))
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(ic, "b")))
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(other, "c")))

	n := s.newNotifier()
	s.Require().NoError(n.tick(s.ctx))
	s.Equal(2, s.states.lookups, "one lookup per distinct context per tick")

	// The cache does not carry across ticks.
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(ic, "d")))
	s.Require().NoError(n.tick(s.ctx))
	s.Equal(3, s.states.lookups)
}

func (s *NotifierSuite) TestSkipsEventsWithoutState() {
	gone := models.IdentityContext{Chain: "polkadot", Address: "vanished"}
	ic := s.addIdentity("4jkl", false)
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(gone, "x")))
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(ic, "y")))

	s.Require().NoError(s.newNotifier().tick(s.ctx))

	s.Require().Len(s.sink.deliveries, 1)
	s.Equal(ic, s.sink.deliveries[0].events[0].Context)

	cursor, err := s.cursors.Load(s.ctx, "test-consumer")
	s.Require().NoError(err)
	s.Equal(int64(2), cursor, "skipped events still advance the cursor")
}

func (s *NotifierSuite) TestSinkFailureKeepsProgress() {
	ic := s.addIdentity("5mno", false)
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(ic, "a")))
	s.Require().NoError(s.log.Append(s.ctx, models.FieldVerified(ic, "b")))
	s.sink.failAfter = 1

	n := s.newNotifier()
	s.Require().Error(n.tick(s.ctx))
	s.Require().Len(s.sink.deliveries, 1)

	// The cursor covers the delivered event, so the retry resumes at the
	// failed one instead of redelivering.
	cursor, err := s.cursors.Load(s.ctx, "test-consumer")
	s.Require().NoError(err)
	s.Equal(int64(1), cursor)

	s.sink.failAfter = -1
	s.Require().NoError(n.tick(s.ctx))
	s.Require().Len(s.sink.deliveries, 2)
	s.Equal("b", s.sink.deliveries[1].events[0].Field)
}

func (s *NotifierSuite) TestEmptyTick() {
	s.Require().NoError(s.newNotifier().tick(s.ctx))
	s.Empty(s.sink.deliveries)
}
