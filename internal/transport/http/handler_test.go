package httptransport

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"registrar/internal/eventlog"
	"registrar/internal/judgement/models"
	"registrar/internal/judgement/service"
	"registrar/internal/judgement/store"
	"registrar/internal/platform/logger"
	"registrar/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	store  *store.InMemory
	log    *eventlog.InMemory
	router http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.log = eventlog.NewInMemory()
	svc, err := service.New(s.store, s.log)
	s.Require().NoError(err)

	handler := NewHandler(svc, logger.New())
	s.router = NewRouter(handler)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) TestSubmitAndQuery() {
	rr := testutil.Exchange(s.router, testutil.JSONRequest(s.T(), http.MethodPost, "/v1/judgements", SubmitRequest{
		Context: models.IdentityContext{Chain: "polkadot", Address: "1abc"},
		Claims:  []models.AccountClaim{{Kind: models.FieldEmail, Value: "alice@example.com"}},
	}))
	s.Equal(http.StatusAccepted, rr.Code)

	rr2 := testutil.Exchange(s.router, testutil.JSONRequest(s.T(), http.MethodGet, "/v1/judgements/polkadot/1abc", nil))
	s.Equal(http.StatusOK, rr2.Code)

	state := testutil.DecodeJSON[models.JudgementState](s.T(), rr2)
	s.Equal("polkadot", state.Context.Chain)
	s.Require().Len(state.Fields, 1)
	s.Equal("alice@example.com", state.Fields[0].Value)
	s.NotEmpty(state.Fields[0].Challenge.Value)
	s.False(state.IsFullyVerified)
}

func (s *HandlerSuite) TestQueryUnknownContext() {
	rr := testutil.Exchange(s.router, testutil.JSONRequest(s.T(), http.MethodGet, "/v1/judgements/polkadot/unknown", nil))
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *HandlerSuite) TestSubmitRejectsMissingContext() {
	rr := testutil.Exchange(s.router, testutil.JSONRequest(s.T(), http.MethodPost, "/v1/judgements", SubmitRequest{
		Claims: []models.AccountClaim{{Kind: models.FieldEmail, Value: "alice@example.com"}},
	}))
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestMessageVerifiesField() {
	rr := testutil.Exchange(s.router, testutil.JSONRequest(s.T(), http.MethodPost, "/v1/judgements", SubmitRequest{
		Context: models.IdentityContext{Chain: "polkadot", Address: "2def"},
		Claims:  []models.AccountClaim{{Kind: models.FieldEmail, Value: "bob@example.com"}},
	}))
	s.Require().Equal(http.StatusAccepted, rr.Code)

	stored, err := s.store.FindByContext(context.Background(), models.IdentityContext{Chain: "polkadot", Address: "2def"})
	s.Require().NoError(err)
	token := stored.Fields[0].Challenge.Value

	rr2 := testutil.Exchange(s.router, testutil.JSONRequest(s.T(), http.MethodPost, "/v1/messages", models.ExternalMessage{
		Origin: "bob@example.com",
		Parts:  []string{token},
	}))
	s.Equal(http.StatusOK, rr2.Code)

	body := testutil.DecodeJSON[MessageResponse](s.T(), rr2)
	s.Require().Len(body.Events, 2)
	s.Equal(models.KindFieldVerified, body.Events[0].Kind)
	s.Equal(models.KindIdentityFullyVerified, body.Events[1].Kind)
}

func (s *HandlerSuite) TestMessageWithUnknownOrigin() {
	rr := testutil.Exchange(s.router, testutil.JSONRequest(s.T(), http.MethodPost, "/v1/messages", models.ExternalMessage{
		Origin: "stranger@example.com",
		Parts:  []string{"whatever"},
	}))
	s.Equal(http.StatusOK, rr.Code)

	body := testutil.DecodeJSON[MessageResponse](s.T(), rr)
	s.Empty(body.Events)
}

func (s *HandlerSuite) TestHealthz() {
	rr := testutil.Exchange(s.router, testutil.JSONRequest(s.T(), http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rr.Code)
}
