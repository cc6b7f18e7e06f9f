package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"registrar/internal/judgement/models"
	"registrar/internal/judgement/service"
	"registrar/pkg/platform/sentinel"
)

// Handler wires the judgement engine to its upstream collaborators: the
// chain listener posts judgement requests, the message adapters post inbound
// account proofs, and the subscription layer reads current state.
type Handler struct {
	svc    *service.Service
	logger *slog.Logger
}

func NewHandler(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts judgement endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/judgements", h.HandleSubmit)
	r.Post("/v1/judgements/{chain}/{address}/provided", h.HandleProvided)
	r.Get("/v1/judgements/{chain}/{address}", h.HandleGetState)
	r.Post("/v1/messages", h.HandleMessage)
}

// SubmitRequest is the inbound judgement request: a context plus the claimed
// external accounts. Challenges are attached server-side.
type SubmitRequest struct {
	Context models.IdentityContext `json:"context"`
	Claims  []models.AccountClaim  `json:"claims"`
}

// HandleSubmit handles POST /v1/judgements.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Context.IsZero() {
		writeError(w, http.StatusBadRequest, "context is required")
		return
	}
	for _, claim := range req.Claims {
		if claim.Value == "" {
			writeError(w, http.StatusBadRequest, "claim value is required")
			return
		}
	}

	state := models.NewJudgementState(req.Context, req.Claims)
	if err := h.svc.SubmitRequest(ctx, state); err != nil {
		h.logger.ErrorContext(ctx, "submit judgement request failed",
			"context", req.Context.String(),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "request not applied")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleGetState handles GET /v1/judgements/{chain}/{address}.
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ic := models.IdentityContext{
		Chain:   chi.URLParam(r, "chain"),
		Address: chi.URLParam(r, "address"),
	}

	state, err := h.svc.FetchState(ctx, ic)
	if errors.Is(err, sentinel.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no active judgement request")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "fetch judgement state failed",
			"context", ic.String(),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleProvided handles POST /v1/judgements/{chain}/{address}/provided,
// called once the judgement extrinsic landed on-chain.
func (h *Handler) HandleProvided(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ic := models.IdentityContext{
		Chain:   chi.URLParam(r, "chain"),
		Address: chi.URLParam(r, "address"),
	}

	if err := h.svc.MarkJudgementProvided(ctx, ic); err != nil {
		h.logger.ErrorContext(ctx, "mark judgement provided failed",
			"context", ic.String(),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "request not applied")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// MessageResponse reports what an inbound message changed.
type MessageResponse struct {
	Events []models.NotificationMessage `json:"events"`
}

// HandleMessage handles POST /v1/messages with an external proof message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var msg models.ExternalMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg.Origin == "" {
		writeError(w, http.StatusBadRequest, "origin is required")
		return
	}

	events, err := h.svc.VerifyMessage(ctx, msg)
	if err != nil {
		var selErr *service.FieldSelectionError
		if errors.As(err, &selErr) {
			// Indexing bug, not a user error. Surface loudly.
			h.logger.ErrorContext(ctx, "field selection failed, indexing defect",
				"context", selErr.Context.String(),
				"origin", selErr.Origin,
			)
		} else {
			h.logger.ErrorContext(ctx, "verify message failed",
				"origin", msg.Origin,
				"error", err,
			)
		}
		writeError(w, http.StatusInternalServerError, "message not processed")
		return
	}
	if events == nil {
		events = []models.NotificationMessage{}
	}
	writeJSON(w, http.StatusOK, MessageResponse{Events: events})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
