package models

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// IdentityContext identifies one on-chain identity under judgement.
// It is the primary key for judgement state: one live record per context.
type IdentityContext struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
}

// Key returns a stable map key for the context.
func (c IdentityContext) Key() string {
	return c.Chain + ":" + c.Address
}

// IsZero reports whether the context is unset.
func (c IdentityContext) IsZero() bool {
	return c.Chain == "" && c.Address == ""
}

func (c IdentityContext) String() string {
	return fmt.Sprintf("%s/%s", c.Chain, c.Address)
}

// FieldKind classifies the external account a field claims.
type FieldKind string

const (
	FieldEmail   FieldKind = "email"
	FieldWeb     FieldKind = "web"
	FieldTwitter FieldKind = "twitter"
	FieldMatrix  FieldKind = "matrix"
)

// Challenge is a proof token the claimant must return via the external
// account to demonstrate control of it.
type Challenge struct {
	Value          string `json:"value"`
	IsVerified     bool   `json:"is_verified"`
	FailedAttempts int64  `json:"failed_attempts"`
}

// NewChallenge builds an unverified challenge with a random token.
func NewChallenge() Challenge {
	u := uuid.New()
	return Challenge{Value: hex.EncodeToString(u[:])}
}

// Accepts reports whether any part of the message carries the challenge token.
func (c Challenge) Accepts(msg ExternalMessage) bool {
	for _, part := range msg.Parts {
		if part == c.Value {
			return true
		}
	}
	return false
}

// IdentityField is one claimed external account and its verification state.
// SecondChallenge is an optional second proof stage: when present, the field
// only counts as verified once both challenges have been satisfied.
type IdentityField struct {
	Kind            FieldKind  `json:"kind"`
	Value           string     `json:"value"`
	Challenge       Challenge  `json:"expected_challenge"`
	SecondChallenge *Challenge `json:"second_expected_challenge,omitempty"`
}

// NewIdentityField builds a field with a fresh, unverified challenge.
func NewIdentityField(kind FieldKind, value string) IdentityField {
	return IdentityField{Kind: kind, Value: value, Challenge: NewChallenge()}
}

// IsVerified reports whether every proof stage of the field is satisfied.
func (f IdentityField) IsVerified() bool {
	if !f.Challenge.IsVerified {
		return false
	}
	return f.SecondChallenge == nil || f.SecondChallenge.IsVerified
}

// PendingChallenge returns the next unsatisfied proof stage, or nil when the
// field is fully verified. Stages are strictly ordered: the second challenge
// is only reachable after the first succeeds.
func (f *IdentityField) PendingChallenge() *Challenge {
	if !f.Challenge.IsVerified {
		return &f.Challenge
	}
	if f.SecondChallenge != nil && !f.SecondChallenge.IsVerified {
		return f.SecondChallenge
	}
	return nil
}

// Matches reports whether the field claims the account a message originates
// from. Kind is not part of the comparison: the message origin already names
// a concrete external account.
func (f IdentityField) Matches(origin string) bool {
	return f.Value == origin
}

// JudgementState aggregates the verification progress of one identity.
// IsFullyVerified must only be true while every field passes IsVerified;
// any field-set mutation recomputes it before persisting.
type JudgementState struct {
	Context         IdentityContext `json:"context"`
	Fields          []IdentityField `json:"fields"`
	IsFullyVerified bool            `json:"is_fully_verified"`
}

// NewJudgementState builds a fresh request with unverified challenges for the
// claimed accounts, in claim order.
func NewJudgementState(ctx IdentityContext, claims []AccountClaim) JudgementState {
	fields := make([]IdentityField, 0, len(claims))
	for _, claim := range claims {
		fields = append(fields, NewIdentityField(claim.Kind, claim.Value))
	}
	return JudgementState{Context: ctx, Fields: fields}
}

// AccountClaim is one claimed external account in an inbound judgement
// request, before a challenge has been attached.
type AccountClaim struct {
	Kind  FieldKind `json:"kind"`
	Value string    `json:"value"`
}

// AllFieldsVerified recomputes full verification over the field set.
// An empty field set never counts as verified.
func (s JudgementState) AllFieldsVerified() bool {
	if len(s.Fields) == 0 {
		return false
	}
	for _, f := range s.Fields {
		if !f.IsVerified() {
			return false
		}
	}
	return true
}

// FieldByValue returns a pointer to the field claiming the given account, or
// nil when no field matches.
func (s *JudgementState) FieldByValue(origin string) *IdentityField {
	for i := range s.Fields {
		if s.Fields[i].Matches(origin) {
			return &s.Fields[i]
		}
	}
	return nil
}

// ExternalMessage is an inbound message proving control of an external
// account. It only drives verification and is never persisted.
type ExternalMessage struct {
	Origin string   `json:"origin"`
	Parts  []string `json:"parts"`
}

// EventKind tags a notification variant. The set is closed: each kind has a
// fixed payload shape and consumers dispatch on it explicitly.
type EventKind string

const (
	KindFieldVerified           EventKind = "field_verified"
	KindFieldVerificationFailed EventKind = "field_verification_failed"
	KindIdentityFullyVerified   EventKind = "identity_fully_verified"
	KindJudgementProvided       EventKind = "judgement_provided"
)

// NotificationMessage is one notification-worthy occurrence. It carries
// enough identity for a consumer to re-fetch the current JudgementState.
type NotificationMessage struct {
	Kind    EventKind       `json:"kind"`
	Context IdentityContext `json:"context"`
	Field   string          `json:"field,omitempty"`
}

func FieldVerified(ctx IdentityContext, field string) NotificationMessage {
	return NotificationMessage{Kind: KindFieldVerified, Context: ctx, Field: field}
}

func FieldVerificationFailed(ctx IdentityContext, field string) NotificationMessage {
	return NotificationMessage{Kind: KindFieldVerificationFailed, Context: ctx, Field: field}
}

func IdentityFullyVerified(ctx IdentityContext) NotificationMessage {
	return NotificationMessage{Kind: KindIdentityFullyVerified, Context: ctx}
}

func JudgementProvided(ctx IdentityContext) NotificationMessage {
	return NotificationMessage{Kind: KindJudgementProvided, Context: ctx}
}

// Event is the immutable envelope stored in the event log. ID is assigned
// from a single-owner monotonic sequence; gaps are tolerated, order is the
// log's total order.
type Event struct {
	ID      int64               `json:"id"`
	Message NotificationMessage `json:"event"`
}
