package store

import (
	"context"

	"registrar/internal/judgement/models"
)

// Store persists judgement state. Implementations must make the write
// primitives atomic per record so the verification path can run without
// application-level locks; MarkChallengeVerified in particular is a
// conditional update whose result reports whether this caller won the write.
type Store interface {
	// Insert stores a new record verbatim. The caller guarantees no record
	// exists for the context yet.
	Insert(ctx context.Context, state models.JudgementState) error

	// ReplaceFields swaps the full field sequence of an existing record and
	// persists the recomputed full-verification flag in the same write.
	ReplaceFields(ctx context.Context, ic models.IdentityContext, fields []models.IdentityField, fullyVerified bool) error

	// FindByContext returns the record for the context, or
	// sentinel.ErrNotFound when no active request exists.
	FindByContext(ctx context.Context, ic models.IdentityContext) (models.JudgementState, error)

	// FindByFieldValue returns every record containing a field that claims
	// the given external account. An empty slice is a valid result.
	FindByFieldValue(ctx context.Context, origin string) ([]models.JudgementState, error)

	// MarkChallengeVerified sets is_verified on the challenge identified by
	// origin and token, provided it is still unverified. Returns false when
	// no row changed, i.e. the challenge was already verified or gone.
	MarkChallengeVerified(ctx context.Context, origin, token string) (bool, error)

	// RecordFailedAttempt increments failed_attempts on the challenge
	// identified by origin and token.
	RecordFailedAttempt(ctx context.Context, origin, token string) error

	// SetFullyVerified persists is_fully_verified = true for the context.
	SetFullyVerified(ctx context.Context, ic models.IdentityContext) error
}
