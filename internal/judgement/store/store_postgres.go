package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"registrar/internal/judgement/models"
	"registrar/pkg/platform/sentinel"
)

// Postgres persists judgement state relationally: one row per identity in
// judgement_states, one row per claimed account in judgement_fields. The
// verification path relies on single-statement conditional updates for
// per-record atomicity instead of application locks.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Insert(ctx context.Context, state models.JudgementState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO judgement_states (chain, address, is_fully_verified) VALUES ($1, $2, $3)`,
		state.Context.Chain, state.Context.Address, state.IsFullyVerified,
	)
	if err != nil {
		return fmt.Errorf("insert state: %w", err)
	}
	if err := insertFields(ctx, tx, state.Context, state.Fields); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (s *Postgres) ReplaceFields(ctx context.Context, ic models.IdentityContext, fields []models.IdentityField, fullyVerified bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE judgement_states SET is_fully_verified = $3, updated_at = now() WHERE chain = $1 AND address = $2`,
		ic.Chain, ic.Address, fullyVerified,
	)
	if err != nil {
		return fmt.Errorf("update state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM judgement_fields WHERE chain = $1 AND address = $2`,
		ic.Chain, ic.Address,
	); err != nil {
		return fmt.Errorf("delete fields: %w", err)
	}
	if err := insertFields(ctx, tx, ic, fields); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (s *Postgres) FindByContext(ctx context.Context, ic models.IdentityContext) (models.JudgementState, error) {
	state := models.JudgementState{Context: ic}
	err := s.db.QueryRowContext(ctx,
		`SELECT is_fully_verified FROM judgement_states WHERE chain = $1 AND address = $2`,
		ic.Chain, ic.Address,
	).Scan(&state.IsFullyVerified)
	if errors.Is(err, sql.ErrNoRows) {
		return models.JudgementState{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.JudgementState{}, fmt.Errorf("find state: %w", err)
	}

	state.Fields, err = s.loadFields(ctx, ic)
	if err != nil {
		return models.JudgementState{}, err
	}
	return state, nil
}

func (s *Postgres) FindByFieldValue(ctx context.Context, origin string) ([]models.JudgementState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT s.chain, s.address, s.is_fully_verified
		 FROM judgement_states s
		 JOIN judgement_fields f ON f.chain = s.chain AND f.address = s.address
		 WHERE f.value = $1
		 ORDER BY s.chain, s.address`,
		origin,
	)
	if err != nil {
		return nil, fmt.Errorf("find by field value: %w", err)
	}
	defer rows.Close()

	var states []models.JudgementState
	for rows.Next() {
		var state models.JudgementState
		if err := rows.Scan(&state.Context.Chain, &state.Context.Address, &state.IsFullyVerified); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}

	for i := range states {
		states[i].Fields, err = s.loadFields(ctx, states[i].Context)
		if err != nil {
			return nil, err
		}
	}
	return states, nil
}

// MarkChallengeVerified flips is_verified on the challenge matching origin
// and token, conditional on it still being unverified. The condition turns a
// same-field write race into a lost update this caller can observe.
func (s *Postgres) MarkChallengeVerified(ctx context.Context, origin, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE judgement_fields SET challenge_verified = TRUE
		 WHERE value = $1 AND challenge = $2 AND NOT challenge_verified`,
		origin, token,
	)
	if err != nil {
		return false, fmt.Errorf("mark challenge verified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return true, nil
	}

	res, err = s.db.ExecContext(ctx,
		`UPDATE judgement_fields SET second_verified = TRUE
		 WHERE value = $1 AND second_challenge = $2 AND NOT second_verified`,
		origin, token,
	)
	if err != nil {
		return false, fmt.Errorf("mark second challenge verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark second challenge verified: %w", err)
	}
	return n > 0, nil
}

func (s *Postgres) RecordFailedAttempt(ctx context.Context, origin, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE judgement_fields SET challenge_failed_attempts = challenge_failed_attempts + 1
		 WHERE value = $1 AND challenge = $2`,
		origin, token,
	)
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE judgement_fields SET second_failed_attempts = second_failed_attempts + 1
		 WHERE value = $1 AND second_challenge = $2`,
		origin, token,
	); err != nil {
		return fmt.Errorf("record second failed attempt: %w", err)
	}
	return nil
}

func (s *Postgres) SetFullyVerified(ctx context.Context, ic models.IdentityContext) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE judgement_states SET is_fully_verified = TRUE, updated_at = now()
		 WHERE chain = $1 AND address = $2`,
		ic.Chain, ic.Address,
	)
	if err != nil {
		return fmt.Errorf("set fully verified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) loadFields(ctx context.Context, ic models.IdentityContext) ([]models.IdentityField, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, value, challenge, challenge_verified, challenge_failed_attempts,
		        second_challenge, second_verified, second_failed_attempts
		 FROM judgement_fields
		 WHERE chain = $1 AND address = $2
		 ORDER BY position`,
		ic.Chain, ic.Address,
	)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	defer rows.Close()

	var fields []models.IdentityField
	for rows.Next() {
		var (
			field       models.IdentityField
			secondToken sql.NullString
			secondOK    bool
			secondFails int64
		)
		if err := rows.Scan(
			&field.Kind, &field.Value,
			&field.Challenge.Value, &field.Challenge.IsVerified, &field.Challenge.FailedAttempts,
			&secondToken, &secondOK, &secondFails,
		); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		if secondToken.Valid {
			field.SecondChallenge = &models.Challenge{
				Value:          secondToken.String,
				IsVerified:     secondOK,
				FailedAttempts: secondFails,
			}
		}
		fields = append(fields, field)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fields: %w", err)
	}
	return fields, nil
}

func insertFields(ctx context.Context, tx *sql.Tx, ic models.IdentityContext, fields []models.IdentityField) error {
	for i, field := range fields {
		var (
			secondToken sql.NullString
			secondOK    bool
			secondFails int64
		)
		if field.SecondChallenge != nil {
			secondToken = sql.NullString{String: field.SecondChallenge.Value, Valid: true}
			secondOK = field.SecondChallenge.IsVerified
			secondFails = field.SecondChallenge.FailedAttempts
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO judgement_fields (
				chain, address, position, kind, value,
				challenge, challenge_verified, challenge_failed_attempts,
				second_challenge, second_verified, second_failed_attempts
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			ic.Chain, ic.Address, i, field.Kind, field.Value,
			field.Challenge.Value, field.Challenge.IsVerified, field.Challenge.FailedAttempts,
			secondToken, secondOK, secondFails,
		)
		if err != nil {
			return fmt.Errorf("insert field %q: %w", field.Value, err)
		}
	}
	return nil
}
