package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"love-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles database operations for shared sessions
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, kind, status, owner_id, initiator_choice, responder_choice, details,
	unlocked, payment_ref, countdown_at, snap_a_ms, snap_b_ms, revealed_at,
	outcome, version, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		s       models.Session
		details []byte
		outcome []byte
	)
	err := row.Scan(
		&s.ID, &s.Kind, &s.Status, &s.OwnerID, &s.InitiatorChoice, &s.ResponderChoice, &details,
		&s.Unlocked, &s.PaymentRef, &s.CountdownAt, &s.SnapA, &s.SnapB, &s.RevealedAt,
		&outcome, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &s.Details); err != nil {
			return nil, fmt.Errorf("failed to decode session details: %w", err)
		}
	}
	if len(outcome) > 0 {
		if err := json.Unmarshal(outcome, &s.Outcome); err != nil {
			return nil, fmt.Errorf("failed to decode session outcome: %w", err)
		}
	}
	return &s, nil
}

func encodeJSON(v any, empty bool) ([]byte, error) {
	if empty {
		return nil, nil
	}
	return json.Marshal(v)
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	details, err := encodeJSON(s.Details, len(s.Details) == 0)
	if err != nil {
		return fmt.Errorf("failed to encode session details: %w", err)
	}
	outcome, err := encodeJSON(s.Outcome, s.Outcome == nil)
	if err != nil {
		return fmt.Errorf("failed to encode session outcome: %w", err)
	}

	query := `INSERT INTO shared_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err = r.db.Exec(ctx, query,
		s.ID, s.Kind, s.Status, s.OwnerID, s.InitiatorChoice, s.ResponderChoice, details,
		s.Unlocked, s.PaymentRef, s.CountdownAt, s.SnapA, s.SnapB, s.RevealedAt,
		outcome, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by its id
func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM shared_sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// Update locks the row, applies fn and writes the result back in the same transaction
func (r *SessionRepository) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	s, err := scanSession(tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM shared_sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, models.ErrSessionNotFound
		}
		return nil, false, fmt.Errorf("failed to lock session: %w", err)
	}

	applied, err := fn(s)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return s, false, nil
	}

	outcome, err := encodeJSON(s.Outcome, s.Outcome == nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode session outcome: %w", err)
	}

	query := `
		UPDATE shared_sessions SET
			status = $2, responder_choice = $3, unlocked = $4, payment_ref = $5,
			countdown_at = $6, snap_a_ms = $7, snap_b_ms = $8, revealed_at = $9,
			outcome = $10, version = $11, updated_at = $12
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		s.ID, s.Status, s.ResponderChoice, s.Unlocked, s.PaymentRef,
		s.CountdownAt, s.SnapA, s.SnapB, s.RevealedAt,
		outcome, s.Version, s.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit session update: %w", err)
	}
	return s, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
