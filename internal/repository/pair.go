package repository

import (
	"context"
	"errors"
	"fmt"

	"love-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PairRepository stores partner links in the pairs table
type PairRepository struct {
	db *pgxpool.Pool
}

// NewPairRepository creates a new pair repository
func NewPairRepository(db *pgxpool.Pool) *PairRepository {
	return &PairRepository{db: db}
}

const pairColumns = `id, user_a_id, user_b_id, created_at`

func scanPair(row pgx.Row) (*models.Pair, error) {
	var p models.Pair
	if err := row.Scan(&p.ID, &p.UserAID, &p.UserBID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrPairNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create links two users. Both member columns are unique, so losing a race to pair
// either user surfaces as ErrAlreadyPaired.
func (r *PairRepository) Create(ctx context.Context, pair *models.Pair) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO pairs (`+pairColumns+`) VALUES ($1, $2, $3, $4)`,
		pair.ID, pair.UserAID, pair.UserBID, pair.CreatedAt,
	)
	switch {
	case isUniqueViolation(err):
		return models.ErrAlreadyPaired
	case err != nil:
		return fmt.Errorf("failed to create pair: %w", err)
	}
	return nil
}

func (r *PairRepository) GetByID(ctx context.Context, id string) (*models.Pair, error) {
	pair, err := scanPair(r.db.QueryRow(ctx, `SELECT `+pairColumns+` FROM pairs WHERE id = $1`, id))
	if err != nil && !errors.Is(err, models.ErrPairNotFound) {
		return nil, fmt.Errorf("failed to get pair %s: %w", id, err)
	}
	return pair, err
}

// GetByUserID finds the pair userID belongs to on either side
func (r *PairRepository) GetByUserID(ctx context.Context, userID string) (*models.Pair, error) {
	pair, err := scanPair(r.db.QueryRow(ctx,
		`SELECT `+pairColumns+` FROM pairs WHERE $1 IN (user_a_id, user_b_id)`, userID))
	if err != nil && !errors.Is(err, models.ErrPairNotFound) {
		return nil, fmt.Errorf("failed to get pair of user %s: %w", userID, err)
	}
	return pair, err
}

// Delete removes a pair. Photos go with it through the foreign key cascade.
func (r *PairRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM pairs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pair %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrPairNotFound
	}
	return nil
}

func (r *PairRepository) UserHasPair(ctx context.Context, userID string) (bool, error) {
	var paired bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pairs WHERE $1 IN (user_a_id, user_b_id))`, userID,
	).Scan(&paired)
	if err != nil {
		return false, fmt.Errorf("failed to look up pair of user %s: %w", userID, err)
	}
	return paired, nil
}
