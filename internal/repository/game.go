package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"love-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GameRepository handles database operations for memory games
type GameRepository struct {
	db *pgxpool.Pool
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{db: db}
}

const gameColumns = `id, owner_id, creator_name, partner_name, items, guesses, version, created_at, updated_at`

func scanGame(row pgx.Row) (*models.MemoryGame, error) {
	var (
		g       models.MemoryGame
		items   []byte
		guesses []byte
	)
	err := row.Scan(&g.ID, &g.OwnerID, &g.CreatorName, &g.PartnerName, &items, &guesses, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &g.Items); err != nil {
		return nil, fmt.Errorf("failed to decode game items: %w", err)
	}
	g.Guesses = make(map[models.MemoryStep]models.MemoryGuess)
	if len(guesses) > 0 {
		if err := json.Unmarshal(guesses, &g.Guesses); err != nil {
			return nil, fmt.Errorf("failed to decode game guesses: %w", err)
		}
	}
	return &g, nil
}

// Create inserts a new game
func (r *GameRepository) Create(ctx context.Context, g *models.MemoryGame) error {
	items, err := json.Marshal(g.Items)
	if err != nil {
		return fmt.Errorf("failed to encode game items: %w", err)
	}
	guesses, err := json.Marshal(g.Guesses)
	if err != nil {
		return fmt.Errorf("failed to encode game guesses: %w", err)
	}

	query := `INSERT INTO memory_games (` + gameColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.db.Exec(ctx, query, g.ID, g.OwnerID, g.CreatorName, g.PartnerName, items, guesses, g.Version, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create memory game: %w", err)
	}
	return nil
}

// Get retrieves a game by its id
func (r *GameRepository) Get(ctx context.Context, id string) (*models.MemoryGame, error) {
	g, err := scanGame(r.db.QueryRow(ctx, `SELECT `+gameColumns+` FROM memory_games WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get memory game: %w", err)
	}
	return g, nil
}

// Update locks the row, applies fn and writes the guesses back in the same transaction
func (r *GameRepository) Update(ctx context.Context, id string, fn GameUpdateFunc) (*models.MemoryGame, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	g, err := scanGame(tx.QueryRow(ctx, `SELECT `+gameColumns+` FROM memory_games WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, models.ErrGameNotFound
		}
		return nil, false, fmt.Errorf("failed to lock memory game: %w", err)
	}

	applied, err := fn(g)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return g, false, nil
	}

	guesses, err := json.Marshal(g.Guesses)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode game guesses: %w", err)
	}
	_, err = tx.Exec(ctx, `UPDATE memory_games SET guesses = $2, version = $3, updated_at = $4 WHERE id = $1`,
		g.ID, guesses, g.Version, g.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update memory game: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit memory game update: %w", err)
	}
	return g, true, nil
}
