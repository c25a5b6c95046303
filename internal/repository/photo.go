package repository

import (
	"context"
	"errors"
	"fmt"

	"love-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PhotoRepository stores the metadata of couple memory images. The bytes live in S3.
type PhotoRepository struct {
	db *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{db: db}
}

const photoColumns = `id, pair_id, user_id, s3_url, taken_at, created_at`

func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO photos (`+photoColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		photo.ID, photo.PairID, photo.UserID, photo.S3URL, photo.TakenAt, photo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record photo %s: %w", photo.ID, err)
	}
	return nil
}

func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*models.Photo, error) {
	rows, err := r.db.Query(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get photo %s: %w", id, err)
	}
	photo, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[models.Photo])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan photo %s: %w", id, err)
	}
	return photo, nil
}

type photoPageRow struct {
	models.Photo
	Total int
}

// GetByPairID returns one page of a pair's photos, newest first, and the pair's total count.
// The total rides along on every row as a window count.
func (r *PhotoRepository) GetByPairID(ctx context.Context, pairID string, limit, offset int) ([]*models.Photo, int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+photoColumns+`, COUNT(*) OVER () AS total
		FROM photos
		WHERE pair_id = $1
		ORDER BY taken_at DESC
		LIMIT $2 OFFSET $3`,
		pairID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list photos of pair %s: %w", pairID, err)
	}
	page, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (photoPageRow, error) {
		var p photoPageRow
		err := row.Scan(&p.ID, &p.PairID, &p.UserID, &p.S3URL, &p.TakenAt, &p.CreatedAt, &p.Total)
		return p, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan photos of pair %s: %w", pairID, err)
	}

	if len(page) == 0 {
		if offset == 0 {
			return nil, 0, nil
		}
		var total int
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM photos WHERE pair_id = $1`, pairID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count photos of pair %s: %w", pairID, err)
		}
		return nil, total, nil
	}

	photos := make([]*models.Photo, len(page))
	for i := range page {
		photos[i] = &page[i].Photo
	}
	return photos, page[0].Total, nil
}
