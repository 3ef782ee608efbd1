package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imagevault/imagevault/internal/domain"
	"github.com/imagevault/imagevault/internal/domain/entity"
)

type ImageRepo struct {
	pool *pgxpool.Pool
}

func NewImageRepo(pool *pgxpool.Pool) *ImageRepo {
	return &ImageRepo{pool: pool}
}

func (r *ImageRepo) Create(ctx context.Context, image *entity.Image) error {
	query := `
		INSERT INTO images (id, path, mime_type, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		image.ID, image.Path, image.MimeType, image.OwnerID, image.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting image: %w", err)
	}
	return nil
}

func (r *ImageRepo) GetByPath(ctx context.Context, path string) (*entity.Image, error) {
	query := `
		SELECT id, path, mime_type, owner_id, created_at
		FROM images
		WHERE path = $1
	`
	var image entity.Image
	err := r.pool.QueryRow(ctx, query, path).Scan(
		&image.ID, &image.Path, &image.MimeType, &image.OwnerID, &image.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("querying image: %w", err)
	}
	return &image, nil
}
