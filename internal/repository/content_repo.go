package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyland-backend/internal/models"
)

type ContentRepo struct {
	pool *pgxpool.Pool
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

const contentColumns = `id, kind, title, description, body, media_url, thumbnail_url,
	age_group, is_published, created_at, updated_at`

func (r *ContentRepo) Create(ctx context.Context, item *models.ContentItem) error {
	item.ID = uuid.New()
	query := `INSERT INTO content_items
		(id, kind, title, description, body, media_url, thumbnail_url, age_group, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		item.ID, item.Kind, item.Title, item.Description, item.Body,
		item.MediaURL, item.ThumbnailURL, item.AgeGroup, item.IsPublished,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
}

func (r *ContentRepo) GetByID(ctx context.Context, kind string, id uuid.UUID) (*models.ContentItem, error) {
	item := &models.ContentItem{}
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1 AND kind = $2`

	err := r.pool.QueryRow(ctx, query, id, kind).Scan(
		&item.ID, &item.Kind, &item.Title, &item.Description, &item.Body,
		&item.MediaURL, &item.ThumbnailURL, &item.AgeGroup, &item.IsPublished,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *ContentRepo) ListByKind(ctx context.Context, kind string, publishedOnly bool, limit, offset int) ([]*models.ContentItem, int, error) {
	where := "WHERE kind = $1"
	args := []interface{}{kind}
	if publishedOnly {
		where += " AND is_published = TRUE"
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM content_items "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + contentColumns + ` FROM content_items ` + where +
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, kind, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		item := &models.ContentItem{}
		err := rows.Scan(
			&item.ID, &item.Kind, &item.Title, &item.Description, &item.Body,
			&item.MediaURL, &item.ThumbnailURL, &item.AgeGroup, &item.IsPublished,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *ContentRepo) Update(ctx context.Context, item *models.ContentItem) error {
	query := `UPDATE content_items SET
			title = $1, description = $2, body = $3, media_url = $4,
			thumbnail_url = $5, age_group = $6, is_published = $7, updated_at = NOW()
		WHERE id = $8 AND kind = $9
		RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		item.Title, item.Description, item.Body, item.MediaURL,
		item.ThumbnailURL, item.AgeGroup, item.IsPublished, item.ID, item.Kind,
	).Scan(&item.UpdatedAt)
}

func (r *ContentRepo) Delete(ctx context.Context, kind string, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM content_items WHERE id = $1 AND kind = $2", id, kind)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
