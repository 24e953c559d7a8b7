package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storyland-backend/internal/models"
)

type AdminRepo struct {
	pool *pgxpool.Pool
}

func NewAdminRepo(pool *pgxpool.Pool) *AdminRepo {
	return &AdminRepo{pool: pool}
}

func (r *AdminRepo) Create(ctx context.Context, admin *models.Admin) error {
	admin.ID = uuid.New()
	query := `INSERT INTO admins (id, email, password_hash, full_name)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		admin.ID, admin.Email, admin.PasswordHash, admin.FullName,
	).Scan(&admin.CreatedAt)
}

func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	a := &models.Admin{}
	query := `SELECT id, email, password_hash, full_name, is_active, created_at, last_login_at
		FROM admins WHERE email = $1`

	err := r.pool.QueryRow(ctx, query, email).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.IsActive, &a.CreatedAt, &a.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	a := &models.Admin{}
	query := `SELECT id, email, password_hash, full_name, is_active, created_at, last_login_at
		FROM admins WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.IsActive, &a.CreatedAt, &a.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AdminRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := r.pool.Exec(ctx, "UPDATE admins SET password_hash = $1 WHERE id = $2", passwordHash, id)
	return err
}

func (r *AdminRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE admins SET last_login_at = NOW() WHERE id = $1", id)
	return err
}

func (r *AdminRepo) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM admins").Scan(&count)
	return count, err
}
