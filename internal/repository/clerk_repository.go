package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusportal/internal/models"
)

type ClerkRepository struct {
	pool *pgxpool.Pool
}

func NewClerkRepository(pool *pgxpool.Pool) *ClerkRepository {
	return &ClerkRepository{pool: pool}
}

const clerkColumns = `id, name, email, password_hash, role, is_active, created_at, updated_at`

func (r *ClerkRepository) FindByEmail(ctx context.Context, email string) (models.Clerk, error) {
	query := `SELECT ` + clerkColumns + ` FROM clerks WHERE lower(email) = lower($1)`
	return scanClerk(r.pool.QueryRow(ctx, query, email))
}

func (r *ClerkRepository) GetByID(ctx context.Context, id int64) (models.Clerk, error) {
	query := `SELECT ` + clerkColumns + ` FROM clerks WHERE id = $1`
	return scanClerk(r.pool.QueryRow(ctx, query, id))
}

func (r *ClerkRepository) UpdatePassword(ctx context.Context, id int64, hash []byte) error {
	return updatePassword(ctx, r.pool, models.RoleClerk, id, hash)
}

func scanClerk(row pgx.Row) (models.Clerk, error) {
	var clerk models.Clerk
	var role string
	if err := row.Scan(
		&clerk.ID,
		&clerk.Name,
		&clerk.Email,
		&clerk.PasswordHash,
		&role,
		&clerk.Active,
		&clerk.CreatedAt,
		&clerk.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Clerk{}, ErrClerkNotFound
		}
		return models.Clerk{}, err
	}
	clerk.Role = models.ParseClerkRole(role)
	return clerk, nil
}
