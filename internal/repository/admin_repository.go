package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusportal/internal/models"
)

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (models.Admin, error) {
	const query = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM admins WHERE lower(email) = lower($1)
	`

	row := r.pool.QueryRow(ctx, query, email)
	var admin models.Admin
	if err := row.Scan(
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.PasswordHash,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Admin{}, ErrAdminNotFound
		}
		return models.Admin{}, err
	}
	return admin, nil
}

func (r *AdminRepository) UpdatePassword(ctx context.Context, id int64, hash []byte) error {
	return updatePassword(ctx, r.pool, models.RoleAdmin, id, hash)
}

// updatePassword is shared by the repositories and the reset transaction.
func updatePassword(ctx context.Context, db execer, role models.Role, id int64, hash []byte) error {
	var query string
	var notFound error
	switch role {
	case models.RoleAdmin:
		query = `UPDATE admins SET password_hash = $2, updated_at = NOW() WHERE id = $1`
		notFound = ErrAdminNotFound
	case models.RoleClerk:
		query = `UPDATE clerks SET password_hash = $2, updated_at = NOW() WHERE id = $1`
		notFound = ErrClerkNotFound
	case models.RoleStudent:
		query = `UPDATE students SET password_hash = $2, updated_at = NOW() WHERE id = $1`
		notFound = ErrStudentNotFound
	default:
		return errors.New("update password: unknown role")
	}

	cmd, err := db.Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
