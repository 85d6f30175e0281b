package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusportal/internal/models"
)

type StudentRepository struct {
	pool *pgxpool.Pool
}

func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func (r *StudentRepository) FindByRollNo(ctx context.Context, rollNo string) (models.Student, error) {
	const query = `
		SELECT id, name, roll_no, email, email_verified, date_of_birth, password_hash, avatar_url, created_at, updated_at
		FROM students WHERE roll_no = $1
	`

	row := r.pool.QueryRow(ctx, query, rollNo)
	var student models.Student
	if err := row.Scan(
		&student.ID,
		&student.Name,
		&student.RollNo,
		&student.Email,
		&student.EmailVerified,
		&student.DateOfBirth,
		&student.PasswordHash,
		&student.AvatarURL,
		&student.CreatedAt,
		&student.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Student{}, ErrStudentNotFound
		}
		return models.Student{}, err
	}
	return student, nil
}

func (r *StudentRepository) UpdatePassword(ctx context.Context, id int64, hash []byte) error {
	return updatePassword(ctx, r.pool, models.RoleStudent, id, hash)
}

func (r *StudentRepository) UpdateAvatar(ctx context.Context, rollNo string, avatarURL string) error {
	const query = `UPDATE students SET avatar_url = $2, updated_at = NOW() WHERE roll_no = $1`
	cmd, err := r.pool.Exec(ctx, query, rollNo, avatarURL)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStudentNotFound
	}
	return nil
}
