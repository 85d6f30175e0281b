package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusportal/internal/models"
)

type ResetRepository struct {
	pool *pgxpool.Pool
}

func NewResetRepository(pool *pgxpool.Pool) *ResetRepository {
	return &ResetRepository{pool: pool}
}

// Create stores a new reset token and drops any unused ones the same owner
// still holds, so only the latest link works. deliver runs before commit; when
// it fails nothing changes and the previous link stays valid.
func (r *ResetRepository) Create(ctx context.Context, token models.ResetToken, deliver func(context.Context) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const revoke = `
			DELETE FROM password_reset_tokens
			WHERE user_id = $1 AND user_type = $2 AND used_at IS NULL
		`
		if _, err := tx.Exec(ctx, revoke, token.UserID, token.UserType); err != nil {
			return fmt.Errorf("revoke previous tokens: %w", err)
		}

		const insert = `
			INSERT INTO password_reset_tokens (token_hash, user_id, user_type, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, insert,
			token.TokenHash,
			token.UserID,
			token.UserType,
			token.CreatedAt,
			token.ExpiresAt,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		if deliver == nil {
			return nil
		}
		return deliver(ctx)
	})
}

// Inspect reports whether digest names a usable token without consuming it.
// An expired token is deleted on the way out.
func (r *ResetRepository) Inspect(ctx context.Context, digest string, now time.Time) (models.ResetToken, error) {
	var (
		token   models.ResetToken
		outcome error
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		token, err = lockResetToken(ctx, tx, digest)
		if err != nil {
			return err
		}
		outcome, err = checkResetToken(ctx, tx, token, now)
		return err
	})
	if err != nil {
		return models.ResetToken{}, err
	}
	if outcome != nil {
		return models.ResetToken{}, outcome
	}
	return token, nil
}

// ResetPassword consumes the token named by digest and stores hash as the
// owner's password in one transaction. The row lock serialises concurrent
// attempts with the same token, so only one can succeed.
func (r *ResetRepository) ResetPassword(ctx context.Context, digest string, hash []byte, now time.Time) (models.ResetToken, error) {
	var (
		token   models.ResetToken
		outcome error
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		token, err = lockResetToken(ctx, tx, digest)
		if err != nil {
			return err
		}
		outcome, err = checkResetToken(ctx, tx, token, now)
		if err != nil || outcome != nil {
			return err
		}

		id, err := strconv.ParseInt(token.UserID, 10, 64)
		if err != nil {
			return fmt.Errorf("reset token owner %q: %w", token.UserID, err)
		}
		if err := updatePassword(ctx, tx, token.UserType, id, hash); err != nil {
			return err
		}

		const consume = `UPDATE password_reset_tokens SET used_at = $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, consume, token.ID, now); err != nil {
			return err
		}
		token.UsedAt = &now
		return nil
	})
	if err != nil {
		return models.ResetToken{}, err
	}
	if outcome != nil {
		return models.ResetToken{}, outcome
	}
	return token, nil
}

func (r *ResetRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM password_reset_tokens WHERE expires_at <= $1 OR used_at IS NOT NULL`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func lockResetToken(ctx context.Context, tx pgx.Tx, digest string) (models.ResetToken, error) {
	const query = `
		SELECT id, token_hash, user_id, user_type, created_at, expires_at, used_at
		FROM password_reset_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`

	var token models.ResetToken
	var userType string
	if err := tx.QueryRow(ctx, query, digest).Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&userType,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ResetToken{}, ErrResetTokenNotFound
		}
		return models.ResetToken{}, err
	}
	token.UserType = models.Role(userType)
	return token, nil
}

// checkResetToken returns the rejection for an unusable token, deleting it
// when it has expired. The second return is a store failure.
func checkResetToken(ctx context.Context, tx pgx.Tx, token models.ResetToken, now time.Time) (rejected error, err error) {
	if token.Used() {
		return ErrResetTokenUsed, nil
	}
	if token.Expired(now) {
		if _, err := tx.Exec(ctx, `DELETE FROM password_reset_tokens WHERE id = $1`, token.ID); err != nil {
			return nil, err
		}
		return ErrResetTokenExpired, nil
	}
	return nil, nil
}
