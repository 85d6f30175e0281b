package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campusportal/internal/models"
)

type OTPRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(pool *pgxpool.Pool) *OTPRepository {
	return &OTPRepository{pool: pool}
}

// Upsert replaces whatever OTP the student already had.
func (r *OTPRepository) Upsert(ctx context.Context, otp models.EmailOTP) error {
	const query = `
		INSERT INTO email_otps (roll_no, otp_code, new_email, attempts, created_at, expires_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		ON CONFLICT (roll_no)
		DO UPDATE SET
			otp_code = EXCLUDED.otp_code,
			new_email = EXCLUDED.new_email,
			attempts = 0,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	_, err := r.pool.Exec(ctx, query,
		otp.RollNo,
		otp.CodeHash,
		otp.NewEmail,
		otp.CreatedAt,
		otp.ExpiresAt,
	)
	return err
}

// ConsumeEmailChange deletes the OTP matching (rollNo, digest) and, if it was
// still live, applies the pending email change in the same transaction. The
// delete is the claim: a duplicate request finds no row. A wrong code counts
// against the pending OTP, which is dropped after models.MaxOTPAttempts misses.
func (r *OTPRepository) ConsumeEmailChange(ctx context.Context, rollNo string, digest string, now time.Time) (string, error) {
	var (
		newEmail string
		// set when the transaction commits but the caller still gets an error
		outcome error
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const claim = `
			DELETE FROM email_otps
			WHERE roll_no = $1 AND otp_code = $2
			RETURNING new_email, expires_at
		`
		var expiresAt time.Time
		if err := tx.QueryRow(ctx, claim, rollNo, digest).Scan(&newEmail, &expiresAt); err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			locked, err := countMiss(ctx, tx, rollNo)
			if err != nil {
				return err
			}
			outcome = ErrOTPNotFound
			if locked {
				outcome = ErrOTPLocked
			}
			return nil
		}
		if !now.Before(expiresAt) {
			// Commit the delete so the stale row does not linger.
			outcome = ErrOTPExpired
			return nil
		}

		const apply = `
			UPDATE students
			SET email = $2, email_verified = TRUE, updated_at = NOW()
			WHERE roll_no = $1
		`
		cmd, err := tx.Exec(ctx, apply, rollNo, newEmail)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrStudentNotFound
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if outcome != nil {
		return "", outcome
	}
	return newEmail, nil
}

// countMiss records a wrong code against rollNo's OTP and drops the OTP once
// it has used up its attempts.
func countMiss(ctx context.Context, tx pgx.Tx, rollNo string) (bool, error) {
	const bump = `
		UPDATE email_otps SET attempts = attempts + 1
		WHERE roll_no = $1
		RETURNING attempts
	`
	var attempts int
	if err := tx.QueryRow(ctx, bump, rollNo).Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if attempts < models.MaxOTPAttempts {
		return false, nil
	}

	const drop = `DELETE FROM email_otps WHERE roll_no = $1`
	if _, err := tx.Exec(ctx, drop, rollNo); err != nil {
		return false, err
	}
	return true, nil
}

func (r *OTPRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM email_otps WHERE expires_at <= $1`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
