package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"campusportal/internal/config"
	"campusportal/internal/database"
	"campusportal/internal/models"
	"campusportal/internal/repository"
	"campusportal/internal/security"
	"campusportal/migrations"
)

func withPool(ctx *cli.Context, fn func(cfg *config.AppConfig, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := database.NewPostgresPool(ctx.Context, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(cfg, pool)
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Action: func(ctx *cli.Context) error {
			return withPool(ctx, func(_ *config.AppConfig, pool *pgxpool.Pool) error {
				applied, err := database.Migrate(ctx.Context, pool, migrations.FS)
				if err != nil {
					return err
				}
				if len(applied) == 0 {
					fmt.Fprintln(ctx.App.Writer, "schema is up to date")
					return nil
				}
				for _, v := range applied {
					fmt.Fprintf(ctx.App.Writer, "applied %s\n", v)
				}
				return nil
			})
		},
	}
}

func hashPasswordCmd() *cli.Command {
	var cost int
	return &cli.Command{
		Name:  "hash-password",
		Usage: "Print a password hash for seeding accounts (password is read from stdin)",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "cost",
				Usage:       "bcrypt cost",
				Value:       security.DefaultBcryptCost,
				Destination: &cost,
			},
		},
		Action: func(ctx *cli.Context) error {
			sc := bufio.NewScanner(ctx.App.Reader)
			if !sc.Scan() {
				if err := sc.Err(); err != nil {
					return err
				}
				return errors.New("missing password from stdin")
			}
			password := strings.TrimSpace(sc.Text())
			if password == "" {
				return errors.New("missing password from stdin")
			}
			hash, err := security.NewPasswordHasher(cost).Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, string(hash))
			return nil
		},
	}
}

func purgeCmd() *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete expired or used reset tokens and expired email OTPs",
		Action: func(ctx *cli.Context) error {
			return withPool(ctx, func(_ *config.AppConfig, pool *pgxpool.Pool) error {
				now := time.Now().UTC()
				resets, err := repository.NewResetRepository(pool).PurgeExpired(ctx.Context, now)
				if err != nil {
					return err
				}
				otps, err := repository.NewOTPRepository(pool).PurgeExpired(ctx.Context, now)
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "purged %d reset tokens, %d email otps\n", resets, otps)
				return nil
			})
		},
	}
}

func issueTokenCmd() *cli.Command {
	var (
		role      string
		email     string
		clerkID   int64
		clerkRole string
		rollNo    string
		name      string
		ttl       time.Duration
	)
	return &cli.Command{
		Name:  "issue-token",
		Usage: "Sign a session token with the configured secret, for support and smoke tests",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "role", Required: true, Destination: &role, Usage: "admin, clerk or student"},
			&cli.StringFlag{Name: "email", Destination: &email},
			&cli.Int64Flag{Name: "clerk-id", Destination: &clerkID},
			&cli.StringFlag{Name: "clerk-role", Destination: &clerkRole, Usage: "scholarship, admission, faculty or other"},
			&cli.StringFlag{Name: "roll-no", Destination: &rollNo},
			&cli.StringFlag{Name: "name", Destination: &name},
			&cli.DurationFlag{Name: "ttl", Value: time.Hour, Destination: &ttl},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var claims security.SessionClaims
			switch models.Role(role) {
			case models.RoleAdmin:
				claims = security.AdminClaims(models.Admin{Email: email})
			case models.RoleClerk:
				claims = security.ClerkClaims(models.Clerk{ID: clerkID, Email: email, Role: models.ParseClerkRole(clerkRole)})
			case models.RoleStudent:
				claims = security.StudentClaims(models.Student{RollNo: rollNo, Name: name})
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := security.NewTokenService(cfg.Security.SessionSecret, time.Now).Issue(models.Role(role), claims, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, token)
			return nil
		},
	}
}
