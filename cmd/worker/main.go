package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"campusportal/internal/cache"
	"campusportal/internal/config"
	"campusportal/internal/database"
	"campusportal/internal/log"
	"campusportal/internal/mail"
	"campusportal/internal/queue"
	"campusportal/internal/repository"
	"campusportal/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	sender, err := mail.NewSMTPSender(cfg.Mail)
	if err != nil {
		logger.Fatal().Err(err).Msg("smtp client init failed")
	}

	processor := tasks.NewProcessor(sender, map[string]tasks.Purger{
		"password_reset_tokens": repository.NewResetRepository(dbPool),
		"email_otps":            repository.NewOTPRepository(dbPool),
	}, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Queue.Stream,
		cfg.Queue.Group,
		cfg.Queue.Consumer,
		cfg.Queue.ClaimInterval,
		logger,
		processor,
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
