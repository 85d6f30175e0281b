package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"campusportal/internal/cache"
	"campusportal/internal/config"
	"campusportal/internal/database"
	"campusportal/internal/handlers"
	"campusportal/internal/jobs"
	"campusportal/internal/log"
	"campusportal/internal/mail"
	"campusportal/internal/metrics"
	"campusportal/internal/repository"
	"campusportal/internal/security"
	"campusportal/internal/server"
	"campusportal/internal/service"
	"campusportal/internal/session"
	"campusportal/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure avatar bucket failed")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	admins := repository.NewAdminRepository(dbPool)
	clerks := repository.NewClerkRepository(dbPool)
	students := repository.NewStudentRepository(dbPool)
	mailer := mail.NewQueueSender(redisClient, cfg.Queue.Stream)

	tokens := security.NewTokenService(cfg.Security.SessionSecret, time.Now)
	sessions := session.NewManager(tokens, cfg.Security.SessionTTL, cfg.IsProduction())

	svc := handlers.Services{
		Auth: service.NewAuthService(admins, clerks, students, cfg.Security, m, logger),
		Recovery: service.NewRecoveryService(admins, clerks, repository.NewResetRepository(dbPool), mailer,
			service.RecoveryOptions{
				TTL:     cfg.Security.ResetTTL,
				BaseURL: cfg.App.BaseURL,
				Hasher:  security.NewPasswordHasher(cfg.Security.BcryptCost),
				Limiter: cache.NewCooldown(redisClient, "cooldown:reset", cfg.Security.Cooldown),
			}, m, logger),
		OTP: service.NewOTPService(students, repository.NewOTPRepository(dbPool), mailer, cfg.Security.OTPTTL,
			cache.NewCooldown(redisClient, "cooldown:otp", cfg.Security.Cooldown), time.Now, m, logger),
		Avatars: service.NewAvatarService(students, objectStore, logger),
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg.Environment, sessions, svc,
		handlers.HealthCheck{Name: "database", Ping: dbPool.Ping},
		handlers.HealthCheck{Name: "cache", Ping: func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }},
		handlers.HealthCheck{Name: "storage", Ping: objectStore.Ping},
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet, sessions, m, registry)

	scheduler := jobs.NewScheduler(redisClient, cfg.Queue.Stream, cfg.Queue.PurgeSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler did not stop in time")
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
