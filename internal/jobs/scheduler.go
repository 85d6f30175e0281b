package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"campusportal/internal/tasks"
)

// Scheduler enqueues periodic maintenance tasks for the worker.
type Scheduler struct {
	cron     *cron.Cron
	queue    *redis.Client
	stream   string
	schedule string
	log      zerolog.Logger
}

func NewScheduler(queue *redis.Client, stream, schedule string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		queue:    queue,
		stream:   stream,
		schedule: schedule,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil || s.schedule == "" {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.enqueuePurge); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueuePurge() {
	if err := s.enqueueTask(map[string]any{"type": tasks.TaskTypePurge}); err != nil {
		s.log.Error().Err(err).Msg("enqueue purge failed")
	}
}

func (s *Scheduler) enqueueTask(payload map[string]any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: payload,
	}).Result()
	return err
}
