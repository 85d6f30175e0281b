package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"campusportal/internal/mail"
)

const TaskTypePurge = "purge"

// Purger deletes one kind of one-time secret that can no longer be used.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type Processor struct {
	mailer  mail.Sender
	purgers map[string]Purger
	now     func() time.Time
	logger  zerolog.Logger
}

func NewProcessor(mailer mail.Sender, purgers map[string]Purger, logger zerolog.Logger) *Processor {
	return &Processor{
		mailer:  mailer,
		purgers: purgers,
		now:     time.Now,
		logger:  logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	taskType, _ := msg.Values["type"].(string)

	switch taskType {
	case mail.TaskTypeMail:
		return p.handleMail(ctx, msg)
	case TaskTypePurge:
		return p.handlePurge(ctx)
	default:
		p.logger.Warn().Str("type", taskType).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleMail(ctx context.Context, msg redis.XMessage) error {
	m, err := mail.FromValues(msg.Values)
	if err != nil {
		// Malformed tasks are dropped; retrying cannot fix them.
		p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("drop mail task")
		return nil
	}
	if err := p.mailer.Send(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	p.logger.Info().Str("message_id", msg.ID).Str("subject", m.Subject).Msg("mail delivered")
	return nil
}

func (p *Processor) handlePurge(ctx context.Context) error {
	now := p.now().UTC()
	for name, purger := range p.purgers {
		n, err := purger.PurgeExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("purge %s: %w", name, err)
		}
		p.logger.Info().Str("table", name).Int64("deleted", n).Msg("purged expired secrets")
	}
	return nil
}
