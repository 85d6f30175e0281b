package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown admits one action per key per window using SET NX.
type Cooldown struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func NewCooldown(client *redis.Client, prefix string, window time.Duration) *Cooldown {
	return &Cooldown{client: client, prefix: prefix, window: window}
}

func (c *Cooldown) Allow(ctx context.Context, key string) (bool, error) {
	if c == nil || c.client == nil || c.window <= 0 {
		return true, nil
	}
	ok, err := c.client.SetNX(ctx, fmt.Sprintf("%s:%s", c.prefix, key), "1", c.window).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown: %w", err)
	}
	return ok, nil
}
