package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusportal/internal/config"
)

func TestCooldownAdmitsOncePerWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	c := NewCooldown(client, "cooldown:reset", time.Minute)

	ok, err := c.Allow(ctx, "admin:a@school.edu")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Allow(ctx, "admin:a@school.edu")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.Allow(ctx, "admin:b@school.edu")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = c.Allow(ctx, "admin:a@school.edu")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCooldownDisabled(t *testing.T) {
	var c *Cooldown
	ok, err := c.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCooldownReportsStoreFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, err := NewCooldown(client, "p", time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, Ping(context.Background(), client))

	_, err = NewRedisClient(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
