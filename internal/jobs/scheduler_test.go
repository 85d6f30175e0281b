package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusportal/internal/tasks"
)

func TestEnqueuePurge(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewScheduler(client, "portal:tasks", "0 */15 * * * *", zerolog.Nop())
	s.enqueuePurge()

	entries, err := client.XRange(context.Background(), "portal:tasks", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, tasks.TaskTypePurge, entries[0].Values["type"])
}

func TestStartRejectsBadSchedule(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewScheduler(client, "portal:tasks", "every tuesday", zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestStartWithoutQueueIsNoop(t *testing.T) {
	s := NewScheduler(nil, "portal:tasks", "0 */15 * * * *", zerolog.Nop())
	require.NoError(t, s.Start())
	<-s.Stop().Done()
}
