//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NogaLive/SNIUGB/internal/platform/config"
	platformredis "github.com/NogaLive/SNIUGB/internal/platform/redis"
	"github.com/NogaLive/SNIUGB/pkg/testutil/containers"
)

func TestLockerAgainstRedis(t *testing.T) {
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)

	client, err := platformredis.New(ctx, config.RedisConfig{URL: rc.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Health(ctx))

	first := platformredis.NewLocker(client)
	second := platformredis.NewLocker(client)
	const key = "sniugb:test-lock"

	ok, err := first.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock is exclusive")

	require.NoError(t, second.Release(ctx, key), "releasing a lock we do not hold is a no-op")
	ok, err = second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "foreign release must not free the lock")

	require.NoError(t, first.Release(ctx, key))
	ok, err = second.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
