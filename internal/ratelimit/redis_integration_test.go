//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/ratelimit"
	"docverify/pkg/testutil/containers"
)

func TestRedisStoreSlidingWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()
	require.NoError(t, rc.FlushAll(ctx))

	store := ratelimit.NewRedisStore(rc.Client)
	start := time.Now().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		res, err := store.Allow(ctx, "rl:test", 3, time.Minute, start.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}

	res, err := store.Allow(ctx, "rl:test", 3, time.Minute, start.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, start.Add(time.Minute).UnixMilli(), res.ResetAt.UnixMilli())
	assert.Positive(t, res.RetryAfter)

	res, err = store.Allow(ctx, "rl:test", 3, time.Minute, start.Add(time.Minute+time.Millisecond))
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	ttl, err := rc.Client.PTTL(ctx, "rl:test").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
