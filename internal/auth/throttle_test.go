package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginThrottle(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	th := NewLoginThrottle(rdb, 2, time.Minute)
	_, err := th.Check(ctx, "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, th.Fail(ctx, "a@example.com"))
	_, err = th.Check(ctx, "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, 2, th.Fail(ctx, "a@example.com"))
	wait, err := th.Check(ctx, "a@example.com")
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Greater(t, wait, time.Duration(0))

	// other emails are counted apart
	_, err = th.Check(ctx, "b@example.com")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = th.Check(ctx, "a@example.com")
	require.NoError(t, err)

	th.Fail(ctx, "a@example.com")
	th.Fail(ctx, "a@example.com")
	th.Reset(ctx, "a@example.com")
	_, err = th.Check(ctx, "a@example.com")
	require.NoError(t, err)
}

func TestLoginThrottle_DisabledNeverBlocks(t *testing.T) {
	var th *LoginThrottle
	ctx := context.Background()
	assert.Equal(t, 0, th.Fail(ctx, "a@example.com"))
	_, err := th.Check(ctx, "a@example.com")
	assert.NoError(t, err)
	th.Reset(ctx, "a@example.com")
}
