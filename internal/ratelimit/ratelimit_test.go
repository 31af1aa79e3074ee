package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/lexcredit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestLockerExcludesSecondHolder(t *testing.T) {
	client, mr := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "reset:2024-06", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "reset:2024-06", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token cannot release someone else's lease.
	require.NoError(t, locker.Release(ctx, "reset:2024-06", "not-the-token"))
	assert.True(t, mr.Exists("reset:2024-06"))

	require.NoError(t, locker.Release(ctx, "reset:2024-06", token))
	assert.False(t, mr.Exists("reset:2024-06"))
}

func TestLockerLeaseExpires(t *testing.T) {
	client, mr := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLock(t *testing.T) {
	client, mr := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	err := locker.WithLock(ctx, "job", time.Minute, func(ctx context.Context) error {
		assert.True(t, mr.Exists("job"))
		return locker.WithLock(ctx, "job", time.Minute, func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
	})
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.False(t, mr.Exists("job"))

	boom := errors.New("boom")
	err = locker.WithLock(ctx, "job", time.Minute, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("job"))
}

func TestNilLockerRunsUnguarded(t *testing.T) {
	var locker *Locker
	ran := false
	err := locker.WithLock(context.Background(), "job", time.Minute, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	_, _, err = locker.TryLock(context.Background(), "job", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
}

func TestTokenBucketRefills(t *testing.T) {
	client, mr := newRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()
	start := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	mr.SetTime(start)

	for i := 0; i < 2; i++ {
		res, err := bucket.Allow(ctx, "bucket", 1, 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := bucket.Allow(ctx, "bucket", 1, 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Second)

	mr.SetTime(start.Add(1500 * time.Millisecond))
	res, err = bucket.Allow(ctx, "bucket", 1, 2)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestTokenBucketValidatesArguments(t *testing.T) {
	client, _ := newRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	_, err := bucket.Allow(ctx, "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(ctx, "k", 0, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(ctx, "k", 1, 0)
	assert.Error(t, err)
}

func TestPaymentLimiterPerTenant(t *testing.T) {
	client, _ := newRedis(t)
	limiter, err := NewPaymentLimiter(config.Config{
		RateLimit: config.RateLimitConfig{PaymentRate: 0.01, PaymentBurst: 1},
	}, client)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := limiter.AllowTenant(ctx, "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowTenant(ctx, "1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = limiter.AllowTenant(ctx, "2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestPaymentLimiterDisabledWithoutRedis(t *testing.T) {
	limiter, err := NewPaymentLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowTenant(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
