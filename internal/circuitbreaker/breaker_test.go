package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
		SuccessThreshold: 1,
	}
	b := New("test", cfg, zaptest.NewLogger(t))
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := b.Do(context.Background(), func() error { return boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, b.State())

	err := b.Do(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	cfg := Config{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          10 * time.Millisecond,
		FailureThreshold: 1,
		SuccessThreshold: 2,
	}
	b := New("test", cfg, zaptest.NewLogger(t))

	require.Error(t, b.Do(context.Background(), func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Do(context.Background(), func() error { return nil }))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cfg := Config{
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
		SuccessThreshold: 1,
		MaxRequests:      1,
	}
	b := New("test", cfg, zaptest.NewLogger(t))

	require.Error(t, b.Do(context.Background(), func() error { return errors.New("boom") }))
	require.NoError(t, b.Do(context.Background(), func() error { return nil }))
	require.Error(t, b.Do(context.Background(), func() error { return errors.New("boom") }))

	assert.Equal(t, StateClosed, b.State())
}

func TestRedisWrapperNormalOperations(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	wrapper := NewRedisWrapper(client, DefaultConfig(), zaptest.NewLogger(t))
	defer wrapper.Close()

	ctx := context.Background()
	require.NoError(t, wrapper.Ping(ctx).Err())
	require.NoError(t, wrapper.Set(ctx, "k", "v", time.Minute).Err())

	got, err := wrapper.Get(ctx, "k").Result()
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	// Missing keys return redis.Nil without tripping the breaker.
	assert.ErrorIs(t, wrapper.Get(ctx, "missing").Err(), redis.Nil)
	assert.False(t, wrapper.IsOpen())
}
