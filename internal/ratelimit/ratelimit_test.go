package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetween(t *testing.T) {
	assert.Equal(t, time.Second, Between(time.Second, time.Second))
	assert.Equal(t, 2*time.Second, Between(2*time.Second, time.Second))

	for i := 0; i < 100; i++ {
		d := Between(time.Second, 3*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestJitterZeroDelayDoesNotBlock(t *testing.T) {
	j := NewJitter(0, 0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestJitterHonoursCancellation(t *testing.T) {
	j := NewJitter(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, j.Wait(ctx), context.Canceled)
}

func TestPauseSleepsAfterSlowWork(t *testing.T) {
	j := NewJitter(50*time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, j.Pause(ctx))

	time.Sleep(80 * time.Millisecond)

	start := time.Now()
	require.NoError(t, j.Pause(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, j.Pause(cancelled), context.Canceled)
}

func TestAdaptiveBackoff(t *testing.T) {
	a := NewAdaptive(time.Second, 2*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}
	min, max := a.Delays()
	assert.Equal(t, 1500*time.Millisecond, min)
	assert.Equal(t, 3*time.Second, max)

	for i := 0; i < 6; i++ {
		a.RecordSuccess()
	}
	min, _ = a.Delays()
	assert.InDelta(t, float64(1350*time.Millisecond), float64(min), float64(time.Millisecond))

	a.Reset()
	min, max = a.Delays()
	assert.Equal(t, time.Second, min)
	assert.Equal(t, 2*time.Second, max)
}

func TestHostLimiter(t *testing.T) {
	h := NewHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, h.Wait(ctx, "https://a.test/x"))
	require.NoError(t, h.Wait(ctx, "https://b.test/x"))
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	require.NoError(t, h.Wait(ctx, "https://a.test/y"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	var disabled *HostLimiter
	assert.NoError(t, disabled.Wait(ctx, "https://a.test"))
}
