package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Unlimited(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, p)

	// nil pacer is usable
	assert.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, "unlimited", p.String())
}

func TestNew_Invalid(t *testing.T) {
	tests := []Config{
		{Rate: -1},
		{Delay: -time.Second},
		{Jitter: -time.Second},
		{Rate: 2, Delay: time.Second},
	}
	for _, cfg := range tests {
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrInvalidRate, "%+v", cfg)
	}
}

func TestPacer_Rate(t *testing.T) {
	p, err := New(Config{Rate: 20})
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	// first is immediate, then two 50ms intervals
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, "20/s", p.String())
}

func TestPacer_Delay(t *testing.T) {
	p, err := New(Config{Delay: 40 * time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.Less(t, time.Since(start), 30*time.Millisecond, "first probe does not wait")

	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, "40ms", p.String())
}

func TestPacer_DelayCountsElapsedWork(t *testing.T) {
	p, err := New(Config{Delay: 50 * time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))
	time.Sleep(60 * time.Millisecond) // the probe itself took longer than the delay

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	assert.Less(t, time.Since(start), 30*time.Millisecond)
}

func TestPacer_Jitter(t *testing.T) {
	p, err := New(Config{Delay: 10 * time.Millisecond, Jitter: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "10ms +20ms jitter", p.String())

	ctx := context.Background()
	require.NoError(t, p.Wait(ctx))
	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 10*time.Millisecond)
	assert.Less(t, elapsed, 200*time.Millisecond)
}

func TestPacer_Canceled(t *testing.T) {
	p, err := New(Config{Delay: time.Hour})
	require.NoError(t, err)

	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPacer_RateCanceled(t *testing.T) {
	p, err := New(Config{Rate: 0.001})
	require.NoError(t, err)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, p.Wait(ctx))
}
