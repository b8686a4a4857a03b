package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestRealClock_Sleep_Cancelled(t *testing.T) {
	c := RealClock{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFakeClock_SleepAdvancesTime(t *testing.T) {
	start := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	require.NoError(t, c.Sleep(context.Background(), 2*time.Second))
	require.NoError(t, c.Sleep(context.Background(), 4*time.Second))

	assert.Equal(t, start.Add(6*time.Second), c.Now())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, c.Sleeps())
}

func TestFakeClock_SleepHonorsCancellation(t *testing.T) {
	c := NewFakeClock(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Sleep(ctx, time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.Sleeps())
}
