package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zeroJitter struct{}

func (zeroJitter) Int64N(int64) int64 { return 0 }

type maxJitter struct{}

func (maxJitter) Int64N(n int64) int64 { return n - 1 }

func TestBackoff_ExponentialAndCapped(t *testing.T) {
	b := Backoff{Attempts: 5, Initial: 100 * time.Millisecond, Max: 350 * time.Millisecond, Factor: 2}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1, zeroJitter{}))
	assert.Equal(t, 200*time.Millisecond, b.Delay(2, zeroJitter{}))
	assert.Equal(t, 350*time.Millisecond, b.Delay(3, zeroJitter{}))
	assert.Equal(t, 350*time.Millisecond, b.Delay(10, zeroJitter{}))
}

func TestBackoff_JitterBounded(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Factor: 2, JitterFraction: 0.5}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1, zeroJitter{}))
	assert.Equal(t, 150*time.Millisecond, b.Delay(1, maxJitter{}))

	j := NewRand(7)
	for i := 0; i < 100; i++ {
		d := b.Delay(2, j)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	assert.Equal(t, 1, Backoff{}.MaxAttempts())
	assert.Equal(t, 3, DefaultBackoff().MaxAttempts())
	// Factor below 1 falls back to doubling.
	assert.Equal(t, 20*time.Millisecond, Backoff{Initial: 10 * time.Millisecond}.Delay(2, nil))
}

func TestNewRand_Deterministic(t *testing.T) {
	a, b := NewRand(42), NewRand(42)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Int64N(1000), b.Int64N(1000))
	}
}

func TestBetween(t *testing.T) {
	j := NewRand(1)
	for i := 0; i < 100; i++ {
		v := Between(j, 5, 9)
		assert.GreaterOrEqual(t, v, int64(5))
		assert.LessOrEqual(t, v, int64(9))
	}
	assert.Equal(t, int64(3), Between(j, 3, 3))
	v := Between(j, 9, 5)
	assert.True(t, v >= 5 && v <= 9)
}

func TestReal_SleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Real{}.Sleep(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, Real{}.Sleep(context.Background(), time.Millisecond))
}
