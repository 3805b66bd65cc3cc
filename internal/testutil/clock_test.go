package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualScheduler_StartsAtEpoch(t *testing.T) {
	s := NewVirtualScheduler()
	assert.Equal(t, Epoch, s.Now())
	assert.Empty(t, s.Sleeps())
}

func TestVirtualScheduler_SleepAdvancesTime(t *testing.T) {
	s := NewVirtualScheduler()

	require.NoError(t, s.Sleep(context.Background(), 2*time.Second))
	require.NoError(t, s.Sleep(context.Background(), 500*time.Millisecond))

	assert.Equal(t, Epoch.Add(2500*time.Millisecond), s.Now())
	assert.Equal(t, []time.Duration{2 * time.Second, 500 * time.Millisecond}, s.Sleeps())
}

func TestVirtualScheduler_SleepHonoursCancelledContext(t *testing.T) {
	s := NewVirtualScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Epoch, s.Now())
	assert.Empty(t, s.Sleeps())
}

func TestVirtualScheduler_OnSleepHook(t *testing.T) {
	s := NewVirtualScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	s.OnSleep = func(time.Duration) { cancel() }

	err := s.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, s.Sleeps(), 1)
}

func TestVirtualScheduler_AdvanceAndReset(t *testing.T) {
	s := NewVirtualScheduler()
	s.Advance(time.Hour)
	require.NoError(t, s.Sleep(context.Background(), time.Minute))
	assert.Equal(t, Epoch.Add(61*time.Minute), s.Now())

	s.Reset()
	assert.Equal(t, Epoch, s.Now())
	assert.Empty(t, s.Sleeps())
}

func TestVirtualScheduler_ThreadSafe(t *testing.T) {
	s := NewVirtualScheduler()
	const n = 50

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = s.Sleep(context.Background(), time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Len(t, s.Sleeps(), n)
	assert.Equal(t, Epoch.Add(n*time.Millisecond), s.Now())
}
