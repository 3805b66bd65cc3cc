package simulator

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/sched"
	"github.com/roach88/trustlens/internal/testutil"
	"github.com/roach88/trustlens/internal/transport"
)

type countingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *countingNotifier) Notify(_ envelope.UserMessage, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

var _ transport.Notifier = (*countingNotifier)(nil)

func newTestCache(load Loader) (*DatasetCache, *testutil.VirtualScheduler, *countingNotifier) {
	vs := testutil.NewVirtualScheduler()
	n := &countingNotifier{}
	b := sched.Backoff{Attempts: 3, Initial: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	return NewDatasetCache(load, vs, sched.NewRand(1), b, n, nil), vs, n
}

func TestDatasetCache_LoadsOnce(t *testing.T) {
	c, _, _ := newTestCache(func(context.Context, string) ([]byte, error) {
		return []byte(`[]`), nil
	})
	for range 3 {
		b, err := c.Get(context.Background(), "participants")
		require.NoError(t, err)
		assert.Equal(t, "[]", string(b))
	}
	assert.Equal(t, 1, c.Loads())
}

func TestDatasetCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c, _, _ := newTestCache(func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(`{"items": []}`), nil
	})

	const callers = 8
	var wg sync.WaitGroup
	started := make(chan struct{}, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started <- struct{}{}
			_, err := c.Get(context.Background(), "debts")
			assert.NoError(t, err)
		}()
	}
	for range callers {
		<-started
	}
	// Let every goroutine reach the singleflight group before releasing.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Loads())
}

func TestDatasetCache_RetriesWithBackoff(t *testing.T) {
	fails := 2
	c, vs, n := newTestCache(func(context.Context, string) ([]byte, error) {
		if fails > 0 {
			fails--
			return nil, errors.New("flaky")
		}
		return []byte(`[1]`), nil
	})

	b, err := c.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(b))
	assert.Equal(t, 3, c.Loads())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, vs.Sleeps())
	assert.Zero(t, n.count())
}

func TestDatasetCache_StaleFallbackAfterInvalidate(t *testing.T) {
	healthy := true
	c, _, n := newTestCache(func(context.Context, string) ([]byte, error) {
		if healthy {
			return []byte(`"v1"`), nil
		}
		return nil, errors.New("offline")
	})

	_, err := c.Get(context.Background(), "x")
	require.NoError(t, err)

	healthy = false
	c.Invalidate("x")
	b, err := c.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, string(b))
	assert.Equal(t, 4, c.Loads(), "one good load plus three failed attempts")
	assert.Zero(t, n.count())
}

func TestDatasetCache_FailureNotifiesWithoutFallback(t *testing.T) {
	c, _, n := newTestCache(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("offline")
	})

	_, err := c.Get(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, envelope.IsCode(err, envelope.CodeNetwork))
	assert.Equal(t, 3, c.Loads())
	assert.Equal(t, 1, n.count())
}

func TestDatasetCache_MissingIsNotRetried(t *testing.T) {
	c, vs, n := newTestCache(func(context.Context, string) ([]byte, error) {
		return nil, fs.ErrNotExist
	})

	_, err := c.Get(context.Background(), "debts")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, 1, c.Loads())
	assert.Empty(t, vs.Sleeps())
	assert.Zero(t, n.count())
}

func TestDatasetCache_CancelledCallerDoesNotAbortSharedLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	c, _, n := newTestCache(func(ctx context.Context, _ string) ([]byte, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte(`[1]`), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "x")
		errc <- err
	}()
	<-started
	cancel()

	err := <-errc
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, envelope.IsCode(err, envelope.CodeTimeout))

	close(release)
	b, err := c.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(b))
	assert.Equal(t, 1, c.Loads(), "the abandoned load still fills the cache")
	assert.Zero(t, n.count())
}

func TestDatasetCache_Reset(t *testing.T) {
	c, _, _ := newTestCache(func(context.Context, string) ([]byte, error) {
		return []byte(`[]`), nil
	})
	_, err := c.Get(context.Background(), "x")
	require.NoError(t, err)

	c.Reset()
	assert.Zero(t, c.Loads())
	_, err = c.Get(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Loads())
}
