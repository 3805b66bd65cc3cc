package simulator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/sched"
	"github.com/roach88/trustlens/internal/transport"
)

// Loader fetches the raw bytes of a named dataset.
type Loader func(ctx context.Context, name string) ([]byte, error)

// FSLoader reads datasets/<name>.json from fsys.
func FSLoader(fsys fs.FS) Loader {
	return func(_ context.Context, name string) ([]byte, error) {
		return fs.ReadFile(fsys, path.Join("datasets", name+".json"))
	}
}

// DatasetCache memoizes dataset loads for the process lifetime.
//
// Concurrent misses for one name share a single load. A failing load is retried
// with backoff; when every attempt fails, the last good copy is served if one
// exists, otherwise the observer is notified and the failure returned. Missing
// datasets (fs.ErrNotExist) are neither retried nor reported.
type DatasetCache struct {
	load     Loader
	sched    sched.Scheduler
	jitter   sched.Jitter
	backoff  sched.Backoff
	notifier transport.Notifier
	logger   *slog.Logger

	group singleflight.Group
	loads atomic.Int64

	mu    sync.RWMutex
	fresh map[string][]byte
	stale map[string][]byte
}

// NewDatasetCache creates a cache over load.
func NewDatasetCache(load Loader, s sched.Scheduler, j sched.Jitter, b sched.Backoff, n transport.Notifier, logger *slog.Logger) *DatasetCache {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		n = transport.LogNotifier{Logger: logger}
	}
	return &DatasetCache{
		load:     load,
		sched:    s,
		jitter:   j,
		backoff:  b,
		notifier: n,
		logger:   logger,
		fresh:    make(map[string][]byte),
		stale:    make(map[string][]byte),
	}
}

// Get returns the dataset, loading it on first use.
func (c *DatasetCache) Get(ctx context.Context, name string) ([]byte, error) {
	if b, ok := c.cached(name); ok {
		return b, nil
	}

	// The load is shared by every caller waiting on name; a cancelled ctx
	// only ends that caller's wait.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (any, error) {
		// Another caller may have finished loading while we waited.
		if b, ok := c.cached(name); ok {
			return b, nil
		}
		return c.fetch(loadCtx, name)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, envelope.Wrap(0, envelope.CodeTimeout,
			fmt.Sprintf("load dataset %s: caller gave up", name), ctx.Err())
	}
}

func (c *DatasetCache) cached(name string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.fresh[name]
	return b, ok
}

func (c *DatasetCache) fetch(ctx context.Context, name string) ([]byte, error) {
	attempts := c.backoff.MaxAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.loads.Add(1)
		b, err := c.load(ctx, name)
		if err == nil {
			c.mu.Lock()
			c.fresh[name] = b
			c.stale[name] = b
			c.mu.Unlock()
			return b, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		lastErr = err
		c.logger.Debug("dataset load failed", "dataset", name, "attempt", attempt, "error", err)

		if attempt == attempts {
			break
		}
		if serr := c.sched.Sleep(ctx, c.backoff.Delay(attempt, c.jitter)); serr != nil {
			lastErr = serr
			break
		}
	}

	c.mu.RLock()
	stale, ok := c.stale[name]
	c.mu.RUnlock()
	if ok {
		c.logger.Warn("serving stale dataset after load failure", "dataset", name, "error", lastErr)
		return stale, nil
	}

	err := envelope.Wrap(0, envelope.CodeNetwork, fmt.Sprintf("load dataset %s", name), lastErr)
	c.notifier.Notify(envelope.Format(err), err)
	return nil, err
}

// Loads returns how many times the loader has been invoked.
func (c *DatasetCache) Loads() int {
	return int(c.loads.Load())
}

// Invalidate forces the next Get for name to reload. The previous copy is kept
// as a fallback.
func (c *DatasetCache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fresh, name)
}

// Reset forgets every dataset, including fallbacks, and zeroes the load count.
func (c *DatasetCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fresh = make(map[string][]byte)
	c.stale = make(map[string][]byte)
	c.loads.Store(0)
}
