// Package sched provides the suspension points used by the data-access layer.
//
// Every timer-based wait (retry backoff, simulated latency) goes through a
// Scheduler, and every random delay draws from a Jitter source. Production code
// uses Real and a seeded PCG source; tests substitute testutil.VirtualScheduler
// and a fixed seed so ordering and timing are reproducible without wall-clock
// sleeps.
package sched

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Scheduler supplies time and cancellable waits.
type Scheduler interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall-clock scheduler.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep waits on a timer, honouring ctx.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Jitter is a source of bounded random integers.
type Jitter interface {
	// Int64N returns a value in [0, n). n must be > 0.
	Int64N(n int64) int64
}

// lockedRand makes a math/rand/v2 generator safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a deterministic, concurrency-safe Jitter seeded with seed.
func NewRand(seed uint64) Jitter {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

// Between returns a value in [lo, hi] (inclusive). Reversed bounds are swapped.
func Between(j Jitter, lo, hi int64) int64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		return lo
	}
	return lo + j.Int64N(hi-lo+1)
}

// Backoff configures exponential backoff with jitter.
type Backoff struct {
	// Attempts is the total number of attempts, including the first. Minimum 1.
	Attempts int

	// Initial is the wait before the first retry.
	Initial time.Duration

	// Max caps the un-jittered wait.
	Max time.Duration

	// Factor multiplies the wait after every retry. Values below 1 mean 2.
	Factor float64

	// JitterFraction adds up to this fraction of the wait at random (0-1).
	JitterFraction float64
}

// DefaultBackoff is three attempts starting at 200ms.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:       3,
		Initial:        200 * time.Millisecond,
		Max:            5 * time.Second,
		Factor:         2,
		JitterFraction: 0.25,
	}
}

// MaxAttempts returns Attempts clamped to at least 1.
func (b Backoff) MaxAttempts() int {
	if b.Attempts < 1 {
		return 1
	}
	return b.Attempts
}

// Delay returns the wait before retry number retry (1-based).
func (b Backoff) Delay(retry int, j Jitter) time.Duration {
	if retry < 1 {
		retry = 1
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}

	wait := float64(b.Initial)
	for i := 1; i < retry; i++ {
		wait *= factor
		if b.Max > 0 && wait >= float64(b.Max) {
			wait = float64(b.Max)
			break
		}
	}
	if b.Max > 0 && wait > float64(b.Max) {
		wait = float64(b.Max)
	}

	d := time.Duration(wait)
	if b.JitterFraction > 0 && j != nil {
		span := int64(float64(d) * b.JitterFraction)
		if span > 0 {
			d += time.Duration(j.Int64N(span + 1))
		}
	}
	return d
}
