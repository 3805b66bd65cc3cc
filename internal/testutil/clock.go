package testutil

import (
	"context"
	"sync"
	"time"
)

// Epoch is the default start of virtual time.
var Epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// VirtualScheduler is a sched.Scheduler driven by virtual time.
//
// Sleep never blocks on the wall clock: it records the requested duration,
// advances Now by that amount and returns immediately (or returns ctx.Err() if
// ctx is already done). Reset restores the initial state for test reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type VirtualScheduler struct {
	mu     sync.Mutex
	start  time.Time
	now    time.Time
	sleeps []time.Duration

	// OnSleep, if set, runs inside Sleep after time has advanced. Tests use it
	// to cancel contexts or mutate fixtures mid-flight.
	OnSleep func(d time.Duration)
}

// NewVirtualScheduler creates a scheduler starting at Epoch.
func NewVirtualScheduler() *VirtualScheduler {
	return NewVirtualSchedulerAt(Epoch)
}

// NewVirtualSchedulerAt creates a scheduler starting at start.
func NewVirtualSchedulerAt(start time.Time) *VirtualScheduler {
	return &VirtualScheduler{start: start, now: start}
}

// Now returns the current virtual time.
func (s *VirtualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Sleep advances virtual time by d.
func (s *VirtualScheduler) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	if d > 0 {
		s.now = s.now.Add(d)
	}
	hook := s.OnSleep
	s.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

// Advance moves virtual time forward without recording a sleep.
func (s *VirtualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// Sleeps returns a copy of every recorded sleep duration, in call order.
func (s *VirtualScheduler) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.sleeps))
	copy(out, s.sleeps)
	return out
}

// Reset restores the start time and clears recorded sleeps.
func (s *VirtualScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.start
	s.sleeps = nil
}
