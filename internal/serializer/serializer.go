// Package serializer totally orders mutations per resource key.
//
// A call enqueues behind the in-flight chain for its key and runs only after
// every earlier call for that key has finished. Calls for different keys run
// concurrently. This only orders callers inside one process; it does not
// protect against another client racing the same backend resource.
package serializer

import (
	"context"
	"sync"
)

// Serializer holds one chain per key. The zero value is ready to use.
type Serializer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// New creates a Serializer.
func New() *Serializer {
	return &Serializer{}
}

// Do runs fn after every earlier call for key has completed.
//
// If ctx is done while waiting, Do returns ctx.Err() without running fn. The
// chain stays intact: later callers still wait for the calls queued before the
// cancelled one.
func (s *Serializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	done := make(chan struct{})

	s.mu.Lock()
	if s.tails == nil {
		s.tails = make(map[string]chan struct{})
	}
	prev := s.tails[key]
	s.tails[key] = done
	s.mu.Unlock()

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			go func() {
				<-prev
				s.release(key, done)
			}()
			return ctx.Err()
		}
	}
	defer s.release(key, done)

	return fn(ctx)
}

func (s *Serializer) release(key string, done chan struct{}) {
	s.mu.Lock()
	if s.tails[key] == done {
		delete(s.tails, key)
	}
	s.mu.Unlock()
	close(done)
}

// Pending returns the number of keys with an active chain.
func (s *Serializer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tails)
}

// Run is Do for functions that produce a value.
func Run[T any](ctx context.Context, s *Serializer, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.Do(ctx, key, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// MergePatch performs fetch -> merge -> push under key. The patch is applied
// key-by-key over the fetched document and the merged document is pushed in
// full. The pushed result is returned.
func MergePatch[V any](
	ctx context.Context,
	s *Serializer,
	key string,
	fetch func(ctx context.Context) (map[string]V, error),
	push func(ctx context.Context, full map[string]V) (map[string]V, error),
	patch map[string]V,
) (map[string]V, error) {
	return Run(ctx, s, key, func(ctx context.Context) (map[string]V, error) {
		current, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]V, len(current)+len(patch))
		for k, v := range current {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		return push(ctx, merged)
	})
}
