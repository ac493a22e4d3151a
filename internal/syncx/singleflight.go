// Package syncx holds small coordination primitives shared by the session,
// state, and polling layers.
package syncx

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

const flightKey = "flight"

// SingleFlight coalesces concurrent invocations of one operation. The first
// caller starts it; callers arriving while it runs wait for the same outcome.
// Once it settles the next caller starts a fresh run.
type SingleFlight[T any] struct {
	group    singleflight.Group
	inFlight atomic.Int32
	runs     atomic.Int64
}

// Run executes fn unless a run is already in flight, in which case it waits for
// that run instead. fn receives a context that is not cancelled when the caller
// gives up; a caller whose ctx ends stops waiting but the shared run continues.
func (s *SingleFlight[T]) Run(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey, func() (any, error) {
		s.inFlight.Add(1)
		s.runs.Add(1)
		defer s.inFlight.Add(-1)
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			if v, ok := res.Val.(T); ok {
				zero = v
			}
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	}
}

// InFlight reports whether a run is currently executing.
func (s *SingleFlight[T]) InFlight() bool {
	return s.inFlight.Load() > 0
}

// Runs returns how many underlying executions have started.
func (s *SingleFlight[T]) Runs() int64 {
	return s.runs.Load()
}
