package timing

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var ErrSignalTimeout = fmt.Errorf("timed out waiting for page to finish loading")

// Signal is a one-shot completion notification between the renderer's event context
// and a waiting orchestrator. A fired signal stays fired: a fresh one must be armed
// for every navigation.
type Signal struct {
	once sync.Once
	done chan struct{}
}

func NewSignal() *Signal {
	return &Signal{
		done: make(chan struct{}),
	}
}

// Fire marks the signal as done. Only the first call has effect and returns true.
func (s *Signal) Fire() bool {
	fired := false
	s.once.Do(func() {
		close(s.done)
		fired = true
	})

	return fired
}

func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal fires, the timeout elapses or ctx is done.
// A non-positive timeout waits without a bound.
func (s *Signal) Wait(ctx context.Context, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-s.done:
		return nil
	case <-expired:
		// The page may have finished at the same instant.
		if s.Fired() {
			return nil
		}
		return ErrSignalTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
