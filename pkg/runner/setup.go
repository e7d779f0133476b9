package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var ErrSetupFailed = fmt.Errorf("renderer setup failed")

// prepare clears cookies and cache concurrently and blocks until both report completion,
// then waits for the renderer to become ready if it needs to.
func prepare(ctx context.Context, renderer Renderer, timeout time.Duration, logger log.Logger) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		latch       sync.WaitGroup
		cookiesDone sync.Once
		cacheDone   sync.Once
	)

	latch.Add(2)
	renderer.ClearCookies(func(ok bool) {
		cookiesDone.Do(func() {
			defer latch.Done()
			if ok {
				return
			}

			level.Warn(logger).Log("msg", "clearing cookies reported failure")
			if fallback, ok := renderer.(CookieFallback); ok {
				if err := fallback.RemoveAllCookies(); err != nil {
					level.Warn(logger).Log("msg", "failed to remove cookies", "err", err)
				}
			}
		})
	})
	renderer.ClearCache(func() {
		cacheDone.Do(latch.Done)
	})

	cleared := make(chan struct{})
	go func() {
		latch.Wait()
		close(cleared)
	}()

	select {
	case <-cleared:
		level.Debug(logger).Log("msg", "cookies and cache cleared")
	case <-ctx.Done():
		return fmt.Errorf("%w: %s renderer did not clear cookies and cache: %w", ErrSetupFailed, renderer.Kind(), ctx.Err())
	}

	if preparer, ok := renderer.(Preparer); ok {
		if err := preparer.WaitReady(ctx); err != nil {
			return fmt.Errorf("%w: %s renderer is not ready: %w", ErrSetupFailed, renderer.Kind(), err)
		}
		level.Debug(logger).Log("msg", "renderer ready")
	}

	return nil
}
