package chrome

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/sre-norns/skuld/pkg/navigation"
	"github.com/sre-norns/skuld/pkg/results"
	"github.com/sre-norns/skuld/pkg/runner"
)

const loadQueueSize = 8

// Renderer is a Chrome page reporting its navigation lifecycle to a navigation listener.
// Navigation commands run on a dedicated goroutine, lifecycle events are delivered on another.
type Renderer struct {
	kind    results.Kind
	browser *rod.Browser
	page    *rod.Page
	filter  *Filter
	logger  log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	loads  chan string
	done   sync.WaitGroup
	router *rod.HijackRouter

	mu       sync.RWMutex
	listener navigation.Listener

	// Owned by the event goroutine.
	committedURL string
	documents    map[proto.NetworkRequestID]navigation.Request

	closeOnce sync.Once
	closeErr  error
}

var (
	_ runner.Renderer       = (*Renderer)(nil)
	_ runner.Preparer       = (*Renderer)(nil)
	_ runner.CookieFallback = (*Renderer)(nil)
)

func newRenderer(browser *rod.Browser, kind results.Kind, filter *Filter, hidden bool, logger log.Logger) (*Renderer, error) {
	var (
		page *rod.Page
		err  error
	)
	if hidden {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open page for %s renderer: %w", kind, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Renderer{
		kind:      kind,
		browser:   browser,
		page:      page,
		filter:    filter,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		loads:     make(chan string, loadQueueSize),
		documents: map[proto.NetworkRequestID]navigation.Request{},
	}

	// Requests of both kinds go through the host listener; only filtering ones are ever blocked.
	if err := r.installRouter(); err != nil {
		cancel()
		_ = page.Close()
		return nil, err
	}

	wait := page.Context(ctx).EachEvent(
		r.onRequestWillBeSent,
		r.onResponseReceived,
		r.onLoadingFailed,
		r.onFrameNavigated,
		r.onDOMContentEvent,
		r.onLoadEvent,
		r.onTargetCrashed,
	)

	r.done.Add(2)
	go func() {
		defer r.done.Done()
		wait()
	}()
	go func() {
		defer r.done.Done()
		r.navigate()
	}()

	return r, nil
}

func (r *Renderer) Kind() results.Kind {
	return r.kind
}

func (r *Renderer) Listener() navigation.Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listener
}

func (r *Renderer) SetListener(listener navigation.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = listener
}

// handler returns the listener to notify, applying renderer defaults if none is set.
func (r *Renderer) handler() navigation.Listener {
	return navigation.Or(r.Listener())
}

// LoadURL queues a navigation and returns immediately.
func (r *Renderer) LoadURL(url string) {
	select {
	case r.loads <- url:
	case <-r.ctx.Done():
	}
}

func (r *Renderer) navigate() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case url := <-r.loads:
			if err := r.page.Context(r.ctx).Navigate(url); err != nil && r.ctx.Err() == nil {
				// Network failures are reported through the event stream.
				level.Debug(r.logger).Log("msg", "navigation failed", "url", url, "err", err)
			}
		}
	}
}

func (r *Renderer) ClearCookies(onDone func(ok bool)) {
	go func() {
		err := proto.NetworkClearBrowserCookies{}.Call(r.page)
		if err != nil {
			level.Warn(r.logger).Log("msg", "failed to clear cookies", "err", err)
		}
		onDone(err == nil)
	}()
}

// RemoveAllCookies drops cookies of the renderer's browser context through the storage domain.
func (r *Renderer) RemoveAllCookies() error {
	return proto.StorageClearCookies{BrowserContextID: r.browser.BrowserContextID}.Call(r.browser)
}

func (r *Renderer) ClearCache(onDone func()) {
	go func() {
		if err := (proto.NetworkClearBrowserCache{}).Call(r.page); err != nil {
			level.Warn(r.logger).Log("msg", "failed to clear cache", "err", err)
		}
		onDone()
	}()
}

// WaitReady settles the page on a blank document so that the first measured load starts clean.
func (r *Renderer) WaitReady(ctx context.Context) error {
	page := r.page.Context(ctx)
	if err := page.Navigate("about:blank"); err != nil {
		return fmt.Errorf("failed to open blank page: %w", err)
	}

	return page.WaitLoad()
}

// Close stops event delivery and disposes the page with its browser context.
func (r *Renderer) Close() error {
	r.closeOnce.Do(func() {
		r.cancel()
		if r.router != nil {
			_ = r.router.Stop()
		}
		r.done.Wait()

		if err := r.page.Close(); err != nil {
			r.closeErr = fmt.Errorf("failed to close %s page: %w", r.kind, err)
		}
		if err := r.browser.Close(); err != nil && r.closeErr == nil {
			r.closeErr = fmt.Errorf("failed to dispose %s browser context: %w", r.kind, err)
		}
	})

	return r.closeErr
}
