package runner_test

import (
	"context"
	"sync"
	"time"

	"github.com/sre-norns/skuld/pkg/catalog"
	"github.com/sre-norns/skuld/pkg/navigation"
	"github.com/sre-norns/skuld/pkg/results"
	"github.com/sre-norns/skuld/pkg/timing"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeRenderer reports a start and a finish for every loaded URL from its own goroutine,
// advancing the clock by the configured load time in between.
type fakeRenderer struct {
	kind  results.Kind
	clock *fakeClock

	// Load time per normalized URL; URLs not listed take one second.
	loadTimes map[string]time.Duration
	// URLs that start loading but never finish.
	hang      map[string]bool
	// Intermediate hops reported before the final URL.
	redirects map[string][]string
	// Time each redirect hop takes.
	hopTime   time.Duration

	cookiesFail   bool
	skipCache     bool
	readyErr      error
	closeErr      error
	fallbackCalls int

	mu            sync.Mutex
	listener      navigation.Listener
	loads         []string
	clearedAtLoad []bool
	closed        bool
}

func newFakeRenderer(kind results.Kind, clock *fakeClock) *fakeRenderer {
	return &fakeRenderer{
		kind:      kind,
		clock:     clock,
		loadTimes: map[string]time.Duration{},
		hang:      map[string]bool{},
		redirects: map[string][]string{},
	}
}

func (f *fakeRenderer) Kind() results.Kind {
	return f.kind
}

func (f *fakeRenderer) Listener() navigation.Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listener
}

func (f *fakeRenderer) SetListener(listener navigation.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = listener
}

func (f *fakeRenderer) ClearCookies(onDone func(ok bool)) {
	go onDone(!f.cookiesFail)
}

func (f *fakeRenderer) ClearCache(onDone func()) {
	if f.skipCache {
		return
	}
	go onDone()
}

func (f *fakeRenderer) RemoveAllCookies() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallbackCalls++
	return nil
}

func (f *fakeRenderer) WaitReady(context.Context) error {
	return f.readyErr
}

func (f *fakeRenderer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return f.closeErr
}

func (f *fakeRenderer) Loads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

func (f *fakeRenderer) ClearedAtLoad() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.clearedAtLoad...)
}

func (f *fakeRenderer) LoadURL(url string) {
	f.mu.Lock()
	listener := f.listener
	f.loads = append(f.loads, url)
	cleared := false
	if proxy, ok := listener.(*timing.Proxy); ok {
		state := proxy.Pending()
		cleared = state.Cleared() && state.LastStartedURL == "" && state.Armed
	}
	f.clearedAtLoad = append(f.clearedAtLoad, cleared)
	f.mu.Unlock()

	key := catalog.Normalize(url)
	go func() {
		for _, hop := range f.redirects[key] {
			listener.OnPageStarted(f, hop)
			f.clock.Advance(f.hopTime)
		}
		listener.OnPageStarted(f, url)

		if f.hang[key] {
			return
		}

		elapsed, ok := f.loadTimes[key]
		if !ok {
			elapsed = time.Second
		}
		f.clock.Advance(elapsed)
		listener.OnPageFinished(f, url)
	}()
}
