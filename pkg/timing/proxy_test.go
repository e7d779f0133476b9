package timing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sre-norns/skuld/pkg/navigation"
	"github.com/sre-norns/skuld/pkg/results"
	"github.com/sre-norns/skuld/pkg/timing"
	"github.com/stretchr/testify/require"
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

// recordingListener remembers every callback it got and answers decisions with fixed values.
type recordingListener struct {
	navigation.Defaults

	mu        sync.Mutex
	calls     []string
	override  bool
	intercept *navigation.Response
}

func (l *recordingListener) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *recordingListener) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *recordingListener) OnPageStarted(_ navigation.View, url string) {
	l.record("started:" + url)
}

func (l *recordingListener) OnPageFinished(_ navigation.View, url string) {
	l.record("finished:" + url)
}

func (l *recordingListener) ShouldOverrideURLLoading(_ navigation.View, request navigation.Request) bool {
	l.record("override:" + request.URL)
	return l.override
}

func (l *recordingListener) ShouldInterceptRequest(_ navigation.View, request navigation.Request) *navigation.Response {
	l.record("intercept:" + request.URL)
	return l.intercept
}

func (l *recordingListener) OnRenderProcessGone(navigation.View, navigation.RenderProcessGoneDetail) bool {
	l.record("gone")
	return true
}

func (l *recordingListener) OnReceivedSslError(_ navigation.View, handler navigation.SslErrorHandler, _ navigation.SslError) {
	l.record("ssl")
	handler.Proceed()
}

type sslHandler struct {
	decision string
}

func (h *sslHandler) Proceed() { h.decision = "proceed" }
func (h *sslHandler) Cancel()  { h.decision = "cancel" }

func newTestProxy(wrapped navigation.Listener) (*timing.Proxy, *results.Store, *fakeClock) {
	store := results.NewStore()
	clock := newFakeClock()
	proxy := timing.NewProxy(results.Filtering, store, wrapped, timing.WithClock(clock.Now))

	return proxy, store, clock
}

func TestProxy_MeasuresMatchedNavigation(t *testing.T) {
	proxy, store, clock := newTestProxy(nil)
	signal := timing.NewSignal()
	proxy.ArmCompletion(signal)

	proxy.OnPageStarted(nil, "https://a.com/p?session=1")
	clock.Advance(1250 * time.Millisecond)
	proxy.OnPageFinished(nil, "https://a.com/p?session=1")

	require.True(t, signal.Fired())
	got, ok := store.Lookup(results.Filtering, "https://a.com/p")
	require.True(t, ok)
	require.Equal(t, int64(1250), got)
	require.True(t, proxy.Pending().Cleared())
	require.False(t, proxy.Pending().Armed)
}

func TestProxy_FirstStartWins(t *testing.T) {
	proxy, store, clock := newTestProxy(nil)
	proxy.ArmCompletion(timing.NewSignal())

	first := clock.Now()
	proxy.OnPageStarted(nil, "https://a.com")
	clock.Advance(300 * time.Millisecond)
	proxy.OnPageStarted(nil, "https://www.a.com")
	clock.Advance(300 * time.Millisecond)
	proxy.OnPageStarted(nil, "https://www.a.com/home")

	state := proxy.Pending()
	require.True(t, state.Started)
	require.Equal(t, first, state.StartedAt)
	require.Equal(t, "https://www.a.com/home", state.LastStartedURL)

	clock.Advance(400 * time.Millisecond)
	proxy.OnPageFinished(nil, "https://www.a.com/home")

	got, ok := store.Lookup(results.Filtering, "https://www.a.com/home")
	require.True(t, ok)
	require.Equal(t, int64(1000), got)
}

func TestProxy_FinishMatching(t *testing.T) {
	testCases := map[string]struct {
		started  string
		finished string
		expect   bool
	}{
		"same-url":             {started: "https://a.com/p", finished: "https://a.com/p", expect: true},
		"query-differs":        {started: "https://a.com/p?x=1", finished: "https://a.com/p?x=2", expect: true},
		"finished-is-prefix":   {started: "https://a.com/p/landing", finished: "https://a.com/p", expect: true},
		"different-host":       {started: "https://a.com/p", finished: "https://b.com/p", expect: false},
		"finished-is-longer":   {started: "https://a.com/", finished: "https://a.com/ads/frame", expect: false},
		"empty-finished":       {started: "https://a.com/", finished: "", expect: false},
		"no-start-since-armed": {started: "", finished: "https://a.com/", expect: false},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			proxy, store, clock := newTestProxy(nil)
			signal := timing.NewSignal()

			if test.started != "" {
				proxy.ArmCompletion(signal)
				proxy.OnPageStarted(nil, test.started)
			} else {
				// A start from a previous cycle, then a fresh arm clears the started URL.
				proxy.OnPageStarted(nil, "https://a.com/")
				proxy.ArmCompletion(signal)
			}

			clock.Advance(time.Second)
			proxy.OnPageFinished(nil, test.finished)

			require.Equal(t, test.expect, signal.Fired())
			require.Equal(t, test.expect, store.Len(results.Filtering) == 1)
			require.Equal(t, !test.expect, proxy.Pending().Started)
		})
	}
}

func TestProxy_MismatchKeepsSignalArmed(t *testing.T) {
	proxy, store, clock := newTestProxy(nil)
	signal := timing.NewSignal()
	proxy.ArmCompletion(signal)

	proxy.OnPageStarted(nil, "https://a.com/")
	clock.Advance(100 * time.Millisecond)
	proxy.OnPageFinished(nil, "https://tracker.example/pixel")

	require.False(t, signal.Fired())
	require.True(t, proxy.Pending().Armed)
	require.Zero(t, store.Len(results.Filtering))

	clock.Advance(100 * time.Millisecond)
	proxy.OnPageFinished(nil, "https://a.com/")

	require.True(t, signal.Fired())
	got, _ := store.Lookup(results.Filtering, "https://a.com/")
	require.Equal(t, int64(200), got)
}

func TestProxy_FinishWithoutStart(t *testing.T) {
	proxy, store, _ := newTestProxy(nil)
	signal := timing.NewSignal()
	proxy.ArmCompletion(signal)

	proxy.OnPageFinished(nil, "https://a.com/")

	require.False(t, signal.Fired())
	require.Zero(t, store.Len(results.Filtering))
}

func TestProxy_ZeroElapsedIsNotRecorded(t *testing.T) {
	proxy, store, _ := newTestProxy(nil)
	signal := timing.NewSignal()
	proxy.ArmCompletion(signal)

	proxy.OnPageStarted(nil, "https://a.com/")
	proxy.OnPageFinished(nil, "https://a.com/")

	require.True(t, signal.Fired(), "a matched finish completes the cycle even without a sample")
	require.Zero(t, store.Len(results.Filtering))
	require.True(t, proxy.Pending().Cleared())
}

func TestProxy_LateFinishAfterCompletionIsIgnored(t *testing.T) {
	proxy, store, clock := newTestProxy(nil)
	signal := timing.NewSignal()
	proxy.ArmCompletion(signal)

	proxy.OnPageStarted(nil, "https://a.com/")
	clock.Advance(time.Second)
	proxy.OnPageFinished(nil, "https://a.com/")
	require.True(t, signal.Fired())

	// A stray redirect hop reported after the page already completed.
	proxy.OnPageStarted(nil, "https://a.com/")
	clock.Advance(5 * time.Second)
	proxy.OnPageFinished(nil, "https://a.com/")

	got, _ := store.Lookup(results.Filtering, "https://a.com/")
	require.Equal(t, int64(1000), got)
}

func TestProxy_ResetTimerIsIdempotent(t *testing.T) {
	proxy, _, _ := newTestProxy(nil)
	proxy.OnPageStarted(nil, "https://a.com/")
	require.True(t, proxy.Pending().Started)

	require.NotPanics(t, func() {
		proxy.ResetTimer()
		proxy.ResetTimer()
	})
	require.True(t, proxy.Pending().Cleared())
}

func TestProxy_ArmClearsLastStartedURL(t *testing.T) {
	proxy, _, _ := newTestProxy(nil)
	proxy.OnPageStarted(nil, "https://a.com/")

	proxy.ArmCompletion(timing.NewSignal())

	state := proxy.Pending()
	require.Empty(t, state.LastStartedURL)
	require.True(t, state.Armed)
}

func TestProxy_ForwardsToWrappedListener(t *testing.T) {
	wrapped := &recordingListener{
		override:  true,
		intercept: &navigation.Response{StatusCode: 204},
	}
	proxy, _, clock := newTestProxy(wrapped)
	proxy.ArmCompletion(timing.NewSignal())

	proxy.OnPageStarted(nil, "https://a.com/")
	clock.Advance(time.Second)
	proxy.OnPageFinished(nil, "https://other.com/")
	proxy.OnPageFinished(nil, "https://a.com/")

	require.True(t, proxy.ShouldOverrideURLLoading(nil, navigation.Request{URL: "intent://x"}))
	require.Equal(t, wrapped.intercept, proxy.ShouldInterceptRequest(nil, navigation.Request{URL: "https://a.com/ad.js"}))
	require.True(t, proxy.OnRenderProcessGone(nil, navigation.RenderProcessGoneDetail{}))

	handler := &sslHandler{}
	proxy.OnReceivedSslError(nil, handler, navigation.SslError{URL: "https://a.com/"})
	require.Equal(t, "proceed", handler.decision)

	require.Equal(t, []string{
		"started:https://a.com/",
		"finished:https://other.com/",
		"finished:https://a.com/",
		"override:intent://x",
		"intercept:https://a.com/ad.js",
		"gone",
		"ssl",
	}, wrapped.Calls())
	require.Same(t, wrapped, proxy.Wrapped())
}

func TestProxy_AppliesDefaultsWithoutWrappedListener(t *testing.T) {
	proxy, _, _ := newTestProxy(nil)

	require.False(t, proxy.ShouldOverrideURLLoading(nil, navigation.Request{URL: "https://a.com/"}))
	require.Nil(t, proxy.ShouldInterceptRequest(nil, navigation.Request{URL: "https://a.com/"}))
	require.False(t, proxy.OnRenderProcessGone(nil, navigation.RenderProcessGoneDetail{DidCrash: true}))
	require.False(t, proxy.ShouldOverrideKeyEvent(nil, navigation.KeyEvent{Key: "Back"}))

	handler := &sslHandler{}
	proxy.OnReceivedSslError(nil, handler, navigation.SslError{})
	require.Equal(t, "cancel", handler.decision)
}

func TestProxy_ConcurrentEventsAndOrchestration(t *testing.T) {
	store := results.NewStore()
	proxy := timing.NewProxy(results.Baseline, store, nil)

	for i := 0; i < 50; i++ {
		signal := timing.NewSignal()
		proxy.ArmCompletion(signal)

		go func() {
			proxy.OnPageStarted(nil, "https://a.com/")
			time.Sleep(2 * time.Millisecond)
			proxy.OnPageStarted(nil, "https://a.com/")
			proxy.OnPageFinished(nil, "https://a.com/")
		}()

		require.NoError(t, signal.Wait(context.Background(), 5*time.Second))
		proxy.ResetTimer()
	}

	_, ok := store.Lookup(results.Baseline, "https://a.com/")
	require.True(t, ok)
}
