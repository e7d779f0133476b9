// Package timing measures page loads by observing a renderer's navigation callbacks.
package timing

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/sre-norns/skuld/pkg/catalog"
	"github.com/sre-norns/skuld/pkg/navigation"
	"github.com/sre-norns/skuld/pkg/results"
)

// Recorder accepts finished measurements.
type Recorder interface {
	Record(sample results.Sample)
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(sample results.Sample)

func (f RecorderFunc) Record(sample results.Sample) {
	f(sample)
}

type Option func(p *Proxy)

func WithLogger(logger log.Logger) Option {
	return func(p *Proxy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock replaces the wall clock used to time page loads.
func WithClock(now func() time.Time) Option {
	return func(p *Proxy) {
		if now != nil {
			p.now = now
		}
	}
}

// PendingState is a snapshot of the navigation being timed.
type PendingState struct {
	LastStartedURL string
	Started        bool
	StartedAt      time.Time
	Armed          bool
}

// Cleared reports whether no navigation is being timed.
func (s PendingState) Cleared() bool {
	return !s.Started
}

// Proxy wraps an existing navigation listener, if any, and times page loads from its
// start and finish callbacks. Every callback is passed on to the wrapped listener
// unchanged, and its decisions are returned as-is. With no wrapped listener the renderer
// defaults apply.
type Proxy struct {
	kind     results.Kind
	recorder Recorder
	wrapped  navigation.Listener
	logger   log.Logger
	now      func() time.Time

	startedAt atomic.Pointer[time.Time]

	mu             sync.Mutex
	lastStartedURL string
	signal         *Signal
}

var _ navigation.Listener = (*Proxy)(nil)

func NewProxy(kind results.Kind, recorder Recorder, wrapped navigation.Listener, options ...Option) *Proxy {
	p := &Proxy{
		kind:     kind,
		recorder: recorder,
		wrapped:  wrapped,
		logger:   log.NewNopLogger(),
		now:      time.Now,
	}

	for _, option := range options {
		option(p)
	}
	p.logger = log.With(p.logger, "kind", kind)

	return p
}

func (p *Proxy) Kind() results.Kind {
	return p.kind
}

// Wrapped returns the listener this proxy forwards to, nil if none.
func (p *Proxy) Wrapped() navigation.Listener {
	return p.wrapped
}

func (p *Proxy) next() navigation.Listener {
	return navigation.Or(p.wrapped)
}

// ResetTimer forgets the start time of the current navigation. Safe to call repeatedly.
func (p *Proxy) ResetTimer() {
	p.startedAt.Store(nil)
}

// ArmCompletion installs the signal fired when the next navigation finishes.
func (p *Proxy) ArmCompletion(signal *Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.signal = signal
	p.lastStartedURL = ""
}

func (p *Proxy) Pending() PendingState {
	p.mu.Lock()
	state := PendingState{
		LastStartedURL: p.lastStartedURL,
		Armed:          p.signal != nil && !p.signal.Fired(),
	}
	p.mu.Unlock()

	if started := p.startedAt.Load(); started != nil {
		state.Started = true
		state.StartedAt = *started
	}

	return state
}

func (p *Proxy) OnPageStarted(view navigation.View, url string) {
	level.Debug(p.logger).Log("msg", "page started", "url", url)

	p.mu.Lock()
	p.lastStartedURL = url
	p.mu.Unlock()

	// Redirects report a start for every hop: only the first one counts.
	now := p.now()
	p.startedAt.CompareAndSwap(nil, &now)

	p.next().OnPageStarted(view, url)
}

func (p *Proxy) OnPageFinished(view navigation.View, url string) {
	p.observeFinish(url)

	p.next().OnPageFinished(view, url)
}

func (p *Proxy) observeFinish(url string) {
	started := p.startedAt.Load()

	p.mu.Lock()
	lastStarted := p.lastStartedURL
	signal := p.signal
	p.mu.Unlock()

	finished := catalog.Normalize(url)
	matched := finished != "" && strings.HasPrefix(catalog.Normalize(lastStarted), finished)
	if !matched || started == nil {
		level.Debug(p.logger).Log("msg", "page finished, not timed", "url", url, "lastStarted", lastStarted, "urlMatched", matched, "started", started != nil)
		return
	}

	if signal != nil && signal.Fired() {
		level.Debug(p.logger).Log("msg", "late page finish ignored", "url", url)
		return
	}

	elapsed := p.now().Sub(*started)
	if elapsed.Milliseconds() > 0 {
		sample := results.Sample{
			URL:     finished,
			Kind:    p.kind,
			Elapsed: elapsed,
		}
		level.Info(p.logger).Log("msg", "page loaded", "url", finished, "elapsedMs", sample.Millis())
		if p.recorder != nil {
			p.recorder.Record(sample)
		}
	} else {
		level.Warn(p.logger).Log("msg", "page finished without measurable load time", "url", finished, "elapsed", elapsed)
	}

	p.startedAt.CompareAndSwap(started, nil)
	if signal != nil {
		signal.Fire()
	}
}

func (p *Proxy) OnPageCommitVisible(view navigation.View, url string) {
	p.next().OnPageCommitVisible(view, url)
}

func (p *Proxy) OnLoadResource(view navigation.View, url string) {
	p.next().OnLoadResource(view, url)
}

func (p *Proxy) DoUpdateVisitedHistory(view navigation.View, url string, isReload bool) {
	p.next().DoUpdateVisitedHistory(view, url, isReload)
}

func (p *Proxy) ShouldOverrideURLLoading(view navigation.View, request navigation.Request) bool {
	return p.next().ShouldOverrideURLLoading(view, request)
}

func (p *Proxy) ShouldInterceptRequest(view navigation.View, request navigation.Request) *navigation.Response {
	return p.next().ShouldInterceptRequest(view, request)
}

func (p *Proxy) OnReceivedError(view navigation.View, request navigation.Request, err navigation.ResourceError) {
	p.next().OnReceivedError(view, request, err)
}

func (p *Proxy) OnReceivedHTTPError(view navigation.View, request navigation.Request, response navigation.Response) {
	p.next().OnReceivedHTTPError(view, request, response)
}

func (p *Proxy) OnRenderProcessGone(view navigation.View, detail navigation.RenderProcessGoneDetail) bool {
	return p.next().OnRenderProcessGone(view, detail)
}

func (p *Proxy) OnReceivedSslError(view navigation.View, handler navigation.SslErrorHandler, err navigation.SslError) {
	p.next().OnReceivedSslError(view, handler, err)
}

func (p *Proxy) OnReceivedClientCertRequest(view navigation.View, request navigation.ClientCertRequest) {
	p.next().OnReceivedClientCertRequest(view, request)
}

func (p *Proxy) OnReceivedHTTPAuthRequest(view navigation.View, handler navigation.HTTPAuthHandler, host, realm string) {
	p.next().OnReceivedHTTPAuthRequest(view, handler, host, realm)
}

func (p *Proxy) OnReceivedLoginRequest(view navigation.View, realm, account, args string) {
	p.next().OnReceivedLoginRequest(view, realm, account, args)
}

func (p *Proxy) OnSafeBrowsingHit(view navigation.View, request navigation.Request, threat navigation.ThreatType, callback navigation.SafeBrowsingCallback) {
	p.next().OnSafeBrowsingHit(view, request, threat, callback)
}

func (p *Proxy) OnTooManyRedirects(view navigation.View, cancel, proceed navigation.Message) {
	p.next().OnTooManyRedirects(view, cancel, proceed)
}

func (p *Proxy) OnFormResubmission(view navigation.View, dontResend, resend navigation.Message) {
	p.next().OnFormResubmission(view, dontResend, resend)
}

func (p *Proxy) ShouldOverrideKeyEvent(view navigation.View, event navigation.KeyEvent) bool {
	return p.next().ShouldOverrideKeyEvent(view, event)
}

func (p *Proxy) OnUnhandledKeyEvent(view navigation.View, event navigation.KeyEvent) {
	p.next().OnUnhandledKeyEvent(view, event)
}

func (p *Proxy) OnScaleChanged(view navigation.View, oldScale, newScale float32) {
	p.next().OnScaleChanged(view, oldScale, newScale)
}
