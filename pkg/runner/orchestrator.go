package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/sre-norns/skuld/pkg/catalog"
	"github.com/sre-norns/skuld/pkg/results"
	"github.com/sre-norns/skuld/pkg/timing"
)

var ErrNilRenderer = fmt.Errorf("renderer is nil")

// PassSummary describes one pass of a renderer over the catalog.
type PassSummary struct {
	Kind      results.Kind  `json:"kind" yaml:"kind"`
	Attempted int           `json:"attempted" yaml:"attempted"`
	Measured  int           `json:"measured" yaml:"measured"`
	TimedOut  int           `json:"timedOut" yaml:"timedOut"`
	TotalLoad time.Duration `json:"totalLoad" yaml:"totalLoad"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
}

type Option func(o *Orchestrator)

func WithLogger(logger log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithClock replaces the wall clock used by the timing proxy.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator loads catalog URLs through a renderer one at a time and records how long
// each page took to load.
type Orchestrator struct {
	config   Config
	recorder timing.Recorder
	metrics  *Metrics
	logger   log.Logger
	now      func() time.Time
}

func NewOrchestrator(config Config, recorder timing.Recorder, options ...Option) *Orchestrator {
	o := &Orchestrator{
		config:   config,
		recorder: recorder,
		logger:   log.NewNopLogger(),
		now:      time.Now,
	}

	for _, option := range options {
		option(o)
	}

	return o
}

// RunPass clears the renderer state and loads every URL, the whole list as many times
// as configured. Pages that do not finish in time are skipped. It only fails if setup
// fails or ctx is done.
func (o *Orchestrator) RunPass(ctx context.Context, renderer Renderer, urls []string) (summary PassSummary, err error) {
	if renderer == nil {
		return summary, ErrNilRenderer
	}

	kind := renderer.Kind()
	logger := log.With(o.logger, "kind", kind)
	summary.Kind = kind

	if err := prepare(ctx, renderer, o.config.SetupTimeout, logger); err != nil {
		level.Error(logger).Log("msg", "setup failed", "err", err)
		return summary, err
	}

	var (
		measured  atomic.Int64
		totalLoad atomic.Int64
	)
	recorder := timing.RecorderFunc(func(sample results.Sample) {
		measured.Add(1)
		totalLoad.Add(int64(sample.Elapsed))
		o.metrics.ObservePageLoad(sample.Kind, sample.Elapsed)
		if o.recorder != nil {
			o.recorder.Record(sample)
		}
	})

	proxy := timing.NewProxy(kind, recorder, renderer.Listener(), timing.WithLogger(logger), timing.WithClock(o.now))
	renderer.SetListener(proxy)
	defer renderer.SetListener(proxy.Wrapped())

	started := time.Now()
	defer func() {
		summary.Measured = int(measured.Load())
		summary.TotalLoad = time.Duration(totalLoad.Load())
		summary.Duration = time.Since(started)
		o.metrics.PassFinished(kind, summary.Duration)

		level.Info(logger).Log(
			"msg", "pass finished",
			"attempted", summary.Attempted,
			"measured", summary.Measured,
			"timedOut", summary.TimedOut,
			"totalLoadMs", summary.TotalLoad.Milliseconds(),
			"duration", summary.Duration,
		)
	}()

	repetitions := o.config.EffectiveRepetitions()
	level.Info(logger).Log("msg", "pass started", "urls", len(urls), "repetitions", repetitions, "maxWaitPerPage", o.config.MaxWaitPerPage)

	for round := 0; round < repetitions; round++ {
		for _, url := range urls {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			summary.Attempted++
			if err := o.load(ctx, renderer, proxy, catalog.WithScheme(url), logger); err != nil {
				if errors.Is(err, timing.ErrSignalTimeout) {
					summary.TimedOut++
					continue
				}
				return summary, err
			}
		}
	}

	return summary, nil
}

func (o *Orchestrator) load(ctx context.Context, renderer Renderer, proxy *timing.Proxy, url string, logger log.Logger) error {
	// The next navigation must never see state left by this one.
	defer proxy.ResetTimer()

	signal := timing.NewSignal()
	proxy.ArmCompletion(signal)

	level.Debug(logger).Log("msg", "loading", "url", url)
	renderer.LoadURL(url)

	err := signal.Wait(ctx, o.config.MaxWaitPerPage)
	if errors.Is(err, timing.ErrSignalTimeout) {
		level.Warn(logger).Log("msg", "page did not finish loading in time, skipped", "url", url, "maxWaitPerPage", o.config.MaxWaitPerPage)
		o.metrics.PageTimedOut(renderer.Kind())
	}

	return err
}
