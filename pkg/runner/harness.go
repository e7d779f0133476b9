package runner

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/sre-norns/skuld/pkg/catalog"
	"github.com/sre-norns/skuld/pkg/reconcile"
	"github.com/sre-norns/skuld/pkg/results"
)

var (
	ErrAlreadyReconciled = fmt.Errorf("harness results were already reconciled")
	// ErrRunInterrupted is returned along with a report built from the pages measured
	// before the run timeout expired.
	ErrRunInterrupted = fmt.Errorf("run timeout expired, report is based on a partial run")
)

// Harness is a single comparison run: it owns the results of both passes and
// reconciles them once both are done. Create a new harness for every run.
type Harness struct {
	config       Config
	catalog      catalog.Catalog
	store        *results.Store
	orchestrator *Orchestrator
	metrics      *Metrics
	logger       log.Logger

	mu          sync.Mutex
	passes      []PassSummary
	reconciled  bool
	interrupted bool
}

// Outcome is the published result of a run.
type Outcome struct {
	Labels      Labels           `json:"labels,omitempty" yaml:"labels,omitempty"`
	Passes      []PassSummary    `json:"passes" yaml:"passes"`
	Report      reconcile.Report `json:"report" yaml:"report"`
	Interrupted bool             `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

func NewHarness(config Config, urls catalog.Catalog, options ...Option) *Harness {
	store := results.NewStore()
	orchestrator := NewOrchestrator(config, store, options...)

	return &Harness{
		config:       config,
		catalog:      urls,
		store:        store,
		orchestrator: orchestrator,
		metrics:      orchestrator.metrics,
		logger:       orchestrator.logger,
	}
}

func (h *Harness) Store() *results.Store {
	return h.store
}

func (h *Harness) Catalog() catalog.Catalog {
	return h.catalog
}

// Passes returns summaries of the passes run so far, in order.
func (h *Harness) Passes() []PassSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]PassSummary(nil), h.passes...)
}

// RunPass measures the catalog with the given renderer.
func (h *Harness) RunPass(ctx context.Context, renderer Renderer) (PassSummary, error) {
	h.mu.Lock()
	if h.reconciled {
		h.mu.Unlock()
		return PassSummary{}, ErrAlreadyReconciled
	}
	h.mu.Unlock()

	summary, err := h.orchestrator.RunPass(ctx, renderer, h.catalog.URLs())

	h.mu.Lock()
	h.passes = append(h.passes, summary)
	h.mu.Unlock()

	return summary, err
}

// Reconcile compares the results of both passes. Results can only be reconciled once.
func (h *Harness) Reconcile() (reconcile.Report, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.reconciled {
		return reconcile.Report{}, ErrAlreadyReconciled
	}
	h.reconciled = true

	report := reconcile.Reconcile(h.store, reconcile.Options{
		Threshold:   h.config.OutlierThreshold,
		CatalogSize: h.catalog.Len(),
		Logger:      h.logger,
	})
	h.metrics.ObserveReport(report)

	return report, nil
}

// Run measures the baseline renderer, then the filtering one, and reconciles the results.
// Each renderer is closed after its pass if it can be.
//
// When the run timeout expires the remaining pages and passes are skipped and the report
// is built from what was measured so far; it is returned together with ErrRunInterrupted.
// Cancellation of ctx itself aborts the run without a report.
func (h *Harness) Run(ctx context.Context, baseline, filtering Renderer) (reconcile.Report, error) {
	runCtx := ctx
	if h.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.config.RunTimeout)
		defer cancel()
	}

	for _, renderer := range []Renderer{baseline, filtering} {
		if renderer != nil && h.timedOut(ctx, runCtx) {
			level.Warn(h.logger).Log("msg", "run timeout expired, pass skipped", "kind", renderer.Kind(), "runTimeout", h.config.RunTimeout)
			Dispose(renderer, h.logger)
			continue
		}

		_, err := h.RunPass(runCtx, renderer)
		Dispose(renderer, h.logger)
		if err != nil {
			if renderer != nil && h.timedOut(ctx, runCtx) {
				level.Warn(h.logger).Log("msg", "run timeout expired, pass interrupted", "kind", renderer.Kind(), "runTimeout", h.config.RunTimeout)
				continue
			}
			return reconcile.Report{}, err
		}
	}

	report, err := h.Reconcile()
	if err != nil {
		return report, err
	}

	if h.Interrupted() {
		return report, ErrRunInterrupted
	}

	return report, nil
}

// timedOut reports whether the run deadline expired while the caller's context is still live.
func (h *Harness) timedOut(ctx, runCtx context.Context) bool {
	if ctx.Err() != nil || runCtx.Err() == nil {
		return false
	}

	h.mu.Lock()
	h.interrupted = true
	h.mu.Unlock()

	return true
}

func (h *Harness) Outcome(report reconcile.Report) Outcome {
	return Outcome{
		Labels:      h.config.GetEffectiveLabels(),
		Passes:      h.Passes(),
		Report:      report,
		Interrupted: h.Interrupted(),
	}
}

// Interrupted reports whether the run timeout cut the run short.
func (h *Harness) Interrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.interrupted
}

// Dispose closes the renderer if it can be closed, logging a failure instead of returning it.
func Dispose(renderer Renderer, logger log.Logger) {
	closer, ok := renderer.(io.Closer)
	if !ok {
		return
	}

	if err := closer.Close(); err != nil {
		level.Warn(logger).Log("msg", "failed to dispose renderer", "kind", renderer.Kind(), "err", err)
	}
}
