package main

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sre-norns/skuld/pkg/results"
	"github.com/sre-norns/skuld/pkg/runner"
)

var (
	ErrUnsupportedMediaType = fmt.Errorf("unsupported content type request")
	ErrNoReport             = fmt.Errorf("no run has finished yet")
)

type errorResponse struct {
	Code    int    `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// runStatus is what the server knows about scheduled runs.
type runStatus struct {
	Runs       int       `json:"runs" yaml:"runs"`
	Failures   int       `json:"failures" yaml:"failures"`
	LastRun    time.Time `json:"lastRun,omitempty" yaml:"lastRun,omitempty"`
	LastError  string    `json:"lastError,omitempty" yaml:"lastError,omitempty"`
	NextRun    time.Time `json:"nextRun,omitempty" yaml:"nextRun,omitempty"`
	InProgress bool      `json:"inProgress" yaml:"inProgress"`
}

// reportKeeper holds the outcome of the latest successful run.
type reportKeeper struct {
	mu         sync.RWMutex
	outcome    *runner.Outcome
	store      *results.Store
	measuredAt time.Time
	status     runStatus
}

func (k *reportKeeper) Started(at time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.status.InProgress = true
	k.status.LastRun = at
}

// Finished records the result of a run. A failed run keeps the previous report.
func (k *reportKeeper) Finished(outcome runner.Outcome, store *results.Store, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.status.InProgress = false
	k.status.Runs++
	if err != nil {
		k.status.Failures++
		k.status.LastError = err.Error()
		return
	}

	k.status.LastError = ""
	k.outcome = &outcome
	k.store = store
	k.measuredAt = k.status.LastRun
}

func (k *reportKeeper) Scheduled(next time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.status.NextRun = next
}

func (k *reportKeeper) Latest() (runner.Outcome, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.outcome == nil {
		return runner.Outcome{}, false
	}
	return *k.outcome, true
}

// Samples returns the measurements of the latest successful run and when it started.
func (k *reportKeeper) Samples() (*results.Store, time.Time, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.store, k.measuredAt, k.store != nil
}

func (k *reportKeeper) Status() runStatus {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.status
}

func filterFlags(content string) string {
	for i, char := range content {
		if char == ' ' || char == ';' {
			return content[:i]
		}
	}
	return content
}

func selectAcceptedType(header http.Header) []string {
	accepts := header.Values("Accept")
	if len(accepts) == 0 {
		return []string{""}
	}

	result := make([]string, 0, len(accepts))
	for _, a := range accepts {
		result = append(result, filterFlags(a))
	}

	return result
}

type responseHandler func(code int, obj any)

func replyWithAcceptedType(c *gin.Context) (responseHandler, error) {
	for _, contentType := range selectAcceptedType(c.Request.Header) {
		switch contentType {
		case "", "*/*", gin.MIMEJSON:
			return c.JSON, nil
		case gin.MIMEYAML, "text/yaml", "application/yaml", "text/x-yaml":
			return c.YAML, nil
		}
	}

	return nil, ErrUnsupportedMediaType
}

func abortWithError(ctx *gin.Context, code int, err error) {
	ctx.AbortWithStatusJSON(code, errorResponse{Code: code, Message: err.Error()})
}

func marshalResponse(ctx *gin.Context, code int, value any) {
	reply, err := replyWithAcceptedType(ctx)
	if err != nil {
		abortWithError(ctx, http.StatusNotAcceptable, err)
		return
	}

	reply(code, value)
}

func apiRoutes(keeper *reportKeeper, registry *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(ctx *gin.Context) {
		marshalResponse(ctx, http.StatusOK, keeper.Status())
	})

	router.GET("/version", func(ctx *gin.Context) {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			ctx.JSON(http.StatusOK, gin.H{
				"version": "unknown",
			})
			return
		}

		ctx.JSON(http.StatusOK, gin.H{
			"version":   bi.Main.Version,
			"goVersion": bi.GoVersion,
		})
	})

	router.GET("/report", func(ctx *gin.Context) {
		outcome, ok := keeper.Latest()
		if !ok {
			abortWithError(ctx, http.StatusNotFound, ErrNoReport)
			return
		}

		marshalResponse(ctx, http.StatusOK, outcome)
	})

	router.GET("/har/:kind", func(ctx *gin.Context) {
		kind, err := results.ParseKind(ctx.Param("kind"))
		if err != nil {
			abortWithError(ctx, http.StatusNotFound, err)
			return
		}

		store, startedAt, ok := keeper.Samples()
		if !ok {
			abortWithError(ctx, http.StatusNotFound, ErrNoReport)
			return
		}

		ctx.Header("Content-Type", gin.MIMEJSON)
		if err := store.WriteHAR(ctx.Writer, kind, startedAt); err != nil {
			_ = ctx.Error(err)
		}
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))

	return router
}
