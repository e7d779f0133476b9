package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	wyrd "github.com/sre-norns/wyrd/pkg/grace"

	"github.com/sre-norns/skuld/pkg/grace"
	"github.com/sre-norns/skuld/pkg/renderers/chrome"
	"github.com/sre-norns/skuld/pkg/results"
	"github.com/sre-norns/skuld/pkg/runner"
)

type ServerConfig struct {
	runner.Config
	Chrome chrome.Config `embed:"" prefix:"chrome."`

	Address    string `help:"Address to serve reports and metrics on" default:":8080" env:"SKULD_LISTEN_ADDRESS"`
	Schedule   string `help:"Cron expression of when to measure page loads" default:"0 */6 * * *" env:"SKULD_SCHEDULE"`
	RunOnStart bool   `help:"Measure once right after start, before the first scheduled run" default:"true" negatable:"" env:"SKULD_RUN_ON_START"`
}

type server struct {
	config  *ServerConfig
	keeper  *reportKeeper
	metrics *runner.Metrics
	logger  log.Logger
}

func (s *server) measure(ctx context.Context) (runner.Outcome, *results.Store, error) {
	config := s.config.Config
	config.WithRunID(fmt.Sprintf("%x", time.Now().UnixNano()))

	urls, err := config.Catalog()
	if err != nil {
		return runner.Outcome{}, nil, err
	}

	browser, err := chrome.Launch(ctx, s.config.Chrome, s.logger)
	if err != nil {
		return runner.Outcome{}, nil, err
	}
	defer browser.Close()

	if product, err := browser.Version(); err == nil {
		config.WithBrowser(product)
	}

	harness := runner.NewHarness(config, urls, runner.WithLogger(s.logger), runner.WithMetrics(s.metrics))

	baseline, err := browser.NewRenderer(results.Baseline)
	if err != nil {
		return runner.Outcome{}, nil, err
	}
	filtering, err := browser.NewRenderer(results.Filtering)
	if err != nil {
		runner.Dispose(baseline, s.logger)
		return runner.Outcome{}, nil, err
	}

	report, err := harness.Run(ctx, baseline, filtering)
	if errors.Is(err, runner.ErrRunInterrupted) {
		level.Warn(s.logger).Log("msg", "run timeout expired, publishing pages measured so far", "runTimeout", config.RunTimeout, "compared", report.ComparedCount)
	} else if err != nil {
		return runner.Outcome{}, nil, err
	}

	return harness.Outcome(report), harness.Store(), nil
}

func (s *server) runOnce(ctx context.Context) {
	startedAt := time.Now()
	s.keeper.Started(startedAt)

	outcome, store, err := s.measure(ctx)
	s.keeper.Finished(outcome, store, err)
	if err != nil {
		level.Error(s.logger).Log("msg", "scheduled run failed", "err", err)
		return
	}

	level.Info(s.logger).Log(
		"msg", "scheduled run finished",
		"duration", time.Since(startedAt),
		"compared", outcome.Report.ComparedCount,
		"deltaPercent", outcome.Report.NormalizedDeltaPercent,
	)
}

func (s *server) serve(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:    s.config.Address,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	level.Info(s.logger).Log("msg", "serving", "address", s.config.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		level.Warn(logger).Log("msg", "failed to load .env file", "err", err)
	}

	config := &ServerConfig{Config: runner.NewDefaultConfig()}
	kong.Parse(config,
		kong.Name("perf-server"),
		kong.Description("Measure page load overhead of request filtering on a schedule"),
	)

	ctx := wyrd.NewSignalHandlingContext()

	sched, err := newScheduler(config.Schedule, logger)
	if err != nil {
		grace.ExitOrLog(logger, grace.Explain(err, "a cron expression", "fix --schedule, e.g. \"0 */6 * * *\""))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &server{
		config:  config,
		keeper:  &reportKeeper{},
		metrics: runner.NewMetrics(registry),
		logger:  logger,
	}

	go func() {
		if config.RunOnStart {
			srv.runOnce(ctx)
		}
		if err := sched.Run(ctx, srv.runOnce, srv.keeper.Scheduled); err != nil && !errors.Is(err, context.Canceled) {
			level.Error(logger).Log("msg", "scheduler stopped", "err", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	grace.ExitOrLog(logger, srv.serve(ctx, apiRoutes(srv.keeper, registry)))
}
