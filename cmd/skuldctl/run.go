package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sre-norns/skuld/pkg/grace"
	"github.com/sre-norns/skuld/pkg/renderers/chrome"
	"github.com/sre-norns/skuld/pkg/results"
	"github.com/sre-norns/skuld/pkg/runner"
)

type RunCmd struct {
	Chrome chrome.Config `embed:"" prefix:"chrome."`

	HarDir      string  `help:"Directory to save HAR logs of both passes to" type:"path"`
	MetricsFile string  `help:"File to save run metrics to, zstd compressed if the name ends with .zst" type:"path"`
	OpenMetrics bool    `help:"Save metrics in the OpenMetrics format"`
	LogFile     string  `help:"File to save the run log to" type:"path"`
	MaxOverhead float64 `help:"Fail if filtering makes pages slower than baseline by more than this many percent, negative disables the check" default:"-1" env:"SKULD_MAX_OVERHEAD"`
}

func (c *RunCmd) Run(cfg *commandContext) error {
	urls, err := cfg.Catalog()
	if err != nil {
		return grace.Explain(err, "a list of URLs to load", "check --catalog-file or pass URLs with --url")
	}

	startedAt := time.Now()
	cfg.WithRunID(fmt.Sprintf("%x", startedAt.UnixNano()))
	runLog := runner.NewRunLog(cfg.Logger)

	browser, err := chrome.Launch(cfg.Context, c.Chrome, runLog)
	if err != nil {
		return grace.Explain(err, "a Chrome instance to drive", "install Chrome, point --chrome.bin at it or pass --chrome.remote-url")
	}
	defer browser.Close()

	if product, err := browser.Version(); err != nil {
		level.Warn(runLog).Log("msg", "unknown browser version", "err", err)
	} else {
		cfg.WithBrowser(product)
	}

	registry := prometheus.NewRegistry()
	harness := runner.NewHarness(*cfg.Config, urls,
		runner.WithLogger(runLog),
		runner.WithMetrics(runner.NewMetrics(registry)),
	)

	baseline, err := browser.NewRenderer(results.Baseline)
	if err != nil {
		return err
	}
	filtering, err := browser.NewRenderer(results.Filtering)
	if err != nil {
		runner.Dispose(baseline, runLog)
		return err
	}

	level.Info(runLog).Log("msg", "run started", "urls", urls.Len(), "repetitions", cfg.EffectiveRepetitions())
	report, err := harness.Run(cfg.Context, baseline, filtering)
	if errors.Is(err, runner.ErrRunInterrupted) {
		level.Warn(runLog).Log("msg", "run timeout expired, reporting pages measured so far", "runTimeout", cfg.RunTimeout, "compared", report.ComparedCount)
	} else if err != nil {
		return err
	}

	if err := c.saveArtifacts(harness, registry, runLog, startedAt); err != nil {
		return err
	}

	outcome := harness.Outcome(report)
	if err := cfg.OutputFormatter(&outcome); err != nil {
		return err
	}

	message, err := verdict(report, c.MaxOverhead)
	fmt.Fprintln(os.Stderr, message)

	return err
}

func (c *RunCmd) saveArtifacts(harness *runner.Harness, registry prometheus.Gatherer, runLog *runner.RunLog, startedAt time.Time) error {
	if c.HarDir != "" {
		if err := os.MkdirAll(c.HarDir, 0755); err != nil {
			return fmt.Errorf("failed to create HAR directory: %w", err)
		}

		for _, kind := range results.Kinds() {
			if err := writeHAR(filepath.Join(c.HarDir, kind.String()+".har"), harness.Store(), kind, startedAt); err != nil {
				return err
			}
		}
	}

	if c.MetricsFile != "" {
		opts := runner.RegistryOptions{
			EnableOpenMetrics: c.OpenMetrics,
		}
		if strings.HasSuffix(c.MetricsFile, ".zst") {
			opts.OfferedCompressions = []runner.Compression{runner.Zstd}
		}

		artifact, err := runner.MetricsArtifact(registry, opts)
		if err != nil {
			return fmt.Errorf("failed to collect run metrics: %w", err)
		}
		if err := os.WriteFile(c.MetricsFile, artifact.Content, 0644); err != nil {
			return fmt.Errorf("failed to write metrics artifact: %w", err)
		}
	}

	if c.LogFile != "" {
		if err := os.WriteFile(c.LogFile, runLog.ToArtifact().Content, 0644); err != nil {
			return fmt.Errorf("failed to write run log: %w", err)
		}
	}

	return nil
}

func writeHAR(filename string, store *results.Store, kind results.Kind, startedAt time.Time) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create HAR file: %w", err)
	}
	defer file.Close()

	return store.WriteHAR(file, kind, startedAt)
}
