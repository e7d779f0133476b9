// Package reconcile compares page load times measured by the baseline and filtering renderers.
package reconcile

import (
	"sort"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/sre-norns/skuld/pkg/results"
)

// Source provides the measured samples of a kind, keyed by normalized URL.
type Source interface {
	Samples(kind results.Kind) map[string]int64
}

type Options struct {
	// Threshold is the largest absolute difference between matched samples still aggregated.
	// Zero disables outlier rejection.
	Threshold time.Duration

	// CatalogSize is the number of URLs the passes were asked to load.
	CatalogSize int

	Logger log.Logger
}

// Reconcile reads both sets of samples once and aggregates the URLs measured by both renderers.
// It always produces a report; deciding whether the numbers are acceptable is up to the caller.
func Reconcile(src Source, opts Options) Report {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "reconcile")

	baseline := src.Samples(results.Baseline)
	filtering := src.Samples(results.Filtering)
	thresholdMs := opts.Threshold.Milliseconds()

	urls := make([]string, 0, len(baseline))
	for url := range baseline {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	report := Report{
		CatalogSize: opts.CatalogSize,
		ThresholdMs: thresholdMs,
		Comparisons: make([]Comparison, 0, len(urls)),
	}

	for _, url := range urls {
		baselineMs := baseline[url]
		c := Comparison{
			URL:        url,
			BaselineMs: baselineMs,
		}

		filteringMs, ok := filtering[url]
		if !ok {
			level.Warn(logger).Log("msg", "measured only in baseline", "url", url, "baselineMs", baselineMs)
			c.Status = StatusMissing
			report.MissingCount++
			report.Comparisons = append(report.Comparisons, c)
			continue
		}

		c.FilteringMs = filteringMs
		if baselineMs <= 0 || filteringMs <= 0 {
			level.Warn(logger).Log("msg", "invalid sample", "url", url, "baselineMs", baselineMs, "filteringMs", filteringMs)
			c.Status = StatusInvalid
			report.InvalidCount++
			report.Comparisons = append(report.Comparisons, c)
			continue
		}

		c.DeltaMs = filteringMs - baselineMs
		if thresholdMs > 0 && abs(c.DeltaMs) > thresholdMs {
			level.Warn(logger).Log("msg", "outlier excluded", "url", url, "baselineMs", baselineMs, "filteringMs", filteringMs, "deltaMs", c.DeltaMs, "thresholdMs", thresholdMs)
			c.Status = StatusOutlier
			report.OutlierCount++
			report.Comparisons = append(report.Comparisons, c)
			continue
		}

		report.FilteringTotalMs += filteringMs
		report.BaselineTotalMs += baselineMs
		report.ComparedCount++
		c.Status = StatusCompared
		if c.DeltaMs == 0 {
			c.Status = StatusEqual
			report.EqualCount++
		}
		report.Comparisons = append(report.Comparisons, c)
	}

	report.DeltaMs = report.FilteringTotalMs - report.BaselineTotalMs
	if report.BaselineTotalMs != 0 {
		report.NormalizedDeltaPercent = float64(report.DeltaMs) / float64(report.BaselineTotalMs) * 100
	}

	level.Info(logger).Log(
		"msg", "reconciled",
		"baselineTotalMs", report.BaselineTotalMs,
		"filteringTotalMs", report.FilteringTotalMs,
		"deltaMs", report.DeltaMs,
		"deltaPercent", report.NormalizedDeltaPercent,
		"compared", report.ComparedCount,
		"equal", report.EqualCount,
		"catalogSize", report.CatalogSize,
	)

	return report
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
