package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/sre-norns/skuld/pkg/catalog"
	"github.com/sre-norns/skuld/pkg/reconcile"
	"github.com/sre-norns/skuld/pkg/runner"
)

func testReport() reconcile.Report {
	return reconcile.Report{
		BaselineTotalMs:        3000,
		FilteringTotalMs:       3600,
		DeltaMs:                600,
		NormalizedDeltaPercent: 20,
		ComparedCount:          2,
		CatalogSize:            3,
		MissingCount:           1,
		Comparisons: []reconcile.Comparison{
			{URL: "http://a.com", BaselineMs: 1000, FilteringMs: 1100, DeltaMs: 100, Status: reconcile.StatusCompared},
			{URL: "http://b.com", BaselineMs: 2000, FilteringMs: 2500, DeltaMs: 500, Status: reconcile.StatusCompared},
			{URL: "http://c.com", BaselineMs: 700, Status: reconcile.StatusMissing},
		},
	}
}

func TestGetFormatter(t *testing.T) {
	testCases := map[string]struct {
		given       outputFormat
		expectError bool
	}{
		"table": {given: "table"},
		"yaml":  {given: "yaml"},
		"yml":   {given: "yml"},
		"json":  {given: "json"},
		"xml":   {given: "xml", expectError: true},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			got, err := getFormatter(test.given)
			if test.expectError {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
		})
	}
}

func TestRenderReport(t *testing.T) {
	color.NoColor = true

	got := renderReport(testReport())
	require.Contains(t, got, "http://a.com")
	require.Contains(t, strings.ToLower(got), "2 of 3 compared")
	require.Contains(t, got, "+20.00%")
	require.Contains(t, got, "missing")
}

func TestVerdict(t *testing.T) {
	color.NoColor = true

	testCases := map[string]struct {
		maxOverhead float64
		report      reconcile.Report
		expect      string
		expectError error
	}{
		"no-limit": {
			maxOverhead: -1,
			report:      testReport(),
			expect:      "filtering overhead: +20.00% over 2 pages",
		},
		"within-limit": {
			maxOverhead: 25,
			report:      testReport(),
			expect:      "PASS: filtering overhead +20.00% is within 25.00%",
		},
		"over-limit": {
			maxOverhead: 10,
			report:      testReport(),
			expectError: reconcile.ErrOverheadExceeded,
		},
		"nothing-compared": {
			maxOverhead: 10,
			report:      reconcile.Report{},
			expectError: reconcile.ErrNothingCompared,
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			got, err := verdict(test.report, test.maxOverhead)
			if test.expectError != nil {
				require.ErrorIs(t, err, test.expectError)
				require.Contains(t, got, "FAIL")
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.expect, got)
		})
	}
}

func TestWriteCatalog(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCatalog(&buf, catalog.New("a.com", "https://b.com/")))
	require.Equal(t, "a.com\nhttps://b.com/\n", buf.String())
}

func TestFormatLabels(t *testing.T) {
	require.Equal(t, "skuld.os=linux,skuld.run.id=42,team=web", formatLabels(runner.Labels{
		"team":            "web",
		runner.LabelRunID: "42",
		runner.LabelOS:    "linux",
	}))
	require.Empty(t, formatLabels(nil))
}
