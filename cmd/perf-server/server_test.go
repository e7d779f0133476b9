package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sre-norns/skuld/pkg/reconcile"
	"github.com/sre-norns/skuld/pkg/results"
	"github.com/sre-norns/skuld/pkg/runner"
)

func newTestRouter() (*gin.Engine, *reportKeeper, *runner.Metrics) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics := runner.NewMetrics(registry)
	keeper := &reportKeeper{}

	return apiRoutes(keeper, registry), keeper, metrics
}

func get(router http.Handler, path, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func testOutcome() runner.Outcome {
	return runner.Outcome{
		Labels: runner.Labels{runner.LabelRunID: "42"},
		Passes: []runner.PassSummary{{Kind: results.Baseline, Attempted: 2, Measured: 2}},
		Report: reconcile.Report{
			BaselineTotalMs:        3000,
			FilteringTotalMs:       3600,
			DeltaMs:                600,
			NormalizedDeltaPercent: 20,
			ComparedCount:          2,
			CatalogSize:            2,
		},
	}
}

func testStore() *results.Store {
	store := results.NewStore()
	store.Put(results.Baseline, "http://a.com", 1000)
	store.Put(results.Filtering, "http://a.com", 1100)

	return store
}

func TestReport_NotFoundBeforeFirstRun(t *testing.T) {
	router, _, _ := newTestRouter()

	rec := get(router, "/report", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), ErrNoReport.Error())
}

func TestReport_ContentNegotiation(t *testing.T) {
	router, keeper, _ := newTestRouter()
	keeper.Finished(testOutcome(), testStore(), nil)

	testCases := map[string]struct {
		accept       string
		expectCode   int
		expectInBody string
	}{
		"default-json": {accept: "", expectCode: http.StatusOK, expectInBody: `"normalizedDeltaPercent":20`},
		"any":          {accept: "*/*", expectCode: http.StatusOK, expectInBody: `"comparedCount":2`},
		"json":         {accept: "application/json; charset=utf-8", expectCode: http.StatusOK, expectInBody: `"skuld.run.id":"42"`},
		"yaml":         {accept: "application/yaml", expectCode: http.StatusOK, expectInBody: "baselineTotalMs: 3000"},
		"unsupported":  {accept: "application/xml", expectCode: http.StatusNotAcceptable, expectInBody: ErrUnsupportedMediaType.Error()},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			rec := get(router, "/report", test.accept)
			require.Equal(t, test.expectCode, rec.Code)
			require.Contains(t, rec.Body.String(), test.expectInBody)
		})
	}
}

func TestReportKeeper_FailedRunKeepsLastReport(t *testing.T) {
	keeper := &reportKeeper{}
	keeper.Started(time.Unix(100, 0))
	keeper.Finished(testOutcome(), testStore(), nil)

	keeper.Started(time.Unix(200, 0))
	require.True(t, keeper.Status().InProgress)
	keeper.Finished(runner.Outcome{}, nil, errors.New("chrome crashed"))

	got, ok := keeper.Latest()
	require.True(t, ok)
	require.Equal(t, int64(3000), got.Report.BaselineTotalMs)

	status := keeper.Status()
	require.False(t, status.InProgress)
	require.Equal(t, 2, status.Runs)
	require.Equal(t, 1, status.Failures)
	require.Equal(t, "chrome crashed", status.LastError)
	require.Equal(t, time.Unix(200, 0), status.LastRun)
}

func TestHealthz(t *testing.T) {
	router, keeper, _ := newTestRouter()
	keeper.Scheduled(time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))

	rec := get(router, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"nextRun":"2024-03-01T18:00:00Z"`)
}

func TestMetrics_ServesRunMetrics(t *testing.T) {
	router, _, metrics := newTestRouter()
	metrics.ObservePageLoad(results.Filtering, 1200*time.Millisecond)
	metrics.ObserveReport(testOutcome().Report)

	rec := get(router, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `skuld_page_load_seconds_count{kind="filtering"} 1`)
	require.Contains(t, rec.Body.String(), "skuld_report_delta_percent 20")
}

func TestHAR(t *testing.T) {
	router, keeper, _ := newTestRouter()

	rec := get(router, "/har/baseline", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	keeper.Started(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	keeper.Finished(testOutcome(), testStore(), nil)

	testCases := map[string]struct {
		path         string
		expectCode   int
		expectInBody string
	}{
		"baseline":     {path: "/har/baseline", expectCode: http.StatusOK, expectInBody: `"onLoad": 1000`},
		"filtering":    {path: "/har/filtering", expectCode: http.StatusOK, expectInBody: `"onLoad": 1100`},
		"unknown-kind": {path: "/har/adblock", expectCode: http.StatusNotFound, expectInBody: results.ErrUnknownKind.Error()},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			rec := get(router, test.path, "")
			require.Equal(t, test.expectCode, rec.Code)
			require.Contains(t, rec.Body.String(), test.expectInBody)
		})
	}
}
