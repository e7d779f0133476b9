package runner

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/sre-norns/skuld/pkg/reconcile"
	"github.com/sre-norns/skuld/pkg/results"
)

const MetricsRelType = "metrics"

const metricsNamespace = "skuld"

type Compression string

const (
	Identity Compression = "identity"
	Gzip     Compression = "gzip"
	Zstd     Compression = "zstd"
)

var defaultCompressionFormats = []Compression{Identity, Gzip, Zstd}

// Metrics exposes measurements of a run as prometheus metrics. A nil *Metrics discards everything.
type Metrics struct {
	pageLoad     *prometheus.HistogramVec
	timeouts     *prometheus.CounterVec
	passDuration *prometheus.GaugeVec
	deltaPercent prometheus.Gauge
	compared     prometheus.Gauge
}

// NewMetrics creates run metrics and registers them with reg, if not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pageLoad: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "page_load_seconds",
			Help:      "Time from the first navigation start to the matching finish of a page.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"kind"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "page_load_timeouts_total",
			Help:      "Pages that did not finish loading within the allowed time.",
		}, []string{"kind"}),
		passDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of the last pass over the catalog.",
		}, []string{"kind"}),
		deltaPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "report_delta_percent",
			Help:      "Total load time difference of filtering over baseline, in percent of baseline.",
		}),
		compared: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "report_compared_pages",
			Help:      "Pages that took part in the last comparison.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.pageLoad, m.timeouts, m.passDuration, m.deltaPercent, m.compared)
	}

	return m
}

func (m *Metrics) ObservePageLoad(kind results.Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pageLoad.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

func (m *Metrics) PageTimedOut(kind results.Kind) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) PassFinished(kind results.Kind, duration time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.WithLabelValues(kind.String()).Set(duration.Seconds())
}

func (m *Metrics) ObserveReport(report reconcile.Report) {
	if m == nil {
		return
	}
	m.deltaPercent.Set(report.NormalizedDeltaPercent)
	m.compared.Set(float64(report.ComparedCount))
}

type RegistryOptions struct {
	EnableOpenMetrics  bool
	DisableCompression bool

	// Compression to use, the first offered one wins.
	OfferedCompressions []Compression
}

func negotiateEncodingWriter(rw io.Writer, compressions []string) (_ io.Writer, encodingHeaderValue string, closeWriter func() error, _ error) {
	if len(compressions) == 0 {
		return rw, string(Identity), func() error { return nil }, nil
	}

	selected := compressions[0]
	switch Compression(selected) {
	case Zstd:
		z, err := zstd.NewWriter(rw, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, "", func() error { return nil }, err
		}

		return z, selected, z.Close, nil
	case Gzip:
		gz := gzip.NewWriter(rw)
		return gz, selected, gz.Close, nil
	case Identity:
		// This means the content is not compressed.
		return rw, selected, func() error { return nil }, nil
	default:
		// The content encoding was not implemented yet.
		return nil, "", func() error { return nil }, fmt.Errorf("content compression format not recognized: %s. Valid formats are: %s", selected, defaultCompressionFormats)
	}
}

// MetricsArtifact renders all metrics in the registry in the text exposition format.
func MetricsArtifact(registry prometheus.Gatherer, opts RegistryOptions) (Artifact, error) {
	var compressions []string
	if !opts.DisableCompression {
		for _, comp := range opts.OfferedCompressions {
			compressions = append(compressions, string(comp))
		}
	}

	gatherer := prometheus.ToTransactionalGatherer(registry)
	mfs, done, err := gatherer.Gather()
	if err != nil {
		return Artifact{}, err
	}
	defer done()

	contentType := expfmt.NewFormat(expfmt.TypeTextPlain)
	if opts.EnableOpenMetrics {
		contentType = expfmt.NewFormat(expfmt.TypeOpenMetrics)
	}

	var buf bytes.Buffer
	w, encoding, closeWriter, err := negotiateEncodingWriter(&buf, compressions)
	if err != nil {
		return Artifact{}, err
	}

	enc := expfmt.NewEncoder(w, contentType)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return Artifact{}, fmt.Errorf("failed to encode metrics family %q: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			return Artifact{}, fmt.Errorf("failed to finish metrics encoding: %w", err)
		}
	}
	if err := closeWriter(); err != nil {
		return Artifact{}, fmt.Errorf("failed to compress metrics: %w", err)
	}

	if encoding == string(Identity) {
		encoding = ""
	}

	return Artifact{
		Rel:      MetricsRelType,
		MimeType: string(contentType),
		Encoding: encoding,
		Content:  buf.Bytes(),
	}, nil
}
