// Package metrics exposes elfconv's Prometheus counters. Grounded on
// the teacher's pkg/api/metrics.go (promauto-registered CounterVec /
// HistogramVec, a constructor that wires them all up, and one Record*
// method per concern), narrowed from HTTP/DB/auth metrics to
// conversion-pipeline metrics: records converted, warned or skipped,
// evictions, and bytes moved in each direction.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusOK      = "ok"
	statusWarned  = "warned"
	statusSkipped = "skipped"
)

// Metrics holds every Prometheus collector elfconv registers, plus
// the registry they live on. Each Metrics owns its own registry rather
// than registering to prometheus.DefaultRegisterer, so a process (or a
// test) can construct more than one without a duplicate-registration
// panic.
type Metrics struct {
	registry       *prometheus.Registry
	recordsTotal   *prometheus.CounterVec
	evictionsTotal prometheus.Counter
	bytesRead      prometheus.Counter
	bytesWritten   prometheus.Counter
	conversionSecs *prometheus.HistogramVec
}

// New creates and registers elfconv's metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		recordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elfconv_records_total",
				Help: "Total number of records processed by conversion outcome.",
			},
			[]string{"direction", "status"},
		),
		evictionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "elfconv_evictions_total",
				Help: "Total number of records evicted from a log during csv2evt.",
			},
		),
		bytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "elfconv_bytes_read_total",
				Help: "Total bytes read from input files.",
			},
		),
		bytesWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "elfconv_bytes_written_total",
				Help: "Total bytes written to output files.",
			},
		),
		conversionSecs: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "elfconv_conversion_duration_seconds",
				Help:    "Wall-clock duration of a single evt2csv or csv2evt run.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
	}
}

// RecordConverted marks one record successfully converted.
func (m *Metrics) RecordConverted(direction string) {
	m.recordsTotal.WithLabelValues(direction, statusOK).Inc()
}

// RecordWarned marks one record converted with a warning (spec §7).
func (m *Metrics) RecordWarned(direction string) {
	m.recordsTotal.WithLabelValues(direction, statusWarned).Inc()
}

// RecordSkipped marks one record dropped rather than converted.
func (m *Metrics) RecordSkipped(direction string) {
	m.recordsTotal.WithLabelValues(direction, statusSkipped).Inc()
}

// RecordEviction marks one record evicted from the ring during a
// csv2evt run.
func (m *Metrics) RecordEviction() {
	m.evictionsTotal.Inc()
}

// AddBytesRead adds n to the bytes-read counter.
func (m *Metrics) AddBytesRead(n int64) {
	if n > 0 {
		m.bytesRead.Add(float64(n))
	}
}

// AddBytesWritten adds n to the bytes-written counter.
func (m *Metrics) AddBytesWritten(n int64) {
	if n > 0 {
		m.bytesWritten.Add(float64(n))
	}
}

// ObserveDuration records how long a conversion run took.
func (m *Metrics) ObserveDuration(direction string, d time.Duration) {
	m.conversionSecs.WithLabelValues(direction).Observe(d.Seconds())
}

// Serve starts an HTTP server exposing /metrics on addr, returning
// once ctx is canceled. Used by "elfconv --metrics-addr".
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
