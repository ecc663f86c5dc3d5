// Package metrics instruments DataAPI queries with prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/d-j-hatton/python-smartem/errors"
)

// Recorder holds the query collectors on a private registry.
// A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	failures *prometheus.CounterVec
	inflight prometheus.Gauge
}

// NewRecorder registers the collectors under namespace.
func NewRecorder(namespace string) (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Duration of DataAPI operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"operation"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "rows_total",
			Help:      "Rows returned by DataAPI operations.",
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "errors_total",
			Help:      "DataAPI operations that returned an error.",
		}, []string{"operation"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "inflight",
			Help:      "Grid squares currently being aggregated.",
		}),
	}

	for _, c := range []prometheus.Collector{r.duration, r.rows, r.failures, r.inflight} {
		if err := r.registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "register query metrics")
		}
	}
	return r, nil
}

// Registry exposes the registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Observe records one finished operation.
func (r *Recorder) Observe(operation string, start time.Time, rows int, err error) {
	if r == nil {
		return
	}
	r.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		r.failures.WithLabelValues(operation).Inc()
		return
	}
	r.rows.WithLabelValues(operation).Add(float64(rows))
}

// Track marks one unit of aggregation work in flight; call the returned func when done.
func (r *Recorder) Track() func() {
	if r == nil {
		return func() {}
	}
	r.inflight.Inc()
	return r.inflight.Dec
}

// WriteTextfile writes the current metrics in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
