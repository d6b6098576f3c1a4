// Package metrics records solver activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives solver events.
type Recorder interface {
	ObservePhase(phase string, d time.Duration)
	WriteOut(rank int)
	ExchangeBytes(n int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObservePhase(string, time.Duration) {}
func (Nop) WriteOut(int)                       {}
func (Nop) ExchangeBytes(int)                  {}

// Prometheus exports events as prometheus metrics.
type Prometheus struct {
	registry  *prometheus.Registry
	phases    *prometheus.HistogramVec
	writeOuts *prometheus.CounterVec
	bytes     prometheus.Counter
}

// NewPrometheus registers the solver metrics on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		phases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sweptgrid",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of one phase dispatch across all lanes of a node.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"phase"}),
		writeOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sweptgrid",
			Name:      "write_outs_total",
			Help:      "Time levels handed to the output store.",
		}, []string{"rank"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sweptgrid",
			Name:      "exchange_bytes_total",
			Help:      "Encoded strip bytes sent to neighbors.",
		}),
	}
	p.registry.MustRegister(p.phases, p.writeOuts, p.bytes)
	return p
}

// ObservePhase implements Recorder.
func (p *Prometheus) ObservePhase(phase string, d time.Duration) {
	p.phases.WithLabelValues(phase).Observe(d.Seconds())
}

// WriteOut implements Recorder.
func (p *Prometheus) WriteOut(rank int) {
	p.writeOuts.WithLabelValues(strconv.Itoa(rank)).Inc()
}

// ExchangeBytes implements Recorder.
func (p *Prometheus) ExchangeBytes(n int) {
	p.bytes.Add(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the metrics in the prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
