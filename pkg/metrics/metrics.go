// Package metrics defines the agent's Prometheus collectors and the
// /metrics HTTP server, grounded on greenhouse/prometheus.go's
// struct-of-collectors style and greenhouse/main.go's promhttp.Handler
// wiring.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the agent process exposes. Only
// AcquisitionDuration and AcquisitionOutcomes are updated (by
// ObserveAcquisition); MessagesReceived and InFlightAcquisitions are
// registered but nothing in this module updates them, so they stay at zero.
type Metrics struct {
	AcquisitionDuration  *prometheus.HistogramVec
	AcquisitionOutcomes  *prometheus.CounterVec
	MessagesReceived     *prometheus.CounterVec
	InFlightAcquisitions prometheus.Gauge
}

// New builds and registers every collector against registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AcquisitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "agent_acquisition_duration_seconds",
			Help: "Duration of a source acquisition, by repository provider.",
		}, []string{"provider"}),
		AcquisitionOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_acquisition_outcomes_total",
			Help: "Count of source acquisitions by provider and outcome.",
		}, []string{"provider", "outcome"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_messages_received_total",
			Help: "Count of run-loop messages received, by message type.",
		}, []string{"type"}),
		InFlightAcquisitions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_inflight_acquisitions",
			Help: "Number of source acquisitions currently running.",
		}),
	}
	registry.MustRegister(
		m.AcquisitionDuration,
		m.AcquisitionOutcomes,
		m.MessagesReceived,
		m.InFlightAcquisitions,
	)
	return m
}

// ObserveAcquisition records one acquisition's duration and outcome.
func (m *Metrics) ObserveAcquisition(provider string, duration time.Duration, err error) {
	m.AcquisitionDuration.WithLabelValues(provider).Observe(duration.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.AcquisitionOutcomes.WithLabelValues(provider, outcome).Inc()
}

// Serve starts the /metrics HTTP server on port, blocking until it
// returns an error (the same fatal-on-return convention
// greenhouse/main.go uses for its metrics listener).
func Serve(port int, registry *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(":"+strconv.Itoa(port), mux)
}
