// Package metrics exposes Prometheus collectors for the request gate and the HTTP server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Registry owns a private Prometheus registry and the portal collectors.
// A nil *Registry is a valid no-op sink.
type Registry struct {
	reg *prometheus.Registry

	gateDecisions   *prometheus.CounterVec
	tokenRefreshes  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New creates a Registry with Go runtime and process collectors registered.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Request gate decisions by outcome and failure reason",
			},
			[]string{"outcome", "reason"},
		),
		tokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_total",
				Help:      "Refresh-token exchanges performed by the gate by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.gateDecisions,
		r.tokenRefreshes,
		r.httpRequests,
		r.requestDuration,
	)
	return r
}

// RecordDecision counts one gate decision. An empty reason is reported as "none".
func (r *Registry) RecordDecision(outcome, reason string) {
	if r == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	r.gateDecisions.WithLabelValues(outcome, reason).Inc()
}

// RecordRefresh counts one refresh-token exchange.
func (r *Registry) RecordRefresh(result string) {
	if r == nil {
		return
	}
	r.tokenRefreshes.WithLabelValues(result).Inc()
}

// ObserveRequest records a served HTTP request.
func (r *Registry) ObserveRequest(method string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Gatherer returns the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
