// Package metrics expone métricas Prometheus del servicio de autenticación.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder es lo que usan los servicios y middlewares para registrar eventos.
type Recorder interface {
	RecordAuthEvent(operation, outcome string)
	RecordHTTPRequest(method, route string, status int, latency time.Duration)
}

// Collector implementa Recorder sobre contadores e histogramas Prometheus.
type Collector struct {
	authEvents   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewCollector crea el Collector y registra sus métricas en reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentease_auth_events_total",
			Help: "Auth operations by outcome.",
		}, []string{"operation", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentease_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentease_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(c.authEvents, c.httpRequests, c.httpLatency)
	return c
}

func (c *Collector) RecordAuthEvent(operation, outcome string) {
	c.authEvents.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, latency time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

// Nop descarta todos los eventos; útil en tests.
type Nop struct{}

func (Nop) RecordAuthEvent(string, string) {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
