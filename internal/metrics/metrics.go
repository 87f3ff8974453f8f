// Package metrics exposes the gateway's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for upstream request outcomes.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics aggregates the gateway's collectors on a private registry so
// tests can create instances independently.
type Metrics struct {
	registry *prometheus.Registry

	// UpstreamRequests counts fetch attempts by endpoint and result.
	UpstreamRequests *prometheus.CounterVec

	// OfflineFallbacks counts responses synthesized from the cache.
	OfflineFallbacks *prometheus.CounterVec

	// CacheUpserts counts records written to the cache.
	CacheUpserts *prometheus.CounterVec
}

// New creates a metrics set backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		UpstreamRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offgate_upstream_requests_total",
			Help: "Upstream fetch attempts by endpoint and result.",
		}, []string{"endpoint", "result"}),
		OfflineFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offgate_offline_fallbacks_total",
			Help: "Responses synthesized from the local cache.",
		}, []string{"endpoint"}),
		CacheUpserts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "offgate_cache_upserts_total",
			Help: "Records upserted into the local cache.",
		}, []string{"endpoint"}),
	}
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
