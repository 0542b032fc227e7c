package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	probes           *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	tokenDecodes     *prometheus.CounterVec
	enrichments      *prometheus.CounterVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listcatalog",
			Name:      "provider_requests_total",
			Help:      "Upstream provider page fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "listcatalog",
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of upstream provider page fetches, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"provider"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listcatalog",
			Name:      "type_probes_total",
			Help:      "Content-composition probes by outcome.",
		}, []string{"outcome"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listcatalog",
			Name:      "catalog_dispatches_total",
			Help:      "Catalog requests by resolved reference kind and result.",
		}, []string{"kind", "result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listcatalog",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		tokenDecodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listcatalog",
			Name:      "token_decodes_total",
			Help:      "Configuration token decodes by result.",
		}, []string{"result"}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listcatalog",
			Name:      "enrichments_total",
			Help:      "Item enrichment lookups by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.providerRequests,
			m.providerLatency,
			m.probes,
			m.dispatches,
			m.cacheLookups,
			m.tokenDecodes,
			m.enrichments,
		)
	}

	return m
}

// ObserveProviderRequest records one upstream call and its duration
func (m *Metrics) ObserveProviderRequest(provider string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(took.Seconds())
}

// ProbeOutcome records a probe result: fresh, probed, static or failed
func (m *Metrics) ProbeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcome).Inc()
}

// Dispatch records a catalog request
func (m *Metrics) Dispatch(kind, result string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(kind, result).Inc()
}

// CacheLookup records a hit or miss
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// TokenDecode records whether a token decoded or fell back to the default config
func (m *Metrics) TokenDecode(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fallback"
	}
	m.tokenDecodes.WithLabelValues(result).Inc()
}

// Enrichment records one enrichment lookup
func (m *Metrics) Enrichment(result string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(result).Inc()
}
