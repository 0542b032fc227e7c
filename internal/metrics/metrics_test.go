package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveProviderRequest("listhost", nil, time.Second)
		m.ProbeOutcome("probed")
		m.Dispatch("listhost", "ok")
		m.CacheLookup("manifest", true)
		m.TokenDecode(false)
		m.Enrichment("hit")
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveProviderRequest("tracker", nil, 100*time.Millisecond)
	m.ObserveProviderRequest("tracker", errors.New("boom"), time.Second)
	m.ProbeOutcome("failed")
	m.CacheLookup("manifest", false)
	m.CacheLookup("manifest", false)
	m.TokenDecode(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("tracker", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerRequests.WithLabelValues("tracker", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probes.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("manifest", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokenDecodes.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.providerLatency))
}
