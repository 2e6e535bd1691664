package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAdjustment("AddFunds", "applied")
	m.ObserveAdjustment("AddFunds", "applied")
	m.ObserveConflictRetry()
	m.ObserveCacheLookup("hit")
	m.ObserveCacheWrite("error")
	m.ObserveRefresh("ok")
	m.ObserveRequest("GET", "/api/v1/wallets/:walletId", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Adjustments.WithLabelValues("AddFunds", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictRetries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateCacheWrites.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RatesRefreshes.WithLabelValues("ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "http_request_duration_seconds")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAdjustment("AddFunds", "applied")
		m.ObserveConflictRetry()
		m.ObserveCacheLookup("miss")
		m.ObserveCacheWrite("ok")
		m.ObserveRefresh("error")
		m.ObserveRequest("POST", "/", 500, time.Second)
	})
}
