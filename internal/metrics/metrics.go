package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors exported by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Adjustments      *prometheus.CounterVec
	ConflictRetries  prometheus.Counter
	RateCacheLookups *prometheus.CounterVec
	RateCacheWrites  *prometheus.CounterVec
	HTTPRequests     *prometheus.HistogramVec
	RatesRefreshes   *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Adjustments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_adjustments_total",
			Help: "Balance adjustments by strategy and result",
		}, []string{"strategy", "result"}),
		ConflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_optimistic_retries_total",
			Help: "Adjustment attempts retried after a version conflict",
		}),
		RateCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_rate_cache_lookups_total",
			Help: "Exchange rate cache reads by result",
		}, []string{"result"}),
		RateCacheWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_rate_cache_writes_total",
			Help: "Exchange rate cache writes by result",
		}, []string{"result"}),
		HTTPRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RatesRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exchange_rate_refreshes_total",
			Help: "Exchange rate feed refreshes by result",
		}, []string{"result"}),
	}
}

// ObserveAdjustment counts a finished adjustment.
func (m *Metrics) ObserveAdjustment(strategy, result string) {
	if m == nil {
		return
	}
	m.Adjustments.WithLabelValues(strategy, result).Inc()
}

// ObserveConflictRetry counts a retry caused by a version conflict.
func (m *Metrics) ObserveConflictRetry() {
	if m == nil {
		return
	}
	m.ConflictRetries.Inc()
}

// ObserveCacheLookup counts a cache read; result is hit, miss or error.
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.RateCacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite counts a cache write; result is ok or error.
func (m *Metrics) ObserveCacheWrite(result string) {
	if m == nil {
		return
	}
	m.RateCacheWrites.WithLabelValues(result).Inc()
}

// ObserveRequest records the latency of a served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveRefresh counts a rates refresh; result is ok or error.
func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.RatesRefreshes.WithLabelValues(result).Inc()
}
