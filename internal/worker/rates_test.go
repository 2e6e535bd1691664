package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/congo-pay/fxwallet/internal/metrics"
)

type mockRefresher struct {
	callCount atomic.Int32
	err       error
}

func (m *mockRefresher) RefreshRates(_ context.Context) error {
	m.callCount.Add(1)
	return m.err
}

func TestRatesWorkerRunsAndShutdown(t *testing.T) {
	mock := &mockRefresher{}
	m := metrics.New(prometheus.NewRegistry())
	w := NewRatesWorker(mock, 50*time.Millisecond, nil, m)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	got := mock.callCount.Load()
	assert.GreaterOrEqual(t, got, int32(2))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.RatesRefreshes.WithLabelValues("ok")), 2.0)
}

func TestRatesWorkerKeepsRunningAfterFailure(t *testing.T) {
	mock := &mockRefresher{err: errors.New("feed down")}
	m := metrics.New(prometheus.NewRegistry())
	w := NewRatesWorker(mock, 20*time.Millisecond, nil, m)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w.Run(ctx)

	assert.GreaterOrEqual(t, mock.callCount.Load(), int32(2))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.RatesRefreshes.WithLabelValues("error")), 1.0)
}
