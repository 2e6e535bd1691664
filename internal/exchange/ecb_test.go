package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ecbSample = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<gesmes:Sender>
		<gesmes:name>European Central Bank</gesmes:name>
	</gesmes:Sender>
	<Cube>
		<Cube time="2024-01-15">
			<Cube currency="USD" rate="1.0946"/>
			<Cube currency="JPY" rate="160.25"/>
			<Cube currency="gbp" rate="0.86"/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

func TestECBGatewayParsesLatestDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, ecbSample)
	}))
	defer srv.Close()

	g := NewECBGateway(ECBGatewayConfig{URL: srv.URL, Timeout: time.Second})
	rates, err := g.LatestRates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 3)

	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "USD", rates[0].Currency)
	assert.Equal(t, "1.0946", rates[0].Rate.String())
	assert.True(t, want.Equal(rates[0].EffectiveAt))
	assert.Equal(t, "GBP", rates[2].Currency)
}

func TestECBGatewayRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, ecbSample)
	}))
	defer srv.Close()

	g := NewECBGateway(ECBGatewayConfig{URL: srv.URL, Timeout: time.Second, MaxRetries: 3, RetryDelay: time.Millisecond})
	rates, err := g.LatestRates(context.Background())

	require.NoError(t, err)
	assert.Len(t, rates, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestECBGatewayDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewECBGateway(ECBGatewayConfig{URL: srv.URL, Timeout: time.Second, MaxRetries: 3, RetryDelay: time.Millisecond})
	_, err := g.LatestRates(context.Background())

	assert.ErrorIs(t, err, ErrFeedUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestECBGatewayRejectsMalformedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<Envelope><Cube><Cube time="2024-01-15"><Cube currency="USD" rate="abc"/></Cube></Cube></Envelope>`)
	}))
	defer srv.Close()

	g := NewECBGateway(ECBGatewayConfig{URL: srv.URL, Timeout: time.Second})
	_, err := g.LatestRates(context.Background())

	assert.ErrorIs(t, err, ErrFeedUnavailable)
}
