package exchange

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	// DefaultECBURL serves the ECB daily euro foreign exchange reference rates.
	DefaultECBURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

	ecbDateLayout = "2006-01-02"
)

// ErrFeedUnavailable wraps failures to fetch or decode the rate feed.
var ErrFeedUnavailable = errors.New("rate feed unavailable")

// Gateway produces the full current rate table from an external feed.
type Gateway interface {
	LatestRates(ctx context.Context) ([]ExchangeRate, error)
}

// ECBGatewayConfig tunes the ECB client.
type ECBGatewayConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// ECBGateway fetches EUR-based reference rates published by the European
// Central Bank.
type ECBGateway struct {
	url        string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewECBGateway builds an ECB client.
func NewECBGateway(cfg ECBGatewayConfig) *ECBGateway {
	if cfg.URL == "" {
		cfg.URL = DefaultECBURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &ECBGateway{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

type ecbEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Cube    struct {
		Days []ecbDay `xml:"Cube"`
	} `xml:"Cube"`
}

type ecbDay struct {
	Time  string    `xml:"time,attr"`
	Rates []ecbRate `xml:"Cube"`
}

type ecbRate struct {
	Currency string `xml:"currency,attr"`
	Rate     string `xml:"rate,attr"`
}

// LatestRates returns the most recent day of reference rates in the feed.
func (g *ECBGateway) LatestRates(ctx context.Context) ([]ExchangeRate, error) {
	body, err := g.fetchWithRetry(ctx)
	if err != nil {
		return nil, err
	}

	var envelope ecbEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode ECB envelope: %v", ErrFeedUnavailable, err)
	}
	return mapEnvelope(envelope)
}

func mapEnvelope(envelope ecbEnvelope) ([]ExchangeRate, error) {
	if len(envelope.Cube.Days) == 0 {
		return nil, fmt.Errorf("%w: ECB envelope has no rates", ErrFeedUnavailable)
	}
	day := envelope.Cube.Days[0]
	effectiveAt, err := time.Parse(ecbDateLayout, day.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: ECB date %q: %v", ErrFeedUnavailable, day.Time, err)
	}

	entries := lo.Filter(day.Rates, func(r ecbRate, _ int) bool {
		return r.Currency != "" && r.Rate != ""
	})

	rates := make([]ExchangeRate, 0, len(entries))
	for _, entry := range entries {
		value, err := decimal.NewFromString(entry.Rate)
		if err != nil {
			return nil, fmt.Errorf("%w: ECB rate for %s: %v", ErrFeedUnavailable, entry.Currency, err)
		}
		rates = append(rates, ExchangeRate{
			Currency:    NormalizeCurrency(entry.Currency),
			EffectiveAt: effectiveAt.UTC(),
			Rate:        value,
		})
	}
	return rates, nil
}

func (g *ECBGateway) fetchWithRetry(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := g.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, retry, err := g.fetch(ctx)
		if err == nil {
			return body, nil
		}
		if !retry || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (g *ECBGateway) fetch(ctx context.Context) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating ECB request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: ECB request: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading ECB response: %v", ErrFeedUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("%w: ECB HTTP %d", ErrFeedUnavailable, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: ECB HTTP %d", ErrFeedUnavailable, resp.StatusCode)
	}
}
