// Package rates provides exchange-rate providers for display-currency
// conversion. Rates never touch stored amounts.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/port"
)

// HTTPProvider fetches daily rates from a JSON endpoint shaped like the
// exchangerate.host timeframe API: {"rates": {"2026-08-24": {"USD": 0.058}}}.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider against baseURL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type ratesResponse struct {
	Rates map[string]map[string]float64 `json:"rates"`
}

// Rate fetches base->quote for one civil date.
func (p *HTTPProvider) Rate(ctx context.Context, base, quote string, date time.Time) (*port.ExchangeRate, error) {
	day := date.Format("2006-01-02")
	url := fmt.Sprintf("%s?base=%s&symbols=%s&start_date=%s&end_date=%s", p.baseURL, base, quote, day, day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.KindTransient, "exchange rate fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewError(domain.KindTransient, "exchange rate endpoint error").
			With("status", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, domain.WrapError(domain.KindInternal, "exchange rate decode failed", err)
	}
	dayRates, ok := body.Rates[day]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "no rate published for date").With("date", day)
	}
	rate, ok := dayRates[quote]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "no rate for currency").With("currency", quote)
	}

	return &port.ExchangeRate{
		Base:  base,
		Quote: quote,
		Rate:  decimal.NewFromFloat(rate),
		Date:  date,
	}, nil
}

// Static serves a fixed rate table, for development and tests.
type Static struct {
	Rates map[string]decimal.Decimal // key "BASE/QUOTE"
}

// Rate looks the pair up in the fixed table.
func (s *Static) Rate(_ context.Context, base, quote string, date time.Time) (*port.ExchangeRate, error) {
	r, ok := s.Rates[base+"/"+quote]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "no rate for pair").With("pair", base+"/"+quote)
	}
	return &port.ExchangeRate{Base: base, Quote: quote, Rate: r, Date: date}, nil
}

// Cached wraps a provider with a per-day cache. Published rates for a past
// date never change, so entries live until process restart.
type Cached struct {
	next port.ExchangeRateProvider

	mu    sync.Mutex
	cache map[string]*port.ExchangeRate
}

// NewCached wraps next with a rate cache.
func NewCached(next port.ExchangeRateProvider) *Cached {
	return &Cached{next: next, cache: make(map[string]*port.ExchangeRate)}
}

// Rate returns a cached rate or delegates and caches the result.
func (c *Cached) Rate(ctx context.Context, base, quote string, date time.Time) (*port.ExchangeRate, error) {
	key := fmt.Sprintf("%s/%s/%s", base, quote, date.Format("2006-01-02"))

	c.mu.Lock()
	if r, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	r, err := c.next.Rate(ctx, base, quote, date)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = r
	c.mu.Unlock()
	return r, nil
}
