// Package finance binds the request pipeline to a Twelve Data compatible
// market data provider.
package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"briefboard/internal/apierr"
	"briefboard/internal/httpx"
	"briefboard/internal/provider"
	"briefboard/internal/ratelimit"
)

// Endpoint paths relative to the base URL.
const (
	PathTimeSeries  = "/time_series"
	PathQuote       = "/quote"
	PathPrice       = "/price"
	PathMarketState = "/market_state"
)

// Request defaults.
const (
	DefaultBaseURL    = "https://api.twelvedata.com"
	DefaultInterval   = "1day"
	DefaultOutputSize = 30
	apiKeyParam       = "apikey"
)

// Config identifies the provider account and its request quota.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// RequestsPerMinute gates network calls through a token bucket when > 0.
	RequestsPerMinute int
	Burst             int
	// MinInterval spaces consecutive network calls when > 0.
	MinInterval time.Duration
}

// NewClient returns a pipeline client for the provider: the API key as a
// default query parameter and the embedded-code payload check.
func NewClient(cfg Config, opts ...httpx.Option) *httpx.Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	defaults := []httpx.Option{httpx.WithPayloadCheck(apierr.FinancePayload)}
	if cfg.Timeout > 0 {
		defaults = append(defaults, httpx.WithHTTPClient(httpx.NewHTTPClient(cfg.Timeout)))
	}
	if cfg.APIKey != "" {
		defaults = append(defaults, httpx.WithQuery(url.Values{apiKeyParam: {cfg.APIKey}}))
	}
	var chain ratelimit.Chain
	if cfg.RequestsPerMinute > 0 {
		chain = append(chain, ratelimit.PerMinute(cfg.RequestsPerMinute, cfg.Burst))
	}
	if cfg.MinInterval > 0 {
		chain = append(chain, ratelimit.NewMinInterval(cfg.MinInterval))
	}
	if len(chain) > 0 {
		defaults = append(defaults, httpx.WithLimiter(chain))
	}
	return httpx.New(base, append(defaults, opts...)...)
}

// TimeSeriesParams selects candles for one symbol.
type TimeSeriesParams struct {
	Symbol     string
	Interval   string
	OutputSize int
	StartDate  string
	EndDate    string
}

// Service exposes one method per provider endpoint.
type Service struct {
	client *httpx.Client
}

// NewService wraps client.
func NewService(client *httpx.Client) *Service {
	return &Service{client: client}
}

// TimeSeries returns OHLCV bars, newest first.
func (s *Service) TimeSeries(ctx context.Context, p TimeSeriesParams, opts ...httpx.FetchOption) (provider.TimeSeries, error) {
	interval := p.Interval
	if interval == "" {
		interval = DefaultInterval
	}
	size := p.OutputSize
	if size <= 0 {
		size = DefaultOutputSize
	}
	q := url.Values{}
	q.Set("symbol", p.Symbol)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(size))
	if p.StartDate != "" {
		q.Set("start_date", p.StartDate)
	}
	if p.EndDate != "" {
		q.Set("end_date", p.EndDate)
	}

	raw, err := httpx.Get[RawTimeSeries](ctx, s.client, httpx.Request{Path: PathTimeSeries, Params: q}, opts...)
	if err != nil {
		return provider.TimeSeries{}, err
	}
	ts, err := MapTimeSeries(raw)
	if err != nil {
		return provider.TimeSeries{}, fmt.Errorf("mapping time series for %s: %w", p.Symbol, err)
	}
	return ts, nil
}

// Quote returns the latest quote for symbol.
func (s *Service) Quote(ctx context.Context, symbol string, opts ...httpx.FetchOption) (provider.Quote, error) {
	raw, err := httpx.Get[RawQuote](ctx, s.client, symbolRequest(PathQuote, symbol), opts...)
	if err != nil {
		return provider.Quote{}, err
	}
	q, err := MapQuote(raw)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("mapping quote for %s: %w", symbol, err)
	}
	return q, nil
}

// Price returns the latest traded price for symbol.
func (s *Service) Price(ctx context.Context, symbol string, opts ...httpx.FetchOption) (provider.Price, error) {
	raw, err := httpx.Get[RawPrice](ctx, s.client, symbolRequest(PathPrice, symbol), opts...)
	if err != nil {
		return provider.Price{}, err
	}
	p, err := MapPrice(symbol, raw)
	if err != nil {
		return provider.Price{}, fmt.Errorf("mapping price for %s: %w", symbol, err)
	}
	return p, nil
}

// MarketState reports whether symbol's exchange is open. When the provider
// answers with a list of exchanges, the first one is used.
func (s *Service) MarketState(ctx context.Context, symbol string, opts ...httpx.FetchOption) (provider.MarketState, error) {
	body, err := s.client.Fetch(ctx, symbolRequest(PathMarketState, symbol), opts...)
	if err != nil {
		return provider.MarketState{}, err
	}

	var raw RawMarketState
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var list []RawMarketState
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return provider.MarketState{}, fmt.Errorf("decoding market state: %w", err)
		}
		if len(list) == 0 {
			return provider.MarketState{}, fmt.Errorf("market state for %s: empty response", symbol)
		}
		raw = list[0]
	} else if err := json.Unmarshal(body, &raw); err != nil {
		return provider.MarketState{}, fmt.Errorf("decoding market state: %w", err)
	}

	ms := MapMarketState(raw)
	if ms.Symbol == "" {
		ms.Symbol = symbol
	}
	return ms, nil
}

func symbolRequest(path, symbol string) httpx.Request {
	return httpx.Request{Path: path, Params: url.Values{"symbol": {symbol}}}
}
