// Package news binds the request pipeline to a NewsAPI-compatible provider.
package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"briefboard/internal/apierr"
	"briefboard/internal/httpx"
	"briefboard/internal/provider"
)

// Endpoint paths relative to the base URL.
const (
	PathTopHeadlines = "/v2/top-headlines"
	PathEverything   = "/v2/everything"
	PathSources      = "/v2/top-headlines/sources"
)

// Request defaults.
const (
	DefaultBaseURL        = "https://newsapi.org"
	DefaultCountry        = "us"
	DefaultLanguage       = "en"
	DefaultSortBy         = "publishedAt"
	DefaultHeadlinesSize  = 20
	MaxResultsPerRequest  = 100
	MaxSearchInputChars   = 500
	DefaultSearchLookback = 24 * time.Hour
)

const (
	categoryAll      = "all"
	searchFromLayout = "2006-01-02"
	apiKeyHeader     = "X-Api-Key"
)

// Config identifies the provider account.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewClient returns a pipeline client for the provider: credentials in the
// X-Api-Key header and the provider's status-field payload check.
func NewClient(cfg Config, opts ...httpx.Option) *httpx.Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	defaults := []httpx.Option{httpx.WithPayloadCheck(apierr.NewsPayload)}
	if cfg.Timeout > 0 {
		defaults = append(defaults, httpx.WithHTTPClient(httpx.NewHTTPClient(cfg.Timeout)))
	}
	if cfg.APIKey != "" {
		defaults = append(defaults, httpx.WithHeader(http.Header{apiKeyHeader: {cfg.APIKey}}))
	}
	return httpx.New(base, append(defaults, opts...)...)
}

// HeadlinesParams filters the top headlines endpoint. Sources cannot be mixed
// with Country or Category upstream.
type HeadlinesParams struct {
	Query    string
	Country  string
	Category string
	Sources  string
	PageSize int
	Page     int
}

// SearchParams filters the everything endpoint. Category is not sent
// upstream; it only labels the mapped articles.
type SearchParams struct {
	Query          string
	SearchIn       string
	Sources        string
	Domains        string
	ExcludeDomains string
	From           string
	To             string
	Language       string
	SortBy         string
	PageSize       int
	Page           int
	Category       string
}

// SourcesParams filters the sources endpoint.
type SourcesParams struct {
	Country  string
	Language string
	Category string
}

// Service exposes one method per provider endpoint.
type Service struct {
	client *httpx.Client
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNow replaces time.Now for the default search window.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wraps client.
func NewService(client *httpx.Client, opts ...ServiceOption) *Service {
	s := &Service{client: client, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TopHeadlines returns breaking headlines. With neither Sources nor Country
// set, the country defaults to DefaultCountry.
func (s *Service) TopHeadlines(ctx context.Context, p HeadlinesParams, opts ...httpx.FetchOption) (provider.ArticlePage, error) {
	category := p.Category
	if category == categoryAll {
		category = ""
	}
	country := p.Country
	if country == "" && p.Sources == "" {
		country = DefaultCountry
	}
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultHeadlinesSize
	}

	q := url.Values{}
	setParam(q, "q", p.Query)
	setParam(q, "country", country)
	setParam(q, "category", category)
	setParam(q, "sources", p.Sources)
	setParam(q, "pageSize", strconv.Itoa(min(pageSize, MaxResultsPerRequest)))
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}

	raw, err := httpx.Get[RawArticlesResponse](ctx, s.client, httpx.Request{Path: PathTopHeadlines, Params: q}, opts...)
	if err != nil {
		return provider.ArticlePage{}, err
	}
	page, err := MapArticlePage(raw, category)
	if err != nil {
		return provider.ArticlePage{}, fmt.Errorf("mapping top headlines: %w", err)
	}
	return page, nil
}

// Search runs a full-text query over recent articles.
func (s *Service) Search(ctx context.Context, p SearchParams, opts ...httpx.FetchOption) (provider.ArticlePage, error) {
	pageSize := p.PageSize
	if pageSize <= 0 || pageSize > MaxResultsPerRequest {
		pageSize = MaxResultsPerRequest
	}
	from := p.From
	if from == "" {
		from = s.now().Add(-DefaultSearchLookback).Format(searchFromLayout)
	}
	language := p.Language
	if language == "" {
		language = DefaultLanguage
	}
	sortBy := p.SortBy
	if sortBy == "" {
		sortBy = DefaultSortBy
	}

	q := url.Values{}
	setParam(q, "q", truncate(p.Query, MaxSearchInputChars))
	setParam(q, "searchIn", p.SearchIn)
	setParam(q, "sources", p.Sources)
	setParam(q, "domains", p.Domains)
	setParam(q, "excludeDomains", p.ExcludeDomains)
	setParam(q, "from", from)
	setParam(q, "to", p.To)
	setParam(q, "language", language)
	setParam(q, "sortBy", sortBy)
	q.Set("pageSize", strconv.Itoa(pageSize))
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}

	raw, err := httpx.Get[RawArticlesResponse](ctx, s.client, httpx.Request{Path: PathEverything, Params: q}, opts...)
	if err != nil {
		return provider.ArticlePage{}, err
	}
	page, err := MapArticlePage(raw, p.Category)
	if err != nil {
		return provider.ArticlePage{}, fmt.Errorf("mapping search results: %w", err)
	}
	return page, nil
}

// Sources lists the publishers the provider knows.
func (s *Service) Sources(ctx context.Context, p SourcesParams, opts ...httpx.FetchOption) ([]provider.Source, error) {
	category := p.Category
	if category == categoryAll {
		category = ""
	}
	q := url.Values{}
	setParam(q, "country", p.Country)
	setParam(q, "language", p.Language)
	setParam(q, "category", category)

	raw, err := httpx.Get[RawSourcesResponse](ctx, s.client, httpx.Request{Path: PathSources, Params: q}, opts...)
	if err != nil {
		return nil, err
	}
	return MapSources(raw), nil
}

func setParam(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
