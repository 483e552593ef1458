// Package app wires the configured services for the command binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"briefboard/internal/apierr"
	"briefboard/internal/cache"
	"briefboard/internal/config"
	"briefboard/internal/dashboard"
	"briefboard/internal/httpx"
	"briefboard/internal/likes"
	"briefboard/internal/notify"
	"briefboard/internal/provider/finance"
	"briefboard/internal/provider/news"
)

// App holds the long-lived services of one process.
type App struct {
	Config        config.Config
	Logger        *slog.Logger
	Cache         *cache.Cache
	Notifications *notify.Queue
	News          *news.Service
	Finance       *finance.Service
	Dashboard     *dashboard.Dashboard

	likesPath string
	likesMu   sync.Mutex
	likes     *likes.Store
	closers   []func() error
}

// Option adjusts the wiring, mostly for tests.
type Option func(*options)

type options struct {
	newsHTTP    httpx.Doer
	financeHTTP httpx.Doer
}

// WithHTTPClients replaces the transport of both providers.
func WithHTTPClients(newsHTTP, financeHTTP httpx.Doer) Option {
	return func(o *options) {
		o.newsHTTP = newsHTTP
		o.financeHTTP = financeHTTP
	}
}

// New builds every service from cfg. The caller must Close the result.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:        cfg,
		Logger:        logger,
		Notifications: notify.NewQueue(cfg.Notifications.Lifetime),
		likesPath:     cfg.Likes.Path,
	}

	cc, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}
	a.Cache = cc

	classifier := apierr.NewClassifier(apierr.NotifierFunc(func(message, code string) {
		logger.Warn("upstream error", "code", code, "message", message)
		a.Notifications.Notify(message, code)
	}))
	common := []httpx.Option{
		httpx.WithClassifier(classifier),
		httpx.WithLogger(logger),
		httpx.WithCoalescing(cfg.Cache.Coalesce),
	}
	if cc != nil {
		common = append(common, httpx.WithCache(cc))
	}

	newsOpts := append([]httpx.Option{}, common...)
	if o.newsHTTP != nil {
		newsOpts = append(newsOpts, httpx.WithHTTPClient(o.newsHTTP))
	}
	newsClient := news.NewClient(news.Config{
		BaseURL: cfg.News.BaseURL,
		APIKey:  cfg.News.APIKey,
		Timeout: cfg.News.Timeout,
	}, newsOpts...)

	financeOpts := append([]httpx.Option{}, common...)
	if o.financeHTTP != nil {
		financeOpts = append(financeOpts, httpx.WithHTTPClient(o.financeHTTP))
	}
	financeClient := finance.NewClient(finance.Config{
		BaseURL:           cfg.Finance.BaseURL,
		APIKey:            cfg.Finance.APIKey,
		Timeout:           cfg.Finance.Timeout,
		RequestsPerMinute: cfg.Finance.MaxRequestsPerMinute,
		Burst:             cfg.Finance.Burst,
		MinInterval:       cfg.Finance.MinRequestInterval,
	}, financeOpts...)

	a.News = news.NewService(newsClient)
	a.Finance = finance.NewService(financeClient)
	a.Dashboard = dashboard.New(a.News, a.Finance,
		dashboard.WithCountry(cfg.News.Country),
		dashboard.WithLogger(logger),
		dashboard.WithFetchOptions(a.FetchOptions()...),
	)

	if cfg.News.APIKey == "" {
		logger.Warn("news api key not set", "env", config.EnvPrefix+"_NEWS_API_KEY")
	}
	if cfg.Finance.APIKey == "" {
		logger.Warn("finance api key not set", "env", config.EnvPrefix+"_FINANCE_API_KEY")
	}
	return a, nil
}

func (a *App) openCache(ctx context.Context) (*cache.Cache, error) {
	cfg := a.Config.Cache
	if !cfg.Enabled {
		return nil, nil
	}
	opts := []cache.Option{cache.WithLogger(a.Logger)}
	switch cfg.Backend {
	case config.BackendMemory:
		return cache.New(opts...), nil
	case config.BackendSQLite:
		store, err := cache.OpenSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return cache.Open(ctx, store, opts...), nil
	default:
		return cache.Open(ctx, cache.NewFileStore(cfg.Path), opts...), nil
	}
}

// Likes opens the likes store on first use.
func (a *App) Likes() (*likes.Store, error) {
	a.likesMu.Lock()
	defer a.likesMu.Unlock()
	if a.likes != nil {
		return a.likes, nil
	}
	s, err := likes.Open(a.likesPath)
	if err != nil {
		return nil, err
	}
	a.likes = s
	a.closers = append(a.closers, s.Close)
	return s, nil
}

// FetchOptions returns the per-call options implied by the cache config.
func (a *App) FetchOptions() []httpx.FetchOption {
	if a.Cache == nil {
		return nil
	}
	return []httpx.FetchOption{httpx.WithCacheTTL(a.Config.Cache.TTL)}
}

// Close releases every store the app opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
