// Package dashboard composes the home page and the quote watchlist from
// several concurrent provider calls.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"briefboard/internal/httpx"
	"briefboard/internal/provider"
	"briefboard/internal/provider/news"
)

// Page sizes and sections of the home page.
const (
	CarouselSize = 12
	SectionSize  = 5
)

// DefaultSections are the categories shown below the carousel, in order.
var DefaultSections = []string{"politics", "business", "entertainment", "health", "technology"}

// ErrAllFailed is wrapped when every fetch behind a page failed.
var ErrAllFailed = errors.New("every upstream request failed")

// Headlines fetches top headlines.
type Headlines interface {
	TopHeadlines(ctx context.Context, p news.HeadlinesParams, opts ...httpx.FetchOption) (provider.ArticlePage, error)
}

// Quotes fetches quotes.
type Quotes interface {
	Quote(ctx context.Context, symbol string, opts ...httpx.FetchOption) (provider.Quote, error)
}

// Section is one category block of the home page.
type Section struct {
	Category string             `json:"category"`
	Articles []provider.Article `json:"articles"`
}

// FetchError records one failed fetch behind a page.
type FetchError struct {
	Target string `json:"target"`
	Err    error  `json:"-"`
}

func (e FetchError) Error() string { return e.Target + ": " + e.Err.Error() }

func (e FetchError) Unwrap() error { return e.Err }

// Home is the assembled home page. Errors lists the parts that could not be loaded.
type Home struct {
	Carousel []provider.Article `json:"carousel"`
	Sections []Section          `json:"sections"`
	Errors   []FetchError       `json:"-"`
}

// Watchlist holds quotes in the requested symbol order. Failed symbols are
// absent from Quotes and listed in Errors.
type Watchlist struct {
	Quotes []provider.Quote `json:"quotes"`
	Errors []FetchError     `json:"-"`
}

// Dashboard assembles pages from the provider services.
type Dashboard struct {
	headlines Headlines
	quotes    Quotes
	sections  []string
	country   string
	fetch     []httpx.FetchOption
	logger    *slog.Logger
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithSections replaces DefaultSections.
func WithSections(categories ...string) Option {
	return func(d *Dashboard) { d.sections = categories }
}

// WithCountry sets the country of the headlines. Defaults to news.DefaultCountry.
func WithCountry(country string) Option {
	return func(d *Dashboard) { d.country = country }
}

// WithFetchOptions applies opts to every upstream call.
func WithFetchOptions(opts ...httpx.FetchOption) Option {
	return func(d *Dashboard) { d.fetch = opts }
}

// WithLogger sets the logger for partial failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dashboard) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a dashboard over the given services.
func New(h Headlines, q Quotes, opts ...Option) *Dashboard {
	d := &Dashboard{
		headlines: h,
		quotes:    q,
		sections:  DefaultSections,
		country:   news.DefaultCountry,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Home fetches the carousel and every section concurrently. A failed part is
// recorded in Home.Errors; only when every part fails is an error returned.
func (d *Dashboard) Home(ctx context.Context) (Home, error) {
	home := Home{Sections: make([]Section, len(d.sections))}
	var (
		mu   sync.Mutex
		errs []FetchError
	)
	record := func(target string, err error) {
		d.logger.Warn("home page part failed", "target", target, "error", err)
		mu.Lock()
		errs = append(errs, FetchError{Target: target, Err: err})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page, err := d.headlines.TopHeadlines(gctx, news.HeadlinesParams{Country: d.country, PageSize: CarouselSize}, d.fetch...)
		if err != nil {
			record("carousel", err)
			return nil
		}
		home.Carousel = page.Articles
		return nil
	})
	for i, category := range d.sections {
		g.Go(func() error {
			page, err := d.headlines.TopHeadlines(gctx, news.HeadlinesParams{
				Country:  d.country,
				Category: category,
				PageSize: SectionSize,
			}, d.fetch...)
			home.Sections[i].Category = category
			if err != nil {
				record(category, err)
				return nil
			}
			home.Sections[i].Articles = page.Articles
			return nil
		})
	}
	_ = g.Wait()

	home.Errors = errs
	if len(errs) == len(d.sections)+1 {
		return home, fmt.Errorf("loading home page: %w", joinFetchErrors(errs))
	}
	return home, nil
}

// Watchlist fetches a quote per symbol concurrently with the same partial
// failure policy as Home.
func (d *Dashboard) Watchlist(ctx context.Context, symbols []string) (Watchlist, error) {
	if len(symbols) == 0 {
		return Watchlist{Quotes: []provider.Quote{}}, nil
	}
	quotes := make([]*provider.Quote, len(symbols))
	failures := make([]error, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		g.Go(func() error {
			q, err := d.quotes.Quote(gctx, symbol, d.fetch...)
			if err != nil {
				failures[i] = err
				return nil
			}
			quotes[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	w := Watchlist{Quotes: make([]provider.Quote, 0, len(symbols))}
	for i, q := range quotes {
		if q != nil {
			w.Quotes = append(w.Quotes, *q)
			continue
		}
		d.logger.Warn("watchlist quote failed", "symbol", symbols[i], "error", failures[i])
		w.Errors = append(w.Errors, FetchError{Target: symbols[i], Err: failures[i]})
	}
	if len(w.Quotes) == 0 {
		return w, fmt.Errorf("loading watchlist: %w", joinFetchErrors(w.Errors))
	}
	return w, nil
}

func joinFetchErrors(errs []FetchError) error {
	all := make([]error, 0, len(errs)+1)
	all = append(all, ErrAllFailed)
	for _, e := range errs {
		all = append(all, e)
	}
	return errors.Join(all...)
}
