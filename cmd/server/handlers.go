package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"briefboard/internal/aggregate"
	"briefboard/internal/apierr"
	"briefboard/internal/dashboard"
	"briefboard/internal/httpx"
	"briefboard/internal/likes"
	"briefboard/internal/notify"
	"briefboard/internal/provider"
	"briefboard/internal/provider/finance"
	"briefboard/internal/provider/news"
)

const maxSymbols = 50

type api struct {
	news      *news.Service
	finance   *finance.Service
	dashboard *dashboard.Dashboard
	likes     *likes.Store
	notices   *notify.Queue
	watchlist []string
	fetch     []httpx.FetchOption
	timeout   time.Duration
	logger    *slog.Logger
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/news/top-headlines", a.get(a.handleTopHeadlines))
	mux.HandleFunc("/api/news/search", a.get(a.handleSearch))
	mux.HandleFunc("/api/news/sources", a.get(a.handleSources))
	mux.HandleFunc("/api/finance/time-series", a.get(a.handleTimeSeries))
	mux.HandleFunc("/api/finance/quote", a.get(a.handleQuote))
	mux.HandleFunc("/api/finance/price", a.get(a.handlePrice))
	mux.HandleFunc("/api/finance/market-state", a.get(a.handleMarketState))
	mux.HandleFunc("/api/finance/watchlist", a.get(a.handleWatchlist))
	mux.HandleFunc("/api/home", a.get(a.handleHome))
	mux.HandleFunc("/api/notifications", a.get(a.handleNotifications))
	mux.HandleFunc("/api/likes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			a.handleListLikes(w, r)
		case http.MethodPost:
			a.handleToggleLike(w, r)
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
	})
	return mux
}

// get restricts h to GET and bounds it with the request timeout.
func (a *api) get(h func(ctx context.Context, w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		ctx := r.Context()
		if a.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}
		h(ctx, w, r)
	}
}

func (a *api) handleTopHeadlines(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.news.TopHeadlines(ctx, news.HeadlinesParams{
		Query:    q.Get("q"),
		Country:  q.Get("country"),
		Category: q.Get("category"),
		Sources:  q.Get("sources"),
		PageSize: atoi(q.Get("pageSize")),
		Page:     atoi(q.Get("page")),
	}, a.fetch...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *api) handleSearch(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if strings.TrimSpace(q.Get("q")) == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "missing q query param")
		return
	}
	page, err := a.news.Search(ctx, news.SearchParams{
		Query:          q.Get("q"),
		SearchIn:       q.Get("searchIn"),
		Sources:        q.Get("sources"),
		Domains:        q.Get("domains"),
		ExcludeDomains: q.Get("excludeDomains"),
		From:           q.Get("from"),
		To:             q.Get("to"),
		Language:       q.Get("language"),
		SortBy:         q.Get("sortBy"),
		PageSize:       atoi(q.Get("pageSize")),
		Page:           atoi(q.Get("page")),
		Category:       q.Get("category"),
	}, a.fetch...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type sourcesResponse struct {
	GroupBy aggregate.GroupBy       `json:"group_by"`
	Groups  []aggregate.SourceGroup `json:"groups"`
}

func (a *api) handleSources(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	by, err := aggregate.ParseGroupBy(q.Get("groupBy"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	// groupBy is applied here and never sent upstream.
	sources, err := a.news.Sources(ctx, news.SourcesParams{
		Country:  q.Get("country"),
		Language: q.Get("language"),
		Category: q.Get("category"),
	}, a.fetch...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	groups, err := aggregate.GroupSources(sources, by)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sourcesResponse{GroupBy: by, Groups: groups})
}

func (a *api) handleTimeSeries(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol, ok := requireSymbol(w, r)
	if !ok {
		return
	}
	ts, err := a.finance.TimeSeries(ctx, finance.TimeSeriesParams{
		Symbol:     symbol,
		Interval:   q.Get("interval"),
		OutputSize: atoi(q.Get("outputsize")),
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
	}, a.fetch...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (a *api) handleQuote(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	symbol, ok := requireSymbol(w, r)
	if !ok {
		return
	}
	quote, err := a.finance.Quote(ctx, symbol, a.fetch...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *api) handlePrice(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	symbol, ok := requireSymbol(w, r)
	if !ok {
		return
	}
	price, err := a.finance.Price(ctx, symbol, a.fetch...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (a *api) handleMarketState(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	symbol, ok := requireSymbol(w, r)
	if !ok {
		return
	}
	state, err := a.finance.MarketState(ctx, symbol, a.fetch...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type partialError struct {
	Target  string `json:"target"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func partialErrors(errs []dashboard.FetchError) []partialError {
	out := make([]partialError, 0, len(errs))
	for _, e := range errs {
		out = append(out, partialError{Target: e.Target, Kind: apierr.KindOf(e.Err).String(), Message: e.Err.Error()})
	}
	return out
}

type watchlistResponse struct {
	Quotes []provider.Quote `json:"quotes"`
	Errors []partialError   `json:"errors"`
}

func (a *api) handleWatchlist(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	symbols := a.watchlist
	if raw := r.URL.Query().Get("symbols"); strings.TrimSpace(raw) != "" {
		symbols = splitCSV(raw)
	}
	if len(symbols) > maxSymbols {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "too many symbols (max "+strconv.Itoa(maxSymbols)+")")
		return
	}
	wl, err := a.dashboard.Watchlist(ctx, symbols)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, watchlistResponse{Quotes: wl.Quotes, Errors: partialErrors(wl.Errors)})
}

type homeResponse struct {
	Carousel []provider.Article  `json:"carousel"`
	Sections []dashboard.Section `json:"sections"`
	Errors   []partialError      `json:"errors"`
}

func (a *api) handleHome(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	home, err := a.dashboard.Home(ctx)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, homeResponse{
		Carousel: home.Carousel,
		Sections: home.Sections,
		Errors:   partialErrors(home.Errors),
	})
}

func (a *api) handleNotifications(_ context.Context, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notices": a.notices.Pending()})
}

type likesResponse struct {
	Count      int                       `json:"count"`
	Articles   []provider.Article        `json:"articles"`
	ByCategory []aggregate.CategoryCount `json:"by_category"`
}

func (a *api) handleListLikes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := a.likes.List(ctx)
	if err != nil {
		a.writeInternal(w, err)
		return
	}
	counts, err := a.likes.CountByCategory(ctx)
	if err != nil {
		a.writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, likesResponse{Count: len(list), Articles: list, ByCategory: counts})
}

type toggleResponse struct {
	Liked bool `json:"liked"`
	Count int  `json:"count"`
}

func (a *api) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	var article provider.Article
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&article); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	liked, err := a.likes.Toggle(r.Context(), article)
	if errors.Is(err, likes.ErrNoURL) {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err != nil {
		a.writeInternal(w, err)
		return
	}
	n, err := a.likes.Count(r.Context())
	if err != nil {
		a.writeInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Liked: liked, Count: n})
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// writeError maps an upstream failure to a response. Classified errors keep
// their status; everything else, mapping failures included, becomes 502.
func (a *api) writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	switch {
	case errors.Is(err, dashboard.ErrAllFailed):
		writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	case errors.As(err, &apiErr):
		code := http.StatusBadGateway
		if s, ok := apiErr.HTTPStatus(); ok && s >= 400 && s <= 599 {
			code = s
		}
		writeJSON(w, code, errorResponse{Kind: apiErr.Kind.String(), Status: apiErr.Status, Message: apiErr.Message})
	default:
		a.logger.Warn("upstream response not usable", "error", err)
		writeJSONError(w, http.StatusBadGateway, apierr.KindUnknown.String(), err.Error())
	}
}

// writeInternal reports a local storage failure.
func (a *api) writeInternal(w http.ResponseWriter, err error) {
	a.logger.Error("request failed", "error", err)
	writeJSONError(w, http.StatusInternalServerError, "internal", "internal server error")
}

func writeJSONError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, errorResponse{Kind: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func requireSymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "missing symbol query param")
		return "", false
	}
	return symbol, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
