package main

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"briefboard/internal/app"
	"briefboard/internal/config"
	"briefboard/internal/logging"
)

const headlinesBody = `{"status":"ok","totalResults":1,"articles":[{"source":{"id":"bbc","name":"BBC"},"author":null,"title":"T","description":"D","url":"https://x/1","urlToImage":"","publishedAt":"2024-06-01T10:00:00Z","content":"C"}]}`

const quoteBody = `{"symbol":"AAPL","name":"Apple Inc","exchange":"NASDAQ","currency":"USD","datetime":"2024-06-07","open":"1.5","high":"2.0","low":"1.0","close":"1.8","previous_close":"1.7","volume":"100","average_volume":"90","change":"0.1","percent_change":"5.8","fifty_two_week":{"low":"1.0","high":"3.0"}}`

type upstream struct {
	server *httptest.Server
	hits   atomic.Int32
}

func newUpstream(t *testing.T, h http.HandlerFunc) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func newTestHandler(t *testing.T, newsURL, financeURL string, mutate ...func(*config.Config)) (http.Handler, *app.App) {
	t.Helper()
	cfg := config.Default()
	cfg.News.BaseURL = newsURL
	cfg.News.APIKey = "news-key"
	cfg.Finance.BaseURL = financeURL
	cfg.Finance.APIKey = "fin-key"
	cfg.Finance.MaxRequestsPerMinute = 0
	cfg.Finance.MinRequestInterval = 0
	cfg.Finance.Watchlist = []string{"AAPL", "MSFT"}
	cfg.Cache.Backend = config.BackendMemory
	cfg.Likes.Path = filepath.Join(t.TempDir(), "likes.db")
	for _, m := range mutate {
		m(&cfg)
	}

	a, err := app.New(t.Context(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	h, err := newHandler(a)
	require.NoError(t, err)
	return h, a
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func newsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v2/top-headlines", "/v2/everything":
		_, _ = w.Write([]byte(headlinesBody))
	case "/v2/top-headlines/sources":
		_, _ = w.Write([]byte(`{"status":"ok","sources":[
			{"id":"b","name":"Beta","category":"business","language":"en","country":"us"},
			{"id":"a","name":"Alpha","category":"Business","language":"en","country":"gb"},
			{"id":"c","name":"Gamma","category":"","language":"fr","country":"fr"}]}`))
	default:
		http.NotFound(w, r)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	rr := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestTopHeadlines_MapsAndCaches(t *testing.T) {
	t.Parallel()

	// Arrange
	news := newUpstream(t, newsHandler)
	h, _ := newTestHandler(t, news.server.URL, "http://127.0.0.1:1")

	// Act: the same request twice
	first := do(t, h, http.MethodGet, "/api/news/top-headlines?category=business", "")
	second := do(t, h, http.MethodGet, "/api/news/top-headlines?category=business", "")

	// Assert: one upstream call, mapped body
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	require.Equal(t, first.Body.String(), second.Body.String())
	require.EqualValues(t, 1, news.hits.Load())

	var page struct {
		Status   string `json:"status"`
		Articles []struct {
			Author   string `json:"author"`
			Category string `json:"category"`
		} `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &page))
	require.Equal(t, "success", page.Status)
	require.Len(t, page.Articles, 1)
	require.Equal(t, "Unknown", page.Articles[0].Author)
	require.Equal(t, "business", page.Articles[0].Category)
}

func TestSearch_RequiresQuery(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	rr := do(t, h, http.MethodGet, "/api/news/search", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSources_GroupedByCategory(t *testing.T) {
	t.Parallel()

	news := newUpstream(t, newsHandler)
	h, _ := newTestHandler(t, news.server.URL, "http://127.0.0.1:1")

	rr := do(t, h, http.MethodGet, "/api/news/sources?groupBy=category", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Groups []struct {
			Key     string `json:"key"`
			Sources []struct {
				Name string `json:"name"`
			} `json:"sources"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Groups, 2)
	// Sources without a category group under the empty key, sorted first.
	require.Equal(t, "", resp.Groups[0].Key)
	require.Equal(t, "business", resp.Groups[1].Key)
	require.Equal(t, "Alpha", resp.Groups[1].Sources[0].Name)
	require.Equal(t, "Beta", resp.Groups[1].Sources[1].Name)

	bad := do(t, h, http.MethodGet, "/api/news/sources?groupBy=planet", "")
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestUpstreamErrors_KeepStatusAndKind(t *testing.T) {
	t.Parallel()

	news := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	})
	finance := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":429,"message":"limit","status":"error"}`))
	})
	h, a := newTestHandler(t, news.server.URL, finance.server.URL)

	rr := do(t, h, http.MethodGet, "/api/news/top-headlines", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"kind":"unauthorized","status":401,"message":"Your API key is invalid."}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/finance/quote?symbol=AAPL", "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Both failures were surfaced as notices.
	require.Len(t, a.Notifications.Pending(), 2)
	rr = do(t, h, http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"code":"429"`)
}

func TestTransportFailure_Is502(t *testing.T) {
	t.Parallel()

	finance := newUpstream(t, func(http.ResponseWriter, *http.Request) {})
	finance.server.Close()
	h, _ := newTestHandler(t, "http://127.0.0.1:1", finance.server.URL)

	rr := do(t, h, http.MethodGet, "/api/finance/price?symbol=AAPL", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), `"kind":"no_response"`)
}

func TestFinance_QuoteAndMissingSymbol(t *testing.T) {
	t.Parallel()

	finance := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "fin-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(quoteBody))
	})
	h, _ := newTestHandler(t, "http://127.0.0.1:1", finance.server.URL)

	rr := do(t, h, http.MethodGet, "/api/finance/quote?symbol=AAPL", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Contains(t, rr.Body.String(), `"close":"1.8"`)

	rr = do(t, h, http.MethodGet, "/api/finance/quote", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/finance/quote?symbol=AAPL", "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestWatchlist_PartialFailure(t *testing.T) {
	t.Parallel()

	finance := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "MSFT" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(quoteBody))
	})
	h, _ := newTestHandler(t, "http://127.0.0.1:1", finance.server.URL)

	rr := do(t, h, http.MethodGet, "/api/finance/watchlist", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Quotes []struct {
			Symbol string `json:"symbol"`
		} `json:"quotes"`
		Errors []struct {
			Target string `json:"target"`
			Kind   string `json:"kind"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Quotes, 1)
	require.Equal(t, "AAPL", resp.Quotes[0].Symbol)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "not_found", resp.Errors[0].Kind)
}

func TestHome_AllFailedIs502(t *testing.T) {
	t.Parallel()

	news := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	h, _ := newTestHandler(t, news.server.URL, "http://127.0.0.1:1")

	rr := do(t, h, http.MethodGet, "/api/home", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), "upstream_unavailable")
}

func TestHome_Assembles(t *testing.T) {
	t.Parallel()

	news := newUpstream(t, newsHandler)
	h, _ := newTestHandler(t, news.server.URL, "http://127.0.0.1:1")

	rr := do(t, h, http.MethodGet, "/api/home", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Carousel []json.RawMessage `json:"carousel"`
		Sections []struct {
			Category string `json:"category"`
		} `json:"sections"`
		Errors []json.RawMessage `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Carousel, 1)
	require.Len(t, resp.Sections, 5)
	require.Equal(t, "politics", resp.Sections[0].Category)
	require.Empty(t, resp.Errors)
}

func TestLikes_ToggleAndList(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
	article := `{"url":"https://x/1","title":"T","category":"business","published_at":"2024-06-01T10:00:00Z"}`

	// Like
	rr := do(t, h, http.MethodPost, "/api/likes", article)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"liked":true,"count":1}`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/likes", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Count      int `json:"count"`
		ByCategory []struct {
			Category string `json:"category"`
			Count    int    `json:"count"`
		} `json:"by_category"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	require.Len(t, list.ByCategory, 1)
	require.Equal(t, "business", list.ByCategory[0].Category)

	// Unlike
	rr = do(t, h, http.MethodPost, "/api/likes", article)
	require.JSONEq(t, `{"liked":false,"count":0}`, rr.Body.String())

	// Invalid bodies
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/likes", `{"title":"no url"}`).Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/likes", `{`).Code)
	require.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/api/likes", "").Code)
}

func TestMiddleware_Gzip(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, "http://127.0.0.1:1", "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	require.Contains(t, rr.Header().Values("Vary"), "Accept-Encoding")
	zr, err := gzip.NewReader(rr.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok"}`, string(body))

	// Bodiless responses are not encoded.
	noContent := withGzip(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr = httptest.NewRecorder()
	noContent.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Header().Get("Content-Encoding"))
	require.Zero(t, rr.Body.Len())
}

func TestMiddleware_CORSAllowList(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, "http://127.0.0.1:1", "http://127.0.0.1:1", func(cfg *config.Config) {
		cfg.Server.CORSOrigins = []string{"https://app.example.test"}
	})

	for origin, want := range map[string]string{
		"https://app.example.test":  "https://app.example.test",
		"https://evil.example.test": "",
	} {
		req := httptest.NewRequest(http.MethodOptions, "/api/home", nil)
		req.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Equal(t, want, rr.Header().Get("Access-Control-Allow-Origin"), origin)
	}
}

func TestMiddleware_BodyLimit(t *testing.T) {
	t.Parallel()

	h, _ := newTestHandler(t, "http://127.0.0.1:1", "http://127.0.0.1:1", func(cfg *config.Config) {
		cfg.Server.MaxBodyBytes = 32
	})

	body := `{"url":"https://x/1","title":"` + strings.Repeat("a", 64) + `"}`
	rr := do(t, h, http.MethodPost, "/api/likes", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestRecoverPanic(t *testing.T) {
	t.Parallel()

	h := recoverPanic(logging.Discard(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
