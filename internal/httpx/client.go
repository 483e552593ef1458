package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"briefboard/internal/apierr"
	"briefboard/internal/cache"
	"briefboard/internal/ratelimit"
)

// maxBodyBytes caps how much of an upstream body is read.
const maxBodyBytes = 16 << 20

// Request describes one GET against the client's base URL.
type Request struct {
	Path   string
	Params url.Values
	Header http.Header
}

// Client performs authenticated GETs against one provider.
type Client struct {
	// baseURL is prefixed to every request path.
	baseURL string
	// httpClient performs the network call.
	httpClient Doer
	// header is sent with every request; call headers override it.
	header http.Header
	// query is sent with every request but never part of the cache key.
	query url.Values

	userAgent  string
	cache      *cache.Cache
	classifier *apierr.Classifier
	check      apierr.PayloadCheck
	limiter    ratelimit.Limiter
	logger     *slog.Logger

	coalesce bool
	group    singleflight.Group
}

// Option is a configuration option for a Client.
type Option func(*Client)

// WithHTTPClient sets the client performing the network call.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.httpClient = d
		}
	}
}

// WithHeader adds headers sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithQuery adds query parameters sent with each request, such as credentials.
// They are not part of the cache key.
func WithQuery(query url.Values) Option {
	return func(c *Client) {
		for key, values := range query {
			for _, value := range values {
				c.query.Add(key, value)
			}
		}
	}
}

// WithCache enables response caching through cc.
func WithCache(cc *cache.Cache) Option {
	return func(c *Client) { c.cache = cc }
}

// WithClassifier sets the classifier that builds and reports errors.
func WithClassifier(cl *apierr.Classifier) Option {
	return func(c *Client) {
		if cl != nil {
			c.classifier = cl
		}
	}
}

// WithPayloadCheck sets the provider-specific check run over 2xx bodies.
func WithPayloadCheck(check apierr.PayloadCheck) Option {
	return func(c *Client) { c.check = check }
}

// WithLimiter gates every network call through l. Cache hits are not gated.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithCoalescing makes concurrent misses on the same key share one network call.
// The shared call is detached from any single caller's cancellation and is
// bounded by the transport timeout; each caller still returns early when its
// own context ends.
func WithCoalescing(on bool) Option {
	return func(c *Client) { c.coalesce = on }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the provider rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
		userAgent:  DefaultUserAgent,
		classifier: apierr.NewClassifier(nil),
		check:      validJSON,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache returns the client's cache, or nil when caching is off.
func (c *Client) Cache() *cache.Cache { return c.cache }

type fetchConfig struct {
	ttl      time.Duration
	useCache bool
	header   http.Header
}

// FetchOption adjusts a single Fetch.
type FetchOption func(*fetchConfig)

// WithCacheTTL sets the maximum age of a cached body this call accepts.
func WithCacheTTL(d time.Duration) FetchOption {
	return func(f *fetchConfig) { f.ttl = d }
}

// WithoutCache bypasses the cache for both the read and the write.
func WithoutCache() FetchOption {
	return func(f *fetchConfig) { f.useCache = false }
}

// WithRequestHeader sets a header for this call only. It overrides the
// client's header of the same name.
func WithRequestHeader(key, value string) FetchOption {
	return func(f *fetchConfig) { f.header.Set(key, value) }
}

// Fetch returns the raw JSON body for req, from the cache when a fresh entry
// exists and from the network otherwise. Failures are *apierr.Error values
// and are never cached.
func (c *Client) Fetch(ctx context.Context, req Request, opts ...FetchOption) (json.RawMessage, error) {
	fc := fetchConfig{ttl: cache.DefaultTTL, useCache: cache.DefaultEnabled, header: http.Header{}}
	for _, opt := range opts {
		opt(&fc)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			fc.header.Add(k, v)
		}
	}
	useCache := fc.useCache && c.cache != nil

	key := cache.Key(req.Path, req.Params)
	if useCache {
		if v, ok := c.cache.Get(key, fc.ttl); ok {
			c.logger.Debug("cache hit", "key", key)
			return v, nil
		}
	}

	if !c.coalesce {
		return c.fetchNetwork(ctx, key, req, fc, useCache)
	}
	flight := c.group.DoChan(key, func() (any, error) {
		return c.fetchNetwork(context.WithoutCancel(ctx), key, req, fc, useCache)
	})
	select {
	case <-ctx.Done():
		return nil, c.classifier.NoResponse(ctx.Err())
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		body := res.Val.(json.RawMessage)
		if res.Shared {
			body = append(json.RawMessage(nil), body...)
		}
		return body, nil
	}
}

func (c *Client) fetchNetwork(ctx context.Context, key string, req Request, fc fetchConfig, useCache bool) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.classifier.NoResponse(err)
		}
	}

	httpReq, err := c.newRequest(ctx, req, fc.header)
	if err != nil {
		return nil, c.classifier.Setup(fmt.Errorf("creating request: %w", err))
	}

	start := time.Now()
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Op == "parse" {
			return nil, c.classifier.Setup(fmt.Errorf("performing request: %w", err))
		}
		return nil, c.classifier.NoResponse(fmt.Errorf("performing request: %w", err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, c.classifier.NoResponse(fmt.Errorf("reading response: %w", err))
	}
	c.logger.Debug("upstream response", "path", req.Path, "status", res.StatusCode, "elapsed", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, c.classifier.Status(res.StatusCode, apierr.MessageFromBody(body))
	}
	if perr := c.classifier.Payload(c.check, body); perr != nil {
		return nil, perr
	}

	raw := json.RawMessage(body)
	if useCache {
		// The body is returned even when it cannot be cached.
		if err := c.cache.Set(ctx, key, raw); err != nil {
			c.logger.Warn("caching response", "key", key, "error", err)
		}
	}
	return raw, nil
}

func (c *Client) newRequest(ctx context.Context, req Request, header http.Header) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + req.Path)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid request url %q", u.String())
	}

	query := maps.Clone(c.query)
	if query == nil {
		query = url.Values{}
	}
	for k, vs := range req.Params {
		for _, v := range vs {
			if v != "" {
				query.Add(k, v)
			}
		}
	}
	u.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	httpReq.Header = c.header.Clone()
	for k, vs := range header {
		httpReq.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}
	httpReq.Header.Set("Accept", "application/json")
	if httpReq.Header.Get("User-Agent") == "" && c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	return httpReq, nil
}

// Get fetches req and decodes the body into T.
func Get[T any](ctx context.Context, c *Client, req Request, opts ...FetchOption) (T, error) {
	var out T
	raw, err := c.Fetch(ctx, req, opts...)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding %s response: %w", req.Path, err)
	}
	return out, nil
}

func validJSON(body []byte) (*apierr.Failure, error) {
	if !json.Valid(body) {
		return nil, errors.New("response body is not valid JSON")
	}
	return nil, nil
}
