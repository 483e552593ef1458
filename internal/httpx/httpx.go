// Package httpx is the shared request pipeline for upstream REST providers:
// cache lookup, rate limiting, the network call, classification of failures
// and write-back of successful bodies.
package httpx

import (
	"net"
	"net/http"
	"time"
)

// DefaultUserAgent is sent when neither the client nor the call sets one.
const DefaultUserAgent = "briefboard/1.0"

// Doer performs HTTP requests.
//
//go:generate mockgen -package=httpx_test -destination=mock_doer_test.go -source=httpx.go Doer
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns an http.Client with pooled keep-alive connections and
// tight dial and handshake timeouts. timeout bounds the whole exchange.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
