// Package cache holds raw upstream responses for a bounded age.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"
)

// Default policy for cached GET requests.
const (
	DefaultTTL     = time.Hour
	DefaultEnabled = true
)

// ErrInvalidValue reports a Set of bytes that are not a JSON document.
var ErrInvalidValue = errors.New("cache value is not valid JSON")

// Entry is a cached raw payload and the time it was stored, in epoch milliseconds.
type Entry struct {
	Value    json.RawMessage `json:"value"`
	StoredAt int64           `json:"storedAt"`
}

// Key returns the cache key of a request: path, "?", and the query encoded with
// keys sorted. Empty values are dropped first, so an unset parameter and an
// empty one produce the same key.
func Key(path string, params url.Values) string {
	clean := make(url.Values, len(params))
	for k, vs := range params {
		for _, v := range vs {
			if v != "" {
				clean[k] = append(clean[k], v)
			}
		}
	}
	return path + "?" + clean.Encode()
}

// Cache is a key/value store with age-bounded reads. Expired entries are never
// purged, only treated as misses; a later Set overwrites them. Every Set is
// written through to the Store.
type Cache struct {
	mu    sync.RWMutex
	items map[string]Entry

	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns an empty cache without persistence.
func New(opts ...Option) *Cache {
	c := &Cache{
		items:  map[string]Entry{},
		store:  NewMemoryStore(),
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open returns a cache primed from store. Data that cannot be loaded is
// discarded: the store is reset and the cache starts empty.
func Open(ctx context.Context, store Store, opts ...Option) *Cache {
	c := New(opts...)
	c.store = store

	items, err := store.Load(ctx)
	if err != nil {
		c.logger.Warn("discarding persisted cache", "error", err)
		if rerr := store.Reset(ctx); rerr != nil {
			c.logger.Error("resetting persisted cache", "error", rerr)
		}
		return c
	}
	if items != nil {
		c.items = items
	}
	c.logger.Debug("cache loaded", "entries", len(c.items))
	return c
}

// Get returns a copy of the value stored under key if it is younger than maxAge.
func (c *Cache) Get(key string, maxAge time.Duration) (json.RawMessage, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().UnixMilli()-e.StoredAt >= maxAge.Milliseconds() {
		return nil, false
	}
	return append(json.RawMessage(nil), e.Value...), true
}

// Set overwrites key with value stamped with the current time, then persists
// it. Values that are not valid JSON are rejected with ErrInvalidValue. The
// in-memory entry stays set when persisting fails.
func (c *Cache) Set(ctx context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("setting %q: %w", key, ErrInvalidValue)
	}
	v := make(json.RawMessage, len(value))
	copy(v, value)

	c.mu.Lock()
	storedAt := c.now().UnixMilli()
	if prev, ok := c.items[key]; ok && prev.StoredAt > storedAt {
		storedAt = prev.StoredAt
	}
	e := Entry{Value: v, StoredAt: storedAt}
	c.items[key] = e
	c.mu.Unlock()

	if err := c.store.Put(ctx, key, e); err != nil {
		c.logger.Warn("persisting cache entry", "key", key, "error", err)
		return err
	}
	return nil
}

// Reset drops every entry, in memory and in the store.
func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.items = map[string]Entry{}
	c.mu.Unlock()
	return c.store.Reset(ctx)
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns every key in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Entry returns a copy of the entry stored under key regardless of its age.
func (c *Cache) Entry(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[key]
	if ok {
		e.Value = append(json.RawMessage(nil), e.Value...)
	}
	return e, ok
}
