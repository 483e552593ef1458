// Package ratelimit gates outbound calls so a provider quota is not exceeded.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter blocks until the next call may proceed or ctx is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Chain waits on every non-nil limiter in order.
type Chain []Limiter

func (c Chain) Wait(ctx context.Context) error {
	for _, l := range c {
		if l == nil {
			continue
		}
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// MinInterval enforces a minimum time between consecutive calls.
// Concurrent callers are spaced out one Interval apart.
type MinInterval struct {
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
	now  func() time.Time
}

// NewMinInterval returns a gate that lets one call through per interval.
func NewMinInterval(interval time.Duration) *MinInterval {
	return &MinInterval{Interval: interval, now: time.Now}
}

func (m *MinInterval) Wait(ctx context.Context) error {
	if m.Interval <= 0 {
		return ctx.Err()
	}
	m.mu.Lock()
	now := m.clock()
	slot := m.next
	if slot.Before(now) {
		slot = now
	}
	m.next = slot.Add(m.Interval)
	m.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *MinInterval) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}
