// Package notify keeps the user-facing queue of error notices.
package notify

import (
	"sync"
	"time"
)

// DefaultLifetime is how long a notice stays at the head of the queue.
const DefaultLifetime = 5 * time.Second

// Notice is one queued error message.
type Notice struct {
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	AddedAt   time.Time `json:"added_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Queue is an ordered, de-duplicated queue of notices. Notices are shown one
// after another: each one expires a lifetime after the previous one did, so a
// burst of distinct errors drains in arrival order. A code already queued is
// ignored until its notice expires.
type Queue struct {
	mu       sync.Mutex
	lifetime time.Duration
	now      func() time.Time
	items    []Notice
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// NewQueue returns an empty queue. A non-positive lifetime uses DefaultLifetime.
func NewQueue(lifetime time.Duration, opts ...Option) *Queue {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	q := &Queue{lifetime: lifetime, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Notify queues a notice unless one with the same code is still pending.
func (q *Queue) Notify(message, code string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.pruneLocked(now)
	for _, n := range q.items {
		if n.Code == code {
			return
		}
	}

	start := now
	if l := len(q.items); l > 0 && q.items[l-1].ExpiresAt.After(start) {
		start = q.items[l-1].ExpiresAt
	}
	q.items = append(q.items, Notice{
		Message:   message,
		Code:      code,
		AddedAt:   now,
		ExpiresAt: start.Add(q.lifetime),
	})
}

// Pending returns the notices that have not expired yet, oldest first.
func (q *Queue) Pending() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pruneLocked(q.now())
	out := make([]Notice, len(q.items))
	copy(out, q.items)
	return out
}

// Current returns the notice at the head of the queue.
func (q *Queue) Current() (Notice, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pruneLocked(q.now())
	if len(q.items) == 0 {
		return Notice{}, false
	}
	return q.items[0], true
}

// Clear drops every notice.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

func (q *Queue) pruneLocked(now time.Time) {
	i := 0
	for i < len(q.items) && !now.Before(q.items[i].ExpiresAt) {
		i++
	}
	if i > 0 {
		q.items = append(q.items[:0], q.items[i:]...)
	}
}
