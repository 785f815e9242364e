package ratelimit

import (
	"sync"
	"time"

	"check-orchestrator/core/models"
)

// bucket is one token bucket. Refill is computed lazily from elapsed time
// on each access, so no background timer is needed.
type bucket struct {
	capacity   float64
	tokens     float64
	perSecond  float64
	lastRefill time.Time
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.perSecond
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Limiter enforces a per-category token budget
type Limiter struct {
	mu      sync.Mutex
	buckets map[models.Category]*bucket
	now     func() time.Time
}

// Budget configures one category's bucket
type Budget struct {
	Capacity  int
	PerMinute int
}

// New creates a limiter with one bucket per configured category.
// Buckets start full.
func New(budgets map[models.Category]Budget) *Limiter {
	l := &Limiter{
		buckets: make(map[models.Category]*bucket, len(budgets)),
		now:     time.Now,
	}
	start := time.Now()
	for cat, b := range budgets {
		l.buckets[cat] = &bucket{
			capacity:   float64(b.Capacity),
			tokens:     float64(b.Capacity),
			perSecond:  float64(b.PerMinute) / 60.0,
			lastRefill: start,
		}
	}
	return l
}

// TryConsume takes one token from the category's bucket. It returns false
// without blocking when the budget is exhausted; tokens never go negative.
func (l *Limiter) TryConsume(cat models.Category) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[cat]
	if !ok {
		return false
	}
	b.refill(l.now())
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tokens returns the current token count for a category
func (l *Limiter) Tokens(cat models.Category) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[cat]
	if !ok {
		return 0
	}
	b.refill(l.now())
	return b.tokens
}
