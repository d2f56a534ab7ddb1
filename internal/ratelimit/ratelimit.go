// Package ratelimit throttles chat users with one token bucket per user.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerMinute = 10
	DefaultCleanupInterval   = 5 * time.Minute
)

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration

	// optional, defaults to time.Now
	Clock func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter grants each user a burst of RequestsPerMinute that refills
// evenly over a minute.
type Limiter struct {
	mu      sync.Mutex
	buckets map[int64]*bucket
	limit   int
	every   rate.Limit
	now     func() time.Time
	stop    context.CancelFunc
}

func New(cfg Config) *Limiter {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext starts the idle-bucket sweeper, which exits when ctx is
// done or Stop is called.
func NewWithContext(ctx context.Context, cfg Config) *Limiter {
	limit := cfg.RequestsPerMinute
	if limit <= 0 {
		limit = DefaultRequestsPerMinute
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(ctx)
	l := &Limiter{
		buckets: make(map[int64]*bucket),
		limit:   limit,
		every:   rate.Limit(float64(limit) / time.Minute.Seconds()),
		now:     now,
		stop:    cancel,
	}
	go l.cleanup(ctx, interval)
	return l
}

func (l *Limiter) Stop() {
	l.stop()
}

func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return l.get(userID, now).limiter.AllowN(now, 1)
}

func (l *Limiter) RemainingRequests(userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[userID]
	if !ok {
		return l.limit
	}
	if rem := int(math.Floor(b.limiter.TokensAt(l.now()))); rem > 0 {
		return rem
	}
	return 0
}

// ResetTime is when the user gets the next request back.
func (l *Limiter) ResetTime(userID int64) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[userID]
	if !ok {
		return now
	}
	tokens := b.limiter.TokensAt(now)
	if tokens >= 1 {
		return now
	}
	wait := time.Duration((1 - tokens) / float64(l.every) * float64(time.Second))
	return now.Add(wait)
}

// RetryAfter rounds the wait until ResetTime up to whole seconds.
func (l *Limiter) RetryAfter(userID int64) time.Duration {
	wait := l.ResetTime(userID).Sub(l.now())
	if wait <= 0 {
		return 0
	}
	if d := wait.Truncate(time.Second); d < wait {
		return d + time.Second
	}
	return wait
}

func (l *Limiter) get(userID int64, now time.Time) *bucket {
	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.every, l.limit)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b
}

func (l *Limiter) cleanup(ctx context.Context, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			l.removeIdle()
		}
	}
}

// removeIdle drops buckets that have refilled completely; a fresh bucket
// behaves the same.
func (l *Limiter) removeIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-time.Minute)
	for uid, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, uid)
		}
	}
}
