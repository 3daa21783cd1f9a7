package bifrost

import (
	"context"
	"time"

	"github.com/aadithya-v/bifrost/store"
)

// RateLimiter is a best-effort sliding-window limiter over a RateStore.
// A nil limiter or nil store allows everything.
type RateLimiter struct {
	store  store.RateStore
	limit  int
	window time.Duration
}

// NewRateLimiter allows at most limit hits per key inside window.
func NewRateLimiter(s store.RateStore, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{store: s, limit: limit, window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
// When the store fails the hit is allowed and the error returned, so the
// caller can log it without turning a counter outage into a lockout.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.store == nil || l.limit < 0 {
		return true, nil
	}

	count, err := l.store.Record(ctx, key, l.window)
	if err != nil {
		return true, err
	}
	return count <= l.limit, nil
}

// Window returns the sliding window, used for Retry-After.
func (l *RateLimiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.window
}

// Close releases the underlying store.
func (l *RateLimiter) Close() error {
	if l == nil || l.store == nil {
		return nil
	}
	return l.store.Close()
}
