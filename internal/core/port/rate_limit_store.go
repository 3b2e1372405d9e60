package port

import (
	"context"
	"time"
)

// RateLimitStore provides a sliding window attempt counter keyed by an
// opaque scope string.
type RateLimitStore interface {
	CountAttempts(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
	RecordAttempt(ctx context.Context, key string, now time.Time) error
	TrimWindow(ctx context.Context, key string, window time.Duration, now time.Time) error
	OldestAttempt(ctx context.Context, key string, window time.Duration, now time.Time) (time.Time, bool, error)
}
