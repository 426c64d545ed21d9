package rate

import (
	"context"
	"time"
)

// Limiter admits at most a fixed number of attempts per key within a window.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
