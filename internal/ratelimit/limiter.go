package ratelimit

import "context"

// RateLimiter enforces the per-channel hourly send cap from settings. The
// limit is passed per call because settings can change between sends.
type RateLimiter interface {
	Allow(ctx context.Context, channel string, limit int64) (bool, error)
}
