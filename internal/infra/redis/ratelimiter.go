package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campushq/messaging/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const windowSeconds = 3600

var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*HourlyRateLimiter)(nil)

// HourlyRateLimiter is a fixed-window per-channel hourly counter backed by
// Redis, shared across service replicas.
type HourlyRateLimiter struct {
	client *goredis.Client
	now    func() time.Time
	script *goredis.Script
}

func NewHourlyRateLimiter(client *goredis.Client) (*HourlyRateLimiter, error) {
	return newHourlyRateLimiter(client, time.Now)
}

func newHourlyRateLimiter(client *goredis.Client, nowFn func() time.Time) (*HourlyRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &HourlyRateLimiter{
		client: client,
		now:    nowFn,
		script: allowScript,
	}, nil
}

// Allow reports whether another send fits in the current hour window. A
// non-positive limit means the channel is uncapped.
func (r *HourlyRateLimiter) Allow(ctx context.Context, channel string, limit int64) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}
	if limit <= 0 {
		return true, nil
	}

	normalizedChannel := strings.ToLower(strings.TrimSpace(channel))
	if normalizedChannel == "" {
		return false, fmt.Errorf("channel is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	hourBucket := r.now().UTC().Truncate(time.Hour).Unix()
	key := fmt.Sprintf("msgrate:%s:%d", normalizedChannel, hourBucket)
	result, err := r.script.Run(ctx, r.client, []string{key}, limit, windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit: %w", err)
	}

	return result == 1, nil
}
