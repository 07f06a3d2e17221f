package ratelimit

import (
	"context"
	"fmt"
	"time"

	"recordproof/internal/domain"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "recordproof:quota:"

// admitScript spends one unit of the caller's budget if any is left. Denied
// requests do not extend or consume the window. It replies
// {admitted, used, ttl_ms}.
var admitScript = redis.NewScript(`
local used = tonumber(redis.call("GET", KEYS[1]) or "0")
if used >= tonumber(ARGV[1]) then
  return {0, used, redis.call("PTTL", KEYS[1])}
end
used = redis.call("INCR", KEYS[1])
if used == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {1, used, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter shares fixed windows between daemon replicas.
type RedisLimiter struct {
	client redis.UniversalClient
	clock  func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, clock: now}
}

func (r *RedisLimiter) Admit(ctx context.Context, caller string, quota domain.Quota) (domain.Admission, error) {
	if quota.Unlimited() {
		return domain.Unrestricted(), nil
	}
	windowMillis := quota.Window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	reply, err := admitScript.Run(ctx, r.client, []string{redisKeyPrefix + caller}, quota.Limit, windowMillis).Result()
	if err != nil {
		return domain.Admission{}, err
	}
	admission, err := parseAdmitReply(reply, quota.Limit, r.clock())
	if err != nil {
		return domain.Admission{}, err
	}
	return admission, nil
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

func parseAdmitReply(reply any, limit int, now time.Time) (domain.Admission, error) {
	values, ok := reply.([]any)
	if !ok || len(values) != 3 {
		return domain.Admission{}, fmt.Errorf("unexpected quota reply %v", reply)
	}
	var fields [3]int64
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return domain.Admission{}, fmt.Errorf("quota reply field %d is %T", i, v)
		}
		fields[i] = n
	}
	admitted, used, ttlMillis := fields[0] == 1, int(fields[1]), fields[2]

	admission := domain.Admission{
		Admitted:  admitted,
		Limit:     limit,
		Remaining: max(limit-used, 0),
	}
	if ttlMillis > 0 {
		admission.ResetAt = now.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	return admission, nil
}
