package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Takes the lease when it is free or already ours, otherwise reports the
// current holder and its remaining time.
var acquireScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current or current == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return {1, ARGV[1], tonumber(ARGV[2])}
end
return {0, current, redis.call('PTTL', KEYS[1])}
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker keeps leases as expiring redis keys, for deployments running
// more than one instance against a shared database.
type RedisLocker struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, now: time.Now}
}

// NewRedisClient connects to redis:// or rediss:// URLs and checks the
// connection before returning.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func lockKey(matchID uuid.UUID) string {
	return "poolbracket:match-lock:" + matchID.String()
}

func (l *RedisLocker) Acquire(ctx context.Context, matchID uuid.UUID, holderID string, ttl time.Duration) (*Lease, error) {
	ttl = ttlOrDefault(ttl)

	res, err := acquireScript.Run(ctx, l.rdb, []string{lockKey(matchID)}, holderID, ttl.Milliseconds()).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire match lock: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("unexpected lock reply %v", res)
	}

	ok, _ := res[0].(int64)
	holder, _ := res[1].(string)
	remaining, _ := res[2].(int64)
	expiresAt := l.now().Add(time.Duration(remaining) * time.Millisecond)

	if ok != 1 {
		return nil, &HeldError{MatchID: matchID, HolderID: holder, ExpiresAt: expiresAt}
	}
	return &Lease{MatchID: matchID, HolderID: holder, ExpiresAt: expiresAt}, nil
}

func (l *RedisLocker) Release(ctx context.Context, matchID uuid.UUID, holderID string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{lockKey(matchID)}, holderID).Err(); err != nil {
		return fmt.Errorf("failed to release match lock: %w", err)
	}
	return nil
}
