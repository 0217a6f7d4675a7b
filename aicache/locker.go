package aicache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Locker hands out short leases so only one worker across processes computes
// a given cache key at a time.
type Locker interface {
	// TryAcquire returns acquired=false without error when someone else holds
	// the lease. release is only set when acquired.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// Only the owner token may delete the lease, an expired lease taken over by
// another worker must survive the late release of the previous owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "ai_cache_lock:"}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lockKey := l.prefix + key
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, "acquire ai cache lease")
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// The caller's ctx may already be done, release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		releaseScript.Run(releaseCtx, l.client, []string{lockKey}, token)
	}
	return release, true, nil
}

// localLocker is used when no Locker is configured, it always grants the
// lease and leaves exclusivity to singleflight and the unique index.
type localLocker struct{}

func (localLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
