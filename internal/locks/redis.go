package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// leaseTTL bounds how long a redis-backed lock can be held before it
// self-expires, so a crashed holder never wedges a key forever.
const leaseTTL = 10 * time.Second

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker acquires a key-scoped lock lease in Redis via SET NX PX,
// the distributed counterpart to KeyedMutex for multi-instance deployments
// where an in-process mutex can't serialize across servers.
type RedisLocker struct {
	client *redis.Client
	prefix string
	poll   time.Duration
}

// NewRedisLocker builds a RedisLocker whose keys are namespaced under
// prefix (e.g. "lock:nozzle:") so the five serialization domains never
// collide in the shared keyspace.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix, poll: 25 * time.Millisecond}
}

// Lock blocks, polling at a fixed interval, until the lease is acquired or
// ctx is cancelled. The returned unlock releases the lease only if it is
// still held by this acquisition's token, so a lease that already expired
// and was re-acquired by someone else is never released out from under them.
func (r *RedisLocker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	token := uuid.NewString()
	redisKey := r.prefix + key

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, leaseTTL).Result()
		if err != nil {
			return func() {}, fmt.Errorf("locks: redis setnx %s: %w", redisKey, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-ticker.C:
		}
	}
}
