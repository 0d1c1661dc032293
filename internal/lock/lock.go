// Package lock provides a Redis-backed mutual-exclusion lock used to
// serialize seat-map writers of one show across server instances.
package lock

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock stays busy for the whole wait.
var ErrNotAcquired = errors.New("lock: not acquired")

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Redis is a SET NX PX lock.  The TTL bounds how long a crashed holder can
// block others; the database version check stays the source of truth, so a
// lock lost to expiry can cause a retry but never a double booking.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewRedis returns a lock manager.  ttl is the lease of one acquisition and
// wait the longest Acquire blocks before giving up.
func NewRedis(rdb *redis.Client, prefix string, ttl, wait time.Duration) *Redis {
	if prefix == "" {
		prefix = "lock"
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if wait < 0 {
		wait = 0
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl, wait: wait, poll: 25 * time.Millisecond}
}

// Acquire takes the lock for key.  When Redis itself is unreachable the
// error is logged and a no-op lock is returned: writers then rely on the
// version check alone.
func (l *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	full := l.prefix + ":" + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("lock: redis unavailable for %s, continuing unlocked: %v", full, err)
			return func() {}, nil
		}
		if ok {
			return func() { l.release(full, token) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrNotAcquired
		}
		t := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
		log.Printf("lock: release %s: %v", key, err)
	}
}

// Noop never blocks.  It is used when Redis is not configured.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(), error) { return func() {}, nil }
