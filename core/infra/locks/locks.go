package locks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 30 * time.Second
	keyPrefix  = "docintake:lock:"
)

// ErrHeld means another owner holds the lock.
var ErrHeld = errors.New("lock held by another owner")

// Locker serializes edits to one resource across processes.
type Locker interface {
	// Acquire takes an exclusive lock and returns its release func.
	Acquire(ctx context.Context, resource string, ttl time.Duration) (func(context.Context) error, error)
}

// Noop grants every lock immediately.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// RedisLocker holds exclusive locks as keys with an owner token and expiry.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker uses an existing client; the caller keeps ownership of it.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, resource string, ttl time.Duration) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock store unavailable")
	}
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return nil, errors.New("resource required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(resource), owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", resource, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", resource, ErrHeld)
	}
	return func(ctx context.Context) error {
		return l.client.Eval(ctx, releaseScript, []string{lockKey(resource)}, owner).Err()
	}, nil
}

func lockKey(resource string) string {
	return keyPrefix + resource
}

// releaseScript deletes the key only while the caller still owns it.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`
