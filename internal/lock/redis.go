package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bryan-buckman/feedrewrite/internal/logger"
)

const (
	// DefaultTTL bounds how long a crashed runner can keep the lock.
	DefaultTTL = 15 * time.Minute

	keyPrefix = "feedrewrite:lock:"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis is a Locker shared by every runner using the same Redis instance.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    logger.Logger
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client redis.UniversalClient, ttl time.Duration, log logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Redis{client: client, ttl: ttl, log: log}
}

// Acquire sets the lock key with a random token if it is not already set.
// Release deletes the key only while it still holds that token.
func (r *Redis) Acquire(ctx context.Context, name string) (func(), error) {
	key := keyPrefix + name
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
			if err != nil {
				r.log.Warn("Failed to release run lock", logger.String("name", name), logger.Error(err))
				return
			}
			if n == 0 {
				r.log.Warn("Run lock expired before release", logger.String("name", name))
			}
		})
	}, nil
}
