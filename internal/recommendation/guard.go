package recommendation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/obimo/obimo-backend/internal/common/logger"
)

// GenerationGuard serializes generation runs per user across API instances.
// Acquire returns ErrGenerationInProgress when another run holds the user.
type GenerationGuard interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

const generationLockPrefix = "obimo:generation:"

// Deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisGuard struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisGuard(client redis.Cmdable, ttl time.Duration, log *logger.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{client: client, ttl: ttl, logger: log}
}

func (g *RedisGuard) Acquire(ctx context.Context, userID string) (func(), error) {
	key := generationLockPrefix + userID
	token := uuid.New().String()

	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire generation lock: %w", err)
	}
	if !ok {
		return nil, ErrGenerationInProgress
	}

	return func() { g.release(key, token) }, nil
}

// release runs on a fresh context since the request context may already be cancelled.
// A failed release leaves the lock to expire by TTL.
func (g *RedisGuard) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, g.client, []string{key}, token).Err(); err != nil {
		g.logger.Warn("failed to release generation lock", "key", key, "ttl", g.ttl, "error", err)
	}
}

type noopGuard struct{}

// NewNoopGuard returns a guard that never blocks, for deployments without Redis
func NewNoopGuard() GenerationGuard {
	return noopGuard{}
}

func (noopGuard) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
