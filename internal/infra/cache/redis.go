package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"content-planner/internal/domain"
	"content-planner/internal/infra/metrics"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock реализует domain.GenerationLock через SET NX.
type RedisLock struct {
	client *redis.Client
	prefix string
}

var _ domain.GenerationLock = (*RedisLock)(nil)

// NewRedis создаёт блокировку генерации.
func NewRedis(client *redis.Client) *RedisLock {
	return &RedisLock{client: client, prefix: "generation:lock:"}
}

// TryLock пытается занять ключ на ttl.
func (l *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	start := time.Now()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	metrics.ObserveNetworkRequest("redis", "lock_acquire", "generation_lock", start, err)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Контекст запроса к этому моменту может быть отменён.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		start := time.Now()
		err := releaseScript.Run(releaseCtx, l.client, []string{l.prefix + key}, token).Err()
		metrics.ObserveNetworkRequest("redis", "lock_release", "generation_lock", start, err)
	}
	return release, true, nil
}

// NopLock всегда выдаёт блокировку. Используется без Redis.
type NopLock struct{}

var _ domain.GenerationLock = NopLock{}

// TryLock реализует domain.GenerationLock.
func (NopLock) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
