package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"content-planner/internal/domain"
	"content-planner/internal/infra/metrics"
)

// RedisLists команды списков Redis, которыми пользуется очередь. *redis.Client подходит.
type RedisLists interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
}

// RedisGenerationQueue реализует очередь задач на базе Redis lists.
//
// Взятая задача перекладывается в список <key>:processing и лежит там до
// подтверждения, поэтому падение воркера посреди генерации её не теряет:
// RestoreInFlight при следующем старте возвращает такие задачи в очередь.
// Доставка не реже одного раза, повтор гасит проверка уже сгенерированной недели.
type RedisGenerationQueue struct {
	client     RedisLists
	key        string
	processing string
}

var _ domain.GenerationQueue = (*RedisGenerationQueue)(nil)

// NewRedisGenerationQueue создаёт очередь по указанному ключу.
func NewRedisGenerationQueue(client RedisLists, key string) *RedisGenerationQueue {
	return &RedisGenerationQueue{client: client, key: key, processing: key + ":processing"}
}

// Enqueue публикует задачу в очередь.
func (q *RedisGenerationQueue) Enqueue(ctx context.Context, job domain.GenerationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "lpush", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди. Положительное подтверждение
// убирает её из списка обработки, отрицательное возвращает в конец очереди.
func (q *RedisGenerationQueue) Receive(ctx context.Context) (domain.GenerationJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.GenerationJob{}, nil, err
		}

		raw, err := q.client.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.GenerationJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.GenerationJob{}, nil, err
		}
		var job domain.GenerationJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// Битая задача не вернётся в очередь.
			_ = q.client.LRem(context.Background(), q.processing, 1, raw).Err()
			return domain.GenerationJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			ctx := context.Background()
			if !success {
				if err := q.client.LPush(ctx, q.key, raw).Err(); err != nil {
					return fmt.Errorf("requeue job: %w", err)
				}
			}
			if err := q.client.LRem(ctx, q.processing, 1, raw).Err(); err != nil {
				return fmt.Errorf("release job: %w", err)
			}
			return nil
		}
		return job, ack, nil
	}
}

// RestoreInFlight возвращает в очередь задачи, оставшиеся в списке обработки.
// Вызывается при старте воркера; самые старые задачи будут прочитаны первыми.
func (q *RedisGenerationQueue) RestoreInFlight(ctx context.Context) (int, error) {
	restored := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.key, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return restored, nil
		}
		if err != nil {
			return restored, fmt.Errorf("restore in-flight jobs: %w", err)
		}
		restored++
	}
}
