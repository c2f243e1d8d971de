package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"content-planner/internal/adapters/repo"
	"content-planner/internal/domain"
	"content-planner/internal/infra/cache"
	"content-planner/internal/infra/config"
	"content-planner/internal/infra/db"
	logpkg "content-planner/internal/infra/log"
	openai "content-planner/internal/infra/openai"
	"content-planner/internal/infra/queue"
	"content-planner/internal/usecase/companies"
	"content-planner/internal/usecase/generation"
	"content-planner/internal/usecase/posts"
)

// Store объединяет порты хранилища.
type Store interface {
	domain.CompanyRepo
	domain.PendingPostRepo
	domain.HistoryRepo
}

// App собранные зависимости процесса.
type App struct {
	Store      Store
	Queue      domain.GenerationQueue
	Generation *generation.Service
	Companies  *companies.Service
	Review     *posts.Service

	closers []func()
}

// New собирает хранилище, блокировку, очередь и сервисы по конфигу.
func New(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*App, error) {
	a := &App{}
	var events domain.BusinessMetricRepo

	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		store, err := repo.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.Store = store
	default:
		pool, err := db.Connect(ctx, cfg.Store.PGDSN, logpkg.Component(logger, "db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		pg := repo.NewPostgres(pool)
		a.Store = pg
		events = pg
	}

	var lock domain.GenerationLock = cache.NopLock{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		lock = cache.NewRedis(client)
		a.Queue = queue.NewRedisGenerationQueue(client, cfg.Queue.Name)
	}
	if cfg.Queue.AMQPURL != "" {
		rabbit, err := queue.NewRabbitGenerationQueue(cfg.Queue.AMQPURL, cfg.Queue.Name)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rabbit.Close() })
		a.Queue = rabbit
	}

	client := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout, openai.WithRateLimit(cfg.LLM.RPS))
	opts := []generation.Option{generation.WithLock(lock)}
	if events != nil {
		opts = append(opts, generation.WithBusinessMetrics(events))
	}
	a.Generation = generation.NewService(a.Store, a.Store, a.Store, client, generation.Config{
		Model:        cfg.LLM.Model,
		Temperature:  cfg.LLM.Temperature,
		JSONMode:     cfg.LLM.JSONMode,
		MaxTokens:    cfg.LLM.MaxTokens,
		HistoryLimit: cfg.Generation.HistoryLimit,
		LockTTL:      cfg.Generation.LockTTL,
		Country:      cfg.Generation.Country,
		Location:     cfg.Location(),
	}, logpkg.Component(logger, "generation"), opts...)
	a.Companies = companies.NewService(a.Store)
	a.Review = posts.NewService(a.Store, a.Store, a.Store, cfg.Location(), logpkg.Component(logger, "posts"))
	return a, nil
}

// ErrNoQueue очередь задач не настроена.
var ErrNoQueue = errors.New("generation queue is not configured: set REDIS_ADDR or AMQP_URL")

// RequireQueue возвращает очередь или ErrNoQueue.
func (a *App) RequireQueue() (domain.GenerationQueue, error) {
	if a.Queue == nil {
		return nil, ErrNoQueue
	}
	return a.Queue, nil
}

// Close освобождает ресурсы в обратном порядке.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
