package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"content-planner/internal/app"
	"content-planner/internal/infra/config"
	logpkg "content-planner/internal/infra/log"
	"content-planner/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("worker: некорректная конфигурация")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: не удалось собрать зависимости")
	}
	defer deps.Close()

	queue, err := deps.RequireQueue()
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет очереди")
	}

	metrics.StartServer(ctx, logpkg.Component(logger, "metrics"), cfg.MetricsAddr)
	logger.Info().Str("queue", cfg.Queue.Name).Msg("worker: старт")
	if err := app.NewWorker(queue, deps.Generation, logpkg.Component(logger, "worker")).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: остановлен с ошибкой")
	}
	logger.Info().Msg("worker: остановка")
}
