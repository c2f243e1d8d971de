package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"content-planner/internal/adapters/httpapi"
	"content-planner/internal/app"
	"content-planner/internal/infra/config"
	httpinfra "content-planner/internal/infra/http"
	logpkg "content-planner/internal/infra/log"
	"content-planner/internal/infra/metrics"
)

func main() {
	cfg := config.Load()
	logger := logpkg.NewLogger(cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("api: некорректная конфигурация")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось собрать зависимости")
	}
	defer deps.Close()

	opts := []httpapi.Option{httpapi.WithLogger(logpkg.Component(logger, "httpapi"))}
	if deps.Queue != nil {
		opts = append(opts, httpapi.WithQueue(deps.Queue))
	}
	api := httpapi.NewServer(deps.Generation, deps.Companies, deps.Review, opts...)

	// Таймаут запроса с запасом покрывает вызов модели.
	requestTimeout := cfg.LLM.Timeout + 30*time.Second
	srv := httpinfra.NewServer(logpkg.Component(logger, "http"), requestTimeout)
	api.Register(srv.Router)

	metrics.StartServer(ctx, logpkg.Component(logger, "metrics"), cfg.MetricsAddr)
	go func() {
		if err := srv.Start(":"+strconv.Itoa(cfg.Port), requestTimeout+10*time.Second); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
