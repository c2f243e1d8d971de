package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// StoreDriverPostgres хранилище на Postgres.
	StoreDriverPostgres = "postgres"
	// StoreDriverSQLite встроенное хранилище на SQLite.
	StoreDriverSQLite = "sqlite"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"America/Sao_Paulo"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Store struct {
		Driver     string `envconfig:"STORE_DRIVER" default:"postgres"`
		PGDSN      string `envconfig:"PG_DSN"`
		SQLitePath string `envconfig:"SQLITE_PATH" default:"content-planner.db"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queue struct {
		AMQPURL string `envconfig:"AMQP_URL"`
		Name    string `envconfig:"GENERATION_QUEUE" default:"generation_jobs"`
	} `envconfig:""`

	LLM struct {
		BaseURL     string        `envconfig:"LLM_BASE_URL" default:"https://ai.gateway.lovable.dev/v1"`
		APIKey      string        `envconfig:"LLM_API_KEY"`
		Model       string        `envconfig:"LLM_MODEL" default:"google/gemini-2.5-flash"`
		Temperature float64       `envconfig:"LLM_TEMPERATURE" default:"0.8"`
		Timeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`
		RPS         float64       `envconfig:"LLM_RPS" default:"2"`
		// JSONMode передаёт response_format json_object. Поддерживают не все шлюзы.
		JSONMode  bool `envconfig:"LLM_JSON_MODE" default:"false"`
		MaxTokens int  `envconfig:"LLM_MAX_TOKENS" default:"0"`
	} `envconfig:""`

	Generation struct {
		HistoryLimit int           `envconfig:"HISTORY_LIMIT" default:"50"`
		LockTTL      time.Duration `envconfig:"GENERATION_LOCK_TTL" default:"5m"`
		Country      string        `envconfig:"SPECIAL_DATES_COUNTRY" default:"Brazil"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Validate проверяет, что конфигурации достаточно для генерации постов.
func (c AppConfig) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("LLM_API_KEY is not configured"))
	}
	if _, err := time.LoadLocation(c.TZ); err != nil {
		errs = append(errs, fmt.Errorf("TZ: %w", err))
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Store.PGDSN == "" {
			errs = append(errs, errors.New("PG_DSN is required for the postgres store"))
		}
	case StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.Store.Driver))
	}
	if c.Generation.HistoryLimit <= 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must be positive"))
	}
	return errors.Join(errs...)
}

// Location возвращает часовой пояс оператора, по которому считается следующая неделя.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
