package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"content-planner/internal/domain"
	"content-planner/internal/infra/metrics"
	openai "content-planner/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config параметры генерации.
type Config struct {
	Model       string
	Temperature float64
	// JSONMode просит провайдера вернуть ровно один объект JSON.
	JSONMode bool
	// MaxTokens ограничивает длину ответа, ноль оставляет лимит провайдера.
	MaxTokens    int
	HistoryLimit int
	LockTTL      time.Duration
	Country      string
	// Location часовой пояс оператора, в котором считается следующая неделя.
	Location *time.Location
}

// Service реализует генерацию недельного набора постов.
type Service struct {
	companies domain.CompanyRepo
	posts     domain.PendingPostRepo
	history   domain.HistoryRepo
	client    chatClient
	lock      domain.GenerationLock
	events    domain.BusinessMetricRepo
	cfg       Config
	now       func() time.Time
	log       zerolog.Logger
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLock включает блокировку генерации на время работы конвейера.
func WithLock(lock domain.GenerationLock) Option {
	return func(s *Service) { s.lock = lock }
}

// WithBusinessMetrics включает запись бизнесовых событий.
func WithBusinessMetrics(repo domain.BusinessMetricRepo) Option {
	return func(s *Service) { s.events = repo }
}

// NewService создаёт сервис генерации.
func NewService(companies domain.CompanyRepo, posts domain.PendingPostRepo, history domain.HistoryRepo, client chatClient, cfg Config, logger zerolog.Logger, opts ...Option) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Service{
		companies: companies,
		posts:     posts,
		history:   history,
		client:    client,
		cfg:       cfg,
		now:       time.Now,
		log:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentWeek возвращает неделю, на которую сейчас будет выполняться генерация.
func (s *Service) CurrentWeek() domain.Week {
	return NextWeek(s.now().In(s.cfg.Location))
}

// Generate выполняет полный цикл генерации для компании.
func (s *Service) Generate(ctx context.Context, companyID uuid.UUID) (domain.GenerationResult, error) {
	start := time.Now()
	result, dropped, err := s.generate(ctx, companyID)
	metrics.ObserveGeneration(resultLabel(err), start, result.PostsCount, dropped)
	return result, err
}

func (s *Service) generate(ctx context.Context, companyID uuid.UUID) (domain.GenerationResult, int, error) {
	logger := s.log.With().Str("company_id", companyID.String()).Logger()

	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return domain.GenerationResult{}, 0, fmt.Errorf("получение компании: %w", err)
	}

	now := s.now().In(s.cfg.Location)
	week := NextWeek(now)
	logger = logger.With().Str("week_start", week.String()).Logger()
	logger.Info().Str("company", company.Name).Msg("generation: старт")

	if s.lock != nil {
		release, ok, err := s.lock.TryLock(ctx, companyID.String()+":"+week.String(), s.cfg.LockTTL)
		if err != nil {
			return domain.GenerationResult{}, 0, fmt.Errorf("блокировка генерации: %w", err)
		}
		if !ok {
			logger.Warn().Msg("generation: уже выполняется")
			return domain.GenerationResult{}, 0, domain.ErrGenerationInProgress
		}
		defer release()
	}

	exists, err := s.posts.ExistsForWeek(ctx, companyID, week)
	if err != nil {
		return domain.GenerationResult{}, 0, fmt.Errorf("проверка существующих постов: %w", err)
	}
	if exists {
		logger.Warn().Msg("generation: посты на неделю уже есть")
		return domain.GenerationResult{}, 0, domain.ErrAlreadyGenerated
	}

	historyContext, err := s.historyContext(ctx, companyID)
	if err != nil {
		return domain.GenerationResult{}, 0, err
	}

	prompt := BuildPrompt(PromptInput{
		Company:        company,
		Week:           week,
		HistoryContext: historyContext,
		Country:        s.cfg.Country,
	})

	logger.Debug().Str("model", s.cfg.Model).Msg("generation: запрос к модели")
	req := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: prompt.System},
			{Role: openai.RoleUser, Content: prompt.User},
		},
	}
	if s.cfg.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject}
	}
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("generation: ошибка провайдера")
		return domain.GenerationResult{}, 0, fmt.Errorf("openai completion: %w", err)
	}
	content, ok := resp.Content()
	if !ok {
		return domain.GenerationResult{}, 0, fmt.Errorf("openai completion: пустой ответ: %w", domain.ErrResponseParse)
	}

	generated, err := ParseResponse(content)
	if err != nil {
		logger.Error().Err(err).Str("content", clipRunes(content, 500)).Msg("generation: не удалось разобрать ответ")
		return domain.GenerationResult{}, 0, err
	}

	posts, dropped := Materialize(company, week, generated, now.UTC())
	if dropped > 0 {
		logger.Debug().Int("dropped", dropped).Int("limit", MaxPostsForWeek(company)).Msg("generation: лишние посты отброшены")
	}
	if err := s.posts.InsertBatch(ctx, companyID, week, posts); err != nil {
		if errors.Is(err, domain.ErrAlreadyGenerated) {
			logger.Warn().Msg("generation: набор сохранён параллельным запросом")
			return domain.GenerationResult{}, dropped, err
		}
		return domain.GenerationResult{}, dropped, fmt.Errorf("сохранение постов: %w", err)
	}

	s.recordGenerated(ctx, companyID, week, len(posts))
	logger.Info().Int("posts", len(posts)).Msg("generation: готово")
	return domain.GenerationResult{PostsCount: len(posts), WeekStart: week}, dropped, nil
}

func (s *Service) historyContext(ctx context.Context, companyID uuid.UUID) (string, error) {
	history, err := s.history.ListRecentHistory(ctx, companyID, s.cfg.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("получение истории: %w", err)
	}
	return HistoryContext(HistoryEntries(history)), nil
}

func (s *Service) recordGenerated(ctx context.Context, companyID uuid.UUID, week domain.Week, count int) {
	if s.events == nil {
		return
	}
	id := companyID
	err := s.events.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:     domain.BusinessMetricEventPostsGenerated,
		CompanyID: &id,
		Metadata: map[string]any{
			"week_start":  week.String(),
			"posts_count": count,
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("generation: не удалось записать бизнес-метрику")
	}
}

func resultLabel(err error) string {
	var upstream *domain.UpstreamError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrAlreadyGenerated):
		return "duplicate"
	case errors.Is(err, domain.ErrGenerationInProgress):
		return "in_progress"
	case errors.Is(err, domain.ErrCompanyNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.As(err, &upstream):
		return "upstream_error"
	case errors.Is(err, domain.ErrResponseParse), errors.Is(err, domain.ErrInvalidResponseFormat):
		return "malformed_response"
	default:
		return "error"
	}
}
