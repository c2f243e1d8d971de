package posts

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"content-planner/internal/domain"
	"content-planner/internal/infra/metrics"
	"content-planner/internal/usecase/generation"
)

const (
	// DefaultHistoryPage размер страницы истории по умолчанию.
	DefaultHistoryPage = 50
	maxHistoryPage     = 200
)

// Service обслуживает ревью постов недели: просмотр, правку подписи и публикацию.
type Service struct {
	companies domain.CompanyRepo
	posts     domain.PendingPostRepo
	history   domain.HistoryRepo
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

// NewService создаёт сервис. loc должен совпадать с часовым поясом генерации.
func NewService(companies domain.CompanyRepo, posts domain.PendingPostRepo, history domain.HistoryRepo, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{companies: companies, posts: posts, history: history, loc: loc, now: time.Now, log: logger}
}

// UpcomingWeek неделя, посты которой показываются на ревью.
func (s *Service) UpcomingWeek() domain.Week {
	return generation.NextWeek(s.now().In(s.loc))
}

// ListUpcoming возвращает ожидающие посты следующей недели: сначала особые даты, затем по времени создания.
func (s *Service) ListUpcoming(ctx context.Context, companyID uuid.UUID) (domain.Week, []domain.PendingPost, error) {
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return domain.Week{}, nil, err
	}
	week := s.UpcomingWeek()
	posts, err := s.posts.ListPending(ctx, companyID, week)
	if err != nil {
		return domain.Week{}, nil, fmt.Errorf("получение постов недели: %w", err)
	}
	return week, posts, nil
}

// ValidateCaption проверяет подпись перед сохранением.
func ValidateCaption(caption string) error {
	if strings.TrimSpace(caption) == "" {
		return fmt.Errorf("%w: caption is empty", domain.ErrInvalidCaption)
	}
	if n := utf8.RuneCountInString(caption); n > domain.MaxCaptionLength {
		return fmt.Errorf("%w: caption has %d characters, limit is %d", domain.ErrInvalidCaption, n, domain.MaxCaptionLength)
	}
	return nil
}

// UpdateCaption меняет подпись поста и возвращает обновлённый пост.
func (s *Service) UpdateCaption(ctx context.Context, postID uuid.UUID, caption string) (domain.PendingPost, error) {
	if err := ValidateCaption(caption); err != nil {
		return domain.PendingPost{}, err
	}
	if err := s.posts.UpdateCaption(ctx, postID, caption); err != nil {
		return domain.PendingPost{}, err
	}
	return s.posts.GetPendingPost(ctx, postID)
}

// MarkAsPosted переносит пост в историю публикаций.
func (s *Service) MarkAsPosted(ctx context.Context, postID uuid.UUID) (domain.HistoryPost, error) {
	history, err := s.posts.ArchivePost(ctx, postID, s.now().UTC())
	if err != nil {
		return domain.HistoryPost{}, err
	}
	metrics.IncArchived()
	s.log.Info().Str("post_id", postID.String()).Str("company_id", history.CompanyID.String()).Msg("posts: пост перенесён в историю")
	return history, nil
}

// History возвращает опубликованные посты компании, последние первыми.
func (s *Service) History(ctx context.Context, companyID uuid.UUID, limit int) ([]domain.HistoryPost, error) {
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryPage
	}
	if limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	history, err := s.history.ListRecentHistory(ctx, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("получение истории: %w", err)
	}
	return history, nil
}
