package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CompanyRepo хранит компании.
type CompanyRepo interface {
	CreateCompany(ctx context.Context, company Company) (Company, error)
	GetCompany(ctx context.Context, id uuid.UUID) (Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
}

// PendingPostRepo хранит сгенерированные посты недели.
type PendingPostRepo interface {
	// ExistsForWeek проверяет, есть ли у компании хотя бы один пост на неделю.
	ExistsForWeek(ctx context.Context, companyID uuid.UUID, week Week) (bool, error)
	// InsertBatch сохраняет весь набор недели одной транзакцией. Если набор на эту
	// неделю уже есть, возвращает ErrAlreadyGenerated и ничего не пишет.
	InsertBatch(ctx context.Context, companyID uuid.UUID, week Week, posts []PendingPost) error
	ListPending(ctx context.Context, companyID uuid.UUID, week Week) ([]PendingPost, error)
	GetPendingPost(ctx context.Context, id uuid.UUID) (PendingPost, error)
	UpdateCaption(ctx context.Context, id uuid.UUID, caption string) error
	// ArchivePost переносит пост в историю и удаляет его из недели.
	ArchivePost(ctx context.Context, id uuid.UUID, postedAt time.Time) (HistoryPost, error)
}

// HistoryRepo читает архив опубликованных постов.
type HistoryRepo interface {
	// ListRecentHistory возвращает до limit записей по убыванию posted_at.
	ListRecentHistory(ctx context.Context, companyID uuid.UUID, limit int) ([]HistoryPost, error)
}

// GenerationLock сужает окно гонки между проверкой и вставкой набора недели.
type GenerationLock interface {
	// TryLock возвращает release и true, если блокировка получена.
	TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error)
}
