package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MinPostsPerWeek минимальное число постов в неделю для компании.
	MinPostsPerWeek = 1
	// MaxPostsPerWeek максимальное число постов в неделю для компании.
	MaxPostsPerWeek = 7
	// MaxCaptionLength ограничение на длину подписи к посту.
	MaxCaptionLength = 2200
)

// Company описывает компанию, для которой ведётся контент-календарь.
type Company struct {
	ID           uuid.UUID
	Name         string
	Niche        string
	PostsPerWeek int
	City         string
	CreatedAt    time.Time
}

// HasCity сообщает, указан ли город компании.
func (c Company) HasCity() bool {
	return c.City != ""
}

// PostFormat формат публикации.
type PostFormat string

const (
	PostFormatPhoto    PostFormat = "photo"
	PostFormatCarousel PostFormat = "carousel"
	PostFormatVideo    PostFormat = "video"
	PostFormatStory    PostFormat = "story"
)

// PostFormats перечисляет допустимые форматы в порядке вывода в промпте.
var PostFormats = []PostFormat{PostFormatPhoto, PostFormatCarousel, PostFormatVideo, PostFormatStory}

// PostStatus статус запланированного поста. Опубликованный пост переносится
// в историю и удаляется, поэтому других статусов нет.
type PostStatus string

// PostStatusPending пост сгенерирован и ждёт публикации.
const PostStatusPending PostStatus = "pending"

// PendingPost идея поста на неделю, ожидающая ревью и публикации.
type PendingPost struct {
	ID               uuid.UUID
	CompanyID        uuid.UUID
	WeekStart        Week
	Title            string
	ImageDescription string
	Format           PostFormat
	Caption          string
	Theme            string
	IsSpecialDate    bool
	Status           PostStatus
	CreatedAt        time.Time
}

// HistoryPost архивная запись опубликованного поста.
type HistoryPost struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Title     string
	Theme     string
	Caption   string
	Format    PostFormat
	PostedAt  time.Time
}

// GenerationResult итог генерации недельного набора.
type GenerationResult struct {
	PostsCount int
	WeekStart  Week
}
