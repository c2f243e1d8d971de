package generation

import (
	"time"

	"github.com/google/uuid"

	"content-planner/internal/domain"
)

// specialDateHeadroom запас сверх недельной нормы: один пост к особой дате и один на погрешность модели.
const specialDateHeadroom = 2

// MaxPostsForWeek верхняя граница постов, сохраняемых за одну генерацию.
func MaxPostsForWeek(company domain.Company) int {
	return company.PostsPerWeek + specialDateHeadroom
}

// Materialize превращает ответ модели в посты недели. Лишние записи молча отбрасываются,
// их число возвращается вторым значением.
func Materialize(company domain.Company, week domain.Week, generated []GeneratedPost, now time.Time) ([]domain.PendingPost, int) {
	limit := MaxPostsForWeek(company)
	dropped := 0
	if len(generated) > limit {
		dropped = len(generated) - limit
		generated = generated[:limit]
	}

	posts := make([]domain.PendingPost, 0, len(generated))
	for i, g := range generated {
		special := false
		if g.IsSpecialDate != nil {
			special = *g.IsSpecialDate
		}
		posts = append(posts, domain.PendingPost{
			ID:               uuid.New(),
			CompanyID:        company.ID,
			WeekStart:        week,
			Title:            g.Title,
			ImageDescription: g.ImageDescription,
			Format:           domain.PostFormat(g.Format),
			Caption:          g.Caption,
			Theme:            g.Theme,
			IsSpecialDate:    special,
			Status:           domain.PostStatusPending,
			// Сдвиг сохраняет порядок ответа модели при сортировке по created_at.
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
		})
	}
	return posts, dropped
}
