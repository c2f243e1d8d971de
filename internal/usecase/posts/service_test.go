package posts

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-planner/internal/adapters/repo"
	"content-planner/internal/domain"
)

var reviewNow = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*Service, *repo.SQLite, domain.Company) {
	t.Helper()
	store, err := repo.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	company, err := store.CreateCompany(context.Background(), domain.Company{Name: "Padaria", Niche: "bakery", PostsPerWeek: 3})
	require.NoError(t, err)

	svc := NewService(store, store, store, time.UTC, zerolog.Nop())
	svc.now = func() time.Time { return reviewNow }
	return svc, store, company
}

func seedWeek(t *testing.T, store *repo.SQLite, company domain.Company, week domain.Week, titles ...string) []domain.PendingPost {
	t.Helper()
	posts := make([]domain.PendingPost, 0, len(titles))
	for i, title := range titles {
		posts = append(posts, domain.PendingPost{
			ID:        uuidFor(i, title),
			CompanyID: company.ID,
			WeekStart: week,
			Title:     title,
			Format:    domain.PostFormatPhoto,
			Caption:   "caption " + title,
			CreatedAt: reviewNow.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, store.InsertBatch(context.Background(), company.ID, week, posts))
	return posts
}

func TestValidateCaption(t *testing.T) {
	require.NoError(t, ValidateCaption("Fresh bread 🍞 #bakery"))
	require.NoError(t, ValidateCaption(strings.Repeat("ã", domain.MaxCaptionLength)))
	require.ErrorIs(t, ValidateCaption("   "), domain.ErrInvalidCaption)
	require.ErrorIs(t, ValidateCaption(strings.Repeat("a", domain.MaxCaptionLength+1)), domain.ErrInvalidCaption)
}

func TestListUpcomingUsesNextWeek(t *testing.T) {
	svc, store, company := setupService(t)
	next, _ := domain.ParseWeek("2026-10-19")
	later, _ := domain.ParseWeek("2026-10-26")
	seedWeek(t, store, company, next, "a", "b")
	seedWeek(t, store, company, later, "c")

	week, posts, err := svc.ListUpcoming(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Equal(t, next, week)
	require.Len(t, posts, 2)
	assert.Equal(t, "a", posts[0].Title)
}

func TestListUpcomingUnknownCompany(t *testing.T) {
	svc, _, _ := setupService(t)
	_, _, err := svc.ListUpcoming(context.Background(), uuidFor(99, "x"))
	require.ErrorIs(t, err, domain.ErrCompanyNotFound)
}

func TestUpdateCaption(t *testing.T) {
	svc, store, company := setupService(t)
	week := svc.UpcomingWeek()
	posts := seedWeek(t, store, company, week, "a")

	updated, err := svc.UpdateCaption(context.Background(), posts[0].ID, "New caption #fresh")
	require.NoError(t, err)
	assert.Equal(t, "New caption #fresh", updated.Caption)

	_, err = svc.UpdateCaption(context.Background(), posts[0].ID, strings.Repeat("x", 2201))
	require.ErrorIs(t, err, domain.ErrInvalidCaption)

	_, err = svc.UpdateCaption(context.Background(), uuidFor(42, "missing"), "text")
	require.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestMarkAsPostedMovesToHistory(t *testing.T) {
	svc, store, company := setupService(t)
	week := svc.UpcomingWeek()
	posts := seedWeek(t, store, company, week, "a", "b")

	history, err := svc.MarkAsPosted(context.Background(), posts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a", history.Title)
	assert.Equal(t, "a", history.Theme, "пустая тема заменяется заголовком")
	assert.True(t, history.PostedAt.Equal(reviewNow))

	_, pending, err := svc.ListUpcoming(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].Title)

	list, err := svc.History(context.Background(), company.ID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "caption a", list[0].Caption)

	_, err = svc.MarkAsPosted(context.Background(), posts[0].ID)
	require.ErrorIs(t, err, domain.ErrPostNotFound)
}

func uuidFor(i int, title string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(title+string(rune('0'+i))))
}
