package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-planner/internal/domain"
)

// setupTestDB открывает in-memory SQLite с готовой схемой.
func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	store, err := NewSQLite(":memory:")
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createCompany(t *testing.T, store *SQLite) domain.Company {
	t.Helper()
	company, err := store.CreateCompany(context.Background(), domain.Company{Name: "Padaria Central", Niche: "bakery", PostsPerWeek: 3, City: "Curitiba"})
	require.NoError(t, err)
	return company
}

func pendingPost(title string, special bool, createdAt time.Time) domain.PendingPost {
	return domain.PendingPost{
		ID:            uuid.New(),
		Title:         title,
		Format:        domain.PostFormatPhoto,
		Caption:       "caption " + title,
		Theme:         "theme " + title,
		IsSpecialDate: special,
		CreatedAt:     createdAt,
	}
}

func TestCreateAndGetCompany(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	company := createCompany(t, store)
	assert.NotEqual(t, uuid.Nil, company.ID)

	got, err := store.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, "Padaria Central", got.Name)
	assert.Equal(t, 3, got.PostsPerWeek)
	assert.Equal(t, "Curitiba", got.City)

	list, err := store.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGetCompanyNotFound(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.GetCompany(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrCompanyNotFound)
}

func TestInsertBatchRejectsSecondBatchForWeek(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	company := createCompany(t, store)
	week, err := domain.ParseWeek("2026-10-19")
	require.NoError(t, err)
	now := time.Now().UTC()

	exists, err := store.ExistsForWeek(ctx, company.ID, week)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.InsertBatch(ctx, company.ID, week, []domain.PendingPost{pendingPost("a", false, now)}))

	exists, err = store.ExistsForWeek(ctx, company.ID, week)
	require.NoError(t, err)
	assert.True(t, exists)

	err = store.InsertBatch(ctx, company.ID, week, []domain.PendingPost{pendingPost("b", false, now)})
	assert.ErrorIs(t, err, domain.ErrAlreadyGenerated)

	posts, err := store.ListPending(ctx, company.ID, week)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	otherWeek, err := domain.ParseWeek("2026-10-26")
	require.NoError(t, err)
	require.NoError(t, store.InsertBatch(ctx, company.ID, otherWeek, []domain.PendingPost{pendingPost("c", false, now)}))
}

func TestListPendingOrdersSpecialFirst(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	company := createCompany(t, store)
	week, _ := domain.ParseWeek("2026-10-19")
	now := time.Now().UTC()

	batch := []domain.PendingPost{
		pendingPost("first", false, now),
		pendingPost("second", false, now.Add(time.Microsecond)),
		pendingPost("holiday", true, now.Add(2*time.Microsecond)),
	}
	require.NoError(t, store.InsertBatch(ctx, company.ID, week, batch))

	posts, err := store.ListPending(ctx, company.ID, week)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "holiday", posts[0].Title)
	assert.Equal(t, "first", posts[1].Title)
	assert.Equal(t, "second", posts[2].Title)
	assert.Equal(t, domain.PostStatusPending, posts[0].Status)
	assert.Equal(t, week.String(), posts[0].WeekStart.String())
}

func TestArchivePostMovesToHistory(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	company := createCompany(t, store)
	week, _ := domain.ParseWeek("2026-10-19")
	post := pendingPost("launch", false, time.Now().UTC())
	post.Theme = ""
	require.NoError(t, store.InsertBatch(ctx, company.ID, week, []domain.PendingPost{post}))

	postedAt := time.Date(2026, time.October, 20, 12, 0, 0, 0, time.UTC)
	history, err := store.ArchivePost(ctx, post.ID, postedAt)
	require.NoError(t, err)
	assert.Equal(t, "launch", history.Theme, "без темы в историю уходит заголовок")

	_, err = store.GetPendingPost(ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)

	recent, err := store.ListRecentHistory(ctx, company.ID, 50)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "caption launch", recent[0].Caption)

	_, err = store.ArchivePost(ctx, post.ID, postedAt)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)

	exists, err := store.ExistsForWeek(ctx, company.ID, week)
	require.NoError(t, err)
	assert.False(t, exists, "после архивации всех постов неделю можно сгенерировать заново")
}

func TestListRecentHistoryIsBoundedAndOrdered(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	company := createCompany(t, store)
	week, _ := domain.ParseWeek("2026-10-19")
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		post := pendingPost("p", false, base)
		require.NoError(t, store.InsertBatch(ctx, company.ID, week, []domain.PendingPost{post}))
		_, err := store.ArchivePost(ctx, post.ID, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	recent, err := store.ListRecentHistory(ctx, company.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[0].PostedAt.After(recent[1].PostedAt))
	assert.True(t, recent[1].PostedAt.After(recent[2].PostedAt))
}

func TestUpdateCaption(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	company := createCompany(t, store)
	week, _ := domain.ParseWeek("2026-10-19")
	post := pendingPost("edit me", false, time.Now().UTC())
	require.NoError(t, store.InsertBatch(ctx, company.ID, week, []domain.PendingPost{post}))

	require.NoError(t, store.UpdateCaption(ctx, post.ID, "new caption #tag"))
	got, err := store.GetPendingPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "new caption #tag", got.Caption)

	assert.ErrorIs(t, store.UpdateCaption(ctx, uuid.New(), "x"), domain.ErrPostNotFound)
}
