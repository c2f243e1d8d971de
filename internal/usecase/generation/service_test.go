package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-planner/internal/domain"
	openai "content-planner/internal/infra/openai"
)

type fakeStore struct {
	mu        sync.Mutex
	companies map[uuid.UUID]domain.Company
	posts     map[uuid.UUID][]domain.PendingPost
	history   []domain.HistoryPost
	inserts   int
	insertErr error
	limit     int
}

func newFakeStore(companies ...domain.Company) *fakeStore {
	s := &fakeStore{companies: map[uuid.UUID]domain.Company{}, posts: map[uuid.UUID][]domain.PendingPost{}}
	for _, c := range companies {
		s.companies[c.ID] = c
	}
	return s
}

func (s *fakeStore) CreateCompany(_ context.Context, c domain.Company) (domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
	return c, nil
}

func (s *fakeStore) GetCompany(_ context.Context, id uuid.UUID) (domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	if !ok {
		return domain.Company{}, domain.ErrCompanyNotFound
	}
	return c, nil
}

func (s *fakeStore) ListCompanies(context.Context) ([]domain.Company, error) { return nil, nil }

func (s *fakeStore) ExistsForWeek(_ context.Context, companyID uuid.UUID, week domain.Week) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts[companyID] {
		if p.WeekStart == week {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) InsertBatch(_ context.Context, companyID uuid.UUID, _ domain.Week, posts []domain.PendingPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.insertErr != nil {
		return s.insertErr
	}
	s.posts[companyID] = append(s.posts[companyID], posts...)
	return nil
}

func (s *fakeStore) ListPending(context.Context, uuid.UUID, domain.Week) ([]domain.PendingPost, error) {
	return nil, nil
}

func (s *fakeStore) GetPendingPost(context.Context, uuid.UUID) (domain.PendingPost, error) {
	return domain.PendingPost{}, domain.ErrPostNotFound
}

func (s *fakeStore) UpdateCaption(context.Context, uuid.UUID, string) error { return nil }

func (s *fakeStore) ArchivePost(context.Context, uuid.UUID, time.Time) (domain.HistoryPost, error) {
	return domain.HistoryPost{}, domain.ErrPostNotFound
}

func (s *fakeStore) ListRecentHistory(_ context.Context, _ uuid.UUID, limit int) ([]domain.HistoryPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = limit
	return s.history, nil
}

type fakeChat struct {
	mu       sync.Mutex
	content  string
	err      error
	empty    bool
	calls    int
	requests []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.empty {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Role: "assistant", Content: f.content}}}}, nil
}

type fakeLock struct {
	held     bool
	released int
	err      error
	key      string
}

func (l *fakeLock) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.key = key
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func() { l.released++ }, true, nil
}

type fakeEvents struct {
	events []domain.BusinessMetric
}

func (f *fakeEvents) RecordBusinessMetric(_ context.Context, m domain.BusinessMetric) error {
	f.events = append(f.events, m)
	return nil
}

const fourPosts = `{"posts":[
{"title":"Morning bread","image_description":"loaf","format":"photo","caption":"Fresh! #bread","theme":"product","is_special_date":false},
{"title":"Behind the oven","image_description":"baker","format":"video","caption":"Meet us","theme":"team"},
{"title":"Sweet week","image_description":"cakes","format":"carousel","caption":"Cakes","theme":"sweets","is_special_date":false},
{"title":"Bakers day","image_description":"cake","format":"story","caption":"Thanks","theme":"holiday","is_special_date":true}
]}`

var fixedNow = time.Date(2026, time.October, 15, 10, 0, 0, 0, time.UTC)

func newTestService(store *fakeStore, chat *fakeChat, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(store, store, store, chat, Config{Model: "test-model", Temperature: 0.8, Country: "Brazil"}, zerolog.Nop(), opts...)
}

func TestGenerateStoresBatch(t *testing.T) {
	company := domain.Company{ID: uuid.New(), Name: "Padaria", Niche: "bakery", PostsPerWeek: 3, City: "Curitiba"}
	store := newFakeStore(company)
	store.history = []domain.HistoryPost{{Title: "Old idea", Theme: "product", Caption: "old caption"}}
	chat := &fakeChat{content: fourPosts}
	events := &fakeEvents{}
	lock := &fakeLock{}

	result, err := newTestService(store, chat, WithLock(lock), WithBusinessMetrics(events)).Generate(context.Background(), company.ID)
	require.NoError(t, err)

	assert.Equal(t, 4, result.PostsCount)
	assert.Equal(t, "2026-10-19", result.WeekStart.String())
	assert.Len(t, store.posts[company.ID], 4)
	assert.Equal(t, DefaultHistoryLimit, store.limit)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	assert.Equal(t, "test-model", req.Model)
	assert.InDelta(t, 0.8, req.Temperature, 1e-9)
	assert.Nil(t, req.ResponseFormat)
	assert.Zero(t, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, `"Old idea"`)
	assert.Contains(t, req.Messages[1].Content, "city of Curitiba")

	assert.Equal(t, company.ID.String()+":2026-10-19", lock.key)
	assert.Equal(t, 1, lock.released)

	require.Len(t, events.events, 1)
	assert.Equal(t, domain.BusinessMetricEventPostsGenerated, events.events[0].Event)
	assert.Equal(t, 4, events.events[0].Metadata["posts_count"])
}

func TestGenerateRequestsJSONObject(t *testing.T) {
	company := domain.Company{ID: uuid.New(), Name: "Padaria", Niche: "bakery", PostsPerWeek: 3}
	store := newFakeStore(company)
	chat := &fakeChat{content: fourPosts}
	cfg := Config{Model: "test-model", Temperature: 0.8, JSONMode: true, MaxTokens: 4096}
	svc := NewService(store, store, store, chat, cfg, zerolog.Nop(), WithClock(func() time.Time { return fixedNow }))

	_, err := svc.Generate(context.Background(), company.ID)
	require.NoError(t, err)

	require.Len(t, chat.requests, 1)
	req := chat.requests[0]
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ResponseFormatTypeJSONObject, req.ResponseFormat.Type)
	assert.Equal(t, 4096, req.MaxTokens)
}

func TestGenerateTwiceSkipsProvider(t *testing.T) {
	company := domain.Company{ID: uuid.New(), Name: "Padaria", Niche: "bakery", PostsPerWeek: 3}
	store := newFakeStore(company)
	chat := &fakeChat{content: fourPosts}
	svc := newTestService(store, chat)

	_, err := svc.Generate(context.Background(), company.ID)
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), company.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyGenerated)
	assert.Equal(t, 1, chat.calls)
	assert.Equal(t, 1, store.inserts)
	assert.Len(t, store.posts[company.ID], 4)
}

func TestGenerateErrors(t *testing.T) {
	company := domain.Company{ID: uuid.New(), Name: "Padaria", Niche: "bakery", PostsPerWeek: 3}

	tests := []struct {
		name        string
		companyID   uuid.UUID
		chat        *fakeChat
		lock        *fakeLock
		insertErr   error
		wantErr     error
		wantUpstream bool
		wantCalls   int
		wantInserts int
	}{
		{name: "unknown company", companyID: uuid.New(), chat: &fakeChat{content: fourPosts}, wantErr: domain.ErrCompanyNotFound},
		{name: "rate limited", companyID: company.ID, chat: &fakeChat{err: domain.ErrRateLimited}, wantErr: domain.ErrRateLimited, wantCalls: 1},
		{name: "quota exhausted", companyID: company.ID, chat: &fakeChat{err: domain.ErrQuotaExhausted}, wantErr: domain.ErrQuotaExhausted, wantCalls: 1},
		{name: "upstream error", companyID: company.ID, chat: &fakeChat{err: &domain.UpstreamError{Status: 500}}, wantUpstream: true, wantCalls: 1},
		{name: "prose only", companyID: company.ID, chat: &fakeChat{content: "Sorry, I can't."}, wantErr: domain.ErrResponseParse, wantCalls: 1},
		{name: "no choices", companyID: company.ID, chat: &fakeChat{empty: true}, wantErr: domain.ErrResponseParse, wantCalls: 1},
		{name: "missing posts", companyID: company.ID, chat: &fakeChat{content: `{"items":[]}`}, wantErr: domain.ErrInvalidResponseFormat, wantCalls: 1},
		{name: "generation in progress", companyID: company.ID, chat: &fakeChat{content: fourPosts}, lock: &fakeLock{held: true}, wantErr: domain.ErrGenerationInProgress},
		{name: "concurrent insert", companyID: company.ID, chat: &fakeChat{content: fourPosts}, insertErr: domain.ErrAlreadyGenerated, wantErr: domain.ErrAlreadyGenerated, wantCalls: 1, wantInserts: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(company)
			store.insertErr = tt.insertErr
			var opts []Option
			if tt.lock != nil {
				opts = append(opts, WithLock(tt.lock))
			}

			_, err := newTestService(store, tt.chat, opts...).Generate(context.Background(), tt.companyID)
			require.Error(t, err)
			if tt.wantUpstream {
				var upstream *domain.UpstreamError
				require.True(t, errors.As(err, &upstream))
				assert.Equal(t, 500, upstream.Status)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantCalls, tt.chat.calls)
			assert.Equal(t, tt.wantInserts, store.inserts)
			assert.Empty(t, store.posts[company.ID])
		})
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	company := domain.Company{ID: uuid.New(), Name: "Padaria", Niche: "bakery", PostsPerWeek: 3}
	store := newFakeStore(company)
	chat := &fakeChat{err: context.Canceled}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestService(store, chat).Generate(ctx, company.ID)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.posts[company.ID])
}

func TestCurrentWeekUsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	// 01:00 UTC понедельника ещё воскресенье в BRT.
	now := time.Date(2026, time.October, 19, 1, 0, 0, 0, time.UTC)
	svc := NewService(nil, nil, nil, nil, Config{Location: loc}, zerolog.Nop(), WithClock(func() time.Time { return now }))
	assert.Equal(t, "2026-10-19", svc.CurrentWeek().String())
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "success", resultLabel(nil))
	assert.Equal(t, "duplicate", resultLabel(domain.ErrAlreadyGenerated))
	assert.Equal(t, "upstream_error", resultLabel(&domain.UpstreamError{Status: 503}))
	assert.Equal(t, "malformed_response", resultLabel(domain.ErrInvalidResponseFormat))
	assert.Equal(t, "error", resultLabel(errors.New("boom")))
}
