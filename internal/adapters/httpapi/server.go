package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"content-planner/internal/domain"
	"content-planner/internal/usecase/companies"
)

const maxBodyBytes = 1 << 20

// Generator запускает конвейер генерации недели.
type Generator interface {
	Generate(ctx context.Context, companyID uuid.UUID) (domain.GenerationResult, error)
}

// CompanyService регистрирует и отдаёт компании.
type CompanyService interface {
	Register(ctx context.Context, in companies.RegisterInput) (domain.Company, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Company, error)
	List(ctx context.Context) ([]domain.Company, error)
}

// ReviewService обслуживает ревью постов недели.
type ReviewService interface {
	ListUpcoming(ctx context.Context, companyID uuid.UUID) (domain.Week, []domain.PendingPost, error)
	UpdateCaption(ctx context.Context, postID uuid.UUID, caption string) (domain.PendingPost, error)
	MarkAsPosted(ctx context.Context, postID uuid.UUID) (domain.HistoryPost, error)
	History(ctx context.Context, companyID uuid.UUID, limit int) ([]domain.HistoryPost, error)
}

type Server struct {
	generator Generator
	companies CompanyService
	review    ReviewService
	queue     domain.GenerationQueue
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Server)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithQueue включает асинхронную генерацию через очередь.
func WithQueue(queue domain.GenerationQueue) Option {
	return func(s *Server) {
		s.queue = queue
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type registerCompanyRequest struct {
	Name         string `json:"name"`
	Niche        string `json:"niche"`
	PostsPerWeek int    `json:"posts_per_week"`
	City         string `json:"city"`
}

type legacyGenerateRequest struct {
	CompanyID string `json:"companyId"`
}

type updateCaptionRequest struct {
	Caption string `json:"caption"`
}

type generateResponse struct {
	Success    bool        `json:"success"`
	PostsCount int         `json:"postsCount"`
	WeekStart  domain.Week `json:"weekStart"`
}

type enqueueResponse struct {
	JobID string `json:"jobId"`
}

type companyView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Niche        string    `json:"niche"`
	PostsPerWeek int       `json:"posts_per_week"`
	City         string    `json:"city,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type postView struct {
	ID               uuid.UUID   `json:"id"`
	CompanyID        uuid.UUID   `json:"company_id"`
	WeekStart        domain.Week `json:"week_start"`
	Title            string      `json:"title"`
	ImageDescription string      `json:"image_description"`
	Format           string      `json:"format"`
	Caption          string      `json:"caption"`
	Theme            string      `json:"theme"`
	IsSpecialDate    bool        `json:"is_special_date"`
	Status           string      `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
}

type historyView struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Title     string    `json:"title"`
	Theme     string    `json:"theme"`
	Caption   string    `json:"caption"`
	Format    string    `json:"format,omitempty"`
	PostedAt  time.Time `json:"posted_at"`
}

type weekPostsResponse struct {
	WeekStart domain.Week `json:"week_start"`
	Posts     []postView  `json:"posts"`
}

func NewServer(generator Generator, companies CompanyService, review ReviewService, opts ...Option) *Server {
	srv := &Server{generator: generator, companies: companies, review: review, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Router возвращает отдельный роутер с маршрутами API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

// Register навешивает маршруты API на существующий роутер.
func (s *Server) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/companies", s.handleRegisterCompany)
		r.Get("/companies", s.handleListCompanies)
		r.Route("/companies/{companyID}", func(r chi.Router) {
			r.Get("/", s.handleGetCompany)
			r.Post("/generate", s.handleGenerate)
			if s.queue != nil {
				r.Post("/generate/async", s.handleEnqueue)
			}
			r.Get("/posts", s.handleListPosts)
			r.Get("/history", s.handleHistory)
		})
		r.Patch("/posts/{postID}/caption", s.handleUpdateCaption)
		r.Post("/posts/{postID}/posted", s.handleMarkAsPosted)

		r.Post("/generate-posts", s.handleLegacyGenerate)
	})
}

func (s *Server) handleRegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req registerCompanyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	company, err := s.companies.Register(r.Context(), companies.RegisterInput{
		Name:         req.Name,
		Niche:        req.Niche,
		PostsPerWeek: req.PostsPerWeek,
		City:         req.City,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCompanyView(company))
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	list, err := s.companies.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	views := make([]companyView, 0, len(list))
	for _, c := range list {
		views = append(views, toCompanyView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseID(w, chi.URLParam(r, "companyID"), "companyID")
	if !ok {
		return
	}
	company, err := s.companies.Get(r.Context(), companyID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyView(company))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseID(w, chi.URLParam(r, "companyID"), "companyID")
	if !ok {
		return
	}
	s.generate(w, r, companyID)
}

func (s *Server) handleLegacyGenerate(w http.ResponseWriter, r *http.Request) {
	var req legacyGenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CompanyID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "companyId is required")
		return
	}
	companyID, ok := parseID(w, req.CompanyID, "companyId")
	if !ok {
		return
	}
	s.generate(w, r, companyID)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, companyID uuid.UUID) {
	result, err := s.generator.Generate(r.Context(), companyID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Success: true, PostsCount: result.PostsCount, WeekStart: result.WeekStart})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseID(w, chi.URLParam(r, "companyID"), "companyID")
	if !ok {
		return
	}
	if _, err := s.companies.Get(r.Context(), companyID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	job := domain.GenerationJob{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		RequestedAt: s.now().UTC(),
		Cause:       domain.GenerationCauseManual,
	}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		s.log.Error().Err(err).Str("company_id", companyID.String()).Msg("httpapi: постановка задачи")
		writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "failed to enqueue generation job")
		return
	}
	s.log.Info().Str("job_id", job.ID).Str("company_id", companyID.String()).Msg("httpapi: задача генерации поставлена")
	writeJSON(w, http.StatusAccepted, enqueueResponse{JobID: job.ID})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseID(w, chi.URLParam(r, "companyID"), "companyID")
	if !ok {
		return
	}
	week, posts, err := s.review.ListUpcoming(r.Context(), companyID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, toPostView(p))
	}
	writeJSON(w, http.StatusOK, weekPostsResponse{WeekStart: week, Posts: views})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	companyID, ok := parseID(w, chi.URLParam(r, "companyID"), "companyID")
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	history, err := s.review.History(r.Context(), companyID, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	views := make([]historyView, 0, len(history))
	for _, h := range history {
		views = append(views, toHistoryView(h))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleUpdateCaption(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseID(w, chi.URLParam(r, "postID"), "postID")
	if !ok {
		return
	}
	var req updateCaptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	post, err := s.review.UpdateCaption(r.Context(), postID, req.Caption)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(post))
}

func (s *Server) handleMarkAsPosted(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseID(w, chi.URLParam(r, "postID"), "postID")
	if !ok {
		return
	}
	history, err := s.review.MarkAsPosted(r.Context(), postID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryView(history))
}

// writeDomainError переводит ошибки домена в HTTP-статусы.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrAlreadyGenerated):
		writeError(w, http.StatusBadRequest, "already_generated", "Posts already generated for this week")
	case errors.Is(err, domain.ErrCompanyNotFound):
		writeError(w, http.StatusNotFound, "company_not_found", "Company not found")
	case errors.Is(err, domain.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "post_not_found", "Post not found")
	case errors.Is(err, domain.ErrInvalidCompany), errors.Is(err, domain.ErrInvalidCaption):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrGenerationInProgress):
		writeError(w, http.StatusConflict, "generation_in_progress", "Posts generation is already in progress for this week")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again in a few moments.")
	case errors.Is(err, domain.ErrQuotaExhausted):
		writeError(w, http.StatusPaymentRequired, "quota_exhausted", "AI credits exhausted. Please add credits to your workspace to keep generating posts.")
	case errors.As(err, &upstream):
		s.logFailure(r, err)
		writeError(w, http.StatusInternalServerError, "upstream_error", upstream.Error())
	case errors.Is(err, domain.ErrResponseParse):
		s.logFailure(r, err)
		writeError(w, http.StatusInternalServerError, "malformed_response", domain.ErrResponseParse.Error())
	case errors.Is(err, domain.ErrInvalidResponseFormat):
		s.logFailure(r, err)
		writeError(w, http.StatusInternalServerError, "malformed_response", domain.ErrInvalidResponseFormat.Error())
	case errors.Is(err, domain.ErrProviderNotConfigured):
		s.logFailure(r, err)
		writeError(w, http.StatusInternalServerError, "provider_not_configured", domain.ErrProviderNotConfigured.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.logFailure(r, err)
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		// Текст ошибок хранилища не уходит клиенту, он есть в логе запроса.
		s.logFailure(r, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (s *Server) logFailure(r *http.Request, err error) {
	s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("httpapi: запрос завершился ошибкой")
}

func parseID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid "+field)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return false
	}
	return true
}

func toCompanyView(c domain.Company) companyView {
	return companyView{ID: c.ID, Name: c.Name, Niche: c.Niche, PostsPerWeek: c.PostsPerWeek, City: c.City, CreatedAt: c.CreatedAt}
}

func toPostView(p domain.PendingPost) postView {
	return postView{
		ID:               p.ID,
		CompanyID:        p.CompanyID,
		WeekStart:        p.WeekStart,
		Title:            p.Title,
		ImageDescription: p.ImageDescription,
		Format:           string(p.Format),
		Caption:          p.Caption,
		Theme:            p.Theme,
		IsSpecialDate:    p.IsSpecialDate,
		Status:           string(p.Status),
		CreatedAt:        p.CreatedAt,
	}
}

func toHistoryView(h domain.HistoryPost) historyView {
	return historyView{ID: h.ID, CompanyID: h.CompanyID, Title: h.Title, Theme: h.Theme, Caption: h.Caption, Format: string(h.Format), PostedAt: h.PostedAt}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
