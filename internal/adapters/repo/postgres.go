package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"content-planner/internal/domain"
	"content-planner/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.CompanyRepo        = (*Postgres)(nil)
	_ domain.PendingPostRepo    = (*Postgres)(nil)
	_ domain.HistoryRepo        = (*Postgres)(nil)
	_ domain.BusinessMetricRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// RecordBusinessMetric сохраняет бизнесовую метрику в БД.
func (p *Postgres) RecordBusinessMetric(ctx context.Context, metric domain.BusinessMetric) error {
	if metric.Event == "" {
		return nil
	}
	if metric.OccurredAt.IsZero() {
		metric.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var payload []byte
	if metric.Metadata != nil {
		if data, err := json.Marshal(metric.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO business_metrics (event, company_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4)
`, metric.Event, metric.CompanyID, payload, metric.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "business_metrics_insert", "business_metrics", start, err)
	return err
}

// CreateCompany реализует domain.CompanyRepo.
func (p *Postgres) CreateCompany(ctx context.Context, company domain.Company) (domain.Company, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO companies (id, name, niche, posts_per_week, city)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
RETURNING created_at
`, company.ID, company.Name, company.Niche, company.PostsPerWeek, company.City).Scan(&company.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "companies_insert", "companies", start, err)
	if err != nil {
		return domain.Company{}, err
	}
	id := company.ID
	_ = p.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:     domain.BusinessMetricEventCompanyRegistered,
		CompanyID: &id,
		Metadata:  map[string]any{"posts_per_week": company.PostsPerWeek, "has_city": company.HasCity()},
	})
	return company, nil
}

// GetCompany реализует domain.CompanyRepo.
func (p *Postgres) GetCompany(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, name, niche, posts_per_week, city, created_at
FROM companies WHERE id = $1
`, id)
	company, err := scanCompany(row)
	metrics.ObserveNetworkRequest("postgres", "companies_get", "companies", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Company{}, domain.ErrCompanyNotFound
	}
	return company, err
}

// ListCompanies реализует domain.CompanyRepo.
func (p *Postgres) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, name, niche, posts_per_week, city, created_at
FROM companies ORDER BY created_at DESC
`)
	metrics.ObserveNetworkRequest("postgres", "companies_list", "companies", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var companies []domain.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

func scanCompany(row pgx.Row) (domain.Company, error) {
	var (
		c    domain.Company
		city sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Niche, &c.PostsPerWeek, &city, &c.CreatedAt); err != nil {
		return domain.Company{}, err
	}
	c.City = city.String
	return c, nil
}

// ExistsForWeek реализует domain.PendingPostRepo.
func (p *Postgres) ExistsForWeek(ctx context.Context, companyID uuid.UUID, week domain.Week) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM weekly_posts WHERE company_id = $1 AND week_start = $2)
`, companyID, week.Monday).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "weekly_posts_exists", "weekly_posts", start, err)
	return exists, err
}

var weeklyPostColumns = []string{"id", "company_id", "week_start", "title", "image_description", "format", "caption", "theme", "is_special_date", "status", "created_at"}

// InsertBatch реализует domain.PendingPostRepo. Проверка и вставка выполняются под
// транзакционной advisory-блокировкой пары (компания, неделя).
func (p *Postgres) InsertBatch(ctx context.Context, companyID uuid.UUID, week domain.Week, posts []domain.PendingPost) error {
	if len(posts) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "weekly_posts", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	start = time.Now()
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, companyID.String()+":"+week.String())
	metrics.ObserveNetworkRequest("postgres", "advisory_lock", "weekly_posts", start, err)
	if err != nil {
		return err
	}

	var exists bool
	start = time.Now()
	err = tx.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM weekly_posts WHERE company_id = $1 AND week_start = $2)
`, companyID, week.Monday).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "weekly_posts_exists", "weekly_posts", start, err)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrAlreadyGenerated
	}

	rows := make([][]any, 0, len(posts))
	for _, post := range posts {
		rows = append(rows, []any{
			post.ID, companyID, week.Monday, post.Title, post.ImageDescription, string(post.Format),
			post.Caption, post.Theme, post.IsSpecialDate, string(domain.PostStatusPending), post.CreatedAt,
		})
	}
	start = time.Now()
	_, err = tx.CopyFrom(ctx, pgx.Identifier{"weekly_posts"}, weeklyPostColumns, pgx.CopyFromRows(rows))
	metrics.ObserveNetworkRequest("postgres", "weekly_posts_copy", "weekly_posts", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyGenerated
		}
		return err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "weekly_posts", start, err)
	return err
}

// ListPending реализует domain.PendingPostRepo.
func (p *Postgres) ListPending(ctx context.Context, companyID uuid.UUID, week domain.Week) ([]domain.PendingPost, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, company_id, week_start, title, image_description, format, caption, theme, is_special_date, status, created_at
FROM weekly_posts
WHERE company_id = $1 AND week_start = $2 AND status = $3
ORDER BY is_special_date DESC, created_at ASC
`, companyID, week.Monday, string(domain.PostStatusPending))
	metrics.ObserveNetworkRequest("postgres", "weekly_posts_list", "weekly_posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []domain.PendingPost
	for rows.Next() {
		post, err := scanPendingPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// GetPendingPost реализует domain.PendingPostRepo.
func (p *Postgres) GetPendingPost(ctx context.Context, id uuid.UUID) (domain.PendingPost, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	post, err := scanPendingPost(p.pool.QueryRow(ctx, `
SELECT id, company_id, week_start, title, image_description, format, caption, theme, is_special_date, status, created_at
FROM weekly_posts WHERE id = $1
`, id))
	metrics.ObserveNetworkRequest("postgres", "weekly_posts_get", "weekly_posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PendingPost{}, domain.ErrPostNotFound
	}
	return post, err
}

func scanPendingPost(row pgx.Row) (domain.PendingPost, error) {
	var (
		post      domain.PendingPost
		weekStart time.Time
		title     sql.NullString
		imageDesc sql.NullString
		format    sql.NullString
		caption   sql.NullString
		theme     sql.NullString
		status    string
	)
	if err := row.Scan(&post.ID, &post.CompanyID, &weekStart, &title, &imageDesc, &format, &caption, &theme, &post.IsSpecialDate, &status, &post.CreatedAt); err != nil {
		return domain.PendingPost{}, err
	}
	post.WeekStart = domain.NewWeek(weekStart)
	post.Title = title.String
	post.ImageDescription = imageDesc.String
	post.Format = domain.PostFormat(format.String)
	post.Caption = caption.String
	post.Theme = theme.String
	post.Status = domain.PostStatus(status)
	return post, nil
}

// UpdateCaption реализует domain.PendingPostRepo.
func (p *Postgres) UpdateCaption(ctx context.Context, id uuid.UUID, caption string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	res, err := p.pool.Exec(ctx, `UPDATE weekly_posts SET caption = $2 WHERE id = $1`, id, caption)
	metrics.ObserveNetworkRequest("postgres", "weekly_posts_update_caption", "weekly_posts", start, err)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// ArchivePost реализует domain.PendingPostRepo.
func (p *Postgres) ArchivePost(ctx context.Context, id uuid.UUID, postedAt time.Time) (domain.HistoryPost, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "history_posts", start, err)
	if err != nil {
		return domain.HistoryPost{}, err
	}
	defer tx.Rollback(ctx)

	start = time.Now()
	post, err := scanPendingPost(tx.QueryRow(ctx, `
DELETE FROM weekly_posts WHERE id = $1
RETURNING id, company_id, week_start, title, image_description, format, caption, theme, is_special_date, status, created_at
`, id))
	metrics.ObserveNetworkRequest("postgres", "weekly_posts_delete", "weekly_posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.HistoryPost{}, domain.ErrPostNotFound
	}
	if err != nil {
		return domain.HistoryPost{}, err
	}

	history := historyFromPending(post, postedAt)
	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO history_posts (id, company_id, title, theme, caption, format, posted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, history.ID, history.CompanyID, history.Title, history.Theme, history.Caption, string(history.Format), history.PostedAt)
	metrics.ObserveNetworkRequest("postgres", "history_posts_insert", "history_posts", start, err)
	if err != nil {
		return domain.HistoryPost{}, err
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "history_posts", start, err)
	if err != nil {
		return domain.HistoryPost{}, err
	}
	companyID := history.CompanyID
	_ = p.RecordBusinessMetric(ctx, domain.BusinessMetric{
		Event:     domain.BusinessMetricEventPostArchived,
		CompanyID: &companyID,
		Metadata:  map[string]any{"week_start": post.WeekStart.String(), "format": string(post.Format)},
	})
	return history, nil
}

// ListRecentHistory реализует domain.HistoryRepo.
func (p *Postgres) ListRecentHistory(ctx context.Context, companyID uuid.UUID, limit int) ([]domain.HistoryPost, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, company_id, title, theme, caption, format, posted_at
FROM history_posts
WHERE company_id = $1
ORDER BY posted_at DESC
LIMIT $2
`, companyID, limit)
	metrics.ObserveNetworkRequest("postgres", "history_posts_list", "history_posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []domain.HistoryPost
	for rows.Next() {
		var (
			h      domain.HistoryPost
			theme  sql.NullString
			format sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.CompanyID, &h.Title, &theme, &h.Caption, &format, &h.PostedAt); err != nil {
			return nil, err
		}
		h.Theme = theme.String
		h.Format = domain.PostFormat(format.String)
		history = append(history, h)
	}
	return history, rows.Err()
}

// historyFromPending строит архивную запись. Без темы используется заголовок.
func historyFromPending(post domain.PendingPost, postedAt time.Time) domain.HistoryPost {
	theme := post.Theme
	if theme == "" {
		theme = post.Title
	}
	return domain.HistoryPost{
		ID:        uuid.New(),
		CompanyID: post.CompanyID,
		Title:     post.Title,
		Theme:     theme,
		Caption:   post.Caption,
		Format:    post.Format,
		PostedAt:  postedAt,
	}
}
