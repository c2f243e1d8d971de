package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"content-planner/internal/domain"
)

type companyRow struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Niche        string `gorm:"not null"`
	PostsPerWeek int    `gorm:"not null;default:3"`
	City         string
	CreatedAt    time.Time
}

func (companyRow) TableName() string { return "companies" }

type weeklyPostRow struct {
	ID               string `gorm:"primaryKey"`
	CompanyID        string `gorm:"not null;index:weekly_posts_company_week_idx"`
	WeekStart        string `gorm:"not null;index:weekly_posts_company_week_idx"`
	Title            string
	ImageDescription string
	Format           string
	Caption          string
	Theme            string
	IsSpecialDate    bool   `gorm:"not null;default:false"`
	Status           string `gorm:"not null;default:'pending'"`
	CreatedAt        time.Time
}

func (weeklyPostRow) TableName() string { return "weekly_posts" }

type historyPostRow struct {
	ID        string `gorm:"primaryKey"`
	CompanyID string `gorm:"not null;index:history_posts_company_posted_idx"`
	Title     string `gorm:"not null"`
	Theme     string
	Caption   string `gorm:"not null"`
	Format    string
	PostedAt  time.Time `gorm:"not null;index:history_posts_company_posted_idx"`
}

func (historyPostRow) TableName() string { return "history_posts" }

// SQLite встроенное хранилище на gorm для локального запуска и тестов.
type SQLite struct {
	db *gorm.DB
}

var (
	_ domain.CompanyRepo     = (*SQLite)(nil)
	_ domain.PendingPostRepo = (*SQLite)(nil)
	_ domain.HistoryRepo     = (*SQLite)(nil)
)

// NewSQLite открывает базу по пути (":memory:" для тестов) и создаёт схему.
func NewSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Одно соединение: in-memory база живёт в нём, а запись в SQLite всё равно последовательна.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&companyRow{}, &weeklyPostRow{}, &historyPostRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close закрывает соединение.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateCompany реализует domain.CompanyRepo.
func (s *SQLite) CreateCompany(ctx context.Context, company domain.Company) (domain.Company, error) {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now().UTC()
	}
	row := companyRow{
		ID:           company.ID.String(),
		Name:         company.Name,
		Niche:        company.Niche,
		PostsPerWeek: company.PostsPerWeek,
		City:         company.City,
		CreatedAt:    company.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Company{}, err
	}
	return company, nil
}

// GetCompany реализует domain.CompanyRepo.
func (s *SQLite) GetCompany(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	var row companyRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Company{}, domain.ErrCompanyNotFound
	}
	if err != nil {
		return domain.Company{}, err
	}
	return row.toDomain()
}

// ListCompanies реализует domain.CompanyRepo.
func (s *SQLite) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	var rows []companyRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	companies := make([]domain.Company, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, nil
}

// ExistsForWeek реализует domain.PendingPostRepo.
func (s *SQLite) ExistsForWeek(ctx context.Context, companyID uuid.UUID, week domain.Week) (bool, error) {
	return existsForWeek(s.db.WithContext(ctx), companyID, week)
}

func existsForWeek(db *gorm.DB, companyID uuid.UUID, week domain.Week) (bool, error) {
	var count int64
	err := db.Model(&weeklyPostRow{}).
		Where("company_id = ? AND week_start = ?", companyID.String(), week.String()).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// InsertBatch реализует domain.PendingPostRepo.
func (s *SQLite) InsertBatch(ctx context.Context, companyID uuid.UUID, week domain.Week, posts []domain.PendingPost) error {
	if len(posts) == 0 {
		return nil
	}
	rows := make([]weeklyPostRow, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, weeklyPostRow{
			ID:               p.ID.String(),
			CompanyID:        companyID.String(),
			WeekStart:        week.String(),
			Title:            p.Title,
			ImageDescription: p.ImageDescription,
			Format:           string(p.Format),
			Caption:          p.Caption,
			Theme:            p.Theme,
			IsSpecialDate:    p.IsSpecialDate,
			Status:           string(domain.PostStatusPending),
			CreatedAt:        p.CreatedAt,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := existsForWeek(tx, companyID, week)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrAlreadyGenerated
		}
		return tx.Create(&rows).Error
	})
}

// ListPending реализует domain.PendingPostRepo.
func (s *SQLite) ListPending(ctx context.Context, companyID uuid.UUID, week domain.Week) ([]domain.PendingPost, error) {
	var rows []weeklyPostRow
	err := s.db.WithContext(ctx).
		Where("company_id = ? AND week_start = ? AND status = ?", companyID.String(), week.String(), string(domain.PostStatusPending)).
		Order("is_special_date DESC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	posts := make([]domain.PendingPost, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// GetPendingPost реализует domain.PendingPostRepo.
func (s *SQLite) GetPendingPost(ctx context.Context, id uuid.UUID) (domain.PendingPost, error) {
	var row weeklyPostRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PendingPost{}, domain.ErrPostNotFound
	}
	if err != nil {
		return domain.PendingPost{}, err
	}
	return row.toDomain()
}

// UpdateCaption реализует domain.PendingPostRepo.
func (s *SQLite) UpdateCaption(ctx context.Context, id uuid.UUID, caption string) error {
	res := s.db.WithContext(ctx).Model(&weeklyPostRow{}).Where("id = ?", id.String()).Update("caption", caption)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}

// ArchivePost реализует domain.PendingPostRepo.
func (s *SQLite) ArchivePost(ctx context.Context, id uuid.UUID, postedAt time.Time) (domain.HistoryPost, error) {
	var history domain.HistoryPost
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row weeklyPostRow
		if err := tx.First(&row, "id = ?", id.String()).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPostNotFound
			}
			return err
		}
		post, err := row.toDomain()
		if err != nil {
			return err
		}
		history = historyFromPending(post, postedAt)
		if err := tx.Create(&historyPostRow{
			ID:        history.ID.String(),
			CompanyID: history.CompanyID.String(),
			Title:     history.Title,
			Theme:     history.Theme,
			Caption:   history.Caption,
			Format:    string(history.Format),
			PostedAt:  history.PostedAt,
		}).Error; err != nil {
			return err
		}
		return tx.Delete(&weeklyPostRow{}, "id = ?", row.ID).Error
	})
	if err != nil {
		return domain.HistoryPost{}, err
	}
	return history, nil
}

// ListRecentHistory реализует domain.HistoryRepo.
func (s *SQLite) ListRecentHistory(ctx context.Context, companyID uuid.UUID, limit int) ([]domain.HistoryPost, error) {
	var rows []historyPostRow
	err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID.String()).
		Order("posted_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	history := make([]domain.HistoryPost, 0, len(rows))
	for _, row := range rows {
		h, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, nil
}

func (r companyRow) toDomain() (domain.Company, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Company{}, err
	}
	return domain.Company{
		ID:           id,
		Name:         r.Name,
		Niche:        r.Niche,
		PostsPerWeek: r.PostsPerWeek,
		City:         r.City,
		CreatedAt:    r.CreatedAt,
	}, nil
}

func (r weeklyPostRow) toDomain() (domain.PendingPost, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.PendingPost{}, err
	}
	companyID, err := uuid.Parse(r.CompanyID)
	if err != nil {
		return domain.PendingPost{}, err
	}
	week, err := domain.ParseWeek(r.WeekStart)
	if err != nil {
		return domain.PendingPost{}, err
	}
	return domain.PendingPost{
		ID:               id,
		CompanyID:        companyID,
		WeekStart:        week,
		Title:            r.Title,
		ImageDescription: r.ImageDescription,
		Format:           domain.PostFormat(r.Format),
		Caption:          r.Caption,
		Theme:            r.Theme,
		IsSpecialDate:    r.IsSpecialDate,
		Status:           domain.PostStatus(r.Status),
		CreatedAt:        r.CreatedAt,
	}, nil
}

func (r historyPostRow) toDomain() (domain.HistoryPost, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.HistoryPost{}, err
	}
	companyID, err := uuid.Parse(r.CompanyID)
	if err != nil {
		return domain.HistoryPost{}, err
	}
	return domain.HistoryPost{
		ID:        id,
		CompanyID: companyID,
		Title:     r.Title,
		Theme:     r.Theme,
		Caption:   r.Caption,
		Format:    domain.PostFormat(r.Format),
		PostedAt:  r.PostedAt,
	}, nil
}
