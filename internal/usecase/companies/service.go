package companies

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"content-planner/internal/domain"
)

const (
	// DefaultPostsPerWeek норма публикаций, если она не указана при регистрации.
	DefaultPostsPerWeek = 3
	maxFieldLength      = 200
)

// RegisterInput данные новой компании.
type RegisterInput struct {
	Name         string
	Niche        string
	PostsPerWeek int
	City         string
}

// Service управляет компаниями.
type Service struct {
	repo domain.CompanyRepo
}

// NewService создаёт сервис компаний.
func NewService(repo domain.CompanyRepo) *Service {
	return &Service{repo: repo}
}

// Normalize приводит ввод к каноничному виду и проверяет ограничения.
func Normalize(in RegisterInput) (domain.Company, error) {
	name := strings.TrimSpace(in.Name)
	niche := strings.TrimSpace(in.Niche)
	city := strings.TrimSpace(in.City)
	if name == "" {
		return domain.Company{}, fmt.Errorf("%w: name is required", domain.ErrInvalidCompany)
	}
	if niche == "" {
		return domain.Company{}, fmt.Errorf("%w: niche is required", domain.ErrInvalidCompany)
	}
	for field, value := range map[string]string{"name": name, "niche": niche, "city": city} {
		if utf8.RuneCountInString(value) > maxFieldLength {
			return domain.Company{}, fmt.Errorf("%w: %s is longer than %d characters", domain.ErrInvalidCompany, field, maxFieldLength)
		}
	}
	perWeek := in.PostsPerWeek
	if perWeek == 0 {
		perWeek = DefaultPostsPerWeek
	}
	if perWeek < domain.MinPostsPerWeek || perWeek > domain.MaxPostsPerWeek {
		return domain.Company{}, fmt.Errorf("%w: posts_per_week must be between %d and %d", domain.ErrInvalidCompany, domain.MinPostsPerWeek, domain.MaxPostsPerWeek)
	}
	return domain.Company{Name: name, Niche: niche, PostsPerWeek: perWeek, City: city}, nil
}

// Register проверяет и сохраняет компанию.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.Company, error) {
	company, err := Normalize(in)
	if err != nil {
		return domain.Company{}, err
	}
	company.ID = uuid.New()
	created, err := s.repo.CreateCompany(ctx, company)
	if err != nil {
		return domain.Company{}, fmt.Errorf("сохранение компании: %w", err)
	}
	return created, nil
}

// Get возвращает компанию по идентификатору.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Company, error) {
	return s.repo.GetCompany(ctx, id)
}

// List возвращает все компании, новые первыми.
func (s *Service) List(ctx context.Context) ([]domain.Company, error) {
	return s.repo.ListCompanies(ctx)
}
