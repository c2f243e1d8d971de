package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BusinessMetric описывает бизнесовое событие, которое сохраняется для последующего анализа.
type BusinessMetric struct {
	Event      string
	CompanyID  *uuid.UUID
	Metadata   map[string]any
	OccurredAt time.Time
}

const (
	// BusinessMetricEventCompanyRegistered фиксирует регистрацию компании.
	BusinessMetricEventCompanyRegistered = "company_registered"
	// BusinessMetricEventPostsGenerated фиксирует сохранение недельного набора.
	BusinessMetricEventPostsGenerated = "posts_generated"
	// BusinessMetricEventPostArchived фиксирует перенос поста в историю.
	BusinessMetricEventPostArchived = "post_archived"
)

// BusinessMetricRepo сохраняет бизнесовые события.
type BusinessMetricRepo interface {
	RecordBusinessMetric(ctx context.Context, metric BusinessMetric) error
}
