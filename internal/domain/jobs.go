package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GenerationJobCause описывает источник запроса на генерацию.
type GenerationJobCause string

const (
	// GenerationCauseManual оператор запросил генерацию через API.
	GenerationCauseManual GenerationJobCause = "manual"
	// GenerationCauseCLI генерация поставлена из консольной утилиты.
	GenerationCauseCLI GenerationJobCause = "cli"
)

// GenerationJob задача асинхронной генерации недельного набора.
type GenerationJob struct {
	ID          string             `json:"job_id"`
	CompanyID   uuid.UUID          `json:"company_id"`
	RequestedAt time.Time          `json:"requested_at"`
	Cause       GenerationJobCause `json:"cause"`
}

// GenerationQueue очередь задач генерации.
type GenerationQueue interface {
	Enqueue(ctx context.Context, job GenerationJob) error
	Receive(ctx context.Context) (GenerationJob, AckFunc, error)
}

// AckFunc подтверждает обработку задачи или просит повторную доставку.
type AckFunc func(success bool) error
