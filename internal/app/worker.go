package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"content-planner/internal/domain"
)

// Generator запускает генерацию недели для компании.
type Generator interface {
	Generate(ctx context.Context, companyID uuid.UUID) (domain.GenerationResult, error)
}

// Worker читает задачи генерации из очереди и выполняет их по одной.
type Worker struct {
	queue     domain.GenerationQueue
	generator Generator
	log       zerolog.Logger
	// backoff пауза после ошибки чтения очереди.
	backoff time.Duration
}

// NewWorker создаёт обработчик очереди.
func NewWorker(queue domain.GenerationQueue, generator Generator, logger zerolog.Logger) *Worker {
	return &Worker{queue: queue, generator: generator, log: logger, backoff: 2 * time.Second}
}

// inFlightRestorer очередь, которая умеет вернуть задачи, взятые упавшим воркером.
type inFlightRestorer interface {
	RestoreInFlight(ctx context.Context) (int, error)
}

// Run обрабатывает задачи, пока не отменён ctx.
func (w *Worker) Run(ctx context.Context) error {
	if r, ok := w.queue.(inFlightRestorer); ok {
		restored, err := r.RestoreInFlight(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("worker: не удалось вернуть незавершённые задачи")
		} else if restored > 0 {
			w.log.Warn().Int("jobs", restored).Msg("worker: незавершённые задачи возвращены в очередь")
		}
	}
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Msg("worker: ошибка чтения очереди")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.backoff):
			}
			continue
		}
		success := w.Handle(ctx, job)
		if err := ack(success); err != nil {
			w.log.Error().Err(err).Str("job_id", job.ID).Msg("worker: не удалось подтвердить задачу")
		}
	}
}

// Handle выполняет задачу и сообщает, можно ли её подтвердить.
// Неудачная генерация подтверждается и логируется: автоматических повторов нет,
// оператор запрашивает генерацию заново. В очередь задача возвращается только
// при остановке воркера, когда генерация прервана отменой ctx.
func (w *Worker) Handle(ctx context.Context, job domain.GenerationJob) bool {
	logger := w.log.With().Str("job_id", job.ID).Str("company_id", job.CompanyID.String()).Logger()
	result, err := w.generator.Generate(ctx, job.CompanyID)
	switch {
	case err == nil:
		logger.Info().Int("posts", result.PostsCount).Str("week_start", result.WeekStart.String()).Msg("worker: неделя сгенерирована")
		return true
	case errors.Is(err, domain.ErrAlreadyGenerated):
		logger.Info().Msg("worker: посты на неделю уже есть, задача пропущена")
		return true
	case errors.Is(err, domain.ErrGenerationInProgress):
		logger.Warn().Msg("worker: генерация уже идёт, задача пропущена")
		return true
	case ctx.Err() != nil:
		logger.Warn().Err(err).Msg("worker: остановка, задача вернётся в очередь")
		return false
	default:
		logger.Error().Err(err).Msg("worker: генерация не удалась, задача отброшена")
		return true
	}
}
