package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCompanyNotFound компания не найдена.
	ErrCompanyNotFound = errors.New("company not found")
	// ErrPostNotFound пост не найден.
	ErrPostNotFound = errors.New("post not found")
	// ErrInvalidCompany некорректные данные компании.
	ErrInvalidCompany = errors.New("invalid company")
	// ErrInvalidCaption подпись пустая или длиннее допустимого.
	ErrInvalidCaption = errors.New("invalid caption")
	// ErrAlreadyGenerated посты на эту неделю уже сгенерированы.
	ErrAlreadyGenerated = errors.New("posts already generated for this week")
	// ErrGenerationInProgress генерация для этой недели уже выполняется.
	ErrGenerationInProgress = errors.New("posts generation already in progress for this week")
	// ErrProviderNotConfigured не задан ключ провайдера генерации.
	ErrProviderNotConfigured = errors.New("LLM_API_KEY is not configured")
	// ErrRateLimited провайдер ограничил частоту запросов.
	ErrRateLimited = errors.New("ai provider rate limit reached")
	// ErrQuotaExhausted у провайдера закончились кредиты.
	ErrQuotaExhausted = errors.New("ai provider credits exhausted")
	// ErrResponseParse ответ модели не удалось разобрать как JSON.
	ErrResponseParse = errors.New("failed to parse AI response")
	// ErrInvalidResponseFormat в ответе модели нет массива posts.
	ErrInvalidResponseFormat = errors.New("invalid AI response format")
)

// UpstreamError неуспешный ответ провайдера, не попавший в отдельные категории.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("AI API error: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("AI API error: %d", e.Status)
}
