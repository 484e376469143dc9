package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionStatus описывает состояние сессии обработки запроса планирования.
type SessionStatus string

const (
	SessionStatusProcessing SessionStatus = "PROCESSING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (дальнейшие переходы запрещены).
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// ProcessingSession — запись жизненного цикла одного запроса пользователя:
// от сырого текста до созданных событий или ошибки.
// Создается со статусом PROCESSING синхронно при приеме запроса,
// финализируется оркестратором ровно один раз (COMPLETED или FAILED).
type ProcessingSession struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	UserInput string    `json:"userInput"`
	Model     string    `json:"model"`
	Provider  string    `json:"provider"`

	Status SessionStatus `json:"status"`

	// ProcessedOutput хранит снапшот прогресса во время обработки
	// и финальный структурированный результат после завершения.
	ProcessedOutput  json.RawMessage `json:"processedOutput,omitempty"`
	Confidence       *float64        `json:"confidence,omitempty"`
	ProcessingTimeMs *int64          `json:"processingTimeMs,omitempty"`
	ErrorMessage     *string         `json:"errorMessage,omitempty"`

	// EventID — ссылка на первое созданное событие (если они были созданы).
	EventID *uuid.UUID `json:"eventId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
