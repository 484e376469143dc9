package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"planner-server/internal/models"
)

// DBTX abstracts pgxpool.Pool / pgx.Tx so repositories can run inside transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SessionRepository persists processing sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.ProcessingSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProcessingSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.ProcessingSession, error)
	// UpdateProcessedOutput записывает снапшот прогресса во время обработки.
	UpdateProcessedOutput(ctx context.Context, id uuid.UUID, output json.RawMessage) error
	// Complete финализирует сессию как COMPLETED. Вызывается ровно один раз.
	Complete(ctx context.Context, id uuid.UUID, output json.RawMessage, confidence float64, processingTimeMs int64, firstEventID *uuid.UUID) error
	// Fail финализирует сессию как FAILED. Вызывается ровно один раз.
	Fail(ctx context.Context, id uuid.UUID, errorMessage string, processingTimeMs int64) error
}

// EventRepository persists calendar events.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListByCalendar(ctx context.Context, calendarID uuid.UUID, limit int) ([]models.Event, error)
}

// CalendarRepository reads user calendars (calendars are managed elsewhere).
type CalendarRepository interface {
	Create(ctx context.Context, calendar *models.Calendar) error
	// GetDefault возвращает календарь по умолчанию пользователя.
	GetDefault(ctx context.Context, userID uuid.UUID) (*models.Calendar, error)
	// GetAny возвращает любой календарь пользователя (fallback, если default отсутствует).
	GetAny(ctx context.Context, userID uuid.UUID) (*models.Calendar, error)
}
