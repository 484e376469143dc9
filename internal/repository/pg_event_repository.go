package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"planner-server/internal/models"
)

// Compile-time check to ensure pgEventRepository implements EventRepository
var _ EventRepository = (*pgEventRepository)(nil)

type pgEventRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgEventRepository creates a new PostgreSQL-backed EventRepository.
func NewPgEventRepository(db DBTX, logger *zap.Logger) EventRepository {
	return &pgEventRepository{
		db:     db,
		logger: logger.Named("PgEventRepo"),
	}
}

const eventColumns = `id, user_id, calendar_id, emoji, title, description, start_time, end_time,
	timezone, is_all_day, location, ai_confidence, created_at, updated_at`

// Create inserts a new event and fills in generated fields.
func (r *pgEventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `INSERT INTO events
		(id, user_id, calendar_id, emoji, title, description, start_time, end_time, timezone, is_all_day, location, ai_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timezone == "" {
		event.Timezone = models.DefaultTimezone
	}

	err := r.db.QueryRow(ctx, query,
		event.ID, event.UserID, event.CalendarID, event.Emoji, event.Title, event.Description,
		event.StartTime, event.EndTime, event.Timezone, event.IsAllDay, event.Location, event.AIConfidence,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create event", zap.Error(err), zap.String("title", event.Title))
		return fmt.Errorf("failed to create event: %w", err)
	}
	r.logger.Debug("Event created", zap.String("eventID", event.ID.String()), zap.String("title", event.Title))
	return nil
}

// GetByID retrieves an event by its id.
func (r *pgEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	event := &models.Event{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&event.ID, &event.UserID, &event.CalendarID, &event.Emoji, &event.Title, &event.Description,
		&event.StartTime, &event.EndTime, &event.Timezone, &event.IsAllDay, &event.Location,
		&event.AIConfidence, &event.CreatedAt, &event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		r.logger.Error("Failed to get event", zap.Error(err), zap.String("eventID", id.String()))
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// ListByCalendar returns events of a calendar ordered by start time.
func (r *pgEventRepository) ListByCalendar(ctx context.Context, calendarID uuid.UUID, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE calendar_id = $1 ORDER BY start_time ASC LIMIT $2`

	rows, err := r.db.Query(ctx, query, calendarID, limit)
	if err != nil {
		r.logger.Error("Failed to list events", zap.Error(err), zap.String("calendarID", calendarID.String()))
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.CalendarID, &e.Emoji, &e.Title, &e.Description,
			&e.StartTime, &e.EndTime, &e.Timezone, &e.IsAllDay, &e.Location,
			&e.AIConfidence, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}
