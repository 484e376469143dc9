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

// Compile-time check to ensure pgCalendarRepository implements CalendarRepository
var _ CalendarRepository = (*pgCalendarRepository)(nil)

type pgCalendarRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgCalendarRepository creates a new PostgreSQL-backed CalendarRepository.
func NewPgCalendarRepository(db DBTX, logger *zap.Logger) CalendarRepository {
	return &pgCalendarRepository{
		db:     db,
		logger: logger.Named("PgCalendarRepo"),
	}
}

// Create inserts a new calendar.
func (r *pgCalendarRepository) Create(ctx context.Context, calendar *models.Calendar) error {
	query := `INSERT INTO calendars (id, user_id, name, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	if calendar.ID == uuid.Nil {
		calendar.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, query,
		calendar.ID, calendar.UserID, calendar.Name, calendar.IsDefault,
	).Scan(&calendar.CreatedAt, &calendar.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create calendar", zap.Error(err), zap.String("userID", calendar.UserID.String()))
		return fmt.Errorf("failed to create calendar: %w", err)
	}
	return nil
}

// GetDefault returns the user's default calendar.
func (r *pgCalendarRepository) GetDefault(ctx context.Context, userID uuid.UUID) (*models.Calendar, error) {
	query := `SELECT id, user_id, name, is_default, created_at, updated_at
		FROM calendars WHERE user_id = $1 AND is_default = TRUE`
	return r.scanOne(ctx, query, userID)
}

// GetAny returns any calendar of the user (oldest first, for stable fallback).
func (r *pgCalendarRepository) GetAny(ctx context.Context, userID uuid.UUID) (*models.Calendar, error) {
	query := `SELECT id, user_id, name, is_default, created_at, updated_at
		FROM calendars WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`
	return r.scanOne(ctx, query, userID)
}

func (r *pgCalendarRepository) scanOne(ctx context.Context, query string, userID uuid.UUID) (*models.Calendar, error) {
	calendar := &models.Calendar{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&calendar.ID, &calendar.UserID, &calendar.Name, &calendar.IsDefault,
		&calendar.CreatedAt, &calendar.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrCalendarNotFound
		}
		r.logger.Error("Failed to get calendar", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to get calendar: %w", err)
	}
	return calendar, nil
}
