package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"planner-server/internal/models"
)

// Compile-time check to ensure pgSessionRepository implements SessionRepository
var _ SessionRepository = (*pgSessionRepository)(nil)

type pgSessionRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgSessionRepository creates a new PostgreSQL-backed SessionRepository.
func NewPgSessionRepository(db DBTX, logger *zap.Logger) SessionRepository {
	return &pgSessionRepository{
		db:     db,
		logger: logger.Named("PgSessionRepo"),
	}
}

const sessionColumns = `id, user_id, user_input, model, provider, status, processed_output,
	confidence, processing_time_ms, error_message, event_id, created_at, updated_at`

// Create inserts a new processing session with status PROCESSING.
func (r *pgSessionRepository) Create(ctx context.Context, session *models.ProcessingSession) error {
	query := `INSERT INTO processing_sessions (id, user_id, user_input, model, provider, status, processed_output)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.Status == "" {
		session.Status = models.SessionStatusProcessing
	}

	err := r.db.QueryRow(ctx, query,
		session.ID, session.UserID, session.UserInput,
		session.Model, session.Provider, session.Status, session.ProcessedOutput,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create processing session", zap.Error(err), zap.String("userID", session.UserID.String()))
		return fmt.Errorf("failed to create processing session: %w", err)
	}
	r.logger.Debug("Processing session created", zap.String("sessionID", session.ID.String()))
	return nil
}

// GetByID retrieves a session by its id.
func (r *pgSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProcessingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM processing_sessions WHERE id = $1`
	session := &models.ProcessingSession{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID, &session.UserID, &session.UserInput, &session.Model, &session.Provider,
		&session.Status, &session.ProcessedOutput, &session.Confidence, &session.ProcessingTimeMs,
		&session.ErrorMessage, &session.EventID, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSessionNotFound
		}
		r.logger.Error("Failed to get processing session", zap.Error(err), zap.String("sessionID", id.String()))
		return nil, fmt.Errorf("failed to get processing session: %w", err)
	}
	return session, nil
}

// ListByUser returns the most recent sessions of a user.
func (r *pgSessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.ProcessingSession, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + sessionColumns + ` FROM processing_sessions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("Failed to list processing sessions", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to list processing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ProcessingSession
	for rows.Next() {
		var s models.ProcessingSession
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.UserInput, &s.Model, &s.Provider,
			&s.Status, &s.ProcessedOutput, &s.Confidence, &s.ProcessingTimeMs,
			&s.ErrorMessage, &s.EventID, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan processing session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

// UpdateProcessedOutput stores the current progress snapshot while the session is PROCESSING.
// Терминальные сессии не трогаем: после финализации запись неизменяема.
func (r *pgSessionRepository) UpdateProcessedOutput(ctx context.Context, id uuid.UUID, output json.RawMessage) error {
	query := `UPDATE processing_sessions
		SET processed_output = $2, updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'`

	tag, err := r.db.Exec(ctx, query, id, output)
	if err != nil {
		r.logger.Error("Failed to update processed output", zap.Error(err), zap.String("sessionID", id.String()))
		return fmt.Errorf("failed to update processed output: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// Complete marks the session COMPLETED and stores the final structured result.
func (r *pgSessionRepository) Complete(ctx context.Context, id uuid.UUID, output json.RawMessage, confidence float64, processingTimeMs int64, firstEventID *uuid.UUID) error {
	query := `UPDATE processing_sessions
		SET status = 'COMPLETED', processed_output = $2, confidence = $3,
		    processing_time_ms = $4, event_id = $5, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'`

	tag, err := r.db.Exec(ctx, query, id, output, confidence, processingTimeMs, firstEventID)
	if err != nil {
		r.logger.Error("Failed to complete processing session", zap.Error(err), zap.String("sessionID", id.String()))
		return fmt.Errorf("failed to complete processing session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSessionNotFound
	}
	r.logger.Info("Processing session completed", zap.String("sessionID", id.String()), zap.Int64("processingTimeMs", processingTimeMs))
	return nil
}

// Fail marks the session FAILED with a human-readable message.
func (r *pgSessionRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string, processingTimeMs int64) error {
	query := `UPDATE processing_sessions
		SET status = 'FAILED', error_message = $2, processing_time_ms = $3, updated_at = now()
		WHERE id = $1 AND status = 'PROCESSING'`

	tag, err := r.db.Exec(ctx, query, id, errorMessage, processingTimeMs)
	if err != nil {
		r.logger.Error("Failed to mark processing session as failed", zap.Error(err), zap.String("sessionID", id.String()))
		return fmt.Errorf("failed to mark processing session as failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrSessionNotFound
	}
	r.logger.Warn("Processing session failed", zap.String("sessionID", id.String()), zap.String("error", errorMessage))
	return nil
}
