package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"planner-server/internal/config"
)

// Connect инициализирует и возвращает пул соединений с БД с повторными попытками.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	maxRetries := 10
	retryDelay := 3 * time.Second

	poolConfig, parseErr := pgxpool.ParseConfig(cfg.GetDSN())
	if parseErr != nil {
		// DSN некорректен, нет смысла пытаться дальше
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", parseErr)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	var pool *pgxpool.Pool
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)

		pool, err = pgxpool.NewWithConfig(attemptCtx, poolConfig)
		if err == nil {
			err = pool.Ping(attemptCtx)
		}
		cancel()

		if err == nil {
			logger.Info("Connected to PostgreSQL", zap.Int("attempt", attempt))
			return pool, nil
		}

		if pool != nil {
			pool.Close()
			pool = nil
		}
		logger.Warn("PostgreSQL connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", maxRetries),
			zap.Error(err))
		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("не удалось подключиться к БД после %d попыток: %w", maxRetries, err)
}
