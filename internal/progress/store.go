package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"planner-server/internal/models"
)

// Store — хранилище эфемерного состояния прогресса, ключ — id сессии.
// Для одного инстанса достаточно памяти процесса; для нескольких инстансов
// используется реализация на Redis (poll-запросы могут попасть на другой инстанс).
type Store interface {
	Set(ctx context.Context, sessionID string, state models.ProgressState) error
	// Get возвращает (state, false, nil) при отсутствии записи — это не ошибка.
	Get(ctx context.Context, sessionID string) (models.ProgressState, bool, error)
	// Delete идемпотентен: удаление отсутствующего ключа не ошибка.
	Delete(ctx context.Context, sessionID string) error
}

// --- In-memory Store ---

type memoryStore struct {
	mu     sync.RWMutex
	states map[string]models.ProgressState
}

// NewMemoryStore создает Store в памяти процесса.
func NewMemoryStore() Store {
	return &memoryStore{states: make(map[string]models.ProgressState)}
}

func (s *memoryStore) Set(_ context.Context, sessionID string, state models.ProgressState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[sessionID] = state
	return nil
}

func (s *memoryStore) Get(_ context.Context, sessionID string) (models.ProgressState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sessionID]
	return state, ok, nil
}

func (s *memoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}

// --- Redis Store ---

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore создает Store на Redis. TTL страхует от утечки ключей,
// если cleanup не был вызван (например, при падении процесса).
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) key(sessionID string) string {
	return fmt.Sprintf("planner:progress:%s", sessionID)
}

func (s *redisStore) Set(ctx context.Context, sessionID string, state models.ProgressState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("ошибка сериализации состояния прогресса: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи прогресса в redis: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, sessionID string) (models.ProgressState, bool, error) {
	var state models.ProgressState
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return state, false, nil
		}
		return state, false, fmt.Errorf("ошибка чтения прогресса из redis: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, false, fmt.Errorf("ошибка десериализации состояния прогресса: %w", err)
	}
	return state, true, nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("ошибка удаления прогресса из redis: %w", err)
	}
	return nil
}
