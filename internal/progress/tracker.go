package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planner-server/internal/models"
)

// Именованные стадии пайплайна. Прогресс монотонно растет от INITIALIZING
// к COMPLETED; FAILED фиксируется на последнем достигнутом значении.
const (
	StageInitializing        = "Initializing"
	StageGeneratingStructure = "Generating event structure"
	StageCompleted           = "Completed"
	StageFailed              = "Failed"
)

// toolStage — целевая пара {progress, stage} для одного инструмента планирования.
type toolStage struct {
	Progress int
	Stage    string
}

// toolStages отображает имя инструмента на полосу прогресса 10–70,
// отражающую его позицию в типичном порядке выполнения.
// Неизвестные имена игнорируются: новые инструменты не ломают отчет о прогрессе,
// они просто не двигают полосу.
var toolStages = map[string]toolStage{
	"get_time_context":        {10, "Reading time context"},
	"analyze_intent":          {18, "Analyzing intent"},
	"analyze_complexity":      {26, "Analyzing complexity"},
	"extract_locations":       {34, "Extracting locations"},
	"calculate_event_timing":  {42, "Calculating event timing"},
	"select_emoji":            {48, "Selecting emoji"},
	"generate_description":    {54, "Writing descriptions"},
	"format_travel_event":     {58, "Formatting travel"},
	"plan_travel_events":      {62, "Planning travel events"},
	"generate_event_sequence": {66, "Sequencing events"},
	"plan_event_structure":    {70, "Planning event structure"},
}

// SessionStore — узкий срез репозитория сессий, нужный трекеру:
// durable-копия прогресса для poll-канала и чтение после рестарта процесса.
type SessionStore interface {
	UpdateProcessedOutput(ctx context.Context, id uuid.UUID, output json.RawMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProcessingSession, error)
}

// Notifier доставляет обновления прогресса push-подписчикам.
// Трекер не знает о транспорте: реализация может публиковать в брокер или быть no-op.
type Notifier interface {
	NotifyProgress(ctx context.Context, update Update) error
}

// Update — сообщение push-канала прогресса.
type Update struct {
	SessionID string               `json:"session_id"`
	UserID    string               `json:"user_id"`
	Progress  int                  `json:"progress"`
	Stage     string               `json:"stage"`
	Status    models.SessionStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
}

// Tracker — state machine прогресса с ключом по id сессии.
// Пишет в Store (push/poll внутри процесса) и в строку сессии (durable).
type Tracker struct {
	store    Store
	sessions SessionStore
	notifier Notifier
	logger   *zap.Logger
}

// NewTracker создает новый Tracker. notifier может быть nil (push отключен).
func NewTracker(store Store, sessions SessionStore, notifier Notifier, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		logger:   logger.Named("ProgressTracker"),
	}
}

// Update записывает новое состояние прогресса сессии.
// Прогресс не может уменьшаться, пока статус PROCESSING; переход в FAILED
// допустим на любом уровне прогресса.
func (t *Tracker) Update(ctx context.Context, sessionID, userID uuid.UUID, progress int, stage string, status models.SessionStatus) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	key := sessionID.String()

	// Монотонность: не откатываем прогресс назад (кроме терминального FAILED)
	if prev, ok, err := t.store.Get(ctx, key); err == nil && ok {
		if status != models.SessionStatusFailed && progress < prev.Progress {
			progress = prev.Progress
		}
	}

	state := models.ProgressState{
		Progress:  progress,
		Stage:     stage,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}

	if err := t.store.Set(ctx, key, state); err != nil {
		t.logger.Warn("Failed to store progress state", zap.Error(err), zap.String("sessionID", key))
	}

	// Durable-копия для poll-канала: переживает рестарт процесса.
	// Терминальные статусы записываются в сессию финализатором оркестратора,
	// здесь обновляем только промежуточные снапшоты.
	if status == models.SessionStatusProcessing {
		if snapshot, err := json.Marshal(state); err == nil {
			if err := t.sessions.UpdateProcessedOutput(ctx, sessionID, snapshot); err != nil {
				t.logger.Warn("Failed to persist progress snapshot", zap.Error(err), zap.String("sessionID", key))
			}
		}
	}

	if t.notifier != nil {
		update := Update{
			SessionID: key,
			UserID:    userID.String(),
			Progress:  state.Progress,
			Stage:     state.Stage,
			Status:    state.Status,
			Timestamp: state.Timestamp,
		}
		// Push best-effort: ошибка доставки не влияет на пайплайн
		if err := t.notifier.NotifyProgress(ctx, update); err != nil {
			t.logger.Warn("Failed to push progress update", zap.Error(err), zap.String("sessionID", key))
		}
	}

	t.logger.Debug("Progress updated",
		zap.String("sessionID", key),
		zap.Int("progress", state.Progress),
		zap.String("stage", state.Stage),
		zap.String("status", string(state.Status)))
}

// UpdateFromTool транслирует имя инструмента в пару {progress, stage}
// по статической таблице. Неизвестное имя — no-op.
func (t *Tracker) UpdateFromTool(ctx context.Context, sessionID, userID uuid.UUID, toolName string) {
	ts, ok := toolStages[toolName]
	if !ok {
		t.logger.Debug("Unknown tool name, progress not updated", zap.String("tool", toolName))
		return
	}
	t.Update(ctx, sessionID, userID, ts.Progress, ts.Stage, models.SessionStatusProcessing)
}

// Cleanup удаляет состояние из Store. Идемпотентен; обязателен на обоих
// исходах пайплайна, иначе карта растет без ограничений под нагрузкой.
func (t *Tracker) Cleanup(ctx context.Context, sessionID uuid.UUID) {
	if err := t.store.Delete(ctx, sessionID.String()); err != nil {
		t.logger.Warn("Failed to cleanup progress state", zap.Error(err), zap.String("sessionID", sessionID.String()))
	}
}

// Read возвращает текущее состояние прогресса для poll-канала.
// При отсутствии записи в Store читает durable-копию из строки сессии
// (случай рестарта процесса или другого инстанса).
func (t *Tracker) Read(ctx context.Context, sessionID uuid.UUID) (models.ProgressState, error) {
	key := sessionID.String()

	if state, ok, err := t.store.Get(ctx, key); err == nil && ok {
		return state, nil
	}

	session, err := t.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return models.ProgressState{}, err
	}

	switch session.Status {
	case models.SessionStatusCompleted:
		return models.ProgressState{
			Progress:  100,
			Stage:     StageCompleted,
			Status:    models.SessionStatusCompleted,
			Timestamp: session.UpdatedAt,
		}, nil
	case models.SessionStatusFailed:
		state := models.ProgressState{
			Progress:  0,
			Stage:     StageFailed,
			Status:    models.SessionStatusFailed,
			Timestamp: session.UpdatedAt,
		}
		// FAILED фиксируется на последнем достигнутом прогрессе: финализатор
		// не перезаписывает processed_output, там остается последний снапшот
		var snap models.ProgressState
		if len(session.ProcessedOutput) > 0 {
			if err := json.Unmarshal(session.ProcessedOutput, &snap); err == nil && snap.Stage != "" {
				state.Progress = snap.Progress
			}
		}
		return state, nil
	}

	// Сессия еще PROCESSING: пробуем распарсить снапшот из processed_output
	var state models.ProgressState
	if len(session.ProcessedOutput) > 0 {
		if err := json.Unmarshal(session.ProcessedOutput, &state); err == nil && state.Stage != "" {
			return state, nil
		}
	}

	// Снапшота еще нет: сессия только создана
	return models.ProgressState{
		Progress:  0,
		Stage:     StageInitializing,
		Status:    models.SessionStatusProcessing,
		Timestamp: session.CreatedAt,
	}, nil
}
