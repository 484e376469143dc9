package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"planner-server/internal/config"
	"planner-server/internal/models"
	"planner-server/internal/planner"
	"planner-server/internal/planner/tools"
	"planner-server/internal/progress"
	"planner-server/internal/repository"
)

// planningSystemPrompt — системный промт фазы tool-augmented планирования.
const planningSystemPrompt = `You are a scheduling assistant that turns a natural language request into concrete calendar events.

Use the available tools to ground every decision:
- call get_time_context first to anchor relative dates like "tomorrow";
- analyze the request with analyze_intent before planning anything;
- compute concrete times with calculate_event_timing, never guess them;
- when the activity happens away from the user's home, plan travel legs around it;
- pick an emoji and write a short description for each event.

When you are done, reply with a concise narrative of the planned events.`

// extractionSystemPrompt — системный промт фазы структурированного извлечения.
const extractionSystemPrompt = `You convert an event planning narrative into strict JSON.

Reply with a single JSON object and nothing else, matching exactly this shape:
{
  "events": [
    {
      "emoji": "☕",
      "title": "Coffee with a friend",
      "description": "<p>...</p>",
      "startTime": "2026-01-15T15:00:00Z",
      "endTime": "2026-01-15T16:00:00Z",
      "timezone": "Africa/Tunis",
      "isAllDay": false,
      "location": "Sayeda",
      "confidence": 0.85
    }
  ],
  "processingNotes": "short note on how the plan was derived",
  "confidence": 0.85,
  "contextUsed": ["time_context", "travel_planning"]
}

Keep events in chronological order. Do not invent events that were not planned.`

// PlannerService — оркестратор пайплайна генерации событий:
// прием запроса, три фазы обработки, финализация сессии.
type PlannerService struct {
	sessions  repository.SessionRepository
	events    repository.EventRepository
	calendars repository.CalendarRepository
	aiClient  AIClient
	registry  *tools.Registry
	tracker   *progress.Tracker
	uc        planner.UserContext
	cfg       *config.Config
	logger    *zap.Logger
}

// NewPlannerService создает оркестратор пайплайна.
func NewPlannerService(
	sessions repository.SessionRepository,
	events repository.EventRepository,
	calendars repository.CalendarRepository,
	aiClient AIClient,
	registry *tools.Registry,
	tracker *progress.Tracker,
	uc planner.UserContext,
	cfg *config.Config,
	logger *zap.Logger,
) *PlannerService {
	return &PlannerService{
		sessions:  sessions,
		events:    events,
		calendars: calendars,
		aiClient:  aiClient,
		registry:  registry,
		tracker:   tracker,
		uc:        uc,
		cfg:       cfg,
		logger:    logger.Named("PlannerService"),
	}
}

// GenerateEvents принимает запрос пользователя: синхронно валидирует вход,
// находит целевой календарь и создает сессию PROCESSING, затем запускает
// асинхронный пайплайн. Возвращенная сессия — это "квитанция" для опроса.
func (s *PlannerService) GenerateEvents(ctx context.Context, userID uuid.UUID, userInput string) (*models.ProcessingSession, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return nil, models.ErrEmptyUserInput
	}

	// Календарь резолвится синхронно: без календаря пайплайн бессмыслен,
	// и пользователь должен узнать об этом сразу, а не через poll
	calendar, err := s.calendars.GetDefault(ctx, userID)
	if err != nil {
		if err != models.ErrCalendarNotFound {
			return nil, fmt.Errorf("ошибка поиска календаря: %w", err)
		}
		calendar, err = s.calendars.GetAny(ctx, userID)
		if err != nil {
			if err == models.ErrCalendarNotFound {
				return nil, models.ErrNoCalendarAvailable
			}
			return nil, fmt.Errorf("ошибка поиска календаря: %w", err)
		}
	}

	session := &models.ProcessingSession{
		ID:        uuid.New(),
		UserID:    userID,
		UserInput: userInput,
		Model:     s.cfg.AIModel,
		Provider:  s.cfg.AIClientType,
		Status:    models.SessionStatusProcessing,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("ошибка создания сессии: %w", err)
	}

	s.tracker.Update(ctx, session.ID, userID, 5, progress.StageInitializing, models.SessionStatusProcessing)

	go s.runPipeline(session.ID, userID, calendar, userInput)

	s.logger.Info("Event generation accepted",
		zap.String("sessionID", session.ID.String()),
		zap.String("userID", userID.String()))

	return session, nil
}

// GetSession возвращает сессию с проверкой владельца.
func (s *PlannerService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ProcessingSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		// Чужая сессия неотличима от несуществующей
		return nil, models.ErrSessionNotFound
	}
	return session, nil
}

// GetProgress возвращает состояние прогресса сессии (poll-канал).
func (s *PlannerService) GetProgress(ctx context.Context, userID, sessionID uuid.UUID) (models.ProgressState, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return models.ProgressState{}, err
	}
	return s.tracker.Read(ctx, sessionID)
}

// ListSessions возвращает последние сессии пользователя.
func (s *PlannerService) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]models.ProcessingSession, error) {
	return s.sessions.ListByUser(ctx, userID, limit)
}

// pipelineOutput — durable-результат, записываемый в processed_output при COMPLETED.
type pipelineOutput struct {
	Plan      models.GeneratedPlan `json:"plan"`
	EventIDs  []string             `json:"eventIds"`
	Narrative string               `json:"narrative,omitempty"`
	ToolCalls int                  `json:"toolCalls"`
	Usage     UsageInfo            `json:"usage"`
}

// runPipeline — асинхронная часть: три фазы обработки с финализацией
// ровно один раз на любом исходе. Живет в собственном контексте с
// таймаутом сессии, не зависящем от HTTP-запроса.
func (s *PlannerService) runPipeline(sessionID, userID uuid.UUID, calendar *models.Calendar, userInput string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SessionTimeout)
	defer cancel()

	start := time.Now()
	finalized := false

	fail := func(reason string, err error) {
		if finalized {
			return
		}
		finalized = true
		elapsed := time.Since(start).Milliseconds()
		msg := reason
		if err != nil {
			msg = fmt.Sprintf("%s: %v", reason, err)
		}
		s.logger.Error("Pipeline failed",
			zap.String("sessionID", sessionID.String()),
			zap.String("reason", reason),
			zap.Error(err))
		if dbErr := s.sessions.Fail(ctx, sessionID, msg, elapsed); dbErr != nil {
			s.logger.Error("Failed to finalize session as FAILED", zap.Error(dbErr), zap.String("sessionID", sessionID.String()))
		}
		s.tracker.Update(ctx, sessionID, userID, 0, progress.StageFailed, models.SessionStatusFailed)
		pipelineRunsTotal.With(prometheus.Labels{"status": "failed"}).Inc()
	}

	// Cleanup обязателен на обоих исходах
	defer s.tracker.Cleanup(context.Background(), sessionID)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Pipeline panic recovered",
				zap.Any("panic", r),
				zap.String("sessionID", sessionID.String()))
			fail("внутренняя ошибка пайплайна", fmt.Errorf("panic: %v", r))
		}
	}()

	// --- Фаза 1: tool-augmented планирование ---
	systemPrompt := fmt.Sprintf("%s\n\nUser context: target calendar is %q, home location is %s, preferred transport is %s, timezone is %s.",
		planningSystemPrompt, calendar.Name, s.uc.HomeLocation, s.uc.Transport.Mode, s.uc.Timezone)
	planRes, err := s.aiClient.GenerateWithTools(ctx, systemPrompt, userInput, s.registry, s.cfg.AIMaxToolSteps,
		func(toolName string) {
			s.tracker.UpdateFromTool(ctx, sessionID, userID, toolName)
		})
	if err != nil {
		fail("ошибка фазы планирования", err)
		return
	}

	s.logger.Debug("Planning phase finished",
		zap.String("sessionID", sessionID.String()),
		zap.Int("steps", planRes.Steps),
		zap.Int("toolCalls", len(planRes.ToolCalls)))

	// --- Фаза 2: структурированное извлечение ---
	s.tracker.Update(ctx, sessionID, userID, 75, progress.StageGeneratingStructure, models.SessionStatusProcessing)

	raw, extractUsage, err := s.generateStructured(ctx, userInput, calendar.Name, planRes)
	if err != nil {
		fail("ошибка фазы извлечения структуры", err)
		return
	}
	planRes.Usage.add(extractUsage)

	// Дефектный JSON деградирует до пустого плана, а не роняет пайплайн
	plan := extractPlan(raw)
	if len(plan.Events) == 0 {
		s.logger.Warn("Extraction produced no events",
			zap.String("sessionID", sessionID.String()),
			zap.Int("rawLen", len(raw)))
	}

	// --- Фаза 3: персистенция ---
	created, err := s.persistEvents(ctx, userID, calendar.ID, plan.Events)
	if err != nil {
		fail("ошибка персистенции событий", err)
		return
	}

	output := pipelineOutput{
		Plan:      plan,
		Narrative: planRes.Narrative,
		ToolCalls: len(planRes.ToolCalls),
		Usage:     planRes.Usage,
	}
	var firstEventID *uuid.UUID
	for _, ev := range created {
		if ev == nil {
			continue
		}
		if firstEventID == nil {
			id := ev.ID
			firstEventID = &id
		}
		output.EventIDs = append(output.EventIDs, ev.ID.String())
	}

	outputJSON, err := json.Marshal(output)
	if err != nil {
		fail("ошибка сериализации результата", err)
		return
	}

	elapsed := time.Since(start).Milliseconds()
	if err := s.sessions.Complete(ctx, sessionID, outputJSON, plan.Confidence, elapsed, firstEventID); err != nil {
		fail("ошибка финализации сессии", err)
		return
	}
	finalized = true

	s.tracker.Update(ctx, sessionID, userID, 100, progress.StageCompleted, models.SessionStatusCompleted)
	pipelineRunsTotal.With(prometheus.Labels{"status": "completed"}).Inc()
	pipelineDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("Pipeline completed",
		zap.String("sessionID", sessionID.String()),
		zap.Int("eventsCreated", len(output.EventIDs)),
		zap.Int64("processingTimeMs", elapsed))
}

// generateStructured выполняет фазу извлечения с ретраями и экспоненциальным
// backoff с джиттером. Ретраи покрывают только транспортные ошибки бэкенда;
// синтаксически дефектный ответ ретраем не считается.
func (s *PlannerService) generateStructured(ctx context.Context, userInput, calendarName string, planRes ToolPlanResult) (string, UsageInfo, error) {
	var prompt strings.Builder
	prompt.WriteString("Original request: ")
	prompt.WriteString(userInput)
	prompt.WriteString("\nTarget calendar: ")
	prompt.WriteString(calendarName)
	prompt.WriteString("\n\nPlanning narrative:\n")
	prompt.WriteString(planRes.Narrative)
	if len(planRes.ToolCalls) > 0 {
		prompt.WriteString("\n\nTool results:\n")
		for _, call := range planRes.ToolCalls {
			if call.Error != "" {
				continue
			}
			if data, err := json.Marshal(call.Result); err == nil {
				prompt.WriteString(fmt.Sprintf("- %s: %s\n", call.Name, string(data)))
			}
		}
	}

	attempts := s.cfg.AIMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	totalUsage := UsageInfo{}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := s.cfg.AIBaseRetryDelay * time.Duration(1<<(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(s.cfg.AIBaseRetryDelay) + 1))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return "", totalUsage, ctx.Err()
			}
		}

		raw, usage, err := s.aiClient.GenerateText(ctx, extractionSystemPrompt, prompt.String(), GenerationParams{})
		totalUsage.add(usage)
		if err == nil {
			return raw, totalUsage, nil
		}
		lastErr = err
		s.logger.Warn("Extraction attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("maxAttempts", attempts),
			zap.Error(err))
	}
	return "", totalUsage, lastErr
}

// extractPlan защищенно разбирает ответ фазы извлечения: берет диапазон
// от первой '{' до последней '}' (бэкенды любят обрамлять JSON прозой
// или code fences). Любой дефект деградирует до пустого плана.
func extractPlan(raw string) models.GeneratedPlan {
	var plan models.GeneratedPlan

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return plan
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &plan); err != nil {
		return models.GeneratedPlan{}
	}
	return plan
}

// persistEvents конкурентно материализует события плана; порядок результата
// соответствует плану. Любая неудачная вставка проваливает весь прогон:
// сессия не может финализироваться COMPLETED с частичным набором событий.
func (s *PlannerService) persistEvents(ctx context.Context, userID, calendarID uuid.UUID, planned []models.GeneratedEvent) ([]*models.Event, error) {
	created := make([]*models.Event, len(planned))
	errs := make([]error, len(planned))
	var wg sync.WaitGroup

	for i, ge := range planned {
		wg.Add(1)
		go func(idx int, ge models.GeneratedEvent) {
			defer wg.Done()

			startTime, err := parseEventTime(ge.StartTime)
			if err != nil {
				s.logger.Warn("Skipping event with unparseable start time",
					zap.String("title", ge.Title), zap.String("startTime", ge.StartTime))
				return
			}

			event := &models.Event{
				ID:          uuid.New(),
				UserID:      userID,
				CalendarID:  calendarID,
				Emoji:       ge.Emoji,
				Title:       ge.Title,
				Description: ge.Description,
				StartTime:   startTime,
				Timezone:    models.CoerceTimezone(ge.Timezone),
				IsAllDay:    ge.IsAllDay,
			}
			if ge.EndTime != "" {
				if endTime, err := parseEventTime(ge.EndTime); err == nil {
					event.EndTime = &endTime
				}
			}
			if ge.Location != "" {
				loc := ge.Location
				event.Location = &loc
			}
			if ge.Confidence > 0 {
				conf := ge.Confidence
				event.AIConfidence = &conf
			}

			if err := s.events.Create(ctx, event); err != nil {
				s.logger.Error("Failed to persist event",
					zap.Error(err), zap.String("title", ge.Title))
				errs[idx] = fmt.Errorf("событие %q: %w", ge.Title, err)
				return
			}
			eventsCreatedTotal.Inc()
			created[idx] = event
		}(i, ge)
	}

	wg.Wait()
	return created, errors.Join(errs...)
}

func parseEventTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("не удалось разобрать время события: %q", s)
}
