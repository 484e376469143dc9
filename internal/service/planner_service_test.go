package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"planner-server/internal/config"
	"planner-server/internal/mocks"
	"planner-server/internal/models"
	"planner-server/internal/planner"
	"planner-server/internal/planner/tools"
	"planner-server/internal/progress"
	"planner-server/internal/service"
)

const extractionJSON = `{
  "events": [
    {
      "emoji": "🚗",
      "title": "🚗 Car (Ksar Hellal -> Sayeda)",
      "description": "<p>Travel leg</p>",
      "startTime": "2026-01-15T14:20:00Z",
      "endTime": "2026-01-15T14:45:00Z",
      "timezone": "Africa/Tunis",
      "location": "Ksar Hellal",
      "confidence": 0.8
    },
    {
      "emoji": "☕",
      "title": "☕ Coffee with Iheb",
      "description": "<p>Coffee catch-up</p>",
      "startTime": "2026-01-15T15:00:00Z",
      "endTime": "2026-01-15T16:00:00Z",
      "timezone": "Africa/Tunis",
      "location": "Sayeda",
      "confidence": 0.85
    },
    {
      "emoji": "🚗",
      "title": "🚗 Car (Sayeda -> Ksar Hellal)",
      "description": "<p>Travel leg</p>",
      "startTime": "2026-01-15T16:15:00Z",
      "endTime": "2026-01-15T16:40:00Z",
      "timezone": "Africa/Tunis",
      "location": "Sayeda",
      "confidence": 0.8
    }
  ],
  "processingNotes": "planned around travel from home",
  "confidence": 0.85,
  "contextUsed": ["time_context", "travel_planning"]
}`

type serviceFixture struct {
	svc       *service.PlannerService
	sessions  *mocks.MockSessionRepository
	events    *mocks.MockEventRepository
	calendars *mocks.MockCalendarRepository
	ai        *mocks.MockAIClient
	store     progress.Store
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	cfg := &config.Config{
		AIClientType:     "openai",
		AIModel:          "test-model",
		AIMaxAttempts:    1,
		AIBaseRetryDelay: time.Millisecond,
		AIMaxToolSteps:   6,
		SessionTimeout:   5 * time.Second,
		HomeLocation:     "Ksar Hellal",
		Transport:        "car",
		DefaultTimezone:  "Africa/Tunis",
		BufferMinutes:    15,
		Locale:           "tn",
	}

	sessions := mocks.NewMockSessionRepository(t)
	events := mocks.NewMockEventRepository(t)
	calendars := mocks.NewMockCalendarRepository(t)
	ai := mocks.NewMockAIClient(t)

	// Трекер пишет durable-снапшоты через репозиторий сессий
	sessions.On("UpdateProcessedOutput", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	store := progress.NewMemoryStore()
	tracker := progress.NewTracker(store, sessions, nil, zap.NewNop())

	uc := planner.NewUserContext(cfg)
	registry := tools.NewRegistry(uc)

	svc := service.NewPlannerService(sessions, events, calendars, ai, registry, tracker, uc, cfg, zap.NewNop())

	return &serviceFixture{
		svc:       svc,
		sessions:  sessions,
		events:    events,
		calendars: calendars,
		ai:        ai,
		store:     store,
	}
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("pipeline did not finish in time")
	}
}

func TestGenerateEvents_FullPipelineCreatesAllEvents(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	calendar := &models.Calendar{ID: uuid.New(), UserID: userID, IsDefault: true}

	f.calendars.On("GetDefault", mock.Anything, userID).Return(calendar, nil)
	f.sessions.On("Create", mock.Anything, mock.AnythingOfType("*models.ProcessingSession")).Return(nil)

	var reportedTools []string
	f.ai.On("GenerateWithTools", mock.Anything, mock.Anything, "coffee with Iheb tomorrow at 3pm in Sayeda", mock.Anything, 6, mock.Anything).
		Run(func(args mock.Arguments) {
			onToolCall := args.Get(5).(func(string))
			for _, name := range []string{"get_time_context", "analyze_intent", "generate_event_sequence"} {
				reportedTools = append(reportedTools, name)
				onToolCall(name)
			}
		}).
		Return(service.ToolPlanResult{
			Narrative: "Planned coffee in Sayeda with travel legs around it.",
			Steps:     3,
		}, nil)

	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(extractionJSON, service.UsageInfo{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}, nil)

	var mu sync.Mutex
	var created []*models.Event
	f.events.On("Create", mock.Anything, mock.AnythingOfType("*models.Event")).
		Run(func(args mock.Arguments) {
			mu.Lock()
			created = append(created, args.Get(1).(*models.Event))
			mu.Unlock()
		}).
		Return(nil).
		Times(3)

	done := make(chan struct{})
	var completedFirstEventID *uuid.UUID
	f.sessions.On("Complete", mock.Anything, mock.Anything, mock.Anything, 0.85, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			if id, ok := args.Get(5).(*uuid.UUID); ok {
				completedFirstEventID = id
			}
			close(done)
		}).
		Return(nil)

	session, err := f.svc.GenerateEvents(context.Background(), userID, "coffee with Iheb tomorrow at 3pm in Sayeda")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, models.SessionStatusProcessing, session.Status)
	assert.Equal(t, userID, session.UserID)

	waitFor(t, done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, created, 3)

	titles := make(map[string]*models.Event)
	for _, ev := range created {
		titles[ev.Title] = ev
		assert.Equal(t, calendar.ID, ev.CalendarID)
		assert.Equal(t, userID, ev.UserID)
		assert.Equal(t, "Africa/Tunis", ev.Timezone)
	}
	coffee, ok := titles["☕ Coffee with Iheb"]
	require.True(t, ok, "main event missing, got titles: %v", titles)
	outbound, ok := titles["🚗 Car (Ksar Hellal -> Sayeda)"]
	require.True(t, ok)
	ret, ok := titles["🚗 Car (Sayeda -> Ksar Hellal)"]
	require.True(t, ok)

	// Поездка туда кончается до старта, обратная начинается после конца
	require.NotNil(t, outbound.EndTime)
	assert.True(t, !outbound.EndTime.After(coffee.StartTime))
	assert.True(t, !ret.StartTime.Before(*coffee.EndTime))

	// EventID сессии ссылается на первое событие плана (поездку туда)
	require.NotNil(t, completedFirstEventID)
	assert.Equal(t, outbound.ID, *completedFirstEventID)

	assert.Equal(t, []string{"get_time_context", "analyze_intent", "generate_event_sequence"}, reportedTools)
}

func TestGenerateEvents_InsertFailureFailsSession(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	calendar := &models.Calendar{ID: uuid.New(), UserID: userID, IsDefault: true}

	f.calendars.On("GetDefault", mock.Anything, userID).Return(calendar, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.ai.On("GenerateWithTools", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(service.ToolPlanResult{Narrative: "n"}, nil)
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(extractionJSON, service.UsageInfo{}, nil)

	// Одна из трех вставок падает: сессия не имеет права завершиться
	// COMPLETED с частичным набором событий
	f.events.On("Create", mock.Anything, mock.MatchedBy(func(ev *models.Event) bool {
		return ev.Title == "☕ Coffee with Iheb"
	})).Return(assert.AnError)
	f.events.On("Create", mock.Anything, mock.Anything).Return(nil)

	done := make(chan struct{})
	f.sessions.On("Fail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil)

	_, err := f.svc.GenerateEvents(context.Background(), userID, "coffee with Iheb tomorrow at 3pm in Sayeda")
	require.NoError(t, err)

	waitFor(t, done)

	f.sessions.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateEvents_PromptsCarryCalendarName(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	calendar := &models.Calendar{ID: uuid.New(), UserID: userID, Name: "Personal", IsDefault: true}

	f.calendars.On("GetDefault", mock.Anything, userID).Return(calendar, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)

	var mu sync.Mutex
	var planningPrompt, extractionPrompt string
	f.ai.On("GenerateWithTools", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			planningPrompt = args.Get(1).(string)
			mu.Unlock()
		}).
		Return(service.ToolPlanResult{Narrative: "n"}, nil)
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			extractionPrompt = args.Get(2).(string)
			mu.Unlock()
		}).
		Return(`{"events":[],"confidence":0.5}`, service.UsageInfo{}, nil)

	done := make(chan struct{})
	f.sessions.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil)

	_, err := f.svc.GenerateEvents(context.Background(), userID, "coffee tomorrow")
	require.NoError(t, err)
	waitFor(t, done)

	// Имя целевого календаря встроено в промты обеих фаз
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, planningPrompt, "Personal")
	assert.Contains(t, extractionPrompt, "Personal")
}

func TestGenerateEvents_DefectiveExtractionCompletesWithZeroEvents(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	calendar := &models.Calendar{ID: uuid.New(), UserID: userID}

	f.calendars.On("GetDefault", mock.Anything, userID).Return(calendar, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.ai.On("GenerateWithTools", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(service.ToolPlanResult{Narrative: "some narrative"}, nil)
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("sorry, I could not produce the JSON you wanted", service.UsageInfo{}, nil)

	done := make(chan struct{})
	f.sessions.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			// Нет событий — нет ссылки на первое событие
			assert.Nil(t, args.Get(5).(*uuid.UUID))
			close(done)
		}).
		Return(nil)

	_, err := f.svc.GenerateEvents(context.Background(), userID, "coffee tomorrow")
	require.NoError(t, err)

	waitFor(t, done)

	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.sessions.AssertNotCalled(t, "Fail", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateEvents_PlanningFailureFailsSession(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	calendar := &models.Calendar{ID: uuid.New(), UserID: userID}

	f.calendars.On("GetDefault", mock.Anything, userID).Return(calendar, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.ai.On("GenerateWithTools", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(service.ToolPlanResult{}, service.ErrAIGenerationFailed)

	done := make(chan struct{})
	f.sessions.On("Fail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil)

	_, err := f.svc.GenerateEvents(context.Background(), userID, "coffee tomorrow")
	require.NoError(t, err)

	waitFor(t, done)

	f.sessions.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.ai.AssertNotCalled(t, "GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateEvents_ExtractionRetriesTransportErrors(t *testing.T) {
	f := newServiceFixture(t)
	// Два разрешенных захода на фазу извлечения
	f.svc = rebuildWithAttempts(t, f, 2)
	userID := uuid.New()
	calendar := &models.Calendar{ID: uuid.New(), UserID: userID}

	f.calendars.On("GetDefault", mock.Anything, userID).Return(calendar, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.ai.On("GenerateWithTools", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(service.ToolPlanResult{Narrative: "n"}, nil)

	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", service.UsageInfo{}, service.ErrAIGenerationFailed).Once()
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(`{"events":[],"confidence":0.5}`, service.UsageInfo{}, nil).Once()

	done := make(chan struct{})
	f.sessions.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil)

	_, err := f.svc.GenerateEvents(context.Background(), userID, "coffee tomorrow")
	require.NoError(t, err)

	waitFor(t, done)
	f.ai.AssertNumberOfCalls(t, "GenerateText", 2)
}

func rebuildWithAttempts(t *testing.T, f *serviceFixture, attempts int) *service.PlannerService {
	t.Helper()
	cfg := &config.Config{
		AIClientType:     "openai",
		AIModel:          "test-model",
		AIMaxAttempts:    attempts,
		AIBaseRetryDelay: time.Millisecond,
		AIMaxToolSteps:   6,
		SessionTimeout:   5 * time.Second,
		HomeLocation:     "Ksar Hellal",
		Transport:        "car",
		DefaultTimezone:  "Africa/Tunis",
		BufferMinutes:    15,
	}
	uc := planner.NewUserContext(cfg)
	tracker := progress.NewTracker(f.store, f.sessions, nil, zap.NewNop())
	return service.NewPlannerService(f.sessions, f.events, f.calendars, f.ai, tools.NewRegistry(uc), tracker, uc, cfg, zap.NewNop())
}

func TestGenerateEvents_EmptyInputRejectedSynchronously(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.GenerateEvents(context.Background(), uuid.New(), "   ")
	assert.ErrorIs(t, err, models.ErrEmptyUserInput)

	f.calendars.AssertNotCalled(t, "GetDefault", mock.Anything, mock.Anything)
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGenerateEvents_NoCalendarRejectedSynchronously(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()

	f.calendars.On("GetDefault", mock.Anything, userID).Return(nil, models.ErrCalendarNotFound)
	f.calendars.On("GetAny", mock.Anything, userID).Return(nil, models.ErrCalendarNotFound)

	_, err := f.svc.GenerateEvents(context.Background(), userID, "coffee tomorrow")
	assert.ErrorIs(t, err, models.ErrNoCalendarAvailable)

	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGenerateEvents_FallsBackToAnyCalendar(t *testing.T) {
	f := newServiceFixture(t)
	userID := uuid.New()
	calendar := &models.Calendar{ID: uuid.New(), UserID: userID}

	f.calendars.On("GetDefault", mock.Anything, userID).Return(nil, models.ErrCalendarNotFound)
	f.calendars.On("GetAny", mock.Anything, userID).Return(calendar, nil)
	f.sessions.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.ai.On("GenerateWithTools", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(service.ToolPlanResult{Narrative: "n"}, nil)
	f.ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(`{"events":[],"confidence":0.5}`, service.UsageInfo{}, nil)

	done := make(chan struct{})
	f.sessions.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(nil)

	_, err := f.svc.GenerateEvents(context.Background(), userID, "coffee tomorrow")
	require.NoError(t, err)
	waitFor(t, done)
}

func TestGetSession_OwnershipEnforced(t *testing.T) {
	f := newServiceFixture(t)
	owner, stranger := uuid.New(), uuid.New()
	sessionID := uuid.New()

	f.sessions.On("GetByID", mock.Anything, sessionID).Return(&models.ProcessingSession{
		ID:     sessionID,
		UserID: owner,
		Status: models.SessionStatusProcessing,
	}, nil)

	// Чужая сессия неотличима от несуществующей
	_, err := f.svc.GetSession(context.Background(), stranger, sessionID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)

	got, err := f.svc.GetSession(context.Background(), owner, sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessionID, got.ID)
}

func TestGetProgress_ChecksOwnershipFirst(t *testing.T) {
	f := newServiceFixture(t)
	sessionID := uuid.New()

	f.sessions.On("GetByID", mock.Anything, sessionID).Return(nil, models.ErrSessionNotFound)

	_, err := f.svc.GetProgress(context.Background(), uuid.New(), sessionID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}
