package mocks

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"planner-server/internal/models"
	"planner-server/internal/repository"
)

// MockSessionRepository is a mock type for the SessionRepository type
type MockSessionRepository struct {
	mock.Mock
}

func (_m *MockSessionRepository) Create(ctx context.Context, session *models.ProcessingSession) error {
	ret := _m.Called(ctx, session)
	return ret.Error(0)
}

func (_m *MockSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProcessingSession, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.ProcessingSession
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.ProcessingSession)
	}
	return r0, ret.Error(1)
}

func (_m *MockSessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.ProcessingSession, error) {
	ret := _m.Called(ctx, userID, limit)

	var r0 []models.ProcessingSession
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.ProcessingSession)
	}
	return r0, ret.Error(1)
}

func (_m *MockSessionRepository) UpdateProcessedOutput(ctx context.Context, id uuid.UUID, output json.RawMessage) error {
	ret := _m.Called(ctx, id, output)
	return ret.Error(0)
}

func (_m *MockSessionRepository) Complete(ctx context.Context, id uuid.UUID, output json.RawMessage, confidence float64, processingTimeMs int64, firstEventID *uuid.UUID) error {
	ret := _m.Called(ctx, id, output, confidence, processingTimeMs, firstEventID)
	return ret.Error(0)
}

func (_m *MockSessionRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string, processingTimeMs int64) error {
	ret := _m.Called(ctx, id, errorMessage, processingTimeMs)
	return ret.Error(0)
}

// NewMockSessionRepository creates a new instance of MockSessionRepository.
func NewMockSessionRepository(t interface {
	mock.TestingT
	Helper()
}) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.SessionRepository = (*MockSessionRepository)(nil)

// MockEventRepository is a mock type for the EventRepository type
type MockEventRepository struct {
	mock.Mock
}

func (_m *MockEventRepository) Create(ctx context.Context, event *models.Event) error {
	ret := _m.Called(ctx, event)
	return ret.Error(0)
}

func (_m *MockEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Event
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Event)
	}
	return r0, ret.Error(1)
}

func (_m *MockEventRepository) ListByCalendar(ctx context.Context, calendarID uuid.UUID, limit int) ([]models.Event, error) {
	ret := _m.Called(ctx, calendarID, limit)

	var r0 []models.Event
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Event)
	}
	return r0, ret.Error(1)
}

// NewMockEventRepository creates a new instance of MockEventRepository.
func NewMockEventRepository(t interface {
	mock.TestingT
	Helper()
}) *MockEventRepository {
	m := &MockEventRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.EventRepository = (*MockEventRepository)(nil)

// MockCalendarRepository is a mock type for the CalendarRepository type
type MockCalendarRepository struct {
	mock.Mock
}

func (_m *MockCalendarRepository) Create(ctx context.Context, calendar *models.Calendar) error {
	ret := _m.Called(ctx, calendar)
	return ret.Error(0)
}

func (_m *MockCalendarRepository) GetDefault(ctx context.Context, userID uuid.UUID) (*models.Calendar, error) {
	ret := _m.Called(ctx, userID)

	var r0 *models.Calendar
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Calendar)
	}
	return r0, ret.Error(1)
}

func (_m *MockCalendarRepository) GetAny(ctx context.Context, userID uuid.UUID) (*models.Calendar, error) {
	ret := _m.Called(ctx, userID)

	var r0 *models.Calendar
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Calendar)
	}
	return r0, ret.Error(1)
}

// NewMockCalendarRepository creates a new instance of MockCalendarRepository.
func NewMockCalendarRepository(t interface {
	mock.TestingT
	Helper()
}) *MockCalendarRepository {
	m := &MockCalendarRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.CalendarRepository = (*MockCalendarRepository)(nil)
