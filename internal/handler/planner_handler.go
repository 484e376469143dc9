package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"planner-server/internal/models"
	"planner-server/internal/service"
)

// PlannerHandler — HTTP фасад пайплайна генерации событий.
type PlannerHandler struct {
	service *service.PlannerService
	logger  *zap.Logger
}

// NewPlannerHandler создает HTTP обработчик планировщика.
func NewPlannerHandler(service *service.PlannerService, logger *zap.Logger) *PlannerHandler {
	return &PlannerHandler{
		service: service,
		logger:  logger.Named("PlannerHandler"),
	}
}

// RegisterRoutes регистрирует маршруты планировщика в защищенной группе.
func (h *PlannerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	planner := rg.Group("/planner")
	{
		planner.POST("/generate", h.GenerateEvents)
		planner.GET("/sessions", h.ListSessions)
		planner.GET("/sessions/:id", h.GetSession)
		planner.GET("/sessions/:id/progress", h.GetProgress)
	}
}

type generateRequest struct {
	UserInput string `json:"userInput" binding:"required"`
}

type generateResponse struct {
	Success             bool   `json:"success"`
	ProcessingSessionID string `json:"processingSessionId"`
}

// GenerateEvents принимает запрос на генерацию событий.
// Ответ 202: обработка продолжается асинхронно, клиент опрашивает
// прогресс по processingSessionId или подписывается на push-канал.
func (h *PlannerHandler) GenerateEvents(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userInput is required"})
		return
	}

	session, err := h.service.GenerateEvents(c.Request.Context(), userID, req.UserInput)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, generateResponse{
		Success:             true,
		ProcessingSessionID: session.ID.String(),
	})
}

// GetProgress возвращает текущее состояние прогресса сессии (poll-канал).
func (h *PlannerHandler) GetProgress(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	state, err := h.service.GetProgress(c.Request.Context(), userID, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetSession возвращает сессию обработки целиком.
func (h *PlannerHandler) GetSession(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListSessions возвращает последние сессии пользователя.
func (h *PlannerHandler) ListSessions(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	sessions, err := h.service.ListSessions(c.Request.Context(), userID, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// handleServiceError переводит доменные ошибки в HTTP статусы.
func (h *PlannerHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyUserInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "userInput must not be empty"})
	case errors.Is(err, models.ErrNoCalendarAvailable):
		c.JSON(http.StatusConflict, gin.H{"error": "no calendar available: create a calendar first"})
	case errors.Is(err, models.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, models.ErrProgressNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "progress not found"})
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
