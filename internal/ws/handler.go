package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время, разрешенное для чтения следующего pong сообщения от клиента.
	pongWait = 60 * time.Second
	// Отправлять пинги клиенту с этим периодом. Должно быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Максимальный размер сообщения, разрешенный от клиента.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin фильтруется CORS-слоем HTTP сервера
		return true
	},
}

// Handler обрабатывает запросы на установку WebSocket соединения
// для push-канала прогресса.
type Handler struct {
	manager   *ConnectionManager
	jwtSecret []byte
	logger    zerolog.Logger
}

// NewHandler создает обработчик WebSocket.
func NewHandler(manager *ConnectionManager, jwtSecret []byte, logger zerolog.Logger) *Handler {
	return &Handler{
		manager:   manager,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "WebSocketHandler").Logger(),
	}
}

// ServeWS апгрейдит HTTP запрос до WebSocket. Токен передается
// query-параметром 'token' (браузерный WebSocket не умеет заголовки);
// опциональный 'session_id' подписывает соединение на одну сессию.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	if tokenString == "" {
		h.logger.Warn().Msg("Missing 'token' query parameter")
		http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.validateToken(tokenString)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Invalid token")
		http.Error(w, fmt.Sprintf("Unauthorized: %s", err.Error()), http.StatusUnauthorized)
		return
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		h.logger.Error().Interface("claims", claims).Msg("UserID ('sub') not found or empty in token claims")
		http.Error(w, "Unauthorized: Invalid token claims", http.StatusUnauthorized)
		return
	}

	sessionFilter := r.URL.Query().Get("session_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("userID", userID).Msg("Failed to upgrade connection")
		return
	}

	h.logger.Info().
		Str("userID", userID).
		Str("sessionFilter", sessionFilter).
		Msg("WebSocket connection established")

	client := &Client{
		UserID:        userID,
		SessionFilter: sessionFilter,
		Conn:          conn,
		send:          make(chan []byte, 256),
	}

	h.manager.RegisterClient(client)

	go client.writePump(h.logger.With().Str("userID", userID).Logger())
	go client.readPump(h.manager, h.logger.With().Str("userID", userID).Logger())
}

// validateToken проверяет JWT токен и возвращает claims.
func (h *Handler) validateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token parse error: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// readPump откачивает входящие сообщения. Клиенты ничего не шлют,
// но цикл чтения нужен для обработки close/pong фреймов.
func (c *Client) readPump(manager *ConnectionManager, logger zerolog.Logger) {
	defer func() {
		manager.UnregisterClient(c.UserID)
		_ = c.Conn.Close()
		logger.Info().Msg("readPump finished")
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			} else {
				logger.Info().Msg("WebSocket connection closed")
			}
			break
		}
		logger.Warn().Bytes("message", message).Msg("Received unexpected message from client (ignored)")
	}
}

// writePump откачивает сообщения из канала send в соединение.
func (c *Client) writePump(logger zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		logger.Info().Msg("writePump finished")
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Канал закрыт менеджером: завершаем поток корректно
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Error().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Warn().Err(err).Msg("Failed to send ping")
				return
			}
		}
	}
}
