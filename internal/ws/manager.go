package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client представляет одно WebSocket соединение пользователя.
// SessionFilter непустой, если клиент подписан только на одну сессию:
// такому клиенту доставляются обновления этой сессии, и после
// терминального обновления соединение закрывается сервером.
type Client struct {
	UserID        string
	SessionFilter string
	Conn          *websocket.Conn
	send          chan []byte
}

// ConnectionManager управляет активными WebSocket соединениями.
type ConnectionManager struct {
	clients    map[string]*Client // userID -> Client
	register   chan *Client
	unregister chan string
	mu         sync.RWMutex
	logger     zerolog.Logger
}

// NewConnectionManager создает и запускает менеджер соединений.
func NewConnectionManager(logger zerolog.Logger) *ConnectionManager {
	m := &ConnectionManager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan string),
		logger:     logger.With().Str("component", "ConnectionManager").Logger(),
	}
	go m.run()
	return m
}

func (m *ConnectionManager) run() {
	m.logger.Info().Msg("ConnectionManager started")
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			// Новое соединение пользователя вытесняет старое
			if oldClient, ok := m.clients[client.UserID]; ok {
				m.logger.Info().Str("userID", client.UserID).Msg("Closing previous connection")
				close(oldClient.send)
				_ = oldClient.Conn.Close()
			}
			m.clients[client.UserID] = client
			m.mu.Unlock()
			m.logger.Info().
				Str("userID", client.UserID).
				Str("sessionFilter", client.SessionFilter).
				Msg("Client registered")

		case userID := <-m.unregister:
			m.mu.Lock()
			if client, ok := m.clients[userID]; ok {
				delete(m.clients, userID)
				close(client.send)
			}
			m.mu.Unlock()
			m.logger.Info().Str("userID", userID).Msg("Client unregistered")
		}
	}
}

// RegisterClient регистрирует нового клиента.
func (m *ConnectionManager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient удаляет клиента.
func (m *ConnectionManager) UnregisterClient(userID string) {
	m.unregister <- userID
}

// SendProgress доставляет обновление прогресса пользователю, уважая
// подписку на конкретную сессию. После терминального обновления
// подписанное на сессию соединение дерегистрируется: поток окончен.
// Возвращает true, если сообщение поставлено в очередь отправки.
func (m *ConnectionManager) SendProgress(userID, sessionID string, terminal bool, message []byte) bool {
	m.mu.RLock()
	client, ok := m.clients[userID]
	m.mu.RUnlock()

	if !ok {
		m.logger.Debug().Str("userID", userID).Msg("User offline, update dropped")
		return false
	}
	if client.SessionFilter != "" && client.SessionFilter != sessionID {
		// Не та сессия: для этого клиента обновление не существует
		return false
	}

	select {
	case client.send <- message:
		if terminal && client.SessionFilter == sessionID {
			// Терминальное сообщение ушло последним, дальше закрываем поток
			go m.UnregisterClient(userID)
		}
		return true
	default:
		m.logger.Warn().Str("userID", userID).Msg("Send queue full, dropping update")
		return false
	}
}
