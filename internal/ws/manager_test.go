package ws

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *ConnectionManager {
	return NewConnectionManager(zerolog.Nop())
}

func newTestClient(userID, sessionFilter string) *Client {
	return &Client{
		UserID:        userID,
		SessionFilter: sessionFilter,
		send:          make(chan []byte, 8),
	}
}

func waitRegistered(t *testing.T, m *ConnectionManager, userID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		_, ok := m.clients[userID]
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestSendProgress_OfflineUserDropped(t *testing.T) {
	m := newTestManager()
	assert.False(t, m.SendProgress("nobody", "session-1", false, []byte("{}")))
}

func TestSendProgress_DeliveredToConnectedUser(t *testing.T) {
	m := newTestManager()
	client := newTestClient("user-1", "")
	m.RegisterClient(client)
	waitRegistered(t, m, "user-1")

	assert.True(t, m.SendProgress("user-1", "session-1", false, []byte(`{"progress":10}`)))

	select {
	case msg := <-client.send:
		assert.Equal(t, `{"progress":10}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("message was not queued")
	}
}

func TestSendProgress_SessionFilterMismatch(t *testing.T) {
	m := newTestManager()
	client := newTestClient("user-1", "session-a")
	m.RegisterClient(client)
	waitRegistered(t, m, "user-1")

	assert.False(t, m.SendProgress("user-1", "session-b", false, []byte("{}")))
	assert.Len(t, client.send, 0)
}

func TestSendProgress_TerminalClosesFilteredSubscription(t *testing.T) {
	m := newTestManager()
	client := newTestClient("user-1", "session-a")
	m.RegisterClient(client)
	waitRegistered(t, m, "user-1")

	assert.True(t, m.SendProgress("user-1", "session-a", true, []byte(`{"status":"COMPLETED"}`)))

	// После терминального сообщения подписка на сессию закрывается
	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		_, ok := m.clients["user-1"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestSendProgress_TerminalKeepsUnfilteredConnection(t *testing.T) {
	m := newTestManager()
	client := newTestClient("user-1", "")
	m.RegisterClient(client)
	waitRegistered(t, m, "user-1")

	assert.True(t, m.SendProgress("user-1", "session-a", true, []byte(`{"status":"COMPLETED"}`)))

	// Без фильтра сессии соединение живет дальше
	time.Sleep(20 * time.Millisecond)
	m.mu.RLock()
	_, ok := m.clients["user-1"]
	m.mu.RUnlock()
	assert.True(t, ok)
}

func TestSendProgress_FullQueueDropsUpdate(t *testing.T) {
	m := newTestManager()
	client := &Client{UserID: "user-1", send: make(chan []byte)}
	m.RegisterClient(client)
	waitRegistered(t, m, "user-1")

	// Небуферизованный канал без читателя: очередь "полна"
	assert.False(t, m.SendProgress("user-1", "session-1", false, []byte("{}")))
}
