package chathub_test

import (
	"context"
	"directchat/backend/internal/chathub"
	"directchat/backend/internal/models"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// startWS serves a hub-backed websocket endpoint that authenticates every
// connection as userID.
func startWS(t *testing.T, access *MockAccess, userID string) (*chathub.ManagerService, chan uint, *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := chathub.NewManagerService(access, nil)
	events := make(chan uint)
	go hub.Run(ctx, events)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := chathub.NewWebSocketClient(hub, conn, userID, nil)
		if hub.Register(client) {
			client.Run()
		}
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		s, err := hub.Stats(context.Background())
		return err == nil && s.Clients == 1
	}, time.Second, 10*time.Millisecond)

	return hub, events, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ChatEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev models.ChatEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketClient_SubscribeAndReceive(t *testing.T) {
	access := new(MockAccess)
	access.On("IsChatMember", mock.Anything, uint(5), "alice").Return(true, nil)
	hub, events, conn := startWS(t, access, "alice")

	require.NoError(t, conn.WriteJSON(models.ClientFrame{Action: models.ActionSubscribe, ChatID: 5}))
	require.Eventually(t, func() bool {
		s, _ := hub.Stats(context.Background())
		return s.Subscriptions == 1
	}, time.Second, 10*time.Millisecond)

	events <- 5
	assert.Equal(t, models.ChatEvent{Type: models.EventChatChanged, ChatID: 5}, readEvent(t, conn))
}

func TestWebSocketClient_NonMemberRefused(t *testing.T) {
	access := new(MockAccess)
	access.On("IsChatMember", mock.Anything, uint(5), "eve").Return(false, nil)
	hub, _, conn := startWS(t, access, "eve")

	require.NoError(t, conn.WriteJSON(models.ClientFrame{Action: models.ActionSubscribe, ChatID: 5}))
	ev := readEvent(t, conn)
	assert.Equal(t, models.EventError, ev.Type)
	assert.Equal(t, "error.subscribe_denied", ev.Error)

	s, err := hub.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, s.Subscriptions)
}

func TestWebSocketClient_AccessCheckFailure(t *testing.T) {
	access := new(MockAccess)
	access.On("IsChatMember", mock.Anything, uint(5), "alice").Return(false, errors.New("db down"))
	_, _, conn := startWS(t, access, "alice")

	require.NoError(t, conn.WriteJSON(models.ClientFrame{Action: models.ActionSubscribe, ChatID: 5}))
	assert.Equal(t, "error.internal", readEvent(t, conn).Error)
}

func TestWebSocketClient_BadFrame(t *testing.T) {
	_, _, conn := startWS(t, new(MockAccess), "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	ev := readEvent(t, conn)
	assert.Equal(t, models.EventError, ev.Type)
	assert.Equal(t, "error.bad_frame", ev.Error)
}

func TestWebSocketClient_DisconnectUnregisters(t *testing.T) {
	hub, _, conn := startWS(t, new(MockAccess), "alice")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		s, err := hub.Stats(context.Background())
		return err == nil && s.Clients == 0
	}, 2*time.Second, 10*time.Millisecond)
}
