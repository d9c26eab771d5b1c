package chathub

import (
	"context"
	"directchat/backend/internal/models"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	accessTimeout  = 5 * time.Second

	// SendBufferSize bounds the events queued for one connection.
	SendBufferSize = 64
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	UserID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.ChatEvent
	Log    *zap.Logger

	// Translate turns a localization key into the text of an error frame.
	Translate func(key string) string

	closeOnce sync.Once
}

// NewWebSocketClient wires a freshly upgraded connection to hub.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, userID string, translate func(string) string) *WebSocketClient {
	if translate == nil {
		translate = func(key string) string { return key }
	}
	return &WebSocketClient{
		UserID:    userID,
		Conn:      conn,
		Hub:       hub,
		Send:      make(chan models.ChatEvent, SendBufferSize),
		Log:       hub.Log.With(zap.String("user_id", userID)),
		Translate: translate,
	}
}

func (c *WebSocketClient) GetUserID() string                       { return c.UserID }
func (c *WebSocketClient) GetSendChannel() chan<- models.ChatEvent { return c.Send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which makes writePump send a close frame and exit.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// readPump turns client frames into hub subscriptions. Membership is checked
// here so the hub loop never waits on storage.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.ChatID == 0 {
			c.Hub.Subscribe(Subscription{Client: c, Reject: c.Translate("error.bad_frame")})
			continue
		}

		switch frame.Action {
		case models.ActionSubscribe:
			c.Hub.Subscribe(c.authorize(frame.ChatID))
		case models.ActionUnsubscribe:
			c.Hub.Unsubscribe(Subscription{Client: c, ChatID: frame.ChatID})
		default:
			c.Hub.Subscribe(Subscription{Client: c, ChatID: frame.ChatID, Reject: c.Translate("error.bad_frame")})
		}
	}
}

func (c *WebSocketClient) authorize(chatID uint) Subscription {
	sub := Subscription{Client: c, ChatID: chatID}
	if c.Hub.Access == nil {
		return sub
	}

	ctx, cancel := context.WithTimeout(context.Background(), accessTimeout)
	defer cancel()

	ok, err := c.Hub.Access.IsChatMember(ctx, chatID, c.UserID)
	switch {
	case err != nil:
		c.Log.Error("subscription access check failed", zap.Uint("chat_id", chatID), zap.Error(err))
		sub.Reject = c.Translate("error.internal")
	case !ok:
		sub.Reject = c.Translate("error.subscribe_denied")
	}
	return sub
}

// writePump writes hub events and keepalive pings to the connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(event); err != nil {
				c.Log.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
