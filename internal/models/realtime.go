package models

// Server frame types.
const (
	EventChatChanged = "chat_changed"
	EventError       = "error"
)

// Client frame actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// ChatEvent is pushed to websocket clients. It is an invalidation signal:
// receivers re-fetch messages and the chat list, no payload is carried. A
// chat_changed frame without a chat id invalidates every chat.
type ChatEvent struct {
	Type   string `json:"type"`
	ChatID uint   `json:"chat_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ClientFrame is what a websocket client sends to manage its subscriptions.
type ClientFrame struct {
	Action string `json:"action"`
	ChatID uint   `json:"chat_id"`
}
