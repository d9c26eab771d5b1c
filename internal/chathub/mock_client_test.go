package chathub_test

import (
	"directchat/backend/internal/models"
	"sync"
)

type MockClient struct {
	userID      string
	RecvChannel chan models.ChatEvent

	mu     sync.Mutex
	closed bool
}

func newMockClient(userID string, buffer int) *MockClient {
	return &MockClient{
		userID:      userID,
		RecvChannel: make(chan models.ChatEvent, buffer),
	}
}

func (c *MockClient) GetUserID() string {
	return c.userID
}

func (c *MockClient) GetSendChannel() chan<- models.ChatEvent {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns every event currently buffered.
func (c *MockClient) drain() []models.ChatEvent {
	var out []models.ChatEvent
	for {
		select {
		case ev := <-c.RecvChannel:
			out = append(out, ev)
		default:
			return out
		}
	}
}
