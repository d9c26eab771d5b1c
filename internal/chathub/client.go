package chathub

import "directchat/backend/internal/models"

// Client is one realtime connection owned by an authenticated user.
// The hub is the only writer to the send channel and the only caller of Close.
type Client interface {
	// GetUserID returns the caller id the connection was authenticated as.
	GetUserID() string

	// GetSendChannel returns the channel the hub pushes events to. It must be
	// buffered; a full buffer marks the client as too slow and it is dropped.
	GetSendChannel() chan<- models.ChatEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close releases the send channel, which stops the write pump.
	Close()
}
