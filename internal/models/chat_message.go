package models

import "time"

// ChatMessage is a persisted, immutable message. ID is assigned by storage and
// is the authoritative order within a chat; SentAt is informational only.
type ChatMessage struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	ChatID  uint      `gorm:"not null;index:idx_chat_messages_chat_id" json:"chat_id"`
	UserID  string    `gorm:"type:text;not null" json:"user_id"`
	Message string    `gorm:"type:text;not null" json:"message"`
	SentAt  time.Time `gorm:"not null" json:"sent_at"`
}
