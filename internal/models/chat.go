package models

import (
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Chat is a conversation container between exactly two users.
type Chat struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// PairKey is the canonical (sorted) member pair. The unique index is what
	// keeps concurrent open-or-create calls from producing two chats.
	PairKey   string       `gorm:"type:text;not null;uniqueIndex" json:"-"`
	CreatedAt time.Time    `json:"created_at"`
	Members   []ChatMember `gorm:"foreignKey:ChatID" json:"members,omitempty"`
}

// ChatMember is the (chat, user) membership pair.
type ChatMember struct {
	ChatID uint   `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	UserID string `gorm:"primaryKey;type:text;index" json:"user_id"`
}

// PairKey returns the order-independent key for a set of member ids.
func PairKey(userIDs ...string) string {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// BeforeCreate fills PairKey from the members when it is not set yet.
func (c *Chat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.PairKey == "" && len(c.Members) > 0 {
		ids := make([]string, 0, len(c.Members))
		for _, m := range c.Members {
			ids = append(ids, m.UserID)
		}
		c.PairKey = PairKey(ids...)
	}
	return
}

// MemberIDs returns the user ids of the loaded members.
func (c *Chat) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}
