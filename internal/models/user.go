package models

import "time"

// User is the local record of an identity that has claimed a username.
// ID is owned by the identity provider; Username is stored lowercase and is
// globally unique. There is no update path.
type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Username  string    `gorm:"type:text;not null;uniqueIndex" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
