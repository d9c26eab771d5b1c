package directory

import (
	"directchat/backend/internal/config"
	"directchat/backend/internal/identity"
)

// Member is another participant of a chat. Profile is nil when the identity
// provider could not resolve the id.
type Member struct {
	UserID  string            `json:"user_id"`
	Profile *identity.Profile `json:"profile,omitempty"`
}

// Participants is who the caller is talking to: either one DirectChat peer or,
// for chats with several other members, a GroupPlaceholder.
type Participants interface {
	Kind() string
	Label() string
	Members() []Member
}

type DirectChat struct {
	Peer Member
}

func (d DirectChat) Kind() string { return "direct" }

// Label is the peer's username, or a generic placeholder when unresolved.
func (d DirectChat) Label() string {
	if d.Peer.Profile == nil || d.Peer.Profile.Username == "" {
		return config.UnknownUserLabel
	}
	return d.Peer.Profile.Username
}

func (d DirectChat) Members() []Member {
	if d.Peer.UserID == "" {
		return []Member{}
	}
	return []Member{d.Peer}
}

// GroupPlaceholder never exposes a single username as the chat label.
type GroupPlaceholder struct {
	Others []Member
}

func (g GroupPlaceholder) Kind() string { return "group" }

func (g GroupPlaceholder) Label() string { return config.GroupChatLabel }

func (g GroupPlaceholder) Members() []Member { return g.Others }
