// Package directory lists a caller's chats, resolves who is in them and
// opens direct chats by username.
package directory

import (
	"cmp"
	"context"
	"directchat/backend/internal/apperror"
	"directchat/backend/internal/config"
	"directchat/backend/internal/identity"
	"directchat/backend/internal/models"
	"directchat/backend/internal/storage"
	"directchat/backend/internal/validation"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ChatSummary is one row of the chat list, annotated with the newest message.
type ChatSummary struct {
	ChatID       uint      `json:"chat_id"`
	LastMessage  string    `json:"last_message"`
	LastSenderID string    `json:"last_sender_id"`
	LastSentAt   time.Time `json:"last_sent_at"`

	lastMessageID uint
}

type Service struct {
	Storage storage.Storage
	Gateway identity.Gateway
	Log     *zap.Logger
}

func NewService(s storage.Storage, g identity.Gateway, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Storage: s, Gateway: g, Log: logger}
}

// ListChats returns the caller's chats that have at least one message, most
// recently active first. "Latest" is the highest message id in each chat.
func (s *Service) ListChats(ctx context.Context, callerID string) ([]ChatSummary, error) {
	chatIDs, err := s.Storage.ListChatIDsForUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list chat ids for %s: %w", callerID, err)
	}
	if len(chatIDs) == 0 {
		return []ChatSummary{}, nil
	}

	latest, err := s.Storage.LatestMessages(ctx, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("latest messages for %s: %w", callerID, err)
	}

	summaries := lo.Map(latest, func(m models.ChatMessage, _ int) ChatSummary {
		return ChatSummary{
			ChatID:        m.ChatID,
			LastMessage:   m.Message,
			LastSenderID:  m.UserID,
			LastSentAt:    m.SentAt,
			lastMessageID: m.ID,
		}
	})
	slices.SortStableFunc(summaries, func(a, b ChatSummary) int {
		if c := b.LastSentAt.Compare(a.LastSentAt); c != 0 {
			return c
		}
		return cmp.Compare(b.lastMessageID, a.lastMessageID)
	})
	return summaries, nil
}

// ChatMembers returns the members of chatID other than the caller. A caller
// outside the chat gets NotFound, as if the chat did not exist.
func (s *Service) ChatMembers(ctx context.Context, callerID string, chatID uint) (Participants, error) {
	if err := storage.RequireChatMember(ctx, s.Storage, chatID, callerID); err != nil {
		return nil, err
	}

	rows, err := s.Storage.GetChatMembersExcept(ctx, chatID, callerID)
	if err != nil {
		return nil, fmt.Errorf("chat %d members: %w", chatID, err)
	}

	ids := lo.Map(rows, func(m models.ChatMember, _ int) string { return m.UserID })
	profiles, err := s.Gateway.ProfilesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("chat %d member profiles: %w", chatID, err)
	}

	members := lo.Map(ids, func(id string, _ int) Member {
		m := Member{UserID: id}
		if p, ok := profiles[id]; ok {
			m.Profile = &p
		}
		return m
	})

	switch len(members) {
	case 0:
		return DirectChat{}, nil
	case 1:
		return DirectChat{Peer: members[0]}, nil
	default:
		return GroupPlaceholder{Others: members}, nil
	}
}

// OpenOrCreateChat returns the direct chat between the caller and the user
// registered as targetUsername, creating it if needed. Concurrent calls for
// the same pair converge on one chat.
func (s *Service) OpenOrCreateChat(ctx context.Context, callerID, targetUsername string) (uint, error) {
	name := validation.NormalizeUsername(targetUsername)
	if name == "" {
		return 0, apperror.ValidationFailed("username", "error.username_required", "Username is required")
	}

	profiles, err := s.Gateway.ProfilesByUsername(ctx, []string{name})
	if err != nil {
		return 0, fmt.Errorf("resolve user %s: %w", name, err)
	}
	target, ok := profiles[name]
	if !ok {
		return 0, apperror.NotFound("user", name)
	}
	if target.ID == callerID {
		return 0, apperror.ValidationFailed("username", "error.self_chat", "You cannot open a chat with yourself")
	}

	existing, err := s.Storage.FindChatByMembers(ctx, callerID, target.ID)
	if err != nil {
		return 0, fmt.Errorf("find chat %s/%s: %w", callerID, target.ID, err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	chat, err := s.Storage.CreateChat(ctx, callerID, target.ID)
	if err != nil {
		return 0, fmt.Errorf("create chat %s/%s: %w", callerID, target.ID, err)
	}
	s.Log.Info("chat opened",
		zap.Uint("chat_id", chat.ID), zap.String("user_id", callerID), zap.String("peer_id", target.ID))
	return chat.ID, nil
}

// SearchUsers finds users whose username starts with prefix, excluding the
// caller. Prefixes that no username could match yield an empty result.
func (s *Service) SearchUsers(ctx context.Context, callerID, prefix string) ([]identity.Profile, error) {
	prefix, ok := validation.UsernamePrefix(prefix)
	if !ok {
		return []identity.Profile{}, nil
	}

	// One extra row so excluding the caller still leaves a full page.
	users, err := s.Storage.SearchUsers(ctx, prefix, config.UserSearchLimit+1)
	if err != nil {
		return nil, fmt.Errorf("search users %q: %w", prefix, err)
	}
	users = lo.Filter(users, func(u models.User, _ int) bool { return u.ID != callerID })
	if len(users) > config.UserSearchLimit {
		users = users[:config.UserSearchLimit]
	}
	if len(users) == 0 {
		return []identity.Profile{}, nil
	}

	ids := lo.Map(users, func(u models.User, _ int) string { return u.ID })
	profiles, err := s.Gateway.ProfilesByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("search users %q profiles: %w", prefix, err)
	}
	return lo.FilterMap(ids, func(id string, _ int) (identity.Profile, bool) {
		p, ok := profiles[id]
		return p, ok
	}), nil
}
