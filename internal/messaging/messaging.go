// Package messaging reads chat history and appends new messages under
// per-caller admission control.
package messaging

import (
	"context"
	"directchat/backend/internal/apperror"
	"directchat/backend/internal/identity"
	"directchat/backend/internal/models"
	"directchat/backend/internal/ratelimit"
	"directchat/backend/internal/storage"
	"directchat/backend/internal/validation"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MessageView is a stored message joined with its sender's profile.
// SenderProfile is nil when the sender can no longer be resolved.
type MessageView struct {
	ID            uint              `json:"id"`
	ChatID        uint              `json:"chat_id"`
	SenderID      string            `json:"sender_id"`
	Text          string            `json:"message"`
	SentAt        time.Time         `json:"sent_at"`
	SenderProfile *identity.Profile `json:"sender_profile"`
}

type Service struct {
	Storage storage.Storage
	Gateway identity.Gateway
	Limiter ratelimit.Limiter
	Log     *zap.Logger

	now func() time.Time
}

func NewService(s storage.Storage, g identity.Gateway, l ratelimit.Limiter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Storage: s, Gateway: g, Limiter: l, Log: logger, now: time.Now}
}

// WithClock replaces the time source used for sentAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetMessages returns the whole history of chatID, newest first by id.
// Sender profiles are fetched in a single batch whatever the history length.
func (s *Service) GetMessages(ctx context.Context, callerID string, chatID uint) ([]MessageView, error) {
	if err := storage.RequireChatMember(ctx, s.Storage, chatID, callerID); err != nil {
		return nil, err
	}

	messages, err := s.Storage.GetMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get messages of chat %d: %w", chatID, err)
	}
	if len(messages) == 0 {
		return []MessageView{}, nil
	}

	senderIDs := lo.Uniq(lo.Map(messages, func(m models.ChatMessage, _ int) string { return m.UserID }))
	profiles, err := s.Gateway.ProfilesByID(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("sender profiles of chat %d: %w", chatID, err)
	}

	return lo.Map(messages, func(m models.ChatMessage, _ int) MessageView {
		v := toView(m)
		if p, ok := profiles[m.UserID]; ok {
			v.SenderProfile = &p
		}
		return v
	}), nil
}

// LastMessage returns the message with the highest id, or nil for an empty chat.
func (s *Service) LastMessage(ctx context.Context, callerID string, chatID uint) (*MessageView, error) {
	if err := storage.RequireChatMember(ctx, s.Storage, chatID, callerID); err != nil {
		return nil, err
	}

	msg, err := s.Storage.GetLastMessage(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("last message of chat %d: %w", chatID, err)
	}
	if msg == nil {
		return nil, nil
	}
	v := toView(*msg)
	return &v, nil
}

// SendMessage validates, admits and persists one message. Any failure leaves
// no row behind. The insert itself triggers realtime notification.
func (s *Service) SendMessage(ctx context.Context, callerID string, chatID uint, raw string) (*MessageView, error) {
	text, err := validation.Message(raw)
	if err != nil {
		return nil, err
	}

	allowed, retryAfter, err := s.Limiter.Allow(ctx, callerID)
	if err != nil {
		s.Log.Error("rate limiter unavailable", zap.String("user_id", callerID), zap.Error(err))
		return nil, fmt.Errorf("rate limit check for %s: %w", callerID, err)
	}
	if !allowed {
		s.Log.Info("message rejected by rate limiter",
			zap.String("user_id", callerID), zap.Duration("retry_after", retryAfter))
		return nil, apperror.RateLimited(retryAfter)
	}

	if err := storage.RequireChatMember(ctx, s.Storage, chatID, callerID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ChatID:  chatID,
		UserID:  callerID,
		Message: text,
		SentAt:  s.now().UTC(),
	}
	if err := s.Storage.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message to chat %d: %w", chatID, err)
	}

	s.Log.Debug("message stored", zap.Uint("chat_id", chatID), zap.Uint("message_id", msg.ID))
	v := toView(*msg)
	return &v, nil
}

func toView(m models.ChatMessage) MessageView {
	return MessageView{
		ID:       m.ID,
		ChatID:   m.ChatID,
		SenderID: m.UserID,
		Text:     m.Message,
		SentAt:   m.SentAt,
	}
}
