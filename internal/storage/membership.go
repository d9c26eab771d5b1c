package storage

import (
	"context"
	"directchat/backend/internal/apperror"
	"fmt"
	"strconv"
)

// MembershipChecker is the membership query shared by the services and the hub.
type MembershipChecker interface {
	IsChatMember(ctx context.Context, chatID uint, userID string) (bool, error)
}

// RequireChatMember returns apperror.NotFound for the chat when userID is not
// one of its members, so callers cannot tell a foreign chat from a missing one.
func RequireChatMember(ctx context.Context, s MembershipChecker, chatID uint, userID string) error {
	ok, err := s.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return fmt.Errorf("check membership of %s in chat %d: %w", userID, chatID, err)
	}
	if !ok {
		return apperror.NotFound("chat", strconv.FormatUint(uint64(chatID), 10))
	}
	return nil
}
