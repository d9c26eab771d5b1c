package storage

import (
	"context"
	"directchat/backend/internal/models"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FindChatByMembers returns the chat whose member set is exactly {userA, userB},
// or nil when there is none. Argument order does not matter.
func (s *Service) FindChatByMembers(ctx context.Context, userA, userB string) (*models.Chat, error) {
	var chat models.Chat
	err := s.DB.WithContext(ctx).
		Where("pair_key = ?", models.PairKey(userA, userB)).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreateChat inserts a chat together with both member rows in one
// transaction. If a concurrent call already created the chat for this pair,
// the unique pair key rejects the insert and the existing chat is returned.
func (s *Service) CreateChat(ctx context.Context, userA, userB string) (*models.Chat, error) {
	chat := models.Chat{
		PairKey: models.PairKey(userA, userB),
		Members: []models.ChatMember{{UserID: userA}, {UserID: userB}},
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&chat).Error
	})
	if isDuplicate(err) {
		s.Log.Info("chat already exists for pair, re-reading", zap.String("pair_key", chat.PairKey))
		existing, ferr := s.FindChatByMembers(ctx, userA, userB)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, fmt.Errorf("chat for %s conflicted but is not readable", chat.PairKey)
		}
		return existing, nil
	}
	if err != nil {
		s.Log.Error("failed to create chat", zap.String("pair_key", chat.PairKey), zap.Error(err))
		return nil, err
	}
	return &chat, nil
}

// IsChatMember reports whether userID belongs to chatID.
func (s *Service) IsChatMember(ctx context.Context, chatID uint, userID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetChatMembersExcept returns the members of chatID other than userID.
func (s *Service) GetChatMembersExcept(ctx context.Context, chatID uint, userID string) ([]models.ChatMember, error) {
	var members []models.ChatMember
	err := s.DB.WithContext(ctx).
		Where("chat_id = ? AND user_id <> ?", chatID, userID).
		Order("user_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// ListChatIDsForUser returns the ids of every chat userID is a member of.
func (s *Service) ListChatIDsForUser(ctx context.Context, userID string) ([]uint, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).Model(&models.ChatMember{}).
		Where("user_id = ?", userID).
		Order("chat_id ASC").
		Pluck("chat_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListChats returns all chats with their members, newest first.
func (s *Service) ListChats(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.DB.WithContext(ctx).Preload("Members").Order("id DESC").Find(&chats).Error
	if err != nil {
		return nil, err
	}
	return chats, nil
}
