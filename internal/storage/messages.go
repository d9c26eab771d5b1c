package storage

import (
	"context"
	"directchat/backend/internal/models"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SaveMessage appends one message row; msg.ID is filled in by the database.
// The insert trigger on chat_messages emits the change notification, so no
// explicit publish happens here.
func (s *Service) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		s.Log.Error("failed to save message", zap.Uint("chat_id", msg.ChatID), zap.Error(err))
		return err
	}
	return nil
}

// GetMessages returns the full history of a chat, newest first by id.
func (s *Service) GetMessages(ctx context.Context, chatID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id DESC").
		Find(&messages).Error
	if err != nil {
		s.Log.Error("failed to get messages", zap.Uint("chat_id", chatID), zap.Error(err))
		return nil, err
	}
	return messages, nil
}

// GetLastMessage returns the message with the highest id in the chat, or nil.
func (s *Service) GetLastMessage(ctx context.Context, chatID uint) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// LatestMessages returns, for each chat in chatIDs that has messages, its
// message with the highest id. Chats without messages produce no row.
// Rows are ordered by sent_at descending, then id descending.
func (s *Service) LatestMessages(ctx context.Context, chatIDs []uint) ([]models.ChatMessage, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}

	db := s.DB.WithContext(ctx)
	latestIDs := db.Model(&models.ChatMessage{}).
		Select("MAX(id)").
		Where("chat_id IN ?", chatIDs).
		Group("chat_id")

	var messages []models.ChatMessage
	err := db.Where("id IN (?)", latestIDs).
		Order("sent_at DESC, id DESC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
