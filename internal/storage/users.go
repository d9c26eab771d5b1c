package storage

import (
	"context"
	"directchat/backend/internal/models"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateUser inserts a user row. A taken username or an already registered
// id both fail with ErrDuplicate; the unique index decides, not a pre-read.
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	err := s.DB.WithContext(ctx).Create(user).Error
	if isDuplicate(err) {
		return fmt.Errorf("create user %s: %w", user.Username, ErrDuplicate)
	}
	if err != nil {
		s.Log.Error("failed to create user", zap.String("user_id", user.ID), zap.Error(err))
		return err
	}
	return nil
}

// GetUserByID returns the user or nil when absent.
func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername returns the user or nil when absent.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUsers loads every user whose id is in ids, in one query.
// Unknown ids are simply missing from the result.
func (s *Service) FindUsers(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindUsersByUsername is FindUsers keyed by username.
func (s *Service) FindUsersByUsername(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := s.DB.WithContext(ctx).Where("username IN ?", usernames).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SearchUsers returns up to limit users whose username starts with prefix,
// ordered by username. The prefix must already be normalized.
func (s *Service) SearchUsers(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Where("username LIKE ?", prefix+"%").
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
