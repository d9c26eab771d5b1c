// Package account owns username registration. A username is claimed once per
// caller and is permanent.
package account

import (
	"context"
	"directchat/backend/internal/apperror"
	"directchat/backend/internal/models"
	"directchat/backend/internal/storage"
	"directchat/backend/internal/validation"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type Service struct {
	Storage storage.Storage
	Log     *zap.Logger
}

func NewService(s storage.Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Storage: s, Log: logger}
}

// GetUsername returns the caller's username; ok is false when none is registered.
func (s *Service) GetUsername(ctx context.Context, callerID string) (string, bool, error) {
	user, err := s.Storage.GetUserByID(ctx, callerID)
	if err != nil {
		return "", false, fmt.Errorf("get username for %s: %w", callerID, err)
	}
	if user == nil {
		return "", false, nil
	}
	return user.Username, true, nil
}

// RegisterUsername normalizes, validates and claims raw for callerID.
// Both a taken username and a caller that already registered fail with a
// conflict; uniqueness is enforced by the users table.
func (s *Service) RegisterUsername(ctx context.Context, callerID, raw string) error {
	username, err := validation.Username(raw)
	if err != nil {
		return err
	}

	err = s.Storage.CreateUser(ctx, &models.User{ID: callerID, Username: username})
	if errors.Is(err, storage.ErrDuplicate) {
		s.Log.Info("username registration conflict",
			zap.String("user_id", callerID), zap.String("username", username))
		return apperror.Conflict("username", username)
	}
	if err != nil {
		return fmt.Errorf("register username %s: %w", username, err)
	}

	s.Log.Info("username registered", zap.String("user_id", callerID), zap.String("username", username))
	return nil
}
