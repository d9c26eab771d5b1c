// Package mocks holds testify mocks for the service dependencies.
package mocks

import (
	"context"
	"directchat/backend/internal/identity"
	"directchat/backend/internal/models"
	"directchat/backend/internal/ratelimit"
	"directchat/backend/internal/storage"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

var _ storage.Storage = (*MockStorage)(nil)

func (m *MockStorage) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStorage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) FindUsers(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) FindUsersByUsername(ctx context.Context, usernames []string) ([]models.User, error) {
	args := m.Called(ctx, usernames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) SearchUsers(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	args := m.Called(ctx, prefix, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStorage) FindChatByMembers(ctx context.Context, userA, userB string) (*models.Chat, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockStorage) CreateChat(ctx context.Context, userA, userB string) (*models.Chat, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *MockStorage) IsChatMember(ctx context.Context, chatID uint, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) GetChatMembersExcept(ctx context.Context, chatID uint, userID string) ([]models.ChatMember, error) {
	args := m.Called(ctx, chatID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMember), args.Error(1)
}

func (m *MockStorage) ListChatIDsForUser(ctx context.Context, userID string) ([]uint, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func (m *MockStorage) ListChats(ctx context.Context) ([]models.Chat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Chat), args.Error(1)
}

func (m *MockStorage) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStorage) GetMessages(ctx context.Context, chatID uint) ([]models.ChatMessage, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockStorage) GetLastMessage(ctx context.Context, chatID uint) (*models.ChatMessage, error) {
	args := m.Called(ctx, chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatMessage), args.Error(1)
}

func (m *MockStorage) LatestMessages(ctx context.Context, chatIDs []uint) ([]models.ChatMessage, error) {
	args := m.Called(ctx, chatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

var _ identity.Gateway = (*MockGateway)(nil)

func (m *MockGateway) Authenticate(header string) (string, error) {
	args := m.Called(header)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) ProfilesByID(ctx context.Context, ids []string) (map[string]identity.Profile, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]identity.Profile), args.Error(1)
}

func (m *MockGateway) ProfilesByUsername(ctx context.Context, usernames []string) (map[string]identity.Profile, error) {
	args := m.Called(ctx, usernames)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]identity.Profile), args.Error(1)
}

type MockLimiter struct {
	mock.Mock
}

var _ ratelimit.Limiter = (*MockLimiter)(nil)

func (m *MockLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}
