package chathub_test

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockAccess stands in for storage membership checks.
type MockAccess struct {
	mock.Mock
}

func (m *MockAccess) IsChatMember(ctx context.Context, chatID uint, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}
