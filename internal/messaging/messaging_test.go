package messaging_test

import (
	"context"
	"directchat/backend/internal/apperror"
	"directchat/backend/internal/identity"
	"directchat/backend/internal/messaging"
	"directchat/backend/internal/mocks"
	"directchat/backend/internal/models"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc     *messaging.Service
	store   *mocks.MockStorage
	gw      *mocks.MockGateway
	limiter *mocks.MockLimiter
}

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newFixture() fixture {
	f := fixture{
		store:   new(mocks.MockStorage),
		gw:      new(mocks.MockGateway),
		limiter: new(mocks.MockLimiter),
	}
	f.svc = messaging.NewService(f.store, f.gw, f.limiter, nil).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func TestGetMessages_BatchesProfiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.store.On("IsChatMember", ctx, uint(1), "u1").Return(true, nil)
	f.store.On("GetMessages", ctx, uint(1)).Return([]models.ChatMessage{
		{ID: 3, ChatID: 1, UserID: "u2", Message: "hello"},
		{ID: 2, ChatID: 1, UserID: "gone", Message: "orphan"},
		{ID: 1, ChatID: 1, UserID: "u1", Message: "hi"},
	}, nil)
	f.gw.On("ProfilesByID", ctx, []string{"u2", "gone", "u1"}).Return(map[string]identity.Profile{
		"u1": {ID: "u1", Username: "alice"},
		"u2": {ID: "u2", Username: "bob"},
	}, nil).Once()

	views, err := f.svc.GetMessages(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, []uint{3, 2, 1}, []uint{views[0].ID, views[1].ID, views[2].ID})
	require.NotNil(t, views[0].SenderProfile)
	assert.Equal(t, "bob", views[0].SenderProfile.Username)
	assert.Nil(t, views[1].SenderProfile, "unresolvable sender degrades to no profile")
	f.gw.AssertNumberOfCalls(t, "ProfilesByID", 1)
}

func TestGetMessages_EmptyChatSkipsGateway(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.On("IsChatMember", ctx, uint(1), "u1").Return(true, nil)
	f.store.On("GetMessages", ctx, uint(1)).Return([]models.ChatMessage{}, nil)

	views, err := f.svc.GetMessages(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Empty(t, views)
	f.gw.AssertNotCalled(t, "ProfilesByID", mock.Anything, mock.Anything)
}

func TestGetMessages_NonMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.On("IsChatMember", ctx, uint(1), "u9").Return(false, nil)

	_, err := f.svc.GetMessages(ctx, "u9", 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestLastMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.On("IsChatMember", ctx, mock.Anything, "u1").Return(true, nil)
	f.store.On("GetLastMessage", ctx, uint(1)).Return(&models.ChatMessage{ID: 4, ChatID: 1, UserID: "u1", Message: "hi"}, nil)
	f.store.On("GetLastMessage", ctx, uint(2)).Return(nil, nil)

	last, err := f.svc.LastMessage(ctx, "u1", 1)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "hi", last.Text)
	assert.Equal(t, "u1", last.SenderID)

	none, err := f.svc.LastMessage(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSendMessage_Persists(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.limiter.On("Allow", ctx, "u1").Return(true, time.Duration(0), nil)
	f.store.On("IsChatMember", ctx, uint(1), "u1").Return(true, nil)
	f.store.On("SaveMessage", ctx, mock.MatchedBy(func(m *models.ChatMessage) bool {
		return m.ChatID == 1 && m.UserID == "u1" && m.Message == "hi" && m.SentAt.Equal(fixedNow)
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.ChatMessage).ID = 42
	}).Return(nil).Once()

	view, err := f.svc.SendMessage(ctx, "u1", 1, "  hi \n")
	require.NoError(t, err)
	assert.Equal(t, uint(42), view.ID)
	assert.Equal(t, fixedNow, view.SentAt)
	f.store.AssertExpectations(t)
}

func TestSendMessage_ValidationBeforeLimiter(t *testing.T) {
	f := newFixture()

	for _, raw := range []string{"", "   ", strings.Repeat("x", 1001)} {
		_, err := f.svc.SendMessage(context.Background(), "u1", 1, raw)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	}
	f.limiter.AssertNotCalled(t, "Allow", mock.Anything, mock.Anything)
	f.store.AssertNotCalled(t, "SaveMessage", mock.Anything, mock.Anything)
}

func TestSendMessage_RateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.limiter.On("Allow", ctx, "u1").Return(false, 4*time.Second, nil)

	_, err := f.svc.SendMessage(ctx, "u1", 1, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrRateLimited)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, 4*time.Second, appErr.RetryAfter)
	f.store.AssertNotCalled(t, "SaveMessage", mock.Anything, mock.Anything)
}

func TestSendMessage_LimiterFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.limiter.On("Allow", ctx, "u1").Return(false, time.Duration(0), errors.New("redis: connection refused"))

	_, err := f.svc.SendMessage(ctx, "u1", 1, "hi")
	require.Error(t, err)
	_, typed := apperror.As(err)
	assert.False(t, typed)
	f.store.AssertNotCalled(t, "SaveMessage", mock.Anything, mock.Anything)
}

func TestSendMessage_NonMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.limiter.On("Allow", ctx, "u9").Return(true, time.Duration(0), nil)
	f.store.On("IsChatMember", ctx, uint(1), "u9").Return(false, nil)

	_, err := f.svc.SendMessage(ctx, "u9", 1, "hi")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	f.store.AssertNotCalled(t, "SaveMessage", mock.Anything, mock.Anything)
}

func TestSendMessage_StorageFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.limiter.On("Allow", ctx, "u1").Return(true, time.Duration(0), nil)
	f.store.On("IsChatMember", ctx, uint(1), "u1").Return(true, nil)
	f.store.On("SaveMessage", ctx, mock.Anything).Return(errors.New("disk full"))

	view, err := f.svc.SendMessage(ctx, "u1", 1, "hi")
	assert.Error(t, err)
	assert.Nil(t, view)
}
