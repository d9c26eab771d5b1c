package storage_test

import (
	"context"
	"directchat/backend/internal/apperror"
	"directchat/backend/internal/models"
	"directchat/backend/internal/storage"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestStorage opens a private in-memory SQLite database with the same models.
// A single connection keeps every query on the same in-memory database.
func newTestStorage(t *testing.T) *storage.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, storage.AutoMigrate(db))
	return storage.NewStorageService(db, nil)
}

func seedUsers(t *testing.T, s *storage.Service, users ...models.User) {
	t.Helper()
	for i := range users {
		require.NoError(t, s.CreateUser(context.Background(), &users[i]))
	}
}

func TestCreateUser_UniqueUsername(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Username: "alice"}))

	err := s.CreateUser(ctx, &models.User{ID: "u2", Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrDuplicate, "same username for another caller")

	err = s.CreateUser(ctx, &models.User{ID: "u1", Username: "alice2"})
	assert.ErrorIs(t, err, storage.ErrDuplicate, "same caller registering twice")
}

func TestGetUser(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedUsers(t, s, models.User{ID: "u1", Username: "alice"})

	byID, err := s.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "alice", byID.Username)

	byName, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "u1", byName.ID)

	missing, err := s.GetUserByID(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = s.GetUserByUsername(ctx, "bob")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindUsers_PartialResults(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedUsers(t, s,
		models.User{ID: "u1", Username: "alice"},
		models.User{ID: "u2", Username: "bob"},
	)

	users, err := s.FindUsers(ctx, []string{"u1", "ghost"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)

	users, err = s.FindUsersByUsername(ctx, []string{"bob", "carol"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)

	users, err = s.FindUsers(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, users)
}

func TestSearchUsers(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	seedUsers(t, s,
		models.User{ID: "u1", Username: "alice"},
		models.User{ID: "u2", Username: "alina"},
		models.User{ID: "u3", Username: "bob"},
	)

	users, err := s.SearchUsers(ctx, "ali", 10)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "alina", users[1].Username)

	users, err = s.SearchUsers(ctx, "ali", 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateChat_AndFindByMembers(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "u1", "u2")
	require.NoError(t, err)
	require.NotZero(t, chat.ID)
	assert.Equal(t, "u1:u2", chat.PairKey)

	found, err := s.FindChatByMembers(ctx, "u2", "u1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, chat.ID, found.ID, "lookup is order-independent")

	none, err := s.FindChatByMembers(ctx, "u1", "u3")
	assert.NoError(t, err)
	assert.Nil(t, none)

	isMember, err := s.IsChatMember(ctx, chat.ID, "u1")
	require.NoError(t, err)
	assert.True(t, isMember)
	isMember, err = s.IsChatMember(ctx, chat.ID, "u3")
	require.NoError(t, err)
	assert.False(t, isMember)
}

// TestCreateChat_ConflictReturnsExisting covers the losing side of two
// concurrent opens: the second insert hits the pair-key index and re-reads.
func TestCreateChat_ConflictReturnsExisting(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first, err := s.CreateChat(ctx, "u1", "u2")
	require.NoError(t, err)

	second, err := s.CreateChat(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	chats, err := s.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1, "no duplicate chat for the same pair")
	assert.ElementsMatch(t, []string{"u1", "u2"}, chats[0].MemberIDs())
}

func TestChatMembersAndListIDs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c1, err := s.CreateChat(ctx, "u1", "u2")
	require.NoError(t, err)
	c2, err := s.CreateChat(ctx, "u1", "u3")
	require.NoError(t, err)
	_, err = s.CreateChat(ctx, "u2", "u3")
	require.NoError(t, err)

	others, err := s.GetChatMembersExcept(ctx, c1.ID, "u1")
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "u2", others[0].UserID)

	ids, err := s.ListChatIDsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []uint{c1.ID, c2.ID}, ids)
}

// TestGetMessages_OrderedByIDNotTimestamp inserts messages whose sent_at runs
// backwards and checks id order wins.
func TestGetMessages_OrderedByIDNotTimestamp(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	chat, err := s.CreateChat(ctx, "u1", "u2")
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	texts := []string{"m1", "m2", "m3"}
	for i, text := range texts {
		msg := &models.ChatMessage{ChatID: chat.ID, UserID: "u1", Message: text, SentAt: base.Add(-time.Duration(i) * time.Minute)}
		require.NoError(t, s.SaveMessage(ctx, msg))
		require.NotZero(t, msg.ID)
	}

	messages, err := s.GetMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "m3", messages[0].Message)
	assert.Equal(t, "m2", messages[1].Message)
	assert.Equal(t, "m1", messages[2].Message)

	last, err := s.GetLastMessage(ctx, chat.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "m3", last.Message)

	again, err := s.GetMessages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, messages, again, "read path is idempotent")
}

func TestGetLastMessage_EmptyChat(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	chat, err := s.CreateChat(ctx, "u1", "u2")
	require.NoError(t, err)

	last, err := s.GetLastMessage(ctx, chat.ID)
	assert.NoError(t, err)
	assert.Nil(t, last)
}

func TestLatestMessages_OnePerChat(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	c1, err := s.CreateChat(ctx, "u1", "u2")
	require.NoError(t, err)
	c2, err := s.CreateChat(ctx, "u1", "u3")
	require.NoError(t, err)
	empty, err := s.CreateChat(ctx, "u1", "u4")
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	save := func(chatID uint, text string, at time.Time) {
		require.NoError(t, s.SaveMessage(ctx, &models.ChatMessage{ChatID: chatID, UserID: "u1", Message: text, SentAt: at}))
	}
	save(c1.ID, "c1-old", base)
	save(c2.ID, "c2-only", base.Add(time.Minute))
	save(c1.ID, "c1-new", base.Add(2*time.Minute))

	latest, err := s.LatestMessages(ctx, []uint{c1.ID, c2.ID, empty.ID})
	require.NoError(t, err)
	require.Len(t, latest, 2, "chat without messages has no row")
	assert.Equal(t, "c1-new", latest[0].Message)
	assert.Equal(t, "c2-only", latest[1].Message)

	latest, err = s.LatestMessages(ctx, nil)
	assert.NoError(t, err)
	assert.Empty(t, latest)
}

func TestRequireChatMember(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	chat, err := s.CreateChat(ctx, "u1", "u2")
	require.NoError(t, err)

	assert.NoError(t, storage.RequireChatMember(ctx, s, chat.ID, "u2"))

	err = storage.RequireChatMember(ctx, s, chat.ID, "u3")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "outsider")
	err = storage.RequireChatMember(ctx, s, chat.ID+100, "u1")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "missing chat looks the same")
}
