// Package storage is the persistence layer: users, chats, chat members and
// messages in PostgreSQL through gorm. It is the only writer of that data.
package storage

import (
	"context"
	"directchat/backend/internal/models"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Storage is the set of queries the services consume.
// Lookups of a single row return (nil, nil) when the row does not exist.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	FindUsers(ctx context.Context, ids []string) ([]models.User, error)
	FindUsersByUsername(ctx context.Context, usernames []string) ([]models.User, error)
	SearchUsers(ctx context.Context, prefix string, limit int) ([]models.User, error)

	FindChatByMembers(ctx context.Context, userA, userB string) (*models.Chat, error)
	CreateChat(ctx context.Context, userA, userB string) (*models.Chat, error)
	IsChatMember(ctx context.Context, chatID uint, userID string) (bool, error)
	GetChatMembersExcept(ctx context.Context, chatID uint, userID string) ([]models.ChatMember, error)
	ListChatIDsForUser(ctx context.Context, userID string) ([]uint, error)
	ListChats(ctx context.Context) ([]models.Chat, error)

	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessages(ctx context.Context, chatID uint) ([]models.ChatMessage, error)
	GetLastMessage(ctx context.Context, chatID uint) (*models.ChatMessage, error)
	LatestMessages(ctx context.Context, chatIDs []uint) ([]models.ChatMessage, error)
}

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate key")

// Service implements Storage on top of gorm.
type Service struct {
	DB  *gorm.DB
	Log *zap.Logger
}

var _ Storage = (*Service)(nil)

// NewStorageService wraps an opened gorm handle.
func NewStorageService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{DB: db, Log: logger}
}

// Open connects to PostgreSQL. Unique violations are translated to
// gorm.ErrDuplicatedKey so they can be told apart from other failures.
func Open(dsn string) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
