// Package config holds the runtime configuration of the server and the
// domain limits shared by the services.
package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// Username
	UsernameMinLen = 3
	UsernameMaxLen = 20

	// Messages
	MessageMaxLen = 1000

	// Send rate limit: SendRateLimit admitted messages per SendRateWindow per caller.
	SendRateLimit  = 10
	SendRateWindow = 10 * time.Second

	// User search
	UserSearchLimit = 10

	// Participant labels
	GroupChatLabel   = "Group chat"
	UnknownUserLabel = "User"

	// Realtime
	ChatMessagesChannel = "chat_messages"
	RateLimitKeyPrefix  = "directchat:ratelimit:send"
)

// Config is decoded from DIRECTCHAT_* environment variables.
type Config struct {
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseDSN       string        `envconfig:"DATABASE_DSN" required:"true"`
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL          time.Duration `envconfig:"TOKEN_TTL" default:"72h"`
	AvatarURLTemplate string        `envconfig:"AVATAR_URL_TEMPLATE" default:"https://api.dicebear.com/7.x/identicon/svg?seed=%s"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	Dev               bool          `envconfig:"DEV" default:"false"`
	AllowedOrigins    []string      `envconfig:"ALLOWED_ORIGINS"`
}

// Load reads an optional .env file and decodes the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}

	var cfg Config
	if err := envconfig.Process("DIRECTCHAT", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express.
func (c Config) Validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("config: database DSN is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT secret must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: token TTL must be positive")
	}
	return nil
}
