package config_test

import (
	"directchat/backend/internal/config"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DIRECTCHAT_DATABASE_DSN", "host=localhost dbname=directchat")
	t.Setenv("DIRECTCHAT_JWT_SECRET", "0123456789abcdef0123")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Dev)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DIRECTCHAT_DATABASE_DSN", "host=db")
	t.Setenv("DIRECTCHAT_JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("DIRECTCHAT_TOKEN_TTL", "15m")
	t.Setenv("DIRECTCHAT_DEV", "true")
	t.Setenv("DIRECTCHAT_ALLOWED_ORIGINS", "http://localhost:3000,https://chat.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.True(t, cfg.Dev)
	assert.Equal(t, []string{"http://localhost:3000", "https://chat.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DIRECTCHAT_DATABASE_DSN", "")
	require.NoError(t, os.Unsetenv("DIRECTCHAT_DATABASE_DSN"))
	t.Setenv("DIRECTCHAT_JWT_SECRET", "0123456789abcdef0123")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate_ShortSecret(t *testing.T) {
	cfg := config.Config{DatabaseDSN: "host=db", JWTSecret: "short", TokenTTL: time.Hour}
	assert.Error(t, cfg.Validate())
}
