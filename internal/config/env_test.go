package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:ABC")
	t.Setenv("BOT_USERNAME", "demo_bot")
	t.Setenv("TGLOGIN_ADDR", ":9090")
	t.Setenv("TGLOGIN_BASE_URL", "https://login.example.com")
	t.Setenv("TGLOGIN_ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("TGLOGIN_MAX_AUTH_AGE", "1h")
	t.Setenv("TGLOGIN_SESSION_FORMAT", "jwt")
	t.Setenv("TGLOGIN_SESSION_SECRET", testSessionSecret)
	t.Setenv("TGLOGIN_STORAGE", "sqlite")
	t.Setenv("TGLOGIN_SQLITE_PATH", "users.db")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, Secret("123456:ABC"), cfg.Telegram.BotToken)
	assert.Equal(t, "demo_bot", cfg.Telegram.BotUsername)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://login.example.com", cfg.Server.BaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DefaultRedirectPath, cfg.Server.RedirectPath)
	assert.Equal(t, time.Hour, cfg.Telegram.MaxAuthAge)
	assert.Equal(t, "jwt", cfg.Session.Format)
	assert.Equal(t, Secret(testSessionSecret), cfg.Session.Secret)
	assert.Equal(t, DefaultSessionMaxAge, cfg.Session.MaxAge)
	assert.Equal(t, "sqlite", cfg.Storage.Kind)
	assert.Equal(t, "users.db", cfg.Storage.SQLitePath)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123456:ABC")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultMaxAuthAge, cfg.Telegram.MaxAuthAge)
	assert.Equal(t, DefaultSessionFormat, cfg.Session.Format)
	assert.Equal(t, DefaultStorage, cfg.Storage.Kind)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("TGLOGIN_MAX_AUTH_AGE", "a day")
		_, err := LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse env")
	})

	t.Run("signed format without secret", func(t *testing.T) {
		t.Setenv("TGLOGIN_SESSION_FORMAT", "hmac")
		t.Setenv("TGLOGIN_SESSION_SECRET", "")
		_, err := LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret must be at least 32 characters")
	})
}
