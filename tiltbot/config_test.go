package tiltbot

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, DefaultDatabaseType, cfg.DatabaseType)
	assert.Equal(t, 5*time.Minute, cfg.CountingFlushInterval)
	assert.Equal(t, time.Minute, cfg.SchedulerTickInterval)
	assert.Equal(t, time.Hour, cfg.WordCacheTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel.Level())

	require.NotNil(t, cfg.Discord)
	assert.Equal(t, DefaultDiscordGatewayIntent, cfg.Discord.GatewayIntents)
	assert.Equal(t, DefaultDiscordStartupMessage, cfg.Discord.StartupMessage)

	require.NotNil(t, cfg.API)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, DefaultAPIListen, cfg.API.Listen)
	assert.Equal(t, DefaultAPISessionMaxAge, cfg.API.SessionMaxAge)

	require.NotNil(t, cfg.OpenAI)
	assert.Equal(t, DefaultOpenAIModel, cfg.OpenAI.Model)
	assert.Equal(
		t,
		DefaultOpenAIMaxRequestsPerMinute,
		cfg.OpenAI.MaxRequestsPerMinute,
	)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultTestConfig(t, t.TempDir())
	bot, err := New(cfg)
	require.NoError(t, err)
	assert.NoError(t, bot.ValidateConfig())

	// a missing discord token fails validation
	cfg = DefaultTestConfig(t, t.TempDir())
	cfg.Discord.Token = ""
	bot, err = New(cfg)
	require.NoError(t, err)
	assert.Error(t, bot.ValidateConfig())
}

func TestNewRejectsInvalidDatabaseType(t *testing.T) {
	t.Parallel()
	cfg := DefaultTestConfig(t, t.TempDir())
	cfg.DatabaseType = "mongodb"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestConfigRedactsSecrets(t *testing.T) {
	t.Parallel()
	cfg := DefaultTestConfig(t, t.TempDir())
	cfg.Discord.Token = "super-secret-token"
	cfg.API.Secret = "api-secret-value"

	logged := cfg.LogValue().String()
	assert.NotContains(t, logged, "super-secret-token")
	assert.NotContains(t, logged, "api-secret-value")
	assert.True(
		t,
		strings.Contains(logged, "[redacted]") ||
			!strings.Contains(logged, "secret"),
	)
}

func TestChatEnabledOnlyWithToken(t *testing.T) {
	t.Parallel()
	cfg := DefaultTestConfig(t, t.TempDir())
	bot, err := New(cfg)
	require.NoError(t, err)
	assert.Nil(t, bot.chat)

	cfg = DefaultTestConfig(t, t.TempDir())
	cfg.OpenAI.Token = "sk-test"
	bot, err = New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, bot.chat)
}
