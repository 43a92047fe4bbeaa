package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "@every 1m", cfg.Outbox.RetrySpec)
	assert.Equal(t, 10, cfg.Outbox.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Feishu.Enabled())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REDIS_HOST", "redis.local")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("FEISHU_APP_ID", "cli_x")
	t.Setenv("FEISHU_APP_SECRET", "sec")
	t.Setenv("FEISHU_CHAT_ID", "oc_123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.True(t, cfg.Feishu.Enabled())
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("MOJING_TEST_KEY", "v")
	assert.Equal(t, "v", GetEnvOrDefault("MOJING_TEST_KEY", "d"))
	assert.Equal(t, "d", GetEnvOrDefault("MOJING_TEST_MISSING", "d"))
}
