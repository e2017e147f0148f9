package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POS_CHANNEL_BASE_URL", "https://channel.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "backoffice", cfg.App.Name)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Sync.StalenessWindow)
	assert.Equal(t, 100, cfg.Sync.SessionCap)
	assert.Equal(t, 10*time.Second, cfg.Sync.RecencyGuard)
	assert.Equal(t, 5*time.Second, cfg.Cache.VolatileTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.StaticTTL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("POS_CHANNEL_BASE_URL", "https://channel.example.com")
	t.Setenv("POS_SYNC_SESSION_CAP", "25")
	t.Setenv("POS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Sync.SessionCap)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "sqlite", Path: "test.db"},
			Channel:  ChannelConfig{BaseURL: "https://channel.example.com"},
			Sync:     SyncConfig{Enabled: true, StalenessWindow: time.Hour, SessionCap: 10},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		cfg := base()
		cfg.Database.Driver = "oracle"
		assert.Error(t, cfg.Validate())
	})

	t.Run("requires channel URL when sync enabled", func(t *testing.T) {
		cfg := base()
		cfg.Channel.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("sync disabled skips channel requirement", func(t *testing.T) {
		cfg := base()
		cfg.Channel.BaseURL = ""
		cfg.Sync.Enabled = false
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects non-positive session cap", func(t *testing.T) {
		cfg := base()
		cfg.Sync.SessionCap = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	c := RedisConfig{Host: "localhost", Port: 6379}
	assert.Equal(t, "localhost:6379", c.Addr())
}
