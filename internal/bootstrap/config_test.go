package bootstrap

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/installer-portal/config"
)

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { logLevel.Set(slog.LevelInfo) })
	logger := InitLogger()

	require.True(t, SetLogLevel("debug"))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	require.True(t, SetLogLevel(" WARN "))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))

	assert.False(t, SetLogLevel("loud"))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo), "unknown level keeps the previous one")
}

func TestLoadConfig(t *testing.T) {
	t.Run("mock mode", func(t *testing.T) {
		t.Setenv("AUTH_MODE", "mock")
		t.Setenv("SESSION_INACTIVITY_TIMEOUT_MINUTES", "0")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, config.AuthModeMock, cfg.Auth.Mode)
		assert.Equal(t, config.DefaultInactivityTimeoutMinutes, cfg.Session.InactivityTimeoutMinutes)
	})

	t.Run("mock mode refused in production", func(t *testing.T) {
		t.Setenv("AUTH_MODE", "mock")
		t.Setenv("APP_ENV", "production")

		_, err := LoadConfig()
		require.Error(t, err)
	})

	t.Run("supabase mode needs credentials", func(t *testing.T) {
		t.Setenv("AUTH_MODE", "supabase")
		t.Setenv("SUPABASE_URL", "")
		t.Setenv("SUPABASE_ANON_KEY", "")

		_, err := LoadConfig()
		require.ErrorContains(t, err, "SUPABASE_URL")
	})
}

func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.RedisConfig
		wantDesc string
		wantErr  bool
	}{
		{name: "host and port", cfg: config.RedisConfig{URI: "localhost:6379"}, wantDesc: "localhost:6379"},
		{name: "url hides password", cfg: config.RedisConfig{URI: "redis://:secret@cache:6380/2"}, wantDesc: "cache:6380"},
		{name: "cluster", cfg: config.RedisConfig{ClusterNodes: []string{" a:7000 ", "", "b:7001"}}, wantDesc: "cluster:a:7000,b:7001"},
		{name: "empty", cfg: config.RedisConfig{}, wantErr: true},
		{name: "bad url", cfg: config.RedisConfig{URI: "redis://cache:notaport"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, desc, err := newRedisClient(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = client.Close() })
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestConnectRedis_Disabled(t *testing.T) {
	client, err := ConnectRedis(context.Background(), DatabaseConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}
