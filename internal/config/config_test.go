package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "Live Stream", cfg.Stream.Title)
	assert.Empty(t, cfg.Stream.Key)
	assert.Equal(t, 100, cfg.Stream.LogRetention)
	assert.Equal(t, 20, cfg.Stream.AdminLogLimit)
	assert.Equal(t, "123", cfg.Admin.Password)
	assert.Equal(t, "streamflow_session", cfg.Admin.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Admin.SessionTTL)
	assert.Equal(t, "memory", cfg.Session.Driver)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "streamflow:stream:events", cfg.Events.Redis.Channel)
	assert.Equal(t, 250*time.Millisecond, cfg.WebSocket.SendTimeout)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Empty(t, cfg.Admin.PasswordHash)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("STREAM_KEY", "sk_live_fromenv")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "kafka:9092")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 172.16.0.0/12")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abc")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sk_live_fromenv", cfg.Stream.Key)
	assert.Equal(t, "hunter2", cfg.Admin.Password)
	assert.Equal(t, "s3cret", cfg.Admin.SessionSecret)
	assert.Equal(t, "redis:6379", cfg.Session.Redis.Address)
	assert.Equal(t, "redis:6379", cfg.Events.Redis.Address)
	assert.Equal(t, "kafka:9092", cfg.Events.Kafka.Brokers)
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, cfg.Server.TrustedProxies)
	assert.Equal(t, "$2a$10$abc", cfg.Admin.PasswordHash)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  trusted_proxies:
    - "10.0.0.1"
    - "10.0.0.2"
stream:
  title: "Friday Night"
  hls_origin: "http://media:8888"
websocket:
  send_timeout: "1s"
session:
  driver: redis
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "Friday Night", cfg.Stream.Title)
	assert.Equal(t, "http://media:8888", cfg.Stream.HLSOrigin)
	assert.Equal(t, time.Second, cfg.WebSocket.SendTimeout)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, "redis", cfg.Session.Driver)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Server.TrustedProxies)
}
