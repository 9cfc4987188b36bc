package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 5*time.Second, cfg.LedgerTxTimeout)
	require.Equal(t, 10*time.Minute, cfg.AlertNoticeTTL)
	require.Zero(t, cfg.AlertThrottle)
	require.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	require.Equal(t, 120, cfg.RateLimitPerMin)
	require.False(t, cfg.AutoMigrate)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LEDGER_TX_TIMEOUT", "2s")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("DEFAULT_ALERT_EMAIL", "ops@example.com")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 2*time.Second, cfg.LedgerTxTimeout)
	require.True(t, cfg.AutoMigrate)
	require.Equal(t, "ops@example.com", cfg.DefaultAlertEmail)
}

func TestLoadConfigRejectsBadRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNilConfigIsNotProduction(t *testing.T) {
	var cfg *Config
	require.False(t, cfg.IsProduction())
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "v", entry["k"])

	buf.Reset()
	newLogger(&buf, nil).Info("plain")
	require.Contains(t, buf.String(), "msg=plain")
}

func TestQueueRedisOpt(t *testing.T) {
	opt, err := QueueRedisOpt("127.0.0.1:6379")
	require.NoError(t, err)
	require.Equal(t, asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}, opt)

	opt, err = QueueRedisOpt("redis://cache:6380/1")
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	require.Equal(t, "cache:6380", client.Addr)
	require.Equal(t, 1, client.DB)
}
