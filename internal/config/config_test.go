package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"MOOSYNC_DATA_DIR", "MOOSYNC_HTTP_ADDR", "MOOSYNC_EXTENSIONS_MANIFEST_URL",
		"MOOSYNC_EXTENSION_REFRESH_CRON", "MOOSYNC_REDIS_ADDR", "MOOSYNC_NATS_URL",
		"MOOSYNC_UI_CORRELATION_SECRET", "MOOSYNC_LOG", "MOOSYNC_LOG_PRETTY", "MOOSYNC_SECURE_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "@every 1h", cfg.ExtensionRefreshCron)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Empty(t, cfg.SecureStoreKeyHex)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("MOOSYNC_DATA_DIR", "/tmp/moosync-test")
	t.Setenv("MOOSYNC_HTTP_ADDR", ":9090")
	t.Setenv("MOOSYNC_LOG_PRETTY", "false")

	cfg := Load()
	assert.Equal(t, "/tmp/moosync-test", cfg.DataDir)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.False(t, cfg.LogPretty)
}
