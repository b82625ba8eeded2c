package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "ENVIRONMENT", "PORT", "BRIDGE_LISTEN_ADDR", "MAX_UDP_HOST", "MAX_UDP_PORT",
		"MAX_REPLY_FORMAT", "BRIDGE_BUFFER_SIZE", "BRIDGE_RATE_LIMIT", "BRIDGE_RATE_BURST",
		"COMPLETION_WORKERS", "COMPLETION_QUEUE", "COMPLETION_TIMEOUT", "COMPLETION_PROVIDER", "COMPLETION_TEMPERATURE",
		"OPENAI_MODEL", "OPENAI_API_BASE", "CORS_ALLOW_ORIGINS", "AUTH_MODE", "JWT_SECRET", "LANGFUSE_ENABLED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "127.0.0.1:7400", cfg.ListenAddr)
	assert.Equal(t, "127.0.0.1:7401", cfg.MaxAddr())
	assert.Equal(t, ReplyFormatJSON, cfg.ReplyFormat)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	assert.False(t, cfg.CORSAllowsCredentials())
	assert.False(t, cfg.IsTokenAuth())
	assert.Equal(t, 4, cfg.CompletionQueue)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_UDP_PORT", "9001")
	t.Setenv("MAX_REPLY_FORMAT", "OSC")
	t.Setenv("COMPLETION_TIMEOUT", "5s")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://localhost:5173, http://127.0.0.1:5173,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.MaxPort)
	assert.Equal(t, ReplyFormatOSC, cfg.ReplyFormat)
	assert.Equal(t, 5*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.CORSAllowOrigins)
	assert.True(t, cfg.CORSAllowsCredentials())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "staging"

[bridge]
max_port = 7500
reply_format = "osc"

[completion]
model = "gpt-4.1-mini"
timeout = "45s"
workers = 4
queue = 10

[http]
cors_allow_origins = ["http://a", "*"]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OPENAI_MODEL", "gpt-4o")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 7500, cfg.MaxPort)
	assert.Equal(t, ReplyFormatOSC, cfg.ReplyFormat)
	assert.Equal(t, 45*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 4, cfg.CompletionWorkers)
	assert.Equal(t, 10, cfg.CompletionQueue)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel, "environment wins over file")
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "127.0.0.1:7400", cfg.ListenAddr, "undefined keys keep defaults")
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[completion]\ntimeout = \"soon\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.ErrorContains(t, err, "completion.timeout")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string][2]string{
		"bad port":         {"MAX_UDP_PORT", "seventy"},
		"port range":       {"MAX_UDP_PORT", "70000"},
		"bad reply format": {"MAX_REPLY_FORMAT", "xml"},
		"token w/o secret": {"AUTH_MODE", "token"},
		"bad provider":     {"COMPLETION_PROVIDER", "llama"},
		"bad timeout":      {"COMPLETION_TIMEOUT", "10"},
		"negative queue":   {"COMPLETION_QUEUE", "-1"},
	}

	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestTokenAuth(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_MODE", "token")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsTokenAuth())
}
