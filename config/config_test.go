package config

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HOST", "PORT", "LOG_LEVEL", "LOG_FORMAT", "NGROK_ENABLED", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN", "NGROK_DOMAIN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, FormatConsole, cfg.LogFormat)
	assert.False(t, cfg.NgrokEnabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("NGROK_ENABLED", "true")
	t.Setenv("NGROK_AUTHTOKEN", "tok")
	t.Setenv("NGROK_DOMAIN", "race.ngrok.app")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, FormatJSON, cfg.LogFormat)
	assert.True(t, cfg.NgrokEnabled)
	assert.Equal(t, "tok", cfg.NgrokAuthToken)
	assert.Equal(t, "race.ngrok.app", cfg.NgrokDomain)
}

func TestLoad_AlternateTokenName(t *testing.T) {
	clearEnv(t)
	t.Setenv("NGROK_ENABLED", "true")
	t.Setenv("NGROK_AUTH_TOKEN", "legacy")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.NgrokAuthToken)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "port not a number", env: map[string]string{"PORT": "eighty"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "unknown level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "unknown format", env: map[string]string{"LOG_FORMAT": "xml"}},
		{name: "ngrok without token", env: map[string]string{"NGROK_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
