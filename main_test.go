package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/horserace/api"
	"github.com/wricardo/horserace/config"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "Horse Race Multiplayer Server", AppName)
}

func TestCommandTree(t *testing.T) {
	cmd := newCommand()
	assert.NotNil(t, cmd.Action, "serve runs by default")

	byName := map[string]*cli.Command{}
	for _, sub := range cmd.Commands {
		byName[sub.Name] = sub
	}
	require.Contains(t, byName, "serve")
	require.Contains(t, byName, "mcp")
	require.Contains(t, byName, "bot")
	assert.ElementsMatch(t, []string{"server", "http"}, byName["serve"].Aliases)
	assert.ElementsMatch(t, []string{"stdio-mcp", "mcp-stdio"}, byName["mcp"].Aliases)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HOST", "PORT", "LOG_LEVEL", "LOG_FORMAT", "NGROK_ENABLED", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN", "NGROK_DOMAIN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// configFor runs the root command with args and captures the resulting config.
func configFor(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var (
		cfg *config.Config
		err error
	)
	cmd := newCommand()
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		cfg, err = loadConfig(c)
		return nil
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"horserace"}, args...)))
	return cfg, err
}

func TestLoadConfig_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("HOST", "10.0.0.1")

	cfg, err := configFor(t, "--port", "9999", "--log-level", "debug", "--log-format", "json")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Host)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, config.FormatJSON, cfg.LogFormat)
}

func TestLoadConfig_EnvironmentOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")

	cfg, err := configFor(t)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := configFor(t, "--log-level", "loud")
	assert.Error(t, err)

	_, err = configFor(t, "--log-format", "xml")
	assert.Error(t, err)
}

func TestStack_ServesAndStops(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := loopbackURL(ln)
	s := newStack(base, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.run(ctx, ln) }()

	require.Eventually(t, func() bool { return reachable(context.Background(), base) }, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/api/health")
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health["status"])

	resp, err = http.Get(base + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, api.Banner, string(body))

	resp, err = http.Post(base+"/mcp", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_rooms","arguments":{}}}`))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "Live Rooms (0)")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout):
		t.Fatal("stack did not stop")
	}
	assert.False(t, reachable(context.Background(), base))
}
