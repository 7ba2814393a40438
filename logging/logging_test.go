package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/horserace/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.InfoLevel, config.FormatJSON)

	logger.Debug().Msg("hidden")
	logger.Info().Str("room", "ABCD").Msg("room created")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ABCD", entry["room"])
	assert.Equal(t, "room created", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.DebugLevel, config.FormatConsole)

	logger.Debug().Str("room", "ABCD").Msg("room created")

	out := buf.String()
	assert.Contains(t, out, "room created")
	assert.Contains(t, out, "room=")
	assert.Contains(t, out, "ABCD")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}
