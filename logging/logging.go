// Package logging builds the zerolog logger every component is handed.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/horserace/config"
)

// New returns a logger writing to w at level. format is config.FormatConsole
// for human-readable lines or config.FormatJSON for one JSON object per line.
func New(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	if format != config.FormatJSON {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
