// Package logger builds the zerolog root logger the rest of the service
// derives its sub-loggers from.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a timestamped root logger writing to stdout. The level string
// follows zerolog's names (trace, debug, info, warn, error); anything
// unparseable falls back to info. With pretty enabled, output goes through
// the console writer instead of raw JSON.
func New(level string, pretty bool) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).With().Timestamp().Caller().Logger()
}

// SetGlobal replaces zerolog's package-level logger so code logging through
// zerolog/log shares the service logger.
func SetGlobal(l zerolog.Logger) {
	log.Logger = l
}
