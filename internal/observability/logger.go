// Package observability holds the process-wide logger, metrics and tracing setup.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global zerolog logger. Development environments
// get a human-readable console writer; everything else logs JSON to stderr.
func SetupLogger(level, env string) {
	var w io.Writer = os.Stderr
	if strings.EqualFold(env, "development") {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	log.Logger = NewLogger(w, level)
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// NewLogger builds a timestamped logger writing to w.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel falls back to info for empty or unknown names.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
