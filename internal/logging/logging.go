// Package logging builds the zerolog logger used across the pipeline.
//
// Components receive a zerolog.Logger value and never reach for a global:
//
//	log := logging.New(logging.Config{Level: "info", Format: "console"})
//	log.Info().Int("count", n).Str("dir", root).Msg("files found")
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, disabled.
	// Default: info.
	Level string

	// Format is json or console. Default: json.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer

	// NoTimestamp drops the time field; tests use it for stable output.
	NoTimestamp bool
}

// New returns a logger for cfg. Unknown levels fall back to info.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: true}
	}

	l := zerolog.New(out).Level(ParseLevel(cfg.Level))
	if !cfg.NoTimestamp {
		l = l.With().Timestamp().Logger()
	}
	return l
}

// ParseLevel converts a level name to a zerolog.Level. Empty and unknown
// names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger { return zerolog.Nop() }
