package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SeverityField carries the syslog-style severity for events that are more
// urgent than zerolog's error level.
const SeverityField = "severity"

// New creates a logger writing JSON, or human readable output when format is
// "console".
func New(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "nebula-static-delete").
		Logger()
}

// FromConfig builds the process logger on stderr. Unknown levels fall back
// to info.
func FromConfig(level, format string) zerolog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return New(os.Stderr, lvl, format)
}

func ParseLevel(s string) (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
}

// Crit starts an event for failures an operator must look at.
func Crit(l *zerolog.Logger) *zerolog.Event {
	return l.Error().Str(SeverityField, "crit")
}

// Alert starts an event for misconfiguration that breaks every request it
// touches.
func Alert(l *zerolog.Logger) *zerolog.Event {
	return l.Error().Str(SeverityField, "alert")
}
