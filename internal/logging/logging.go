// Package logging builds navqueue's slog loggers. Commands print their
// results on stdout, so log records go to the command's stderr.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a logger writing records at or above level to w. format is
// "json" or "text"; anything else is treated as text.
func New(w io.Writer, level slog.Leveler, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard is the logger for runs nobody watches, such as scenarios under test.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel reads a NAVQUEUE_LOG_LEVEL value. It accepts slog's level
// names with optional offsets ("debug", "WARN", "info+2") and "warning".
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
