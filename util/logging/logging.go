// Package logging holds the slog setup shared by the streamcheck packages.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// LevelTrace is the level of per-step dispatch and staleness records.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs msg at LevelTrace on the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// ParseLevel converts a level name into a slog level. It accepts the slog
// names plus "trace".
func ParseLevel(name string) (slog.Level, error) {
	if strings.EqualFold(strings.TrimSpace(name), "trace") {
		return LevelTrace, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, errors.Wrapf(err, "log level %q", name)
	}

	return level, nil
}

// Setup installs a default logger writing to w. Format is "json" or "text".
func Setup(w io.Writer, format string, level slog.Level) error {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return errors.Errorf("unknown log format %q", format)
	}

	slog.SetDefault(slog.New(handler))

	return nil
}
