package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Extended levels below slog.LevelDebug, used by connector implementations
// that emit very chatty wire-level diagnostics.
const (
	LevelSilly   slog.Level = slog.LevelDebug - 8
	LevelVerbose slog.Level = slog.LevelDebug - 4
)

// LevelName returns the lowercase name for a level, including the extended
// levels. Unknown offsets fall back to slog's own formatting.
func LevelName(level slog.Level) string {
	switch level {
	case LevelSilly:
		return "silly"
	case LevelVerbose:
		return "verbose"
	case slog.LevelDebug:
		return "debug"
	case slog.LevelInfo:
		return "info"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return strings.ToLower(level.String())
	}
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "silly":
		return LevelSilly, nil
	case "verbose":
		return LevelVerbose, nil
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// QoS maps a log level onto the delivery QoS used by cloud reply envelopes:
// informational records are fire-and-forget, everything else is at-least-once.
func QoS(level slog.Level) int {
	if level == slog.LevelInfo {
		return 0
	}
	return 1
}
