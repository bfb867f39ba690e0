package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process logger, tags it with the service name and installs it as the slog default.
func Setup(level, serviceName string) *slog.Logger {
	return SetupTo(os.Stdout, level, serviceName)
}

// SetupTo is Setup writing to w. CLI commands that print results on stdout log to stderr.
func SetupTo(w io.Writer, level, serviceName string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})

	logger := slog.New(handler).With("service", serviceName)
	slog.SetDefault(logger)

	return logger
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
