package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// setupLogging installs the default slog logger on w. Text unless
// NATIVEEXTRACTOR_JSON_LOG is 1/true; level from NATIVEEXTRACTOR_LOG_LEVEL,
// overridden by --verbose and --quiet.
func setupLogging(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel()}

	var handler slog.Handler
	if v := strings.ToLower(os.Getenv("NATIVEEXTRACTOR_JSON_LOG")); v == "1" || v == "true" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func logLevel() slog.Leveler {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelError
	}
	switch strings.ToLower(os.Getenv("NATIVEEXTRACTOR_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// slogLogger adapts slog to extractor.Logger. Library diagnostics are
// logged at info level.
type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Log(format string, args ...any) {
	l.logger.Log(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...))
}

func defaultLogger() slogLogger {
	return slogLogger{logger: slog.Default()}
}
