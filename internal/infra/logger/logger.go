// Package logger builds the process-wide slog logger from config.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cricsight/internal/infra/config"
)

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New creates a configured *slog.Logger. The returned closer must be
// called on shutdown to release a file output.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	sink, closer, err := newSink(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	level, ok := levels[strings.ToLower(cfg.Level)]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level: level,
		// Debug runs carry the caller, production output stays lean.
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(sink, opts)
	} else {
		handler = slog.NewTextHandler(sink, opts)
	}

	return slog.New(handler), closer, nil
}

// newSink resolves the output target. Anything that is not a known
// stream name is treated as a file path.
func newSink(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "", "stderr":
		return os.Stderr, noop, nil
	case "discard":
		return io.Discard, noop, nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
