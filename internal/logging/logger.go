package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"webenv/internal/envconfig"
)

// Logger wraps slog.Logger to implement envconfig.Logger
type Logger struct {
	slogger *slog.Logger
	attrs   []slog.Attr
}

// NewLogger creates a logger writing to the configured output.
func NewLogger(config envconfig.LoggingConfig) (envconfig.Logger, error) {
	out, err := parseOutput(config.Output)
	if err != nil {
		return nil, err
	}
	return NewLoggerTo(out, config)
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer, config envconfig.LoggingConfig) (envconfig.Logger, error) {
	level, err := parseLogLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		slogger: slog.New(handler),
	}, nil
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.log(slog.LevelDebug, msg, keysAndValues)
}

// Info logs an info message
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.log(slog.LevelInfo, msg, keysAndValues)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.log(slog.LevelWarn, msg, keysAndValues)
}

// Error logs an error message
func (l *Logger) Error(msg string, keysAndValues ...any) {
	l.log(slog.LevelError, msg, keysAndValues)
}

func (l *Logger) log(level slog.Level, msg string, keysAndValues []any) {
	ctx := context.Background()
	if !l.slogger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(l.attrs)+len(keysAndValues)/2)
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, parseKeyValues(keysAndValues)...)
	l.slogger.LogAttrs(ctx, level, msg, attrs...)
}

// With returns a new logger with additional fields
func (l *Logger) With(keysAndValues ...any) envconfig.Logger {
	newAttrs := make([]slog.Attr, len(l.attrs), len(l.attrs)+len(keysAndValues)/2)
	copy(newAttrs, l.attrs)

	return &Logger{
		slogger: l.slogger,
		attrs:   append(newAttrs, parseKeyValues(keysAndValues)...),
	}
}

// parseKeyValues converts key-value pairs to slog attributes. A trailing key
// without a value and non-string keys are dropped. Firebase configs are
// logged redacted.
func parseKeyValues(keysAndValues []any) []slog.Attr {
	var attrs []slog.Attr

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}

		switch v := keysAndValues[i+1].(type) {
		case envconfig.FirebaseConfig:
			attrs = append(attrs, slog.Any(key, v.Redacted()))
		case *envconfig.FirebaseConfig:
			if v != nil {
				attrs = append(attrs, slog.Any(key, v.Redacted()))
			}
		default:
			attrs = append(attrs, slog.Any(key, v))
		}
	}

	return attrs
}

// parseLogLevel parses a log level string to slog.Level
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

func parseOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("unknown log output: %s", output)
	}
}
