// Package telemetry provides logging, correlation ids and metrics for the
// infra agent.
package telemetry

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/oklog/ulid/v2"

	"github.com/szaher/infraagent/internal/secrets"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// Format selects the log handler.
type Format string

const (
	// FormatJSON emits one JSON object per record.
	FormatJSON Format = "json"
	// FormatText emits colorized human-readable lines.
	FormatText Format = "text"
)

// ParseFormat validates a log format name. Empty selects def.
func ParseFormat(name string, def Format) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return def, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatText, "tint", "console":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown log format %q (expected json or text)", name)
	}
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// NewLogger creates a structured logger. Values in redact never appear in
// its output.
func NewLogger(w io.Writer, level slog.Level, format Format, redact ...string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Value.Kind() == slog.KindAny {
					if _, ok := a.Value.Any().(error); ok {
						return tint.Attr(9, a)
					}
				}
				return a
			},
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	filter := secrets.NewRedactFilter(handler)
	filter.AddSecret(redact...)
	return slog.New(filter)
}

// NewCorrelationID returns a time-ordered unique id.
func NewCorrelationID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new ULID is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewCorrelationID()
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID retrieves the correlation ID from context.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLogger returns a logger with request-scoped fields.
func RequestLogger(logger *slog.Logger, ctx context.Context, component string) *slog.Logger {
	attrs := []any{
		slog.String("component", component),
	}
	if id := CorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	return logger.With(attrs...)
}
