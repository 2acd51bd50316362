package observability

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type requestFieldsKey struct{}

// RequestFields identify the caller of an explorer request in every log line
// written while serving it.
type RequestFields struct {
	RequestID string
	UserID    string
}

// InitLogger configures the global zerolog logger. Development gets a
// console writer, everything else structured JSON on stdout.
func InitLogger(serviceName, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.DurationFieldUnit = time.Millisecond

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	base := zerolog.New(os.Stdout)
	if env == "development" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	log.Logger = base.With().
		Timestamp().
		Str("service", serviceName).
		Str("env", env).
		Logger()
	if env != "development" {
		log.Logger = log.Logger.With().Caller().Logger()
	}
}

// WithRequestFields attaches request identity to ctx for LoggerFromContext.
func WithRequestFields(ctx context.Context, fields RequestFields) context.Context {
	return context.WithValue(ctx, requestFieldsKey{}, fields)
}

// RequestFieldsFromContext returns the identity set by WithRequestFields.
func RequestFieldsFromContext(ctx context.Context) (RequestFields, bool) {
	fields, ok := ctx.Value(requestFieldsKey{}).(RequestFields)
	return fields, ok
}

// LoggerFromContext returns the global logger enriched with trace ids and
// request identity found on ctx.
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	lc := log.With()

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		lc = lc.
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String())
	}
	if fields, ok := RequestFieldsFromContext(ctx); ok {
		if fields.RequestID != "" {
			lc = lc.Str("request_id", fields.RequestID)
		}
		if fields.UserID != "" {
			lc = lc.Str("user_id", fields.UserID)
		}
	}

	logger := lc.Logger()
	return &logger
}

// GetLogger returns the global logger
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
