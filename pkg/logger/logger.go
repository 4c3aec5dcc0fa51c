// Package logger provides the structured logging interface used across the
// webhook delivery subsystem.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

//go:generate mockgen -destination=../../internal/domain/mocks/mock_logger.go -package=mocks github.com/vibe-kanban/webhooks/pkg/logger Logger

// Logger is the structured logging interface every component depends on.
// WithField/WithFields return a new Logger carrying the extra context so
// call sites can build up fields without mutating a shared logger.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

type zerologLogger struct {
	logger zerolog.Logger
}

// NewLogger creates a Logger backed by zerolog, writing JSON lines to
// stdout at the given minimum level ("debug", "info", "warn", "error").
// An unrecognized or empty level falls back to "info".
func NewLogger(level string) Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zl := zerolog.New(os.Stdout).Level(parsed).With().Timestamp().Logger()
	return &zerologLogger{logger: zl}
}

func (l *zerologLogger) Debug(msg string) { l.logger.Debug().Msg(msg) }
func (l *zerologLogger) Info(msg string)  { l.logger.Info().Msg(msg) }
func (l *zerologLogger) Warn(msg string)  { l.logger.Warn().Msg(msg) }
func (l *zerologLogger) Error(msg string) { l.logger.Error().Msg(msg) }
func (l *zerologLogger) Fatal(msg string) { l.logger.Fatal().Msg(msg) }

func (l *zerologLogger) WithField(key string, value interface{}) Logger {
	return &zerologLogger{logger: l.logger.With().Interface(key, redact(key, value)).Logger()}
}

func (l *zerologLogger) WithFields(fields map[string]interface{}) Logger {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, redact(key, value))
	}
	return &zerologLogger{logger: ctx.Logger()}
}

// redact masks fields that would otherwise leak a subscription secret into
// log output.
func redact(key string, value interface{}) interface{} {
	switch key {
	case "secret", "webhook_secret":
		return "[redacted]"
	default:
		return value
	}
}
