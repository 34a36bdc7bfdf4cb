// Package logger builds the zap loggers used across the portal. Request
// handlers log through WithRequest and mounted views through WithView, so
// every line about a conversation carries the same field names.
package logger

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared by handlers, middleware and views.
const (
	FieldCorrelationID  = "correlation_id"
	FieldUserID         = "user_id"
	FieldMode           = "mode"
	FieldConversationID = "conversation_id"
)

// Service is attached to every production log line.
const Service = "filo-portal"

// Logger embeds *zap.Logger and adds the portal's scoped constructors.
type Logger struct {
	*zap.Logger
}

// ForEnv returns the console logger when env is "development" and the JSON
// logger at level otherwise.
func ForEnv(env, level string) (*Logger, error) {
	if env == "development" {
		return NewDevelopment()
	}
	return New(level)
}

// New returns a JSON logger writing to stdout. Unknown levels mean info.
// Sampling is off so that no reply failure is dropped.
func New(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": Service}
	return build(cfg)
}

// NewDevelopment returns a colored console logger at debug level.
func NewDevelopment() (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return build(cfg)
}

// NewNop returns a logger that discards everything. Controllers and tests
// fall back to it.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func build(cfg zap.Config) (*Logger, error) {
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: z}, nil
}

// With returns a child logger carrying fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// WithRequest scopes l to one HTTP request.
func (l *Logger) WithRequest(correlationID, userID string) *Logger {
	return l.With(
		zap.String(FieldCorrelationID, correlationID),
		zap.String(FieldUserID, userID),
	)
}

// WithView scopes l to one mounted conversation view.
func (l *Logger) WithView(mode, conversationID string) *Logger {
	return l.With(
		zap.String(FieldMode, mode),
		zap.String(FieldConversationID, conversationID),
	)
}

func parseLevel(level string) zapcore.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

var global atomic.Pointer[Logger]

func init() {
	l, err := ForEnv(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		l = NewNop()
	}
	global.Store(l)
}

// Global returns the process logger. filoctl logs through it; the API server
// replaces it at startup.
func Global() *Logger {
	return global.Load()
}

// SetGlobal replaces the process logger.
func SetGlobal(l *Logger) {
	global.Store(l)
}
