// Package logging provides structured logging with request/session field
// propagation, shared by every component of the world server core.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried through a session.
type ContextKey string

const (
	// ConnectionIDKey is the context key for the websocket connection id.
	ConnectionIDKey ContextKey = "connection_id"
	// UserIDKey is the context key for the authenticated principal's user id.
	UserIDKey ContextKey = "user_id"
)

// Logger wraps logrus.Logger with a fixed service name.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for the named service with the given level and format.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv builds a Logger reading LOG_LEVEL/LOG_FORMAT, defaulting to
// info/text when unset.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	return New(service, level, format)
}

// WithConnectionID attaches a connection id to the context.
func WithConnectionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ConnectionIDKey, id)
}

// WithUserID attaches an authenticated user id to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// WithContext returns a logrus.Entry carrying the service name plus any
// connection/user ids present on the context.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.WithField("service", l.service)
	if ctx == nil {
		return entry
	}
	if v, ok := ctx.Value(ConnectionIDKey).(string); ok && v != "" {
		entry = entry.WithField("connection_id", v)
	}
	if v, ok := ctx.Value(UserIDKey).(string); ok && v != "" {
		entry = entry.WithField("user_id", v)
	}
	return entry
}
