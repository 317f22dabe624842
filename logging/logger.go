package logging

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger used across all services.
type Logger interface {
	logrus.FieldLogger
}

type ctxKey int

const loggerCtxKey ctxKey = iota

func New() Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})
	return logger
}

// SetLevel adjusts the level of the root logger behind the given logger.
// Derived entry loggers share the root, so they inherit the change.
func SetLevel(logger Logger, level string) error {
	if level == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("can't parse log level %q: %w", level, err)
	}
	switch l := logger.(type) {
	case *logrus.Logger:
		l.SetLevel(lvl)
	case *logrus.Entry:
		l.Logger.SetLevel(lvl)
	}
	return nil
}

func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

func LoggerFromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerCtxKey).(Logger); ok {
		return logger
	}
	return New()
}
