package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// slogLogger adapts gorm's logger interface onto slog so query logs share
// the process-wide handler.
type slogLogger struct {
	logger *slog.Logger
}

func newSlogLogger(logger *slog.Logger) gormlogger.Interface {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

func (l *slogLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	// Level filtering is handled by the slog handler.
	return l
}

func (l *slogLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.logger.InfoContext(ctx, "gorm", "msg", msg, "args", args)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.logger.WarnContext(ctx, "gorm", "msg", msg, "args", args)
}

func (l *slogLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.logger.ErrorContext(ctx, "gorm", "msg", msg, "args", args)
}

func (l *slogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.logger.ErrorContext(ctx, "query failed",
			"error", err, "sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	case elapsed > slowQueryThreshold:
		sql, rows := fc()
		l.logger.WarnContext(ctx, "slow query",
			"sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	default:
		sql, rows := fc()
		l.logger.DebugContext(ctx, "query",
			"sql", sql, "rows", rows, "duration_ms", elapsed.Milliseconds())
	}
}
