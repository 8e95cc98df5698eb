package datastore

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries worth surfacing at warn level.
const slowQueryThreshold = 200 * time.Millisecond

// gormLogger adapts the structured logger to GORM's logger interface so
// query logging lands in the same stream as the rest of the service.
type gormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
}

func newGormLogger(log *slog.Logger) logger.Interface {
	return &gormLogger{log: log, level: logger.Warn}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{log: l.log, level: level}
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.log.Info(msg, "args", args)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.log.Warn(msg, "args", args)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.log.Error(msg, "args", args)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.level >= logger.Error:
		l.log.Error("query failed", "error", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case elapsed > slowQueryThreshold && l.level >= logger.Warn:
		l.log.Warn("slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= logger.Info:
		l.log.Debug("query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
