package index

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/privacy"
)

// sqlLogger routes gorm output into the index module log. Statements are
// logged at TRACE; slow statements and real errors at WARN.
type sqlLogger struct {
	log  logger.Logger
	slow time.Duration
}

func newSQLLogger(log logger.Logger, slow time.Duration) *sqlLogger {
	return &sqlLogger{log: log, slow: slow}
}

// LogMode is a no-op; the module level decides what is shown.
func (l *sqlLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface { return l }

func (l *sqlLogger) Info(_ context.Context, msg string, args ...any) {
	l.log.Debug(fmt.Sprintf(msg, args...))
}

func (l *sqlLogger) Warn(_ context.Context, msg string, args ...any) {
	l.log.Warn(fmt.Sprintf(msg, args...))
}

// Error scrubs the message; driver errors can echo the DSN.
func (l *sqlLogger) Error(_ context.Context, msg string, args ...any) {
	l.log.Error(privacy.ScrubMessage(fmt.Sprintf(msg, args...)))
}

func (l *sqlLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []logger.Field{
		logger.String("sql", sql),
		logger.Int64("rows", rows),
		logger.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.log.Warn("query failed", append(fields, logger.String("error", privacy.ScrubMessage(err.Error())))...)
	case l.slow > 0 && elapsed > l.slow:
		l.log.Warn("slow query", append(fields, logger.Duration("threshold", l.slow))...)
	default:
		l.log.Trace("query", fields...)
	}
}
