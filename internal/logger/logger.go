// Package logger provides the module-aware structured logging used across the
// landcover pipeline. It is a thin layer over log/slog.
//
// A CentralLogger is built once from LoggingConfig and hands out loggers
// scoped to a module name:
//
//	central, err := logger.NewCentralLogger(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	defer central.Close()
//
//	log := central.Module("pipeline")
//	log.Info("state finished",
//	    logger.String("state", "NSW"),
//	    logger.Int("years_exported", 24))
//
// Sub-modules nest with a dot ("source.stac"). Modules listed under
// logging.modules in the configuration get their own JSON log file; all other
// modules write to the console (text) and the main log file (JSON).
//
// Components should accept a Logger rather than reach for the global one.
// Global exists for package-level helpers and command wiring.
package logger

import (
	"context"
	"time"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field is one structured key/value pair.
type Field struct {
	Key   string
	Value any
}

const (
	errorKeyName   = "error"
	moduleKeyName  = "module"
	traceIDKeyName = "trace_id"
)

// Logger is the logging interface injected into components
type Logger interface {
	// Module returns a logger scoped to a sub-module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	// Log with explicit level
	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// String creates a string field.
//
// Example:
//
//	log.Info("boundary loaded",
//	    logger.String("state", "VIC"),
//	    logger.String("path", path))
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field for counts, years and sizes.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a 64-bit integer field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates an unsigned 64-bit integer field, typically byte counts.
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float field. Values are rounded to three decimals when
// rendered.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field under the "error" key. A nil error yields a
// nil value.
//
// Example:
//
//	if err := exporter.Export(stack, year, path, opts); err != nil {
//	    log.Warn("year export failed",
//	        logger.Int("year", year),
//	        logger.Error(err))
//	}
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKeyName, Value: nil}
	}
	return Field{Key: errorKeyName, Value: err.Error()}
}

// Duration creates a duration field rendered as a string such as "1.5s".
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field with an arbitrary value. Prefer the typed constructors.
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
