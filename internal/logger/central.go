package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	// Embedded tz database so Australia/* zones resolve on minimal images
	_ "time/tzdata"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

// slog has no trace level; use two steps below debug.
const levelTrace = slog.Level(-8)

var (
	global   *CentralLogger
	globalMu sync.Mutex
)

// SetGlobal installs cl as the process-wide logger.
func SetGlobal(cl *CentralLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = cl
}

// Global returns the process-wide logger. Before SetGlobal it is an
// info-level console logger on stderr.
func Global() *CentralLogger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = &CentralLogger{
			cfg:     &LoggingConfig{DefaultLevel: DefaultLogLevel},
			tz:      time.Local,
			level:   slog.LevelInfo,
			console: newTextHandler(os.Stderr, slog.LevelInfo),
			routes:  map[string]route{},
		}
	}
	return global
}

type traceIDKey struct{}

// WithTraceID stores a trace id in ctx. The pipeline uses the run id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

func traceIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// route is the dedicated output of one top-level module.
type route struct {
	sink        *fileSink
	level       slog.Level
	consoleAlso bool
}

// CentralLogger owns the log files and hands out module loggers.
// Modules with a route in logging.modules write JSON to their own file;
// everything else goes to the console and the main file.
type CentralLogger struct {
	cfg     *LoggingConfig
	tz      *time.Location
	level   slog.Level
	console slog.Handler
	main    *fileSink
	mainH   slog.Handler
	routes  map[string]route
	mu      sync.RWMutex
}

// NewCentralLogger opens the configured outputs. Missing sections are filled
// with defaults, so cfg is modified.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, errors.Newf("logging config cannot be nil").
			Component("logger").
			Category(errors.CategoryConfiguration).
			Build()
	}
	applyConfigDefaults(cfg)

	tz := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, errors.New(fmt.Errorf("invalid timezone %s: %w", cfg.Timezone, err)).
				Component("logger").
				Category(errors.CategoryConfiguration).
				Build()
		}
		tz = loc
	}

	cl := &CentralLogger{
		cfg:    cfg,
		tz:     tz,
		level:  parseLogLevel(cfg.DefaultLevel),
		routes: make(map[string]route),
	}

	if cfg.Console != nil && cfg.Console.Enabled {
		cl.console = newTextHandler(os.Stderr, parseLogLevel(cfg.Console.Level))
	}
	if cfg.FileOutput != nil && cfg.FileOutput.Enabled && cfg.FileOutput.Path != "" {
		sink, err := openSink(cfg.FileOutput.Path)
		if err != nil {
			return nil, errors.New(err).Component("logger").Category(errors.CategoryFileIO).Build()
		}
		cl.main = sink
		cl.mainH = newJSONHandler(sink, parseLogLevel(cfg.FileOutput.Level), tz)
	}

	for name, mo := range cfg.ModuleOutputs {
		if !mo.Enabled || mo.FilePath == "" {
			continue
		}
		sink, err := openSink(mo.FilePath)
		if err != nil {
			_ = cl.Close()
			return nil, errors.New(err).
				Component("logger").
				Category(errors.CategoryFileIO).
				Context("module", name).
				Build()
		}
		level := cl.moduleLevel(name)
		if mo.Level != "" {
			level = parseLogLevel(mo.Level)
		}
		cl.routes[name] = route{sink: sink, level: level, consoleAlso: mo.ConsoleAlso}
	}

	return cl, nil
}

func (cl *CentralLogger) moduleLevel(name string) slog.Level {
	if lvl, ok := cl.cfg.ModuleLevels[name]; ok {
		return parseLogLevel(lvl)
	}
	return cl.level
}

// Module returns a logger for name. Dotted names route by their first
// segment, so "source.stac" shares the "source" file.
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	top, _, _ := strings.Cut(name, ".")
	level := cl.moduleLevel(top)

	var hs []slog.Handler
	if r, ok := cl.routes[top]; ok && r.sink != nil {
		level = r.level
		hs = append(hs, newJSONHandler(r.sink, r.level, cl.tz))
		if r.consoleAlso && cl.console != nil {
			hs = append(hs, cl.console)
		}
	} else {
		if cl.console != nil {
			hs = append(hs, cl.console)
		}
		if cl.mainH != nil {
			hs = append(hs, cl.mainH)
		}
	}
	if len(hs) == 0 {
		hs = append(hs, newTextHandler(io.Discard, level))
	}

	return &moduleLogger{module: name, logger: slog.New(newFanout(hs...)), level: level, tz: cl.tz}
}

func (cl *CentralLogger) sinks() []*fileSink {
	out := make([]*fileSink, 0, len(cl.routes)+1)
	if cl.main != nil {
		out = append(out, cl.main)
	}
	for _, r := range cl.routes {
		out = append(out, r.sink)
	}
	return out
}

// Flush drains buffered lines to the OS.
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	var errs []error
	for _, s := range cl.sinks() {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every log file. Loggers obtained earlier keep
// working for the console; file writes after Close fail silently.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	var errs []error
	for _, s := range cl.sinks() {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewSlogLogger returns a standalone text Logger on w, for tests and for
// components built without a CentralLogger. Nil w means stderr and a nil
// tz renders time fields in local time.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	if w == nil {
		w = os.Stderr
	}
	if tz == nil {
		tz = time.Local
	}
	lvl := parseLogLevel(string(level))
	return &moduleLogger{logger: slog.New(newTextHandler(w, lvl)), level: lvl, tz: tz}
}

// newTextHandler renders console lines without timestamps.
func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case slog.LevelKey:
				return slog.String(slog.LevelKey, levelName(a.Value.Any()))
			}
			return a
		},
	})
}

// newJSONHandler renders file lines with RFC3339 timestamps in tz.
func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.In(tz).Format(time.RFC3339))
				}
			case slog.LevelKey:
				return slog.String(slog.LevelKey, levelName(a.Value.Any()))
			}
			return a
		},
	})
}

func levelName(v any) string {
	if l, ok := v.(slog.Level); ok && l <= levelTrace {
		return "TRACE"
	}
	return fmt.Sprint(v)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return levelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type moduleLogger struct {
	module string
	logger *slog.Logger
	level  slog.Level
	tz     *time.Location
	fields []Field
}

func (m *moduleLogger) Module(name string) Logger {
	if m == nil {
		return nil
	}
	module := name
	if m.module != "" {
		module = m.module + "." + name
	}
	return &moduleLogger{module: module, logger: m.logger, level: m.level, tz: m.tz, fields: slices.Clone(m.fields)}
}

func (m *moduleLogger) With(fields ...Field) Logger {
	if m == nil {
		return nil
	}
	return &moduleLogger{module: m.module, logger: m.logger, level: m.level, tz: m.tz, fields: slices.Concat(m.fields, fields)}
}

// WithContext adds the trace id carried by ctx, if any.
func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if m == nil {
		return nil
	}
	if id := traceIDFrom(ctx); id != "" {
		return m.With(String(traceIDKeyName, id))
	}
	return m
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.emit(levelTrace, msg, fields) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.emit(slog.LevelDebug, msg, fields) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.emit(slog.LevelInfo, msg, fields) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.emit(slog.LevelWarn, msg, fields) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.emit(slog.LevelError, msg, fields) }

func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.emit(parseLogLevel(string(level)), msg, fields)
}

// Flush is a no-op; files belong to the CentralLogger.
func (m *moduleLogger) Flush() error { return nil }

func (m *moduleLogger) emit(level slog.Level, msg string, fields []Field) {
	if m == nil || level < m.level {
		return
	}
	attrs := make([]slog.Attr, 0, 1+len(m.fields)+len(fields))
	if m.module != "" {
		attrs = append(attrs, slog.String(moduleKeyName, m.module))
	}
	for _, f := range m.fields {
		attrs = append(attrs, toAttr(f, m.tz))
	}
	for _, f := range fields {
		attrs = append(attrs, toAttr(f, m.tz))
	}
	m.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// toAttr renders time fields in tz and rounds floats to three decimals.
func toAttr(f Field, tz *time.Location) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float32:
		return slog.Float64(f.Key, round3(float64(v)))
	case float64:
		return slog.Float64(f.Key, round3(v))
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		if tz != nil {
			v = v.In(tz)
		}
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}

func round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*1000) / 1000
}
