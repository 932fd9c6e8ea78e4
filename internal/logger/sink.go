package logger

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LogFilePermissions is the mode for newly created log files.
const LogFilePermissions = 0o600

const sinkBufferSize = 32 * 1024

// fileSink is an append-only, buffered log file. Runs are short-lived so
// there is no background flusher: buffers drain on Flush and Close.
type fileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

func openSink(path string) (*fileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, LogFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return &fileSink{path: path, f: f, w: bufio.NewWriterSize(f, sinkBufferSize)}, nil
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, fmt.Errorf("log file %s is closed", s.path)
	}
	return s.w.Write(p)
}

// Flush hands buffered lines to the OS.
func (s *fileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	return s.w.Flush()
}

// Close flushes, syncs and closes the file. Repeated calls are no-ops.
func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	ferr := s.w.Flush()
	serr := s.f.Sync()
	cerr := s.f.Close()
	s.f = nil
	for _, err := range []error{ferr, serr, cerr} {
		if err != nil {
			return fmt.Errorf("close log file %s: %w", s.path, err)
		}
	}
	return nil
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func newFanout(hs ...slog.Handler) slog.Handler {
	if len(hs) == 1 {
		return hs[0]
	}
	return fanout(hs)
}

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
