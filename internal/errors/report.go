package errors

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getsentry/sentry-go"

	"github.com/aus-land-clearing/landcover/internal/privacy"
)

// TelemetryReporter receives every built error while installed.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu sync.RWMutex
	reporter   TelemetryReporter
	reporting  atomic.Bool
)

// SetTelemetryReporter installs r. Nil disables reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
	reporting.Store(r != nil && r.IsEnabled())
}

func report(ee *EnhancedError) {
	if !reporting.Load() {
		return
	}
	reporterMu.RLock()
	r := reporter
	reporterMu.RUnlock()
	if r != nil && r.IsEnabled() && ee.reported.CompareAndSwap(false, true) {
		r.ReportError(ee)
	}
}

// SentryReporter forwards errors to Sentry with URLs and credentials scrubbed.
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a reporter; a disabled one drops everything.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool { return sr.enabled }

// ReportError captures ee as a Sentry event grouped by component and category.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled {
		return
	}
	msg := privacy.ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := errorTitle(ee)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for k, v := range ee.Context {
			if s, ok := v.(string); ok {
				v = privacy.ScrubMessage(s)
			}
			scope.SetContext(k, map[string]any{"value": v})
		}
		scope.SetFingerprint([]string{title, ee.component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Level = sentryLevel(ee)
		event.Message = msg
		event.Exception = []sentry.Exception{{Type: title, Value: msg}}
		sentry.CaptureEvent(event)
	})
}

// errorTitle reads like "Source raster-fetch stac search".
func errorTitle(ee *EnhancedError) string {
	parts := make([]string, 0, 3)
	if ee.component != "" && ee.component != ComponentUnknown {
		parts = append(parts, strings.ToUpper(ee.component[:1])+ee.component[1:])
	}
	parts = append(parts, string(ee.Category))
	if op, ok := ee.Context["operation"].(string); ok && op != "" {
		parts = append(parts, strings.ReplaceAll(op, "_", " "))
	}
	return strings.Join(parts, " ")
}

// sentryLevel downgrades transient and batch-recoverable categories.
func sentryLevel(ee *EnhancedError) sentry.Level {
	switch ee.Priority {
	case PriorityCritical:
		return sentry.LevelFatal
	case PriorityLow:
		return sentry.LevelInfo
	}
	switch ee.Category {
	case CategoryNetwork, CategoryHTTP, CategoryFetch, CategoryTimeout,
		CategoryAnimation, CategoryPublish, CategoryCancellation:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}
