// Package telemetry wires opt-in Sentry error reporting for batch runs
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/aus-land-clearing/landcover/internal/buildinfo"
	"github.com/aus-land-clearing/landcover/internal/conf"
	"github.com/aus-land-clearing/landcover/internal/errors"
	"github.com/aus-land-clearing/landcover/internal/logger"
	"github.com/aus-land-clearing/landcover/internal/privacy"
	"github.com/aus-land-clearing/landcover/internal/secrets"
)

// sentryInitialized tracks whether Sentry has been initialized
var sentryInitialized atomic.Bool

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// InitSentry initializes Sentry when enabled and registers it as the error
// reporter. It is a no-op when telemetry is disabled.
func InitSentry(settings *conf.Settings, build *buildinfo.Context) error {
	log := GetLogger()

	if !settings.Sentry.Enabled {
		log.Debug("sentry telemetry is disabled")
		return nil
	}

	dsn, err := secrets.ExpandString(settings.Sentry.DSN)
	if err != nil {
		return err
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      settings.Sentry.Environment,
		ServerName:       "", // never leak hostnames
		Release:          build.Release(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	configureSentryScope(settings, build)
	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	sentryInitialized.Store(true)

	log.Info("sentry telemetry enabled", logger.String("environment", settings.Sentry.Environment))
	return nil
}

// applyPrivacyFilters removes host and user identifying data from an event
// and redacts signed URLs from its messages.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	return event
}

func configureSentryScope(settings *conf.Settings, build *buildinfo.Context) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("product_id", settings.Landcover.ProductID)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetContext("application", map[string]any{
			"name":       "landcover",
			"version":    build.GetVersion(),
			"build_date": build.GetBuildDate(),
		})
	})
}

// Flush sends buffered events before the process exits
func Flush(timeout time.Duration) {
	if !sentryInitialized.Load() {
		return
	}
	sentry.Flush(timeout)
}
