package utils

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryOptions selects the project and tags every event with where it came from.
type SentryOptions struct {
	DSN         string
	Environment string
	Version     string
	// Fraction of requests traced; production defaults lower than other
	// environments when zero.
	TracesSampleRate float64
}

func (o SentryOptions) clientOptions() sentry.ClientOptions {
	rate := o.TracesSampleRate
	if rate == 0 {
		rate = 1.0
		if o.Environment == "production" {
			rate = 0.2
		}
	}
	return sentry.ClientOptions{
		Dsn:              o.DSN,
		Environment:      o.Environment,
		Release:          "clinica-medicos@" + o.Version,
		EnableTracing:    true,
		TracesSampleRate: rate,
		AttachStacktrace: true,
		BeforeSend:       scrubRequestBody,
	}
}

// scrubRequestBody drops request payloads; they carry doctors' personal data.
func scrubRequestBody(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
	}
	return event
}

// InitSentry configures the global hub and returns the flush to run before exit.
func InitSentry(opts SentryOptions) (flush func(), err error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("sentry DSN is empty")
	}
	if err := sentry.Init(opts.clientOptions()); err != nil {
		return nil, fmt.Errorf("sentry initialization failed: %w", err)
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureError reports err on hub, or on the global hub when hub is nil,
// with extra attached to the event only.
func CaptureError(hub *sentry.Hub, err error, extra map[string]interface{}) {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetExtras(extra)
		hub.CaptureException(err)
	})
}
