package utils

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestSentryOptions_SampleRate(t *testing.T) {
	tests := []struct {
		name string
		opts SentryOptions
		want float64
	}{
		{"production default", SentryOptions{Environment: "production"}, 0.2},
		{"development default", SentryOptions{Environment: "development"}, 1.0},
		{"explicit", SentryOptions{Environment: "production", TracesSampleRate: 0.05}, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.clientOptions().TracesSampleRate)
		})
	}
}

func TestSentryOptions_Release(t *testing.T) {
	opts := SentryOptions{Version: "1.4.0"}.clientOptions()
	assert.Equal(t, "clinica-medicos@1.4.0", opts.Release)
}

func TestScrubRequestBody(t *testing.T) {
	event := &sentry.Event{Request: &sentry.Request{Data: `{"nombre_medico":"José"}`}}
	assert.Empty(t, scrubRequestBody(event, nil).Request.Data)

	assert.NotNil(t, scrubRequestBody(&sentry.Event{}, nil))
}

func TestInitSentry_RequiresDSN(t *testing.T) {
	_, err := InitSentry(SentryOptions{})
	assert.Error(t, err)
}
