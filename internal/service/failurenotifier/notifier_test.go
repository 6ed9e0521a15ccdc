package failurenotifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovites/cableaudit/internal/observability/notify"
)

func TestServiceNotifyJobFailure(t *testing.T) {
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []notify.JobFailurePayload
	)
	capture := notify.SinkFunc(func(_ context.Context, payload notify.JobFailurePayload) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, payload)
		return nil
	})
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{Name: "first", Sink: capture},
			{Name: "second", Sink: capture},
		},
	})

	svc.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID: "123",
		Stage: "decode",
	})

	require.Len(t, received, 2)
	for _, p := range received {
		assert.Equal(t, notify.SeverityCritical, p.Severity)
		assert.Equal(t, "123", p.JobID)
	}
}

func TestServiceKeepsExplicitSeverity(t *testing.T) {
	var got string
	svc := NewService(Options{
		Sinks: []SinkRegistration{{
			Sink: notify.SinkFunc(func(_ context.Context, payload notify.JobFailurePayload) error {
				got = payload.Severity
				return nil
			}),
		}},
	})

	svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1", Severity: "warning"})
	assert.Equal(t, "warning", got)
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	assert.False(t, svc.Enabled())

	withNilSink := NewService(Options{Sinks: []SinkRegistration{{Name: "nil"}}})
	assert.False(t, withNilSink.Enabled())

	var nilSvc *Service
	assert.False(t, nilSvc.Enabled())
}

func TestServiceLogsErrors(t *testing.T) {
	// A failing sink must not panic or block the others.
	var delivered bool
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "fail",
				Sink: notify.SinkFunc(func(context.Context, notify.JobFailurePayload) error {
					return errors.New("boom")
				}),
			},
			{
				Name: "ok",
				Sink: notify.SinkFunc(func(context.Context, notify.JobFailurePayload) error {
					delivered = true
					return nil
				}),
			},
		},
	})

	svc.NotifyJobFailure(context.Background(), notify.JobFailurePayload{JobID: "123"})
	assert.True(t, delivered)
}
