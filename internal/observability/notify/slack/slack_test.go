package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovites/cableaudit/internal/observability/notify"
)

func TestNewClientRequiresWebhook(t *testing.T) {
	_, err := NewClient(Config{WebhookURL: "  "})
	require.Error(t, err)
}

func TestFormatMessage(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#cable-design",
		Username:   "auditor",
	})
	require.NoError(t, err)

	msg := client.formatMessage(notify.JobFailurePayload{
		JobID:        "123",
		InputMode:    "structured",
		Stage:        "decode",
		ErrorKind:    "malformed_input",
		AttemptCount: 1,
		MaxAttempts:  4,
		Error:        "decode failed: csa: must be greater than 0",
		ErrorClass:   "decode_malformed_input",
		OccurredAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Metadata:     map[string]string{"worker": "w-1"},
	})

	assert.Equal(t, "auditor", msg.Username)
	assert.Equal(t, "#cable-design", msg.Channel)
	for _, want := range []string{
		"*Design validation failed* `123` (structured)",
		"• Stage: decode",
		"• Error kind: malformed_input",
		"• Attempts: 1/4",
		"• Error class: decode_malformed_input",
		"must be greater than 0",
		"    • worker: w-1",
		"• Timestamp: 2026-03-01T12:00:00Z",
	} {
		assert.Contains(t, msg.Text, want)
	}
	assert.NotContains(t, msg.Text, "• Job:")
}

func TestFormatMessageEscapesError(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test"})
	require.NoError(t, err)

	msg := client.formatMessage(notify.JobFailurePayload{Error: "audit failed: <bad> & worse"})
	assert.Contains(t, msg.Text, "audit failed: &lt;bad&gt; &amp; worse")
	assert.Equal(t, "cableaudit", msg.Username)
}

func TestFormatJobValue(t *testing.T) {
	tests := []struct {
		name   string
		jobID  string
		prefix string
		want   string
	}{
		{
			name:   "linked",
			jobID:  "job-123",
			prefix: "https://cableaudit.example/api/v1/design/design-validations",
			want:   "<https://cableaudit.example/api/v1/design/design-validations/job-123|job-123>",
		},
		{name: "no prefix", jobID: "j-2"},
		{name: "relative prefix", jobID: "j-3", prefix: "not a url"},
		{name: "empty id", prefix: "https://app.example/jobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(Config{
				WebhookURL:   "https://hooks.slack.com/services/test",
				JobURLPrefix: tt.prefix,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.formatJobValue(tt.jobID))
		})
	}
}

func TestFormatAttempts(t *testing.T) {
	assert.Empty(t, formatAttempts(0, 3))
	assert.Equal(t, "2", formatAttempts(2, 0))
	assert.Equal(t, "3/3", formatAttempts(3, 3))
}

func TestSendJobFailureRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		if calls.Add(1) == 1 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, RetryLimit: 1})
	require.NoError(t, err)

	require.NoError(t, client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"}))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSendJobFailureReturnsLastError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no_service", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL})
	require.NoError(t, err)

	err = client.SendJobFailure(context.Background(), notify.JobFailurePayload{JobID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_service")
	assert.Contains(t, err.Error(), "slack responded 404")
}
