package prom

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_CountFixesLabelsOnFirstUse(t *testing.T) {
	s := NewSink("cableaudit")

	s.Count("job.transition", 1, map[string]string{"transition": "completed", "result": "success"})
	s.Count("job.transition", 2, map[string]string{"transition": "failed", "result": "error", "error_class": "x"})

	c := s.counters["job_transition"]
	require.NotNil(t, c)
	assert.Equal(t, []string{"result", "transition"}, c.labels)
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.vec.WithLabelValues("success", "completed")), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(c.vec.WithLabelValues("error", "failed")), 1e-9)
}

func TestSink_MissingLabelsBecomeEmpty(t *testing.T) {
	s := NewSink("")

	s.Gauge("reaper.last_success_epoch", 10, map[string]string{"instance": "a"})
	s.Gauge("reaper.last_success_epoch", 20, nil)

	g := s.gauges["reaper_last_success_epoch"]
	require.NotNil(t, g)
	assert.InDelta(t, 20.0, testutil.ToFloat64(g.vec.WithLabelValues("")), 1e-9)
}

func TestSink_HandlerExposesMetrics(t *testing.T) {
	s := NewSink("cableaudit")
	s.Timing("pipeline.stage_duration", 150*time.Millisecond, map[string]string{"stage": "audit"})
	s.Count("pipeline.stage", 1, map[string]string{"stage": "audit", "result": "success"})

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `cableaudit_pipeline_stage_total{result="success",stage="audit"} 1`), text)
	assert.Contains(t, text, "cableaudit_pipeline_stage_duration_seconds_bucket")
	assert.Contains(t, text, "go_goroutines")
}

func TestSanitizeName(t *testing.T) {
	tests := map[string]string{
		"job.transition":   "job_transition",
		" reaper.cleanup ": "reaper_cleanup",
		"9lives":           "_9lives",
		"a-b/c":            "a_b_c",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeName(in), in)
	}
}
