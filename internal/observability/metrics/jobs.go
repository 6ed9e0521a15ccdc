// Package metrics names the counters and timings shared by the job engine, the pipeline and
// the reaper, so every backend sees the same series.
package metrics

import (
	"time"

	obserrors "github.com/innovites/cableaudit/internal/observability/errors"
	"github.com/innovites/cableaudit/internal/observability/statsd"
)

// Values of the "result" tag.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Values of the "transition" tag on job.transition.
const (
	TransitionCompleted = "completed"
	TransitionRetried   = "retried"
	TransitionFailed    = "failed"
	TransitionAbandoned = "abandoned"
)

// JobMetric is one state change of a design validation job as seen by a worker.
type JobMetric struct {
	InputMode  string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle counts the transition and, when Duration is set, times the attempt.
// Failed transitions carry an error_class tag.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"input_mode": in.InputMode,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Result == ResultError {
		withErrorClass(tags, in.Err)
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// OutcomeTags returns result (and error_class) tags for a batch operation: error when err is
// set, noop when nothing was touched, success otherwise.
func OutcomeTags(count int64, err error) map[string]string {
	tags := map[string]string{"result": ResultSuccess}
	switch {
	case err != nil:
		tags["result"] = ResultError
		withErrorClass(tags, err)
	case count == 0:
		tags["result"] = ResultNoop
	}
	return tags
}

func withErrorClass(tags map[string]string, err error) {
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
}

// CloneTags copies src, dropping empty keys. Sinks may retain the map they are given.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k != "" {
			out[k] = v
		}
	}
	return out
}
