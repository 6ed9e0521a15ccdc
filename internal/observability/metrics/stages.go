package metrics

import (
	"time"

	"github.com/innovites/cableaudit/internal/observability/statsd"
	"github.com/innovites/cableaudit/internal/pipeline"
)

// StageRecorder emits one count and one timing per pipeline stage run.
type StageRecorder struct {
	Sink statsd.Sink
}

var _ pipeline.StageObserver = StageRecorder{}

// ObserveStage implements pipeline.StageObserver.
func (r StageRecorder) ObserveStage(stage pipeline.Stage, d time.Duration, err error) {
	if r.Sink == nil {
		return
	}

	tags := map[string]string{
		"stage":  string(stage),
		"result": ResultSuccess,
		"kind":   "",
	}
	if err != nil {
		tags["result"] = ResultError
		if se, ok := pipeline.AsStageError(err); ok {
			tags["kind"] = string(se.Kind)
		}
	}

	r.Sink.Count("pipeline.stage", 1, tags)
	r.Sink.Timing("pipeline.stage_duration", d, CloneTags(tags))
}
