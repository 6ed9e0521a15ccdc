package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/adapters/llm"
	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/observability/metrics"
	"github.com/innovites/cableaudit/internal/observability/statsd"
	"github.com/innovites/cableaudit/internal/pipeline"
)

// PipelineOptions groups dependencies for BuildPipeline.
type PipelineOptions struct {
	Config     config.PipelineConfig
	References core.ReferenceReader
	Metrics    statsd.Sink
	Logger     *slog.Logger
}

// BuildPipeline assembles the orchestrator from the configured stage variants.
func BuildPipeline(opts PipelineOptions) (*pipeline.Orchestrator, error) {
	if opts.References == nil {
		return nil, errors.New("reference reader is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	extractor, err := buildExtractor(cfg, logger)
	if err != nil {
		return nil, err
	}
	auditor, err := buildAuditor(cfg, logger)
	if err != nil {
		return nil, err
	}

	var observer pipeline.StageObserver
	if opts.Metrics != nil {
		observer = metrics.StageRecorder{Sink: opts.Metrics}
	}

	orch, err := pipeline.New(pipeline.Options{
		Extractor:      extractor,
		Validator:      pipeline.NewReferenceValidator(opts.References),
		Auditor:        auditor,
		ExtractTimeout: cfg.ExtractTimeout,
		AuditTimeout:   cfg.AuditTimeout,
		Observer:       observer,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	logger.Info("validation pipeline configured", "pipeline", orch.Name())
	return orch, nil
}

//nolint:ireturn // the stage variant is chosen from configuration.
func buildExtractor(cfg config.PipelineConfig, logger *slog.Logger) (pipeline.Extractor, error) {
	if cfg.Extractor != config.ExtractorLLM {
		return pipeline.NewPatternExtractor(), nil
	}
	client, err := llm.NewClient(cfg.ExtractLLM)
	if err != nil {
		return nil, fmt.Errorf("create extractor llm client: %w", err)
	}
	ex, err := llm.NewExtractor(client, cfg.ExtractLLM, logger)
	if err != nil {
		return nil, fmt.Errorf("create llm extractor: %w", err)
	}
	return ex, nil
}

//nolint:ireturn // the stage variant is chosen from configuration.
func buildAuditor(cfg config.PipelineConfig, logger *slog.Logger) (pipeline.Auditor, error) {
	if cfg.Auditor != config.AuditorLLM {
		return pipeline.NewReferenceAuditor(), nil
	}
	client, err := llm.NewClient(cfg.AuditLLM)
	if err != nil {
		return nil, fmt.Errorf("create auditor llm client: %w", err)
	}
	au, err := llm.NewAuditor(client, cfg.AuditLLM, logger)
	if err != nil {
		return nil, fmt.Errorf("create llm auditor: %w", err)
	}
	return au, nil
}
