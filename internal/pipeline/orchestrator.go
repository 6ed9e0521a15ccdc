package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/validation"
)

// StageObserver receives the duration and outcome of every stage that ran.
type StageObserver interface {
	ObserveStage(stage Stage, d time.Duration, err error)
}

// Options configures an Orchestrator.
type Options struct {
	Extractor      Extractor
	Validator      Validator
	Formatter      Formatter
	Auditor        Auditor
	ExtractTimeout time.Duration
	AuditTimeout   time.Duration
	Observer       StageObserver
	Logger         *slog.Logger
}

// Orchestrator runs one submission through every stage in order.
// It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	extractor      Extractor
	validator      Validator
	formatter      Formatter
	auditor        Auditor
	extractTimeout time.Duration
	auditTimeout   time.Duration
	observer       StageObserver
	logger         *slog.Logger
}

// New builds an Orchestrator. The formatter defaults to EvidenceFormatter.
func New(opts Options) (*Orchestrator, error) {
	if opts.Extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if opts.Validator == nil {
		return nil, errors.New("validator is required")
	}
	if opts.Auditor == nil {
		return nil, errors.New("auditor is required")
	}
	formatter := opts.Formatter
	if formatter == nil {
		formatter = EvidenceFormatter{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		extractor:      opts.Extractor,
		validator:      opts.Validator,
		formatter:      formatter,
		auditor:        opts.Auditor,
		extractTimeout: opts.ExtractTimeout,
		auditTimeout:   opts.AuditTimeout,
		observer:       opts.Observer,
		logger:         logger.With("component", "pipeline"),
	}, nil
}

// Name identifies the stage variants, e.g. "pattern+reference".
func (o *Orchestrator) Name() string {
	return o.extractor.Name() + "+" + o.auditor.Name()
}

// Run executes the pipeline for one submission.
// Failures are returned as *StageError naming the first stage that failed.
func (o *Orchestrator) Run(ctx context.Context, mode model.InputMode, raw json.RawMessage) (*model.AuditReport, error) {
	rec, err := o.record(ctx, mode, raw)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	verdicts, err := o.validator.Validate(ctx, rec)
	o.observe(StageValidate, start, err)
	if err != nil {
		return nil, tag(StageValidate, KindTransient, err)
	}

	evidence := o.formatter.Format(verdicts)

	report, err := o.audit(ctx, evidence, rec)
	if err != nil {
		return nil, err
	}

	report = Reconcile(report, rec, verdicts)
	o.logger.DebugContext(ctx, "pipeline finished",
		"pipeline", o.Name(),
		"verdicts", len(report.Verdicts),
		"out_of_scope", report.IsOutOfScope,
		"confidence", report.Confidence,
	)
	return &report, nil
}

func (o *Orchestrator) record(ctx context.Context, mode model.InputMode, raw json.RawMessage) (model.DesignRecord, error) {
	switch mode {
	case model.InputModeStructured:
		return DecodeStructured(raw)
	case model.InputModeFreeText:
		description, err := DecodeFreeText(raw)
		if err != nil {
			return model.DesignRecord{}, err
		}
		return o.extract(ctx, description)
	default:
		return model.DesignRecord{}, NewStageError(StageDecode, KindMalformedInput, fmt.Errorf("unknown input mode %q", mode))
	}
}

func (o *Orchestrator) extract(ctx context.Context, description string) (model.DesignRecord, error) {
	stageCtx, cancel := withOptionalTimeout(ctx, o.extractTimeout)
	defer cancel()

	start := time.Now()
	rec, err := o.extractor.Extract(stageCtx, description)
	if err == nil {
		if verr := validation.Struct(rec); verr != nil {
			err = NewStageError(StageExtract, KindExtraction, fmt.Errorf("extracted record rejected: %w", verr))
		}
	}
	o.observe(StageExtract, start, err)
	if err != nil {
		return model.DesignRecord{}, classify(StageExtract, KindExtraction, err)
	}
	return rec, nil
}

func (o *Orchestrator) audit(ctx context.Context, evidence model.EvidenceDocument, rec model.DesignRecord) (model.AuditReport, error) {
	stageCtx, cancel := withOptionalTimeout(ctx, o.auditTimeout)
	defer cancel()

	start := time.Now()
	report, err := o.auditor.Audit(stageCtx, evidence, rec)
	if err == nil {
		if cerr := CheckReport(report); cerr != nil {
			err = NewStageError(StageAudit, KindAudit, fmt.Errorf("non-conforming report: %w", cerr))
		}
	}
	o.observe(StageAudit, start, err)
	if err != nil {
		return model.AuditReport{}, classify(StageAudit, KindAudit, err)
	}
	return report, nil
}

func (o *Orchestrator) observe(stage Stage, start time.Time, err error) {
	if o.observer != nil {
		o.observer.ObserveStage(stage, time.Since(start), err)
	}
}

// classify tags err, treating deadlines and cancellation as transient.
func classify(stage Stage, kind Kind, err error) error {
	if _, ok := AsStageError(err); ok {
		return tag(stage, kind, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewStageError(stage, KindTransient, err)
	}
	return NewStageError(stage, kind, err)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
