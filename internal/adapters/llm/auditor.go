package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/pipeline"
)

// auditResponse mirrors model.AuditReport with every key required.
type auditResponse struct {
	IsOutOfScope          *bool                `json:"is_out_of_scope"`
	OutOfScopeExplanation *string              `json:"out_of_scope_explanation"`
	Verdicts              []model.FieldVerdict `json:"verdicts"`
	Confidence            *float64             `json:"confidence"`
}

// Auditor implements pipeline.Auditor with a chat model.
type Auditor struct {
	ep     endpoint
	logger *slog.Logger
}

// NewAuditor binds an auditor to client using cfg's model settings.
func NewAuditor(client ChatCompleter, cfg config.LLMConfig, logger *slog.Logger) (*Auditor, error) {
	ep, err := newEndpoint(client, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{ep: ep, logger: logger.With("component", "llm_auditor", "model", ep.label)}, nil
}

// Name implements pipeline.Auditor.
func (a *Auditor) Name() string { return "llm(" + a.ep.label + ")" }

// Audit implements pipeline.Auditor. An empty record never reaches the model.
func (a *Auditor) Audit(ctx context.Context, evidence model.EvidenceDocument, rec model.DesignRecord) (model.AuditReport, error) {
	if rec.IsEmpty() {
		return pipeline.OutOfScopeReport(pipeline.ExplanationNothingExtracted), nil
	}

	user, err := auditUserMessage(evidence, rec)
	if err != nil {
		return model.AuditReport{}, pipeline.NewStageError(pipeline.StageAudit, pipeline.KindAudit, err)
	}

	content, err := a.ep.completeJSON(ctx, auditSystemPrompt, user)
	if err != nil {
		return model.AuditReport{}, classifyCallError(pipeline.StageAudit, pipeline.KindAudit, err)
	}

	report, err := decodeAudit(content)
	if err != nil {
		a.logger.WarnContext(ctx, "audit output rejected", "error", err)
		return model.AuditReport{}, pipeline.NewStageError(pipeline.StageAudit, pipeline.KindAudit, err)
	}
	report.Fields = rec
	return report, nil
}

func auditUserMessage(evidence model.EvidenceDocument, rec model.DesignRecord) (string, error) {
	fields, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode design fields: %w", err)
	}
	var b strings.Builder
	b.WriteString("### EXTRACTED DESIGN FIELDS:\n")
	b.Write(fields)
	b.WriteString("\n\n")
	b.WriteString(string(evidence))
	return b.String(), nil
}

// decodeAudit parses the model output. Missing keys are rejected rather than defaulted.
func decodeAudit(content string) (model.AuditReport, error) {
	var resp auditResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return model.AuditReport{}, fmt.Errorf("audit output is not the expected JSON object: %w", err)
	}
	if resp.IsOutOfScope == nil {
		return model.AuditReport{}, errors.New("audit output missing is_out_of_scope")
	}
	if resp.Confidence == nil {
		return model.AuditReport{}, errors.New("audit output missing confidence")
	}
	if resp.Verdicts == nil {
		resp.Verdicts = []model.FieldVerdict{}
	}
	return model.AuditReport{
		IsOutOfScope:          *resp.IsOutOfScope,
		OutOfScopeExplanation: resp.OutOfScopeExplanation,
		Verdicts:              resp.Verdicts,
		Confidence:            *resp.Confidence,
	}, nil
}
