package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/pipeline"
)

// extraction is the JSON object the model is asked to return.
type extraction struct {
	model.DesignRecord
	IsOutOfScope *bool `json:"is_out_of_scope"`
}

// Extractor implements pipeline.Extractor with a chat model.
type Extractor struct {
	ep     endpoint
	logger *slog.Logger
}

// NewExtractor binds an extractor to client using cfg's model settings.
func NewExtractor(client ChatCompleter, cfg config.LLMConfig, logger *slog.Logger) (*Extractor, error) {
	ep, err := newEndpoint(client, cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{ep: ep, logger: logger.With("component", "llm_extractor", "model", ep.label)}, nil
}

// Name implements pipeline.Extractor.
func (e *Extractor) Name() string { return "llm(" + e.ep.label + ")" }

// Extract implements pipeline.Extractor. Out-of-scope text yields an empty record.
func (e *Extractor) Extract(ctx context.Context, description string) (model.DesignRecord, error) {
	content, err := e.ep.completeJSON(ctx, extractionSystemPrompt, description)
	if err != nil {
		return model.DesignRecord{}, classifyCallError(pipeline.StageExtract, pipeline.KindExtraction, err)
	}

	out, err := decodeExtraction(content)
	if err != nil {
		e.logger.WarnContext(ctx, "extraction output rejected", "error", err)
		return model.DesignRecord{}, pipeline.NewStageError(pipeline.StageExtract, pipeline.KindExtraction, err)
	}
	if out.IsOutOfScope != nil && *out.IsOutOfScope {
		e.logger.DebugContext(ctx, "input flagged out of scope")
		return model.DesignRecord{}, nil
	}
	return out.DesignRecord, nil
}

func decodeExtraction(content string) (extraction, error) {
	var out extraction
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return extraction{}, fmt.Errorf("extraction output is not the expected JSON object: %w", err)
	}
	if out.IsOutOfScope == nil {
		return extraction{}, errors.New("extraction output missing is_out_of_scope")
	}
	return out, nil
}
