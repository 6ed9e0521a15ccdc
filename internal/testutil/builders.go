package testutil

import (
	"encoding/json"

	"github.com/innovites/cableaudit/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects.
type JobRequestBuilder struct {
	req model.CreateJobRequest
}

// NewJobRequest creates a builder for a structured submission with a single attempt budget of 3.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: model.CreateJobRequest{
			InputMode:   model.InputModeStructured,
			RawInput:    json.RawMessage(`{"csa": 50, "conductor_material": "Cu"}`),
			MaxAttempts: 3,
		},
	}
}

// WithMode sets the input mode.
func (b *JobRequestBuilder) WithMode(mode model.InputMode) *JobRequestBuilder {
	b.req.InputMode = mode
	return b
}

// WithRawInput sets the raw submission body.
func (b *JobRequestBuilder) WithRawInput(raw json.RawMessage) *JobRequestBuilder {
	b.req.RawInput = raw
	return b
}

// WithRawInputString sets the raw submission body from a string.
func (b *JobRequestBuilder) WithRawInputString(raw string) *JobRequestBuilder {
	b.req.RawInput = json.RawMessage(raw)
	return b
}

// WithDescription turns the request into a free-text submission.
func (b *JobRequestBuilder) WithDescription(description string) *JobRequestBuilder {
	raw, _ := json.Marshal(model.FreeTextData{Description: description})
	b.req.InputMode = model.InputModeFreeText
	b.req.RawInput = raw
	return b
}

// WithMaxAttempts sets the attempt budget.
func (b *JobRequestBuilder) WithMaxAttempts(n int) *JobRequestBuilder {
	b.req.MaxAttempts = n
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	req := b.req
	return &req
}

// FreeTextJobRequest creates a free-text request describing a typical LV power cable.
func FreeTextJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithDescription("0.6/1 kV copper class 2, 95 mm², PVC insulation 1.6 mm").
		Build()
}

// StructuredJobRequest creates a structured request with the given CSA.
func StructuredJobRequest(csa float64) *model.CreateJobRequest {
	raw, _ := json.Marshal(model.DesignRecord{CSA: model.Ptr(csa), ConductorMaterial: model.Ptr(model.MaterialCopper)})
	return NewJobRequest().WithRawInput(raw).Build()
}
