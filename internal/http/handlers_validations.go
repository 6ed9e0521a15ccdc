// Package httpx provides HTTP handlers and utilities for the design validation API.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/innovites/cableaudit/internal/domain/model"
	apperrors "github.com/innovites/cableaudit/internal/errors"
	"github.com/innovites/cableaudit/internal/service"
)

// ValidationHandlers serves submission and status requests.
type ValidationHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

// submitBody keeps input_mode as a plain string so an unknown mode surfaces
// as a field-level validation error instead of a JSON decode failure.
type submitBody struct {
	InputMode string          `json:"input_mode"`
	Data      json.RawMessage `json:"data"`
}

// Submit handles POST /api/v1/design/design-validations.
func (h *ValidationHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	if !DecodeJSON(w, r, &body) {
		return
	}

	req := &model.SubmitRequest{
		InputMode: model.InputMode(strings.ToLower(strings.TrimSpace(body.InputMode))),
		Data:      body.Data,
	}

	resp, err := h.Svc.Submit(r.Context(), req)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, resp)
}

// GetStatus handles GET /api/v1/design/design-validations/{id}.
func (h *ValidationHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/v1/design/design-validations/stats.
func (h *ValidationHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// listResponse wraps a page of job summaries.
type listResponse struct {
	Jobs   []model.JobSummary `json:"jobs"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// List handles GET /api/v1/design/design-validations?status=&input_mode=&limit=&offset=.
func (h *ValidationHandlers) List(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListQuery(r)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteAppError(w, r, h.Logger, err)
		return
	}

	limit := opts.Limit
	if limit == 0 {
		limit = model.DefaultJobListLimit
	}
	WriteJSON(w, http.StatusOK, listResponse{Jobs: jobs, Limit: limit, Offset: opts.Offset})
}

func parseListQuery(r *http.Request) (model.JobListOptions, error) {
	q := r.URL.Query()
	var opts model.JobListOptions
	details := make(map[string]string)

	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status := model.JobStatus(strings.ToUpper(v))
		opts.Status = &status
	}
	if v := strings.TrimSpace(q.Get("input_mode")); v != "" {
		mode := model.InputMode(strings.ToLower(v))
		opts.InputMode = &mode
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &opts.Limit},
		{"offset", &opts.Offset},
	} {
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			details[p.name] = "must be an integer"
			continue
		}
		*p.dst = n
	}

	if len(details) > 0 {
		return opts, apperrors.ValidationDetails("invalid list parameters", details)
	}
	return opts, nil
}
