package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputMode_UnmarshalText(t *testing.T) {
	tests := []struct {
		in      string
		want    InputMode
		wantErr bool
	}{
		{in: "free_text", want: InputModeFreeText},
		{in: " Structured ", want: InputModeStructured},
		{in: "xml", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var m InputMode
			err := m.UnmarshalText([]byte(tt.in))
			if tt.wantErr {
				require.ErrorContains(t, err, "invalid InputMode")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.True(t, JobStatusSuccess.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatus("RUNNING").Valid())
}

func TestCreateJobRequest_Validate(t *testing.T) {
	valid := CreateJobRequest{InputMode: InputModeStructured, RawInput: json.RawMessage(`{}`), MaxAttempts: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(r *CreateJobRequest)
		wantErr string
	}{
		{name: "mode", mutate: func(r *CreateJobRequest) { r.InputMode = "csv" }, wantErr: "invalid input mode"},
		{name: "raw input", mutate: func(r *CreateJobRequest) { r.RawInput = nil }, wantErr: "raw input is required"},
		{name: "attempts", mutate: func(r *CreateJobRequest) { r.MaxAttempts = 0 }, wantErr: "max attempts must be >= 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			require.ErrorContains(t, r.Validate(), tt.wantErr)
		})
	}
}

func TestNewJobStatusResponse(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("pending job has a null result", func(t *testing.T) {
		resp := NewJobStatusResponse(&Job{ID: "j1", Status: JobStatusPending, CreatedAt: created})
		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"job_id": "j1",
			"job_status": "PENDING",
			"result": null,
			"error": null,
			"attempt_count": 0,
			"created_at": "2025-03-01T10:00:00Z"
		}`, string(raw))
	})

	t.Run("success carries the report verbatim", func(t *testing.T) {
		done := created.Add(time.Minute)
		resp := NewJobStatusResponse(&Job{
			ID:           "j2",
			Status:       JobStatusSuccess,
			Result:       json.RawMessage(`{"is_out_of_scope":true}`),
			AttemptCount: 2,
			CreatedAt:    created,
			CompletedAt:  &done,
		})
		assert.JSONEq(t, `{"is_out_of_scope":true}`, string(resp.Result))
		assert.Equal(t, 2, resp.AttemptCount)
		assert.Equal(t, &done, resp.CompletedAt)
	})
}

func TestNewJobSummary(t *testing.T) {
	j := &Job{
		ID:        "j3",
		InputMode: InputModeFreeText,
		Status:    JobStatusFailed,
		Error:     Ptr("audit timed out"),
		RawInput:  json.RawMessage(`{"description":"x"}`),
		Pipeline:  Ptr("pattern+reference"),
	}
	s := NewJobSummary(j)
	assert.Equal(t, "j3", s.JobID)
	assert.Equal(t, InputModeFreeText, s.InputMode)
	assert.Equal(t, JobStatusFailed, s.JobStatus)
	assert.Equal(t, j.Error, s.Error)
	assert.Equal(t, j.Pipeline, s.Pipeline)
}

func TestDesignRecord_IsEmpty(t *testing.T) {
	assert.True(t, DesignRecord{}.IsEmpty())
	assert.False(t, DesignRecord{CSA: Ptr(2.5)}.IsEmpty())
	assert.False(t, DesignRecord{Standard: Ptr("IS 694")}.IsEmpty())
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "50", FormatNumber(50))
	assert.Equal(t, "2.5", FormatNumber(2.5))
	assert.Equal(t, "0.387", FormatNumber(0.387))
}

func TestReferenceDataset_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ds      ReferenceDataset
		wantErr string
	}{
		{
			name: "valid",
			ds: ReferenceDataset{
				Conductors: []ConductorSpec{{CSA: 1.5}, {CSA: 2.5}},
				Insulation: []InsulationSpec{{CSA: 1.5, Material: "PVC", Nominal: 0.7, Minimum: 0.53}},
			},
		},
		{name: "empty", ds: ReferenceDataset{}, wantErr: "no conductor rows"},
		{
			name:    "duplicate csa",
			ds:      ReferenceDataset{Conductors: []ConductorSpec{{CSA: 1.5}, {CSA: 1.5}}},
			wantErr: "duplicate conductor csa 1.5",
		},
		{
			name:    "non-positive csa",
			ds:      ReferenceDataset{Conductors: []ConductorSpec{{CSA: 0}}},
			wantErr: "must be positive",
		},
		{
			name: "minimum above nominal",
			ds: ReferenceDataset{
				Conductors: []ConductorSpec{{CSA: 1.5}},
				Insulation: []InsulationSpec{{CSA: 1.5, Nominal: 0.7, Minimum: 0.9}},
			},
			wantErr: "minimum exceeds nominal for csa 1.5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ds.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
