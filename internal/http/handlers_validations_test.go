package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/innovites/cableaudit/internal/data"
	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/mocks"
	"github.com/innovites/cableaudit/internal/service"
)

const testJobID = "4a1d6c8e-2b3f-4e5a-9c7d-1f0e2d3c4b5a"

type nopNotifier struct{}

func (nopNotifier) Subscribe() (func(), <-chan struct{}) { return func() {}, make(chan struct{}) }
func (nopNotifier) StopAll()                             {}

func newRouterWithMock(t *testing.T) (http.Handler, *mocks.MockJobRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockJobRepository(ctrl)
	svc := service.MustNewJobService(service.JobServiceOptions{
		Repo:     mockRepo,
		Notifier: nopNotifier{},
	})
	return NewRouter(RouterServices{Jobs: svc, MaxBodyBytes: 1 << 16}), mockRepo
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var got ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got), w.Body.String())
	return got
}

func TestSubmit_Accepted(t *testing.T) {
	tests := []struct {
		name string
		body string
		mode model.InputMode
	}{
		{
			name: "structured",
			body: `{"input_mode":"structured","data":{"csa":50,"conductor_material":"Cu"}}`,
			mode: model.InputModeStructured,
		},
		{
			name: "free text",
			body: `{"input_mode":"free_text","data":{"description":"10 mm² Cu PVC 0.6/1 kV"}}`,
			mode: model.InputModeFreeText,
		},
		{
			name: "mode is case insensitive",
			body: `{"input_mode":"Free_Text","data":{"description":"cable"}}`,
			mode: model.InputModeFreeText,
		},
		{
			// Schema failures surface later as a FAILED job.
			name: "structured with out of range value",
			body: `{"input_mode":"structured","data":{"csa":-5}}`,
			mode: model.InputModeStructured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, repo := newRouterWithMock(t)
			repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ any, req *model.CreateJobRequest) (*model.Job, error) {
					assert.Equal(t, tt.mode, req.InputMode)
					assert.Equal(t, model.DefaultMaxAttempts, req.MaxAttempts)
					return &model.Job{ID: testJobID, InputMode: req.InputMode, Status: model.JobStatusPending}, nil
				})

			w := doRequest(t, h, http.MethodPost, validationsPath, tt.body)

			require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
			assert.JSONEq(t, `{"job_id":"`+testJobID+`","job_status":"PENDING"}`, w.Body.String())
		})
	}
}

func TestSubmit_CallerErrorsCreateNoJob(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDetail string
	}{
		{name: "unknown mode", body: `{"input_mode":"json","data":{"csa":50}}`, wantDetail: "input_mode"},
		{name: "missing mode", body: `{"data":{"csa":50}}`, wantDetail: "input_mode"},
		{name: "missing data", body: `{"input_mode":"structured"}`, wantDetail: "data"},
		{name: "null data", body: `{"input_mode":"structured","data":null}`, wantDetail: "data"},
		{name: "data not an object", body: `{"input_mode":"structured","data":[1,2]}`, wantDetail: "data"},
		{name: "empty description", body: `{"input_mode":"free_text","data":{"description":""}}`, wantDetail: "data.description"},
		{name: "missing description", body: `{"input_mode":"free_text","data":{}}`, wantDetail: "data.description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// No Create expectation: gomock fails the test if one happens.
			h, _ := newRouterWithMock(t)

			w := doRequest(t, h, http.MethodPost, validationsPath, tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			got := decodeError(t, w)
			assert.Equal(t, "validation", got.Code)
			assert.NotEmpty(t, got.Error)
			assert.Contains(t, got.Details, tt.wantDetail)
		})
	}
}

func TestSubmit_MalformedJSON(t *testing.T) {
	h, _ := newRouterWithMock(t)

	w := doRequest(t, h, http.MethodPost, validationsPath, `{"input_mode":`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decodeError(t, w).Code)
}

func TestSubmit_BodyTooLarge(t *testing.T) {
	h, _ := newRouterWithMock(t)
	big := `{"input_mode":"free_text","data":{"description":"` + string(bytes.Repeat([]byte("a"), 1<<17)) + `"}}`

	w := doRequest(t, h, http.MethodPost, validationsPath, big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSubmit_StoreFailureIsInternal(t *testing.T) {
	h, repo := newRouterWithMock(t)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

	w := doRequest(t, h, http.MethodPost, validationsPath, `{"input_mode":"structured","data":{}}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, "internal", got.Code)
	assert.NotContains(t, got.Error, "connection refused")
}

func TestGetStatus(t *testing.T) {
	created := time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)

	t.Run("pending", func(t *testing.T) {
		h, repo := newRouterWithMock(t)
		repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(&model.Job{
			ID:        testJobID,
			Status:    model.JobStatusPending,
			CreatedAt: created,
		}, nil)

		w := doRequest(t, h, http.MethodGet, validationsPath+"/"+testJobID, "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"job_id": "`+testJobID+`",
			"job_status": "PENDING",
			"result": null,
			"error": null,
			"attempt_count": 0,
			"created_at": "2025-05-04T03:02:01Z"
		}`, w.Body.String())
	})

	t.Run("failed", func(t *testing.T) {
		h, repo := newRouterWithMock(t)
		repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(&model.Job{
			ID:           testJobID,
			Status:       model.JobStatusFailed,
			Error:        model.Ptr("decode failed: csa: must be greater than 0"),
			AttemptCount: 1,
			CreatedAt:    created,
		}, nil)

		w := doRequest(t, h, http.MethodGet, validationsPath+"/"+testJobID, "")

		require.Equal(t, http.StatusOK, w.Code)
		var got model.JobStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, model.JobStatusFailed, got.JobStatus)
		require.NotNil(t, got.Error)
		assert.Equal(t, "decode failed: csa: must be greater than 0", *got.Error)
		assert.Equal(t, 1, got.AttemptCount)
	})

	t.Run("unknown id", func(t *testing.T) {
		h, repo := newRouterWithMock(t)
		repo.EXPECT().GetByID(gomock.Any(), testJobID).Return(nil, data.ErrJobNotFound)

		w := doRequest(t, h, http.MethodGet, validationsPath+"/"+testJobID, "")

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decodeError(t, w).Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		h, _ := newRouterWithMock(t)

		w := doRequest(t, h, http.MethodGet, validationsPath+"/not-a-uuid", "")

		require.Equal(t, http.StatusBadRequest, w.Code)
		got := decodeError(t, w)
		assert.Equal(t, "validation", got.Code)
		assert.Contains(t, got.Details, "id")
	})
}

func TestStats(t *testing.T) {
	h, repo := newRouterWithMock(t)
	repo.EXPECT().Stats(gomock.Any()).Return(&model.JobStats{Pending: 2, Success: 5, Failed: 1}, nil)

	w := doRequest(t, h, http.MethodGet, validationsPath+"/stats", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pending":2,"success":5,"failed":1}`, w.Body.String())
}

func TestList(t *testing.T) {
	t.Run("filters are normalized and forwarded", func(t *testing.T) {
		h, repo := newRouterWithMock(t)
		created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		failed := model.JobStatusFailed
		free := model.InputModeFreeText
		repo.EXPECT().
			List(gomock.Any(), model.JobListOptions{Status: &failed, InputMode: &free, Limit: 10, Offset: 20}).
			Return([]*model.Job{{
				ID:           testJobID,
				InputMode:    model.InputModeFreeText,
				Status:       model.JobStatusFailed,
				RawInput:     json.RawMessage(`{"description":"secret"}`),
				Error:        model.Ptr("extract failed: model timeout"),
				AttemptCount: 4,
				CreatedAt:    created,
			}}, nil)

		w := doRequest(t, h, http.MethodGet, "/api/v1/design/design-validations?status=failed&input_mode=FREE_TEXT&limit=10&offset=20", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.JSONEq(t, `{
			"jobs": [{
				"job_id": "`+testJobID+`",
				"input_mode": "free_text",
				"job_status": "FAILED",
				"error": "extract failed: model timeout",
				"attempt_count": 4,
				"pipeline": null,
				"created_at": "2026-03-01T12:00:00Z"
			}],
			"limit": 10,
			"offset": 20
		}`, w.Body.String())
	})

	t.Run("defaults", func(t *testing.T) {
		h, repo := newRouterWithMock(t)
		repo.EXPECT().List(gomock.Any(), model.JobListOptions{}).Return(nil, nil)

		w := doRequest(t, h, http.MethodGet, "/api/v1/design/design-validations", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"jobs":[],"limit":50,"offset":0}`, w.Body.String())
	})

	t.Run("invalid parameters", func(t *testing.T) {
		tests := []struct {
			query string
			field string
		}{
			{"status=RUNNING", "status"},
			{"input_mode=xml", "input_mode"},
			{"limit=abc", "limit"},
			{"limit=100000", "limit"},
			{"offset=-1", "offset"},
		}
		for _, tt := range tests {
			h, _ := newRouterWithMock(t)
			w := doRequest(t, h, http.MethodGet, "/api/v1/design/design-validations?"+tt.query, "")
			require.Equal(t, http.StatusBadRequest, w.Code, tt.query)
			got := decodeError(t, w)
			assert.Equal(t, "validation", got.Code)
			assert.Contains(t, got.Details, tt.field, tt.query)
		}
	})
}
