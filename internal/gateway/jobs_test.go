package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
)

func TestStartValidationRun_RetriesThroughServiceUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/validation-runs", r.URL.Path)
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"specification_id":12,"base_url":"http://petstore"}`, string(body))
		assert.Equal(t, "3", r.Header.Get("X-Retry-Attempt"))
		_, _ = w.Write([]byte(`{"id":77,"status":"pending","created_at":"2025-03-01T10:00:00Z"}`))
	}))
	defer srv.Close()

	c, rec := newTestClient(t, srv)
	job, err := c.StartValidationRun(context.Background(), model.StartValidationRunRequest{
		SpecificationID: 12,
		BaseURL:         "http://petstore",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(77), job.ID)
	assert.Equal(t, model.JobTypeValidationRun, job.Type)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), job.CreatedAt)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, rec.recorded())
}

func TestStartHARProcessing_UsesUploadPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/har/uploads/5/process", r.URL.Path)
		_, _ = w.Write([]byte(`{"upload_id":5,"processing_status":"processing","progress":0}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	job, err := c.StartHARProcessing(context.Background(), model.StartHARProcessingRequest{UploadID: 5, GenerateSpec: true})
	require.NoError(t, err)
	assert.Equal(t, model.JobRef{Type: model.JobTypeHARProcessing, ID: 5}, job.Ref())
	assert.Equal(t, model.JobStatusRunning, job.Status)
}

func TestStartJob_RejectsMissingSubject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.DeployMock(context.Background(), model.DeployMockRequest{})
	assert.True(t, apperrors.IsClient(err))
	_, err = c.StartHARProcessing(context.Background(), model.StartHARProcessingRequest{})
	assert.True(t, apperrors.IsClient(err))
}

func TestDeployMock_MissingJobIDIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"deploying"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.DeployMock(context.Background(), model.DeployMockRequest{SpecificationID: 3})
	require.Error(t, err)
	assert.True(t, apperrors.IsServer(err))
}

func TestGetJob_HARProjection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/har/uploads/9/status", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"upload_id": 9,
			"status": "completed",
			"progress": 100,
			"current_step": "done",
			"created_at": "2025-03-01T10:00:00.123456",
			"artifacts_summary": {"specs": 1, "mocks": 4}
		}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	job, err := c.GetJob(context.Background(), model.JobRef{Type: model.JobTypeHARProcessing, ID: 9})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Progress)
	assert.Equal(t, 100, *job.Progress)
	assert.Equal(t, "done", job.CurrentStep)
	assert.Nil(t, job.ErrorMessage)
	assert.JSONEq(t, `{"specs":1,"mocks":4}`, string(job.Result))
	assert.Equal(t, 2025, job.CreatedAt.Year())
}

func TestGetJob_FallsBackToRefID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failed","error_message":"schema mismatch"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	job, err := c.GetJob(context.Background(), model.JobRef{Type: model.JobTypeValidationRun, ID: 31})
	require.NoError(t, err)
	assert.Equal(t, int64(31), job.ID)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "schema mismatch", *job.ErrorMessage)
}

func TestGetJob_UnknownStatusIsValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"status":"exploding"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.GetJob(context.Background(), model.JobRef{Type: model.JobTypeMockDeployment, ID: 1})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.False(t, apperrors.IsTransient(err))
}

func TestGetJob_InvalidRef(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.GetJob(context.Background(), model.JobRef{Type: "bogus", ID: 1})
	assert.True(t, apperrors.IsClient(err))
}

func TestRoutesOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/runs/4", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"run": map[string]any{"state": "RUNNING"}})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv, func(o *Options) {
		o.Routes = map[model.JobType]JobRoute{
			model.JobTypeValidationRun: {StatusPath: "/v2/runs/{id}", Projection: "{status: run.state}"},
		}
	})
	job, err := c.GetJob(context.Background(), model.JobRef{Type: model.JobTypeValidationRun, ID: 4})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, int64(4), job.ID)
}

func TestRoutesOverride_InvalidProjection(t *testing.T) {
	_, err := New(Options{
		BaseURL: "http://backend",
		Routes:  map[model.JobType]JobRoute{model.JobTypeMockDeployment: {Projection: "{status: "}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock_deployment status projection")

	_, err = New(Options{
		BaseURL: "http://backend",
		Routes:  map[model.JobType]JobRoute{"nope": {}},
	})
	require.Error(t, err)
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]model.JobStatus{
		"PENDING":     model.JobStatusPending,
		"queued":      model.JobStatusPending,
		"in_progress": model.JobStatusRunning,
		"Succeeded":   model.JobStatusCompleted,
		"error":       model.JobStatusFailed,
		"canceled":    model.JobStatusCancelled,
	}
	for in, want := range tests {
		got, ok := NormalizeStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeStatus("???")
	assert.False(t, ok)
}
