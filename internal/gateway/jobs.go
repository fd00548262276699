package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/specops-api/internal/domain/model"
	apperrors "github.com/target/specops-api/internal/errors"
)

// JobRoute describes where a job type is started and polled, and how its status
// document maps onto model.AsyncJob.
type JobRoute struct {
	// StartPath receives the POST that creates a job. "{id}" is replaced by the subject id.
	StartPath string
	// StatusPath is polled with GET. "{id}" is replaced by the job id.
	StatusPath string
	// Projection is a JMESPath expression evaluating to an object with the keys
	// job_id, status, progress, current_step, error_message, result and created_at.
	Projection string
}

type jobRoutes map[model.JobType]JobRoute

// DefaultJobRoutes returns the stock endpoints and projections for every job type.
func DefaultJobRoutes() map[model.JobType]JobRoute {
	return map[model.JobType]JobRoute{
		model.JobTypeValidationRun: {
			StartPath:  "/api/validation-runs",
			StatusPath: "/api/validation-runs/{id}",
			Projection: "{job_id: id || job_id, status: status, created_at: created_at, " +
				"error_message: error_message || error, result: result || results || summary}",
		},
		model.JobTypeHARProcessing: {
			StartPath:  "/api/har/uploads/{id}/process",
			StatusPath: "/api/har/uploads/{id}/status",
			Projection: "{job_id: id || upload_id || job_id, status: status || processing_status, " +
				"progress: progress, current_step: current_step, created_at: created_at, " +
				"error_message: error_message, result: result || artifacts_summary}",
		},
		model.JobTypeMockDeployment: {
			StartPath:  "/api/mocks/deployments",
			StatusPath: "/api/mocks/deployments/{id}",
			Projection: "{job_id: id || deployment_id || job_id, status: status, created_at: created_at, " +
				"error_message: error_message, result: result || deployment}",
		},
	}
}

func buildRoutes(overrides map[model.JobType]JobRoute) (jobRoutes, error) {
	routes := jobRoutes(DefaultJobRoutes())
	for jt, o := range overrides {
		if !jt.Valid() {
			return nil, fmt.Errorf("job route for unknown job type %q", jt)
		}
		r := routes[jt]
		if s := strings.TrimSpace(o.StartPath); s != "" {
			r.StartPath = s
		}
		if s := strings.TrimSpace(o.StatusPath); s != "" {
			r.StatusPath = s
		}
		if s := strings.TrimSpace(o.Projection); s != "" {
			r.Projection = s
		}
		routes[jt] = r
	}
	for jt, r := range routes {
		if _, err := jmespath.Compile(r.Projection); err != nil {
			return nil, fmt.Errorf("compile %s status projection: %w", jt, err)
		}
	}
	return routes, nil
}

func expandPath(tmpl string, id int64) string {
	return strings.ReplaceAll(tmpl, "{id}", strconv.FormatInt(id, 10))
}

// StartValidationRun triggers a contract-validation run.
func (c *Client) StartValidationRun(ctx context.Context, req model.StartValidationRunRequest) (*model.AsyncJob, error) {
	if req.SpecificationID <= 0 {
		return nil, apperrors.Client(0, "specification_id is required")
	}
	route := c.routes[model.JobTypeValidationRun]
	return c.startJob(ctx, model.JobTypeValidationRun, expandPath(route.StartPath, req.SpecificationID), req)
}

// StartHARProcessing triggers processing of an uploaded HAR capture.
func (c *Client) StartHARProcessing(ctx context.Context, req model.StartHARProcessingRequest) (*model.AsyncJob, error) {
	if req.UploadID <= 0 {
		return nil, apperrors.Client(0, "upload_id is required")
	}
	route := c.routes[model.JobTypeHARProcessing]
	return c.startJob(ctx, model.JobTypeHARProcessing, expandPath(route.StartPath, req.UploadID), req)
}

// DeployMock triggers a mock-server deployment.
func (c *Client) DeployMock(ctx context.Context, req model.DeployMockRequest) (*model.AsyncJob, error) {
	if req.SpecificationID <= 0 {
		return nil, apperrors.Client(0, "specification_id is required")
	}
	route := c.routes[model.JobTypeMockDeployment]
	return c.startJob(ctx, model.JobTypeMockDeployment, expandPath(route.StartPath, req.SpecificationID), req)
}

// GetJob fetches the current state of a job.
func (c *Client) GetJob(ctx context.Context, ref model.JobRef) (*model.AsyncJob, error) {
	if err := ref.Validate(); err != nil {
		return nil, apperrors.Client(0, err.Error())
	}
	route := c.routes[ref.Type]
	var doc any
	if err := c.Send(ctx, Request{Method: http.MethodGet, Path: expandPath(route.StatusPath, ref.ID)}, &doc); err != nil {
		return nil, err
	}
	job, err := project(route.Projection, ref.Type, doc)
	if err != nil {
		return nil, err
	}
	if job.ID == 0 {
		job.ID = ref.ID
	}
	return job, nil
}

func (c *Client) startJob(ctx context.Context, jt model.JobType, path string, body any) (*model.AsyncJob, error) {
	var doc any
	if err := c.Send(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, &doc); err != nil {
		return nil, err
	}
	job, err := project(c.routes[jt].Projection, jt, doc)
	if err != nil {
		return nil, err
	}
	if job.ID <= 0 {
		return nil, apperrors.Server(0, fmt.Sprintf("%s start response did not include a job id", jt), nil)
	}
	return job, nil
}

type projectedJob struct {
	JobID        *json.Number    `json:"job_id"`
	Status       *string         `json:"status"`
	Progress     *float64        `json:"progress"`
	CurrentStep  *string         `json:"current_step"`
	ErrorMessage *string         `json:"error_message"`
	Result       json.RawMessage `json:"result"`
	CreatedAt    *string         `json:"created_at"`
}

// project evaluates the JMESPath projection against a backend document and normalises
// the outcome into an AsyncJob of type jt.
func project(expr string, jt model.JobType, doc any) (*model.AsyncJob, error) {
	out, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "project %s status document", jt)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "encode %s projection", jt)
	}
	var p projectedJob
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "decode %s projection", jt)
	}

	job := &model.AsyncJob{Type: jt}
	if p.JobID != nil {
		id, err := p.JobID.Int64()
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "%s job id %q is not an integer", jt, p.JobID.String())
		}
		job.ID = id
	}
	if p.Status == nil {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("%s status document has no status", jt))
	}
	status, ok := NormalizeStatus(*p.Status)
	if !ok {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("unrecognised %s status %q", jt, *p.Status))
	}
	job.Status = status
	if p.Progress != nil {
		v := int(*p.Progress)
		v = max(0, min(100, v))
		job.Progress = &v
	}
	if p.CurrentStep != nil {
		job.CurrentStep = *p.CurrentStep
	}
	if p.ErrorMessage != nil && strings.TrimSpace(*p.ErrorMessage) != "" {
		msg := *p.ErrorMessage
		job.ErrorMessage = &msg
	}
	if len(p.Result) > 0 && string(p.Result) != "null" {
		job.Result = p.Result
	}
	if p.CreatedAt != nil {
		job.CreatedAt = parseTimestamp(*p.CreatedAt)
	}
	return job, nil
}

// NormalizeStatus maps backend status spellings onto the shared status machine.
func NormalizeStatus(s string) (model.JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued", "created", "uploaded":
		return model.JobStatusPending, true
	case "running", "processing", "in_progress", "deploying":
		return model.JobStatusRunning, true
	case "completed", "complete", "succeeded", "success", "deployed":
		return model.JobStatusCompleted, true
	case "failed", "error":
		return model.JobStatusFailed, true
	case "cancelled", "canceled", "stopped":
		return model.JobStatusCancelled, true
	default:
		return "", false
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
