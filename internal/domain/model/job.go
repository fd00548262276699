// Package model defines the core data types shared by the gateway, tracker and notification layers.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JobType identifies the kind of long-running backend operation.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a backend job.
type JobStatus string

const (
	// JobTypeValidationRun is a contract-validation run against a specification.
	JobTypeValidationRun JobType = "validation_run"
	// JobTypeHARProcessing is the conversion of an uploaded HAR capture into artifacts.
	JobTypeHARProcessing JobType = "har_processing"
	// JobTypeMockDeployment is the deployment of an HTTP mock server.
	JobTypeMockDeployment JobType = "mock_deployment"

	// JobStatusPending indicates a job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed to complete.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates a job was cancelled before completion.
	JobStatusCancelled JobStatus = "cancelled"
)

// JobTypes returns every known job type.
func JobTypes() []JobType {
	return []JobType{JobTypeValidationRun, JobTypeHARProcessing, JobTypeMockDeployment}
}

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env and path parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeValidationRun || t == JobTypeHARProcessing || t == JobTypeMockDeployment
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s.Terminal()
}

// Terminal reports whether no further transitions can occur from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Rank orders statuses by progress: pending < running < terminal.
// Unknown statuses rank below pending.
func (s JobStatus) Rank() int {
	switch {
	case s == JobStatusPending:
		return 0
	case s == JobStatusRunning:
		return 1
	case s.Terminal():
		return 2
	default:
		return -1
	}
}

// Failed reports whether s is a terminal status that should present as an error.
func (s JobStatus) Failed() bool {
	return s == JobStatusFailed || s == JobStatusCancelled
}

// JobRef identifies a job within its type namespace.
type JobRef struct {
	Type JobType `json:"job_type"`
	ID   int64   `json:"job_id"`
}

// String renders the ref as "type/id".
func (r JobRef) String() string {
	return string(r.Type) + "/" + strconv.FormatInt(r.ID, 10)
}

// Validate checks the ref is addressable.
func (r JobRef) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("invalid job type %q", r.Type)
	}
	if r.ID <= 0 {
		return fmt.Errorf("invalid job id %d", r.ID)
	}
	return nil
}

// ParseJobRef parses the "type/id" form produced by JobRef.String.
func ParseJobRef(s string) (JobRef, error) {
	typ, rawID, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return JobRef{}, fmt.Errorf("job ref %q: expected type/id", s)
	}
	var ref JobRef
	if err := ref.Type.UnmarshalText([]byte(typ)); err != nil {
		return JobRef{}, err
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return JobRef{}, fmt.Errorf("job ref %q: %w", s, err)
	}
	ref.ID = id
	return ref, ref.Validate()
}

// AsyncJob is the uniform descriptor of a long-running backend operation.
// The backend owns every field; clients only read it.
type AsyncJob struct {
	ID           int64           `json:"job_id"`
	Type         JobType         `json:"job_type"`
	Status       JobStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	// Progress and CurrentStep are only reported for HAR processing.
	Progress    *int   `json:"progress,omitempty"`
	CurrentStep string `json:"current_step,omitempty"`
}

// Ref returns the job's identity.
func (j *AsyncJob) Ref() JobRef {
	return JobRef{Type: j.Type, ID: j.ID}
}

// JobSnapshot is the latest observation of a tracked job.
type JobSnapshot struct {
	Job           AsyncJob  `json:"job"`
	ObservedAt    time.Time `json:"observed_at"`
	Observations  int       `json:"observations"`
	TrackingError string    `json:"tracking_error,omitempty"`
	Done          bool      `json:"done"`
}

// StartValidationRunRequest triggers a contract-validation run.
type StartValidationRunRequest struct {
	SpecificationID int64  `json:"specification_id"`
	BaseURL         string `json:"base_url,omitempty"`
	MaxTestCases    int    `json:"max_test_cases,omitempty"`
}

// StartHARProcessingRequest triggers processing of a previously uploaded HAR capture.
type StartHARProcessingRequest struct {
	UploadID        int64 `json:"upload_id"`
	GenerateSpec    bool  `json:"generate_spec"`
	GenerateMocks   bool  `json:"generate_mocks"`
	RequestReview   bool  `json:"request_review"`
	SpecificationID int64 `json:"specification_id,omitempty"`
}

// DeployMockRequest triggers a mock-server deployment for a specification.
type DeployMockRequest struct {
	SpecificationID int64  `json:"specification_id"`
	Name            string `json:"name,omitempty"`
}
