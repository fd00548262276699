// Package events decodes lifecycle envelopes into typed events and routes them
// to the notification dispatcher.
package events

import (
	"time"

	"github.com/target/specops-api/internal/domain/model"
)

// Meta carries the envelope fields shared by every event.
type Meta struct {
	EventType     model.EventType
	CorrelationID int64
	UserID        string
	Timestamp     time.Time
}

// Event is a decoded, validated envelope. The set of implementations is closed:
// consumers resolve it with a type switch over the payload types in this package.
type Event interface {
	Meta() Meta
	isEvent()
}

type base struct {
	meta Meta
}

func (b *base) Meta() Meta { return b.meta }

func (b *base) setMeta(m Meta) { b.meta = m }

func (*base) isEvent() {}

// ValidationStatistics summarises the outcome of a validation run.
type ValidationStatistics struct {
	TotalTests      int     `json:"total_tests"`
	PassedTests     int     `json:"passed_tests"`
	FailedTests     int     `json:"failed_tests"`
	SkippedTests    int     `json:"skipped_tests"`
	SuccessRate     float64 `json:"success_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// HARStatistics summarises a processed HAR capture.
type HARStatistics struct {
	TotalRequests         int     `json:"total_requests"`
	UniqueEndpoints       int     `json:"unique_endpoints"`
	FilteredRequests      int     `json:"filtered_requests"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// Artifact is one generated output of HAR processing.
type Artifact struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// ArtifactsSummary groups the artifacts produced by HAR processing.
type ArtifactsSummary struct {
	Specifications []Artifact `json:"specifications,omitempty"`
	Mocks          []Artifact `json:"mocks,omitempty"`
	Tests          []Artifact `json:"tests,omitempty"`
}

// Count returns the total number of artifacts.
func (s *ArtifactsSummary) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Specifications) + len(s.Mocks) + len(s.Tests)
}

// SpecificationChanged is the payload of created and updated events.
type SpecificationChanged struct {
	base
	SpecificationID *int64 `json:"specification_id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Version         string `json:"version" validate:"required"`
	Description     string `json:"description,omitempty"`
	UserEmail       string `json:"user_email,omitempty" validate:"omitempty,email"`
	UserName        string `json:"user_name,omitempty"`
}

// ValidationCompleted is the payload of validation_completed. A non-empty ErrorMessage
// marks a run that finished with an execution error.
type ValidationCompleted struct {
	base
	ValidationRunID      *int64                `json:"validation_run_id" validate:"required"`
	SpecificationID      *int64                `json:"specification_id" validate:"required"`
	Status               string                `json:"status" validate:"required"`
	ValidationStatistics *ValidationStatistics `json:"validation_statistics" validate:"required"`
	SpecificationName    string                `json:"specification_name,omitempty"`
	ResultsURL           string                `json:"results_url,omitempty"`
	ErrorMessage         string                `json:"error_message,omitempty"`
	UserEmail            string                `json:"user_email,omitempty" validate:"omitempty,email"`
	UserName             string                `json:"user_name,omitempty"`
}

// ValidationFailed is the payload of validation_failed.
type ValidationFailed struct {
	base
	ValidationRunID      *int64                `json:"validation_run_id" validate:"required"`
	SpecificationID      *int64                `json:"specification_id" validate:"required"`
	ErrorMessage         string                `json:"error_message" validate:"required"`
	SpecificationName    string                `json:"specification_name,omitempty"`
	ValidationStatistics *ValidationStatistics `json:"validation_statistics,omitempty"`
	UserEmail            string                `json:"user_email,omitempty" validate:"omitempty,email"`
	UserName             string                `json:"user_name,omitempty"`
}

// HARProcessingCompleted is the payload of har_processing_completed. A non-empty
// ErrorMessage marks processing that finished with errors.
type HARProcessingCompleted struct {
	base
	UploadID         *int64            `json:"upload_id" validate:"required"`
	Statistics       *HARStatistics    `json:"statistics" validate:"required"`
	ArtifactsSummary *ArtifactsSummary `json:"artifacts_summary" validate:"required"`
	FileName         string            `json:"file_name,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	UserEmail        string            `json:"user_email,omitempty" validate:"omitempty,email"`
	UserName         string            `json:"user_name,omitempty"`
}

// HARProcessingFailed is the payload of har_processing_failed.
type HARProcessingFailed struct {
	base
	UploadID     *int64         `json:"upload_id" validate:"required"`
	ErrorMessage string         `json:"error_message" validate:"required"`
	FileName     string         `json:"file_name,omitempty"`
	Statistics   *HARStatistics `json:"statistics,omitempty"`
	UserEmail    string         `json:"user_email,omitempty" validate:"omitempty,email"`
	UserName     string         `json:"user_name,omitempty"`
}

// HARReviewRequested is the payload of har_review_requested.
type HARReviewRequested struct {
	base
	UploadID         *int64            `json:"upload_id" validate:"required"`
	ArtifactsSummary *ArtifactsSummary `json:"artifacts_summary" validate:"required"`
	ReviewURL        string            `json:"review_url" validate:"required"`
	FileName         string            `json:"file_name,omitempty"`
	Statistics       *HARStatistics    `json:"statistics,omitempty"`
	UserEmail        string            `json:"user_email,omitempty" validate:"omitempty,email"`
	UserName         string            `json:"user_name,omitempty"`
}
