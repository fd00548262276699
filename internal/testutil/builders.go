package testutil

import (
	"encoding/json"
	"time"

	"github.com/target/specops-api/internal/domain/model"
)

// JobBuilder builds AsyncJob fixtures.
type JobBuilder struct {
	job model.AsyncJob
}

// NewJob starts a pending job of the given type and id.
func NewJob(typ model.JobType, id int64) *JobBuilder {
	return &JobBuilder{job: model.AsyncJob{
		ID:        id,
		Type:      typ,
		Status:    model.JobStatusPending,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}}
}

// WithStatus sets the job status.
func (b *JobBuilder) WithStatus(s model.JobStatus) *JobBuilder {
	b.job.Status = s
	return b
}

// WithProgress sets HAR progress and step.
func (b *JobBuilder) WithProgress(pct int, step string) *JobBuilder {
	b.job.Progress = &pct
	b.job.CurrentStep = step
	return b
}

// WithError sets the error message.
func (b *JobBuilder) WithError(msg string) *JobBuilder {
	b.job.ErrorMessage = &msg
	return b
}

// WithResult sets the raw result document.
func (b *JobBuilder) WithResult(raw string) *JobBuilder {
	b.job.Result = json.RawMessage(raw)
	return b
}

// Build returns a copy of the job.
func (b *JobBuilder) Build() *model.AsyncJob {
	j := b.job
	return &j
}

// DeliveryBuilder builds DeliveryRecord fixtures.
type DeliveryBuilder struct {
	rec model.DeliveryRecord
}

// NewDelivery starts a sent submitter delivery for an event.
func NewDelivery(eventType model.EventType, correlationID int64) *DeliveryBuilder {
	return &DeliveryBuilder{rec: model.DeliveryRecord{
		EventType:     eventType,
		CorrelationID: correlationID,
		Role:          model.RoleSubmitter,
		Recipient:     "dev@example.com",
		Subject:       "subject",
		Transport:     "log",
		Status:        model.DeliverySent,
	}}
}

// WithRole sets role and recipient.
func (b *DeliveryBuilder) WithRole(role model.MessageRole, recipient string) *DeliveryBuilder {
	b.rec.Role = role
	b.rec.Recipient = recipient
	return b
}

// Failed marks the delivery failed with msg.
func (b *DeliveryBuilder) Failed(msg string) *DeliveryBuilder {
	b.rec.Status = model.DeliveryFailed
	b.rec.Error = &msg
	return b
}

// At sets the creation time.
func (b *DeliveryBuilder) At(t time.Time) *DeliveryBuilder {
	b.rec.CreatedAt = t
	return b
}

// Build returns a copy of the record.
func (b *DeliveryBuilder) Build() *model.DeliveryRecord {
	r := b.rec
	return &r
}
