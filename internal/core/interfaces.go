package core

import (
	"context"
	"time"

	"github.com/target/specops-api/internal/domain/model"
)

// This file contains port interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and the
// gateway, transport and data layers. Service implementations should depend on
// these interfaces, not concrete implementations.

// JobFetcher reads the current state of a backend job.
type JobFetcher interface {
	GetJob(ctx context.Context, ref model.JobRef) (*model.AsyncJob, error)
}

// JobStarter triggers long-running backend operations.
type JobStarter interface {
	StartValidationRun(ctx context.Context, req model.StartValidationRunRequest) (*model.AsyncJob, error)
	StartHARProcessing(ctx context.Context, req model.StartHARProcessingRequest) (*model.AsyncJob, error)
	DeployMock(ctx context.Context, req model.DeployMockRequest) (*model.AsyncJob, error)
}

// Transport delivers one rendered message and returns the provider's message id, if any.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg model.Message) (string, error)
}

// DeliveryRepository persists the outcome of each message send attempt.
type DeliveryRepository interface {
	Create(ctx context.Context, rec *model.DeliveryRecord) error
	List(ctx context.Context, opts model.DeliveryListOptions) ([]*model.DeliveryRecord, error)
}

// SnapshotRepository stores the latest observation of each watched job.
type SnapshotRepository interface {
	Put(ctx context.Context, snap *model.JobSnapshot, ttl time.Duration) error
	Get(ctx context.Context, ref model.JobRef) (*model.JobSnapshot, error)
	Delete(ctx context.Context, ref model.JobRef) error
}
