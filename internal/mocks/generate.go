// Package mocks provides mock implementations of the core ports for tests.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	fetcher := mocks.NewMockJobFetcher(ctrl)
//	fetcher.EXPECT().GetJob(gomock.Any(), ref).Return(job, nil)
package mocks

// Generate mock for JobFetcher interface from internal/core package.
// This creates MockJobFetcher with methods for all JobFetcher interface methods:
// GetJob
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_fetcher_mock.go github.com/target/specops-api/internal/core JobFetcher

// Generate mock for Transport interface from internal/core package.
// This creates MockTransport with methods for all Transport interface methods:
// Name, Send
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=transport_mock.go github.com/target/specops-api/internal/core Transport

// Generate mock for DeliveryRepository interface from internal/core package.
// This creates MockDeliveryRepository with methods for all DeliveryRepository interface methods:
// Create, List
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=delivery_repository_mock.go github.com/target/specops-api/internal/core DeliveryRepository

// Generate mock for SnapshotRepository interface from internal/core package.
// This creates MockSnapshotRepository with methods for all SnapshotRepository interface methods:
// Put, Get, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=snapshot_repository_mock.go github.com/target/specops-api/internal/core SnapshotRepository
