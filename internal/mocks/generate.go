// Package mocks provides mock implementations of the core ports for tests.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, ReserveNext, WaitForNotification, Heartbeat, Complete, Fail, Stats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/innovites/cableaudit/internal/core JobRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailStalePendingJobs, DeleteOldJobs
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/innovites/cableaudit/internal/core ReaperRepository

// Generate mocks for the reference dataset ports from internal/core package.
// MockReferenceReader covers GetConductor, GetInsulation; MockReferenceRepository adds Replace, Count.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reference_reader_mock.go github.com/innovites/cableaudit/internal/core ReferenceReader
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reference_repository_mock.go github.com/innovites/cableaudit/internal/core ReferenceRepository

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, DeletePrefix, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/innovites/cableaudit/internal/core CacheRepository
