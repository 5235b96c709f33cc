// Package jobstore defines the persistent job store contract (spec.md
// §4.A) shared by the in-memory and SurrealDB-backed implementations.
package jobstore

import (
	"context"

	"github.com/madara-alliance/orchestrator-go/internal/models"
)

// ListFilter narrows List to a job type and/or status. Zero values match any.
type ListFilter struct {
	JobType models.JobType
	Status  models.JobStatus
	Limit   int
}

// Store is the contract every job persistence backend implements. All
// mutating methods enforce the job's Version as an optimistic lock: callers
// pass the Job they last read, and the store rejects the write with
// orcherrors.ErrVersionConflict if the stored version has since moved.
type Store interface {
	// Create inserts a new job at version 1. It returns an
	// *orcherrors.Duplicate if a job of the same JobType and InternalID
	// already exists (spec.md §4.A, uniqueness invariant).
	Create(ctx context.Context, job *models.Job) error

	// Get returns the job by ID, or *orcherrors.NotFound.
	Get(ctx context.Context, id string) (*models.Job, error)

	// GetByInternalID returns the job for a (jobType, internalID) pair, or
	// *orcherrors.NotFound.
	GetByInternalID(ctx context.Context, jobType models.JobType, internalID string) (*models.Job, error)

	// Update persists job using optimistic concurrency: the write only
	// applies if the stored version still equals job.Version. On success
	// job.Version is incremented and UpdatedAt refreshed. On a concurrent
	// write since job was read, it returns orcherrors.ErrVersionConflict
	// and the caller must re-read and retry.
	Update(ctx context.Context, job *models.Job) error

	// List returns jobs matching filter, most-recently-updated first.
	List(ctx context.Context, filter ListFilter) ([]*models.Job, error)

	// GetWithoutSuccessor returns jobs of jobType in one of fromStatuses
	// that have no corresponding successor job of type successorType with
	// a matching InternalID — the anti-join used by trigger loops to
	// discover work not yet enqueued (spec.md §4.C).
	GetWithoutSuccessor(ctx context.Context, jobType models.JobType, fromStatuses []models.JobStatus, successorType models.JobType) ([]*models.Job, error)

	// CountByStatus returns, for jobType, the number of jobs in each of statuses.
	CountByStatus(ctx context.Context, jobType models.JobType, statuses []models.JobStatus) (map[models.JobStatus]int, error)
}
