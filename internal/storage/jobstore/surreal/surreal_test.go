package surreal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

// These exercise Store against a real SurrealDB container, grounded on
// jobqueue_test.go's per-test-database isolation pattern.

func TestStoreCreateAndGet(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	job := &models.Job{
		InternalID: "100",
		JobType:    models.JobTypeOsRun,
		Status:     models.StatusCreated,
		Metadata:   models.Metadata{OsRun: &models.OsRunMetadata{BlockNumber: 100}},
	}
	require.NoError(t, store.Create(ctx, job))
	require.NotEmpty(t, job.ID)
	assert.EqualValues(t, 1, job.Version)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.InternalID, got.InternalID)
	assert.Equal(t, models.StatusCreated, got.Status)
	assert.Equal(t, uint64(100), got.Metadata.OsRun.BlockNumber)
}

func TestStoreCreateRejectsDuplicateInternalID(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first := &models.Job{InternalID: "200", JobType: models.JobTypeOsRun, Status: models.StatusCreated}
	require.NoError(t, store.Create(ctx, first))

	second := &models.Job{InternalID: "200", JobType: models.JobTypeOsRun, Status: models.StatusCreated}
	err := store.Create(ctx, second)
	var dup *orcherrors.Duplicate
	require.ErrorAs(t, err, &dup)
}

func TestStoreUpdateEnforcesOptimisticLock(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	job := &models.Job{InternalID: "300", JobType: models.JobTypeOsRun, Status: models.StatusCreated}
	require.NoError(t, store.Create(ctx, job))

	stale, err := store.Get(ctx, job.ID)
	require.NoError(t, err)

	job.Status = models.StatusLockedForProcessing
	require.NoError(t, store.Update(ctx, job))
	assert.EqualValues(t, 2, job.Version)

	stale.Status = models.StatusFailed
	err = store.Update(ctx, stale)
	assert.True(t, errors.Is(err, orcherrors.ErrVersionConflict))

	final, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLockedForProcessing, final.Status)
}

func TestStoreGetByInternalIDNotFound(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.GetByInternalID(ctx, models.JobTypeOsRun, "does-not-exist")
	var notFound *orcherrors.NotFound
	require.ErrorAs(t, err, &notFound)
}

func TestStoreListFiltersByTypeAndStatus(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	a := &models.Job{InternalID: "400", JobType: models.JobTypeOsRun, Status: models.StatusCreated}
	b := &models.Job{InternalID: "401", JobType: models.JobTypeOsRun, Status: models.StatusCompleted}
	c := &models.Job{InternalID: "1", JobType: models.JobTypeProofCreation, Status: models.StatusCreated}
	require.NoError(t, store.Create(ctx, a))
	require.NoError(t, store.Create(ctx, b))
	require.NoError(t, store.Create(ctx, c))

	osJobs, err := store.List(ctx, jobstore.ListFilter{JobType: models.JobTypeOsRun})
	require.NoError(t, err)
	assert.Len(t, osJobs, 2)

	completed, err := store.List(ctx, jobstore.ListFilter{JobType: models.JobTypeOsRun, Status: models.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "401", completed[0].InternalID)
}

func TestStoreGetWithoutSuccessor(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	withSuccessor := &models.Job{InternalID: "500", JobType: models.JobTypeOsRun, Status: models.StatusCompleted}
	withoutSuccessor := &models.Job{InternalID: "501", JobType: models.JobTypeOsRun, Status: models.StatusCompleted}
	require.NoError(t, store.Create(ctx, withSuccessor))
	require.NoError(t, store.Create(ctx, withoutSuccessor))

	successor := &models.Job{InternalID: "500", JobType: models.JobTypeProofCreation, Status: models.StatusCreated}
	require.NoError(t, store.Create(ctx, successor))

	pending, err := store.GetWithoutSuccessor(ctx, models.JobTypeOsRun, []models.JobStatus{models.StatusCompleted}, models.JobTypeProofCreation)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "501", pending[0].InternalID)
}

func TestStoreCountByStatus(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i, status := range []models.JobStatus{models.StatusCreated, models.StatusCreated, models.StatusVerificationFailed} {
		job := &models.Job{InternalID: fmt.Sprintf("60%d", i), JobType: models.JobTypeOsRun, Status: status}
		require.NoError(t, store.Create(ctx, job))
	}

	counts, err := store.CountByStatus(ctx, models.JobTypeOsRun, []models.JobStatus{models.StatusCreated, models.StatusVerificationFailed})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[models.StatusCreated])
	assert.Equal(t, 1, counts[models.StatusVerificationFailed])
}
