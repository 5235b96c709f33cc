package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

func newJob(jobType models.JobType, internalID string) *models.Job {
	return &models.Job{
		JobType:    jobType,
		InternalID: internalID,
		Status:     models.StatusCreated,
		Metadata:   models.Metadata{OsRun: &models.OsRunMetadata{BlockNumber: 1}},
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Create(ctx, newJob(models.JobTypeOsRun, "100")))
	err := s.Create(ctx, newJob(models.JobTypeOsRun, "100"))

	var dup *orcherrors.Duplicate
	require.ErrorAs(t, err, &dup)
}

func TestUpdateDetectsVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := New()
	job := newJob(models.JobTypeOsRun, "101")
	require.NoError(t, s.Create(ctx, job))

	stale, err := s.Get(ctx, job.ID)
	require.NoError(t, err)

	job.Status = models.StatusLockedForProcessing
	require.NoError(t, s.Update(ctx, job))

	stale.Status = models.StatusFailed
	err = s.Update(ctx, stale)
	assert.ErrorIs(t, err, orcherrors.ErrVersionConflict)
}

func TestGetWithoutSuccessorExcludesClaimed(t *testing.T) {
	ctx := context.Background()
	s := New()

	ready := newJob(models.JobTypeOsRun, "200")
	ready.Status = models.StatusCompleted
	require.NoError(t, s.Create(ctx, ready))

	claimed := newJob(models.JobTypeOsRun, "201")
	claimed.Status = models.StatusCompleted
	require.NoError(t, s.Create(ctx, claimed))
	successor := newJob(models.JobTypeProofCreation, "201")
	successor.Metadata = models.Metadata{Proving: &models.ProvingMetadata{BlockNumber: 201}}
	require.NoError(t, s.Create(ctx, successor))

	out, err := s.GetWithoutSuccessor(ctx, models.JobTypeOsRun, []models.JobStatus{models.StatusCompleted}, models.JobTypeProofCreation)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "200", out[0].InternalID)
}

func TestListFiltersByTypeAndStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Create(ctx, newJob(models.JobTypeOsRun, "300")))
	pc := newJob(models.JobTypeProofCreation, "300")
	pc.Metadata = models.Metadata{Proving: &models.ProvingMetadata{BlockNumber: 300}}
	pc.Status = models.StatusCompleted
	require.NoError(t, s.Create(ctx, pc))

	out, err := s.List(ctx, jobstore.ListFilter{JobType: models.JobTypeProofCreation})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.StatusCompleted, out[0].Status)
}
