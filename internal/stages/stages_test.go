package stages

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dafake "github.com/madara-alliance/orchestrator-go/internal/adapters/da/fake"
	proverfake "github.com/madara-alliance/orchestrator-go/internal/adapters/prover/fake"
	settlementfake "github.com/madara-alliance/orchestrator-go/internal/adapters/settlement/fake"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

type osFakeClient struct {
	fact string
	err  error
}

func (c *osFakeClient) RunOs(_ context.Context, blockNumber uint64, fullOutput bool) (string, string, string, error) {
	if c.err != nil {
		return "", "", "", c.err
	}
	id := fmt.Sprintf("%d", blockNumber)
	programOutput := ""
	if fullOutput {
		programOutput = models.ArtifactKey(id, models.ArtifactProgramOutput)
	}
	return models.ArtifactKey(id, models.ArtifactCairoPie), models.ArtifactKey(id, models.ArtifactOsOutput), programOutput, nil
}

func (c *osFakeClient) GetOsFact(_ context.Context, _ uint64) (string, error) {
	return c.fact, nil
}

func TestOsRunHandlerProcessFillsArtifactsAndFact(t *testing.T) {
	ctx := context.Background()
	h := &OsRunHandler{Os: &osFakeClient{fact: "0xfact99"}, MaxProcessAttemptsN: 2}
	job := h.Create("99", models.Metadata{OsRun: &models.OsRunMetadata{BlockNumber: 99, FullOutput: true}})

	externalID, err := h.Process(ctx, job)
	require.NoError(t, err)
	assert.Empty(t, externalID, "OsRun has no external id, only stored artifacts")
	assert.Equal(t, models.ArtifactKey("99", models.ArtifactCairoPie), job.Metadata.OsRun.CairoPiePath)
	assert.Equal(t, models.ArtifactKey("99", models.ArtifactProgramOutput), job.Metadata.OsRun.ProgramOutputPath)
	assert.Equal(t, "0xfact99", job.Metadata.OsRun.OsFact)

	result, err := h.Verify(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, VerifyVerified, result.Outcome, "OsRun has no polling step, verify is always immediate")
}

func TestOsRunHandlerProcessWrapsAdapterError(t *testing.T) {
	ctx := context.Background()
	h := &OsRunHandler{Os: &osFakeClient{err: fmt.Errorf("rpc unavailable")}, MaxProcessAttemptsN: 2}
	job := h.Create("1", models.Metadata{OsRun: &models.OsRunMetadata{BlockNumber: 1}})

	_, err := h.Process(ctx, job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc unavailable")
	assert.True(t, orcherrors.Retryable(err), "an arbitrary wrapped adapter error defaults to retryable")
}

func TestOsRunHandlerRejectsWrongMetadataVariant(t *testing.T) {
	ctx := context.Background()
	h := &OsRunHandler{Os: &osFakeClient{}, MaxProcessAttemptsN: 2}
	job := h.Create("1", models.Metadata{})

	_, err := h.Process(ctx, job)
	var invalid *orcherrors.InvalidInput
	require.ErrorAs(t, err, &invalid)
}

func TestProvingHandlerRequiresCairoPiePath(t *testing.T) {
	ctx := context.Background()
	h := &ProvingHandler{Prover: proverfake.New(), MaxProcessAttemptsN: 2, MaxVerificationAttemptsN: 2}
	job := h.Create("1", models.Metadata{Proving: &models.ProvingMetadata{BlockNumber: 1}})

	_, err := h.Process(ctx, job)
	var invalid *orcherrors.InvalidInput
	require.ErrorAs(t, err, &invalid)
}

func TestProvingHandlerVerifyStaysPendingUntilProverFinishes(t *testing.T) {
	ctx := context.Background()
	prover := proverfake.New()
	prover.PollsUntilDone = 2
	h := &ProvingHandler{Prover: prover, MaxProcessAttemptsN: 2, MaxVerificationAttemptsN: 5}
	job := h.Create("1", models.Metadata{Proving: &models.ProvingMetadata{BlockNumber: 1, CairoPiePath: "1/cairo_pie.zip", DownloadProof: true}})

	externalID, err := h.Process(ctx, job)
	require.NoError(t, err)
	job.ExternalID = externalID

	result, err := h.Verify(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, VerifyPending, result.Outcome)

	result, err = h.Verify(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, VerifyVerified, result.Outcome)
	assert.NotEmpty(t, job.Metadata.Proving.ProofPath, "DownloadProof was set, proof path must be recorded")
}

func TestProvingHandlerVerifyRejectedOnProverFailure(t *testing.T) {
	ctx := context.Background()
	prover := proverfake.New()
	h := &ProvingHandler{Prover: prover, MaxProcessAttemptsN: 2, MaxVerificationAttemptsN: 5}
	job := h.Create("1", models.Metadata{Proving: &models.ProvingMetadata{BlockNumber: 1, CairoPiePath: "1/cairo_pie.zip"}})

	externalID, err := h.Process(ctx, job)
	require.NoError(t, err)
	job.ExternalID = externalID
	prover.RejectTasks[externalID] = true

	result, err := h.Verify(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, VerifyRejected, result.Outcome)
	assert.Contains(t, result.Reason, externalID)
}

func TestDataSubmissionHandlerRequiresBlobDataPath(t *testing.T) {
	ctx := context.Background()
	h := &DataSubmissionHandler{DA: dafake.New(), MaxProcessAttemptsN: 1, MaxVerificationAttemptsN: 2}
	job := h.Create("1", models.Metadata{DataSubmission: &models.DataSubmissionMetadata{BlockNumber: 1}})

	_, err := h.Process(ctx, job)
	var invalid *orcherrors.InvalidInput
	require.ErrorAs(t, err, &invalid)
}

func TestDataSubmissionHandlerPublishAndConfirm(t *testing.T) {
	ctx := context.Background()
	da := dafake.New()
	h := &DataSubmissionHandler{DA: da, MaxProcessAttemptsN: 1, MaxVerificationAttemptsN: 2}
	job := h.Create("1", models.Metadata{DataSubmission: &models.DataSubmissionMetadata{
		BlockNumber:  1,
		BlobDataPath: models.ArtifactKey("1", models.ArtifactBlobData),
	}})

	externalID, err := h.Process(ctx, job)
	require.NoError(t, err)
	assert.NotEmpty(t, externalID)
	assert.Equal(t, externalID, job.Metadata.DataSubmission.TxHash)
	assert.NotEmpty(t, job.Metadata.DataSubmission.BlobVersionedHash)

	job.ExternalID = externalID
	result, err := h.Verify(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, VerifyVerified, result.Outcome)
}

func TestDataSubmissionHandlerPublishFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	da := dafake.New()
	da.FailNext = true
	h := &DataSubmissionHandler{DA: da, MaxProcessAttemptsN: 2, MaxVerificationAttemptsN: 2}
	job := h.Create("1", models.Metadata{DataSubmission: &models.DataSubmissionMetadata{
		BlockNumber:  1,
		BlobDataPath: models.ArtifactKey("1", models.ArtifactBlobData),
	}})

	_, err := h.Process(ctx, job)
	require.Error(t, err)
	assert.True(t, orcherrors.Retryable(err))
}

func TestProofRegistrationHandlerPostsAndConfirms(t *testing.T) {
	ctx := context.Background()
	settlement := settlementfake.New(4)
	h := &ProofRegistrationHandler{Settlement: settlement, MaxProcessAttemptsN: 1, MaxVerificationAttemptsN: 2}
	job := h.Create("5", models.Metadata{ProofRegistration: &models.DataSubmissionMetadata{
		BlockNumber:  5,
		BlobDataPath: "5/proof.bin",
	}})

	externalID, err := h.Process(ctx, job)
	require.NoError(t, err)
	job.ExternalID = externalID

	result, err := h.Verify(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, VerifyVerified, result.Outcome)
}

func TestStateTransitionNewCreateInputValidation(t *testing.T) {
	assert.Error(t, NewCreateInput(nil))
	assert.Error(t, NewCreateInput([]uint64{3, 1, 2}), "must reject unsorted input")
	assert.Error(t, NewCreateInput([]uint64{1, 1, 2}), "must reject duplicates")
	assert.NoError(t, NewCreateInput([]uint64{1, 2, 3}))
}

func TestStateTransitionHandlerDetectsGap(t *testing.T) {
	ctx := context.Background()
	settlement := settlementfake.New(5)
	h := &StateTransitionHandler{Settlement: settlement, MaxProcessAttemptsN: 1, MaxVerificationAttemptsN: 1}
	job := h.Create("10-11", models.Metadata{StateTransition: &models.StateTransitionMetadata{BlocksToSettle: []uint64{10, 11}}})

	_, err := h.Process(ctx, job)
	require.ErrorIs(t, err, orcherrors.ErrGapBetweenFirstAndLastBlock)
	assert.False(t, orcherrors.Retryable(err), "a fatal gap must not be classified retryable")
}

func TestStateTransitionHandlerVerifyPendingBeforeProcess(t *testing.T) {
	ctx := context.Background()
	settlement := settlementfake.New(0)
	h := &StateTransitionHandler{Settlement: settlement, MaxProcessAttemptsN: 1, MaxVerificationAttemptsN: 1}
	job := h.Create("1-1", models.Metadata{StateTransition: &models.StateTransitionMetadata{BlocksToSettle: []uint64{1}}})

	result, err := h.Verify(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, VerifyPending, result.Outcome, "no attempt has run yet, verify must not find a key to confirm")
}
