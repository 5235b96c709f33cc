package dispatch

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alerterfake "github.com/madara-alliance/orchestrator-go/internal/adapters/alerter/fake"
	dafake "github.com/madara-alliance/orchestrator-go/internal/adapters/da/fake"
	local "github.com/madara-alliance/orchestrator-go/internal/adapters/queue/local"
	proverfake "github.com/madara-alliance/orchestrator-go/internal/adapters/prover/fake"
	settlementfake "github.com/madara-alliance/orchestrator-go/internal/adapters/settlement/fake"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/stages"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore/memstore"
)

// These scenarios are the literal end-to-end pipeline walks from spec.md
// §8, driven against the in-memory store, the in-process queue, and the
// fake adapters, grounded on jobmanager/manager_test.go's pattern of
// exercising a fake storage manager through full job life cycles.

// drain repeatedly receives from queueName and runs handle on each message,
// acking on success and nacking on failure, until the queue reports no
// messages for emptyStreak consecutive polls or maxIterations is hit —
// this stands in for Dispatcher.consumeLoop's goroutine loop so the test
// stays single-threaded and deterministic.
func drain(t *testing.T, d *Dispatcher, queueName string, handle messageHandler, maxIterations int) {
	t.Helper()
	ctx := context.Background()
	emptyStreak := 0
	for i := 0; i < maxIterations; i++ {
		msgs, err := d.Queue.Receive(ctx, queueName, 20*time.Millisecond)
		require.NoError(t, err)
		if len(msgs) == 0 {
			emptyStreak++
			if emptyStreak >= 3 {
				return
			}
			continue
		}
		emptyStreak = 0
		for _, msg := range msgs {
			if err := handle(ctx, msg.Body); err != nil {
				_ = d.Queue.Nack(ctx, queueName, msg)
				continue
			}
			_ = d.Queue.Ack(ctx, queueName, msg)
		}
	}
}

// runPipeline drains the process and verify queues in round-robin for the
// given number of rounds, letting a job ping-pong between
// LockedForProcessing and PendingVerification to its terminal status, then
// drains the failure queue once.
func runPipeline(t *testing.T, d *Dispatcher, rounds int) {
	t.Helper()
	for i := 0; i < rounds; i++ {
		drain(t, d, QueueProcess, d.handleProcessMessage, 5)
		drain(t, d, QueueVerify, d.handleVerifyMessage, 5)
	}
	drain(t, d, QueueFailure, d.handleFailureMessage, 5)
}

func newTestDispatcher(t *testing.T, registry stages.Registry, alerter *alerterfake.Alerter) *Dispatcher {
	t.Helper()
	return &Dispatcher{
		Store:               memstore.New(),
		Queue:               local.New(),
		Registry:            registry,
		Alerter:             alerter,
		RetryBaseDelay:      time.Millisecond,
		RetryMaxDelay:       5 * time.Millisecond,
		EmptyReceiveBackoff: time.Millisecond,
	}
}

// Scenario 1: happy path, single block 42 through all four stages.
func TestPipelineHappyPathSingleBlock(t *testing.T) {
	ctx := context.Background()
	osAdapter := &osFakeClient{fact: "0xfact42"}
	prover := proverfake.New()
	da := dafake.New()
	settlement := settlementfake.New(41)
	alerter := alerterfake.New()

	registry := stages.NewRegistry(
		&stages.OsRunHandler{Os: osAdapter, MaxProcessAttemptsN: 2},
		&stages.ProvingHandler{Prover: prover, MaxProcessAttemptsN: 2, MaxVerificationAttemptsN: 300, VerificationPollingDelayDur: time.Millisecond},
		&stages.DataSubmissionHandler{DA: da, MaxProcessAttemptsN: 1, MaxVerificationAttemptsN: 3, VerificationPollingDelayDur: time.Millisecond},
		&stages.StateTransitionHandler{Settlement: settlement, MaxProcessAttemptsN: 1, MaxVerificationAttemptsN: 1, VerificationPollingDelayDur: time.Millisecond},
	)
	d := newTestDispatcher(t, registry, alerter)

	osHandler := registry[models.JobTypeOsRun]
	osJob := osHandler.Create("42", models.Metadata{OsRun: &models.OsRunMetadata{BlockNumber: 42}})
	require.NoError(t, d.Store.Create(ctx, osJob))
	require.NoError(t, d.enqueueProcess(ctx, osJob.ID, 0))

	runPipeline(t, d, 4)

	got, err := d.Store.Get(ctx, osJob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, models.ArtifactKey("42", models.ArtifactCairoPie), got.Metadata.OsRun.CairoPiePath)

	provingHandler := registry[models.JobTypeProofCreation]
	provingJob := provingHandler.Create("42", models.Metadata{Proving: &models.ProvingMetadata{
		BlockNumber:  42,
		CairoPiePath: got.Metadata.OsRun.CairoPiePath,
		OsFact:       got.Metadata.OsRun.OsFact,
	}})
	require.NoError(t, d.Store.Create(ctx, provingJob))
	require.NoError(t, d.enqueueProcess(ctx, provingJob.ID, 0))
	runPipeline(t, d, 4)

	got, err = d.Store.Get(ctx, provingJob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)

	dsHandler := registry[models.JobTypeDataSubmission]
	dsJob := dsHandler.Create("42", models.Metadata{DataSubmission: &models.DataSubmissionMetadata{
		BlockNumber:  42,
		BlobDataPath: models.ArtifactKey("42", models.ArtifactBlobData),
	}})
	require.NoError(t, d.Store.Create(ctx, dsJob))
	require.NoError(t, d.enqueueProcess(ctx, dsJob.ID, 0))
	runPipeline(t, d, 4)

	got, err = d.Store.Get(ctx, dsJob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotEmpty(t, got.Metadata.DataSubmission.TxHash)

	stHandler := registry[models.JobTypeStateTransition]
	stJob := stHandler.Create("42", models.Metadata{StateTransition: &models.StateTransitionMetadata{
		BlocksToSettle: []uint64{42},
		BlobDataPaths:  map[uint64]string{42: got.Metadata.DataSubmission.BlobDataPath},
	}})
	require.NoError(t, d.Store.Create(ctx, stJob))
	require.NoError(t, d.enqueueProcess(ctx, stJob.ID, 0))
	runPipeline(t, d, 4)

	got, err = d.Store.Get(ctx, stJob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Empty(t, alerter.Alerts)
}

// Scenario 2: prover timeout. Three polls all return Processing; final
// status VerificationTimeout; failure queue receives the job id; alert
// body contains "verification attempts exhausted".
func TestPipelineProverTimeout(t *testing.T) {
	ctx := context.Background()
	prover := proverfake.New()
	prover.PollsUntilDone = 1000 // never finishes within 3 polls
	alerter := alerterfake.New()

	registry := stages.NewRegistry(
		&stages.ProvingHandler{Prover: prover, MaxProcessAttemptsN: 2, MaxVerificationAttemptsN: 3, VerificationPollingDelayDur: time.Millisecond},
	)
	d := newTestDispatcher(t, registry, alerter)

	handler := registry[models.JobTypeProofCreation]
	job := handler.Create("7", models.Metadata{Proving: &models.ProvingMetadata{BlockNumber: 7, CairoPiePath: "7/cairo_pie.zip"}})
	require.NoError(t, d.Store.Create(ctx, job))
	require.NoError(t, d.enqueueProcess(ctx, job.ID, 0))

	runPipeline(t, d, 6)

	got, err := d.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerificationTimeout, got.Status)
	require.Len(t, alerter.Alerts, 1)
	assert.Contains(t, alerter.Alerts[0].Body, "verification attempts exhausted")
	assert.Contains(t, alerter.Alerts[0].Body, job.ID)
}

// Scenario 3: gap. StateTransition job requests blocks_to_settle=[50,51]
// but settlement reports last_settled=48. Process returns
// GapBetweenFirstAndLastBlock; status Failed; job is not retried.
func TestPipelineGapIsFatal(t *testing.T) {
	ctx := context.Background()
	settlement := settlementfake.New(48)
	alerter := alerterfake.New()

	registry := stages.NewRegistry(
		&stages.StateTransitionHandler{Settlement: settlement, MaxProcessAttemptsN: 1, MaxVerificationAttemptsN: 1, VerificationPollingDelayDur: time.Millisecond},
	)
	d := newTestDispatcher(t, registry, alerter)

	handler := registry[models.JobTypeStateTransition]
	job := handler.Create("50-51", models.Metadata{StateTransition: &models.StateTransitionMetadata{BlocksToSettle: []uint64{50, 51}}})
	require.NoError(t, d.Store.Create(ctx, job))
	require.NoError(t, d.enqueueProcess(ctx, job.ID, 0))

	runPipeline(t, d, 4)

	got, err := d.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 0, got.Metadata.Common.ProcessRetryAttemptNo, "a fatal gap must not consume a retry slot")
	assert.Contains(t, got.Metadata.Common.FailureReason, "gap")
}

// Scenario 4: partial settlement resume. blocks_to_settle=[10,11,12].
// Attempt 1 submits 10 OK, 11 fails; last_failed_block_no=11, status
// flips to retry. Attempt 2 begins at 11, skipping 10; attempt_tx_hashes
// for attempt 2 contains hashes for 11 and 12 only.
func TestPipelinePartialSettlementResume(t *testing.T) {
	ctx := context.Background()
	settlement := settlementfake.New(9)
	settlement.FailBlocks[11] = true
	alerter := alerterfake.New()

	registry := stages.NewRegistry(
		&stages.StateTransitionHandler{Settlement: settlement, MaxProcessAttemptsN: 3, MaxVerificationAttemptsN: 1, VerificationPollingDelayDur: time.Millisecond},
	)
	d := newTestDispatcher(t, registry, alerter)

	handler := registry[models.JobTypeStateTransition]
	job := handler.Create("10-12", models.Metadata{StateTransition: &models.StateTransitionMetadata{BlocksToSettle: []uint64{10, 11, 12}}})
	require.NoError(t, d.Store.Create(ctx, job))
	require.NoError(t, d.enqueueProcess(ctx, job.ID, 0))

	// First process attempt: submits 10 OK, fails at 11, re-enqueues itself.
	drain(t, d, QueueProcess, d.handleProcessMessage, 1)

	got, err := d.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Metadata.StateTransition.LastFailedBlockNo)
	assert.EqualValues(t, 11, *got.Metadata.StateTransition.LastFailedBlockNo)
	assert.Equal(t, models.StatusCreated, got.Status)
	assert.Equal(t, 1, got.Metadata.Common.ProcessRetryAttemptNo)

	// Unblock 11 and let the retried attempt resume from there.
	settlement.FailBlocks[11] = false
	time.Sleep(5 * time.Millisecond) // let the backoff-delayed re-enqueue become visible
	runPipeline(t, d, 4)

	got, err = d.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)

	attempt2Key := "2"
	joined, ok := got.Metadata.StateTransition.AttemptTxHashes[attempt2Key]
	require.True(t, ok, "attempt 2 must have recorded tx hashes")
	assert.Equal(t, 2, len(splitNonEmpty(joined)), "attempt 2 must cover exactly blocks 11 and 12")
}

func splitNonEmpty(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ',' {
			if cur != "" {
				out = append(out, cur)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// Scenario 5: duplicate trigger. Two concurrent Create calls for the same
// (type, internal_id) — exactly one succeeds, the other observes Duplicate
// and produces no second job.
func TestDuplicateCreateRaceYieldsOneJob(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	handler := &stages.OsRunHandler{MaxProcessAttemptsN: 2}

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			job := handler.Create("99", models.Metadata{OsRun: &models.OsRunMetadata{BlockNumber: 99}})
			results <- store.Create(ctx, job)
		}()
	}

	var dupCount, okCount int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			okCount++
			continue
		}
		var dup *orcherrors.Duplicate
		require.ErrorAs(t, err, &dup)
		dupCount++
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, dupCount)

	jobs, err := store.List(ctx, jobstore.ListFilter{JobType: models.JobTypeOsRun})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

// Scenario 6: optimistic-lock race. Two writers recording a verify outcome
// for the same job both read version=N; the first store update wins, the
// second gets ErrVersionConflict from the store, and the stored job keeps
// the winner's write at version N+1.
func TestOptimisticLockRaceOnVerify(t *testing.T) {
	ctx := context.Background()
	prover := proverfake.New()
	alerter := alerterfake.New()
	registry := stages.NewRegistry(
		&stages.ProvingHandler{Prover: prover, MaxProcessAttemptsN: 2, MaxVerificationAttemptsN: 300, VerificationPollingDelayDur: time.Millisecond},
	)
	d := newTestDispatcher(t, registry, alerter)

	handler := registry[models.JobTypeProofCreation]
	job := handler.Create("5", models.Metadata{Proving: &models.ProvingMetadata{BlockNumber: 5, CairoPiePath: "5/cairo_pie.zip"}})
	require.NoError(t, d.Store.Create(ctx, job))
	job.ExternalID = "T-race"
	job.Status = models.StatusPendingVerification
	require.NoError(t, d.Store.Update(ctx, job))
	require.Equal(t, int64(2), job.Version)

	first, err := d.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	second, err := d.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, first.Version, second.Version)

	first.Status = models.StatusCompleted
	require.NoError(t, d.Store.Update(ctx, first))
	assert.Equal(t, int64(3), first.Version)

	second.Status = models.StatusCompleted
	err = d.Store.Update(ctx, second)
	require.ErrorIs(t, err, orcherrors.ErrVersionConflict)

	final, err := d.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, final.Status)
	assert.Equal(t, int64(3), final.Version)
}

// osFakeClient is a minimal adapters.OsClient fake local to this test file:
// RunOs always returns all three artifact keys, including the program
// output, and GetOsFact always returns the configured fact.
type osFakeClient struct {
	fact string
}

func (c *osFakeClient) RunOs(_ context.Context, blockNumber uint64, _ bool) (string, string, string, error) {
	internalID := strconv.FormatUint(blockNumber, 10)
	return models.ArtifactKey(internalID, models.ArtifactCairoPie),
		models.ArtifactKey(internalID, models.ArtifactOsOutput),
		models.ArtifactKey(internalID, models.ArtifactProgramOutput),
		nil
}

func (c *osFakeClient) GetOsFact(_ context.Context, _ uint64) (string, error) {
	return c.fact, nil
}
