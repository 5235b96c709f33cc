package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

func (d *Dispatcher) handleProcessMessage(ctx context.Context, body string) error {
	env, err := decodeJobEnvelope(body)
	if err != nil {
		// Unrecoverable decode error: log and ack to avoid a poison loop
		// (spec.md §4.D consumption loop).
		if d.Logger != nil {
			d.Logger.Error().Msgf("dispatch: decode process envelope: %v", err)
		}
		return nil
	}

	job, err := d.Store.Get(ctx, env.ID)
	if err != nil {
		var notFound *orcherrors.NotFound
		if errors.As(err, &notFound) {
			if d.Logger != nil {
				d.Logger.Warn().Msgf("dispatch: process message for unknown job %s, acking", env.ID)
			}
			return nil
		}
		return err
	}

	if job.Status != models.StatusCreated {
		return &orcherrors.InvalidStatus{ID: job.ID, Status: string(job.Status)}
	}

	handler, ok := d.Registry[job.JobType]
	if !ok {
		return fmt.Errorf("dispatch: no handler registered for job type %s", job.JobType)
	}

	job.Status = models.StatusLockedForProcessing
	if err := d.Store.Update(ctx, job); err != nil {
		if errors.Is(err, orcherrors.ErrVersionConflict) {
			// Another worker won the race; this attempt aborts cleanly.
			return nil
		}
		return err
	}

	release := func() {}
	if job.JobType == models.JobTypeOsRun {
		r, err := d.acquireOsSemaphore(ctx)
		if err != nil {
			return err
		}
		release = r
	}
	externalID, procErr := handler.Process(ctx, job)
	release()

	if procErr != nil {
		return d.handleProcessFailure(ctx, job, handler.MaxProcessAttempts(), procErr)
	}

	job.ExternalID = externalID
	job.Status = models.StatusPendingVerification
	if err := d.Store.Update(ctx, job); err != nil {
		if errors.Is(err, orcherrors.ErrVersionConflict) {
			return nil
		}
		return err
	}

	return d.enqueueVerify(ctx, job.ID, handler.VerificationPollingDelay())
}

func (d *Dispatcher) handleProcessFailure(ctx context.Context, job *models.Job, maxAttempts int, procErr error) error {
	job.Metadata.Common.ProcessAttemptNo++

	if job.Metadata.Common.ProcessAttemptNo >= maxAttempts || !orcherrors.Retryable(procErr) {
		job.Metadata.Common.FailureReason = procErr.Error()
		job.Status = models.StatusFailed
		if err := d.Store.Update(ctx, job); err != nil {
			if errors.Is(err, orcherrors.ErrVersionConflict) {
				return nil
			}
			return err
		}
		return d.enqueueFailure(ctx, job.ID)
	}

	job.Metadata.Common.ProcessRetryAttemptNo++
	job.Status = models.StatusCreated
	if err := d.Store.Update(ctx, job); err != nil {
		if errors.Is(err, orcherrors.ErrVersionConflict) {
			return nil
		}
		return err
	}

	delay := backoff(d.RetryBaseDelay, d.RetryMaxDelay, job.Metadata.Common.ProcessRetryAttemptNo)
	return d.enqueueProcess(ctx, job.ID, delay)
}
