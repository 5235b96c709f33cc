package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/stages"
)

func (d *Dispatcher) handleVerifyMessage(ctx context.Context, body string) error {
	env, err := decodeJobEnvelope(body)
	if err != nil {
		if d.Logger != nil {
			d.Logger.Error().Msgf("dispatch: decode verify envelope: %v", err)
		}
		return nil
	}

	job, err := d.Store.Get(ctx, env.ID)
	if err != nil {
		var notFound *orcherrors.NotFound
		if errors.As(err, &notFound) {
			if d.Logger != nil {
				d.Logger.Warn().Msgf("dispatch: verify message for unknown job %s, acking", env.ID)
			}
			return nil
		}
		return err
	}

	if job.Status != models.StatusPendingVerification {
		return &orcherrors.InvalidStatus{ID: job.ID, Status: string(job.Status)}
	}

	handler, ok := d.Registry[job.JobType]
	if !ok {
		return fmt.Errorf("dispatch: no handler registered for job type %s", job.JobType)
	}

	result, verifyErr := handler.Verify(ctx, job)
	if verifyErr != nil {
		// A transient adapter error while polling counts as one pending
		// verification attempt, same as an explicit Pending result.
		return d.handleVerifyPending(ctx, job, handler.MaxVerificationAttempts(), handler.VerificationPollingDelay())
	}

	switch result.Outcome {
	case stages.VerifyVerified:
		job.Status = models.StatusCompleted
		if err := d.Store.Update(ctx, job); err != nil {
			if errors.Is(err, orcherrors.ErrVersionConflict) {
				return nil
			}
			return err
		}
		return nil

	case stages.VerifyRejected:
		job.Metadata.Common.FailureReason = result.Reason
		job.Status = models.StatusVerificationFailed
		if err := d.Store.Update(ctx, job); err != nil {
			if errors.Is(err, orcherrors.ErrVersionConflict) {
				return nil
			}
			return err
		}
		return d.enqueueFailure(ctx, job.ID)

	default: // stages.VerifyPending
		return d.handleVerifyPending(ctx, job, handler.MaxVerificationAttempts(), handler.VerificationPollingDelay())
	}
}

// handleVerifyPending increments the verification attempt counter and
// either re-enqueues a verify message after pollDelay, or — once
// maxAttempts is reached — transitions the job to VerificationTimeout
// (spec.md §4.D, "not VerificationFailed").
func (d *Dispatcher) handleVerifyPending(ctx context.Context, job *models.Job, maxAttempts int, pollDelay time.Duration) error {
	job.Metadata.Common.VerificationAttemptNo++

	if job.Metadata.Common.VerificationAttemptNo >= maxAttempts {
		job.Status = models.StatusVerificationTimeout
		if err := d.Store.Update(ctx, job); err != nil {
			if errors.Is(err, orcherrors.ErrVersionConflict) {
				return nil
			}
			return err
		}
		return d.enqueueFailure(ctx, job.ID)
	}

	if err := d.Store.Update(ctx, job); err != nil {
		if errors.Is(err, orcherrors.ErrVersionConflict) {
			return nil
		}
		return err
	}

	return d.enqueueVerify(ctx, job.ID, pollDelay)
}
