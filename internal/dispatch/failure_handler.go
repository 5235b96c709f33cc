package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// handleFailureMessage emits an alert for a job that exhausted retries. It
// does not mutate the job (spec.md §4.D, "Failure handler").
func (d *Dispatcher) handleFailureMessage(ctx context.Context, body string) error {
	env, err := decodeJobEnvelope(body)
	if err != nil {
		if d.Logger != nil {
			d.Logger.Error().Msgf("dispatch: decode failure envelope: %v", err)
		}
		return nil
	}

	job, err := d.Store.Get(ctx, env.ID)
	if err != nil {
		var notFound *orcherrors.NotFound
		if errors.As(err, &notFound) {
			if d.Logger != nil {
				d.Logger.Warn().Msgf("dispatch: failure message for unknown job %s, acking", env.ID)
			}
			return nil
		}
		return err
	}

	reason := job.Metadata.Common.FailureReason
	if reason == "" {
		reason = "verification attempts exhausted"
	}

	subject := fmt.Sprintf("job %s failed", job.ID)
	msg := fmt.Sprintf("job_id=%s job_type=%s stage=%s status=%s failure_reason=%q", job.ID, job.JobType, job.JobType, job.Status, reason)

	if d.Alerter == nil {
		return nil
	}
	return d.Alerter.Alert(ctx, subject, msg)
}
