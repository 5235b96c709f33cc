// Package triggers implements the cron-driven discovery loops that scan the
// job store for predecessor jobs missing a successor and enqueue the next
// stage (spec.md §4.C), grounded on the teacher's watchLoop ticker pattern.
package triggers

import (
	"context"

	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

// Trigger discovers and enqueues the next batch of successor jobs for one
// stage transition.
type Trigger interface {
	// Name identifies the trigger for logging.
	Name() string

	// Run performs one discovery pass.
	Run(ctx context.Context) error
}

// gateOpen reports whether a trigger may run: per spec.md §4.C, a stage's
// trigger is disabled while any job of successorType sits in
// VerificationFailed, since that indicates a systemic problem that bulk
// enqueuing more work would only compound.
func gateOpen(ctx context.Context, store jobstore.Store, successorType models.JobType) (bool, error) {
	counts, err := store.CountByStatus(ctx, successorType, []models.JobStatus{models.StatusVerificationFailed})
	if err != nil {
		return false, err
	}
	return counts[models.StatusVerificationFailed] == 0, nil
}
