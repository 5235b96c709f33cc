// Package stages implements the per-job-type create/process/verify contract
// (spec.md §4.B), one file per stage, registered into a map the dispatcher
// consults by JobType — no package-level registry variable, per the design
// note against global mutable state.
package stages

import (
	"context"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/models"
)

// VerifyOutcome is the result of a stage's verify call.
type VerifyOutcome int

const (
	VerifyPending VerifyOutcome = iota
	VerifyVerified
	VerifyRejected
)

// VerifyResult carries a VerifyOutcome plus, for Rejected, the reason.
type VerifyResult struct {
	Outcome VerifyOutcome
	Reason  string
}

// Handler is the stage-agnostic contract every job type implements.
type Handler interface {
	// JobType identifies which job type this handler owns.
	JobType() models.JobType

	// Create constructs a Created job with the given internal id and
	// metadata. Pure; no I/O.
	Create(internalID string, metadata models.Metadata) *models.Job

	// Process performs the stage's side effect. Called only when job.Status
	// is LockedForProcessing. Returns the external id to store.
	Process(ctx context.Context, job *models.Job) (externalID string, err error)

	// Verify inspects the external system using job.ExternalID.
	Verify(ctx context.Context, job *models.Job) (VerifyResult, error)

	// MaxProcessAttempts bounds process retries.
	MaxProcessAttempts() int

	// MaxVerificationAttempts bounds verify polls.
	MaxVerificationAttempts() int

	// VerificationPollingDelay is the delay before re-enqueuing a verify message.
	VerificationPollingDelay() time.Duration
}

// Registry maps JobType to its Handler, built once at startup from Config
// (spec.md §9, "Global singletons" — no package-level var).
type Registry map[models.JobType]Handler

// NewRegistry builds a Registry from the given handlers, keyed by their own JobType.
func NewRegistry(handlers ...Handler) Registry {
	r := make(Registry, len(handlers))
	for _, h := range handlers {
		r[h.JobType()] = h
	}
	return r
}
