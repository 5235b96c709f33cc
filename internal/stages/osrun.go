package stages

import (
	"context"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// OsRunHandler executes the Starknet OS trace for one block (spec.md §4.B).
type OsRunHandler struct {
	Os                  adapters.OsClient
	MaxProcessAttemptsN int
}

func (h *OsRunHandler) JobType() models.JobType { return models.JobTypeOsRun }

func (h *OsRunHandler) Create(internalID string, metadata models.Metadata) *models.Job {
	return &models.Job{
		InternalID: internalID,
		JobType:    models.JobTypeOsRun,
		Status:     models.StatusCreated,
		Metadata:   metadata,
	}
}

func (h *OsRunHandler) Process(ctx context.Context, job *models.Job) (string, error) {
	m := job.Metadata.OsRun
	if m == nil {
		return "", &orcherrors.InvalidInput{Reason: "job metadata is not an OsRun variant"}
	}

	cairoPieKey, osOutputKey, programOutputKey, err := h.Os.RunOs(ctx, m.BlockNumber, m.FullOutput)
	if err != nil {
		return "", orcherrors.OsError(err)
	}
	m.CairoPiePath = cairoPieKey
	m.OsOutputPath = osOutputKey
	m.ProgramOutputPath = programOutputKey

	fact, err := h.Os.GetOsFact(ctx, m.BlockNumber)
	if err != nil {
		return "", orcherrors.OsError(err)
	}
	m.OsFact = fact

	return "", nil
}

// Verify is always synchronous Verified: OsRun has no external polling step.
func (h *OsRunHandler) Verify(context.Context, *models.Job) (VerifyResult, error) {
	return VerifyResult{Outcome: VerifyVerified}, nil
}

func (h *OsRunHandler) MaxProcessAttempts() int { return h.MaxProcessAttemptsN }

func (h *OsRunHandler) MaxVerificationAttempts() int { return 1 }

func (h *OsRunHandler) VerificationPollingDelay() time.Duration { return 0 }
