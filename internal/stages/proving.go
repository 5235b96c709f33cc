package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// ProvingHandler submits cairo PIEs to the external prover and polls for a
// proof (spec.md §4.B).
type ProvingHandler struct {
	Prover                      adapters.ProverClient
	MaxProcessAttemptsN         int
	MaxVerificationAttemptsN    int
	VerificationPollingDelayDur time.Duration
}

func (h *ProvingHandler) JobType() models.JobType { return models.JobTypeProofCreation }

func (h *ProvingHandler) Create(internalID string, metadata models.Metadata) *models.Job {
	return &models.Job{
		InternalID: internalID,
		JobType:    models.JobTypeProofCreation,
		Status:     models.StatusCreated,
		Metadata:   metadata,
	}
}

func (h *ProvingHandler) Process(ctx context.Context, job *models.Job) (string, error) {
	m := job.Metadata.Proving
	if m == nil {
		return "", &orcherrors.InvalidInput{Reason: "job metadata is not a Proving variant"}
	}
	if m.CairoPiePath == "" {
		return "", &orcherrors.InvalidInput{Reason: "proving job is missing cairo_pie_path"}
	}

	externalID, err := h.Prover.SubmitProof(ctx, m.CairoPiePath, m.CrossVerify)
	if err != nil {
		return "", orcherrors.ProvingError(err)
	}
	return externalID, nil
}

func (h *ProvingHandler) Verify(ctx context.Context, job *models.Job) (VerifyResult, error) {
	m := job.Metadata.Proving
	if m == nil {
		return VerifyResult{}, &orcherrors.InvalidInput{Reason: "job metadata is not a Proving variant"}
	}

	done, proofKey, err := h.Prover.ProofStatus(ctx, job.ExternalID)
	if err != nil {
		return VerifyResult{}, orcherrors.ProvingError(err)
	}
	if !done {
		return VerifyResult{Outcome: VerifyPending}, nil
	}
	if proofKey == "" {
		return VerifyResult{Outcome: VerifyRejected, Reason: fmt.Sprintf("prover task %s failed", job.ExternalID)}, nil
	}
	if m.DownloadProof {
		m.ProofPath = proofKey
	}
	return VerifyResult{Outcome: VerifyVerified}, nil
}

func (h *ProvingHandler) MaxProcessAttempts() int { return h.MaxProcessAttemptsN }

func (h *ProvingHandler) MaxVerificationAttempts() int { return h.MaxVerificationAttemptsN }

func (h *ProvingHandler) VerificationPollingDelay() time.Duration { return h.VerificationPollingDelayDur }
