package stages

import (
	"context"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// ProofRegistrationHandler posts a produced proof to a settlement-chain fact
// registry; its contract mirrors DataSubmission but targets the settlement
// client instead of the DA layer (spec.md §4.B).
type ProofRegistrationHandler struct {
	Settlement                  adapters.SettlementClient
	MaxProcessAttemptsN          int
	MaxVerificationAttemptsN     int
	VerificationPollingDelayDur  time.Duration
}

func (h *ProofRegistrationHandler) JobType() models.JobType { return models.JobTypeProofRegistration }

func (h *ProofRegistrationHandler) Create(internalID string, metadata models.Metadata) *models.Job {
	return &models.Job{
		InternalID: internalID,
		JobType:    models.JobTypeProofRegistration,
		Status:     models.StatusCreated,
		Metadata:   metadata,
	}
}

func (h *ProofRegistrationHandler) Process(ctx context.Context, job *models.Job) (string, error) {
	m := job.Metadata.ProofRegistration
	if m == nil {
		return "", &orcherrors.InvalidInput{Reason: "job metadata is not a ProofRegistration variant"}
	}
	blockNumbers := []uint64{m.BlockNumber}
	txHash, err := h.Settlement.UpdateState(ctx, blockNumbers, nil, nil, map[uint64]string{m.BlockNumber: m.BlobDataPath})
	if err != nil {
		return "", orcherrors.StateUpdateError(err)
	}
	m.TxHash = txHash
	return txHash, nil
}

func (h *ProofRegistrationHandler) Verify(ctx context.Context, job *models.Job) (VerifyResult, error) {
	confirmed, _, err := h.Settlement.TxStatus(ctx, job.ExternalID)
	if err != nil {
		return VerifyResult{}, orcherrors.StateUpdateError(err)
	}
	if !confirmed {
		return VerifyResult{Outcome: VerifyPending}, nil
	}
	return VerifyResult{Outcome: VerifyVerified}, nil
}

func (h *ProofRegistrationHandler) MaxProcessAttempts() int { return h.MaxProcessAttemptsN }

func (h *ProofRegistrationHandler) MaxVerificationAttempts() int { return h.MaxVerificationAttemptsN }

func (h *ProofRegistrationHandler) VerificationPollingDelay() time.Duration {
	return h.VerificationPollingDelayDur
}
