package stages

import (
	"context"
	"time"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// DataSubmissionHandler publishes a block's state diff blob to the DA layer
// (spec.md §4.B).
type DataSubmissionHandler struct {
	DA                          adapters.DAClient
	MaxProcessAttemptsN         int
	MaxVerificationAttemptsN    int
	VerificationPollingDelayDur time.Duration
}

func (h *DataSubmissionHandler) JobType() models.JobType { return models.JobTypeDataSubmission }

func (h *DataSubmissionHandler) Create(internalID string, metadata models.Metadata) *models.Job {
	return &models.Job{
		InternalID: internalID,
		JobType:    models.JobTypeDataSubmission,
		Status:     models.StatusCreated,
		Metadata:   metadata,
	}
}

func (h *DataSubmissionHandler) Process(ctx context.Context, job *models.Job) (string, error) {
	m := job.Metadata.DataSubmission
	if m == nil {
		return "", &orcherrors.InvalidInput{Reason: "job metadata is not a DataSubmission variant"}
	}
	if m.BlobDataPath == "" {
		return "", &orcherrors.InvalidInput{Reason: "data submission job is missing blob_data_path"}
	}

	txHash, versionedHash, err := h.DA.PublishBlob(ctx, m.BlobDataPath)
	if err != nil {
		return "", orcherrors.DaError(err)
	}
	m.TxHash = txHash
	m.BlobVersionedHash = versionedHash
	return txHash, nil
}

func (h *DataSubmissionHandler) Verify(ctx context.Context, job *models.Job) (VerifyResult, error) {
	confirmed, err := h.DA.TxStatus(ctx, job.ExternalID)
	if err != nil {
		return VerifyResult{}, orcherrors.DaError(err)
	}
	if !confirmed {
		return VerifyResult{Outcome: VerifyPending}, nil
	}
	return VerifyResult{Outcome: VerifyVerified}, nil
}

func (h *DataSubmissionHandler) MaxProcessAttempts() int { return h.MaxProcessAttemptsN }

func (h *DataSubmissionHandler) MaxVerificationAttempts() int { return h.MaxVerificationAttemptsN }

func (h *DataSubmissionHandler) VerificationPollingDelay() time.Duration {
	return h.VerificationPollingDelayDur
}
