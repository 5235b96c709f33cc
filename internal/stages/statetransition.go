package stages

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"context"

	"github.com/madara-alliance/orchestrator-go/internal/adapters"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
)

// StateTransitionHandler posts a contiguous range of settled blocks to the
// settlement contract, resuming from a prior partial failure (spec.md
// §4.B — the most complex stage).
type StateTransitionHandler struct {
	Settlement                  adapters.SettlementClient
	MaxProcessAttemptsN         int
	MaxVerificationAttemptsN    int
	VerificationPollingDelayDur time.Duration
}

func (h *StateTransitionHandler) JobType() models.JobType { return models.JobTypeStateTransition }

func (h *StateTransitionHandler) Create(internalID string, metadata models.Metadata) *models.Job {
	return &models.Job{
		InternalID: internalID,
		JobType:    models.JobTypeStateTransition,
		Status:     models.StatusCreated,
		Metadata:   metadata,
	}
}

// NewCreateInput validates blocksToSettle per spec.md §4.B: sorted, unique,
// non-empty, contiguous.
func NewCreateInput(blocksToSettle []uint64) error {
	if len(blocksToSettle) == 0 {
		return &orcherrors.InvalidInput{Reason: "blocks_to_settle must not be empty"}
	}
	sorted := append([]uint64(nil), blocksToSettle...)
	if !sort.SliceIsSorted(sorted, func(i, j int) bool { return sorted[i] < sorted[j] }) {
		return &orcherrors.InvalidInput{Reason: "blocks_to_settle must be sorted ascending"}
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return &orcherrors.InvalidInput{Reason: "blocks_to_settle must not contain duplicates"}
		}
		if sorted[i] != sorted[i-1]+1 {
			return &orcherrors.InvalidInput{Reason: "blocks_to_settle must be contiguous"}
		}
	}
	return nil
}

func (h *StateTransitionHandler) Process(ctx context.Context, job *models.Job) (string, error) {
	m := job.Metadata.StateTransition
	if m == nil {
		return "", &orcherrors.InvalidInput{Reason: "job metadata is not a StateTransition variant"}
	}
	if err := NewCreateInput(m.BlocksToSettle); err != nil {
		return "", err
	}

	lastSettled, err := h.Settlement.GetLastSettledBlock(ctx)
	if err != nil {
		return "", orcherrors.StateUpdateError(err)
	}
	firstBlock := m.BlocksToSettle[0]
	resumeFrom := firstBlock
	if m.LastFailedBlockNo != nil && *m.LastFailedBlockNo >= firstBlock {
		resumeFrom = *m.LastFailedBlockNo
	}
	if resumeFrom != lastSettled+1 {
		return "", orcherrors.ErrGapBetweenFirstAndLastBlock
	}

	attemptKey := strconv.Itoa(job.Metadata.Common.ProcessAttemptNo + 1)
	if m.AttemptTxHashes == nil {
		m.AttemptTxHashes = make(map[string]string)
	}
	var txHashes []string

	for _, block := range m.BlocksToSettle {
		if block < resumeFrom {
			continue
		}
		programOutputKey := m.ProgramOutputPaths[block]
		blobKey := m.BlobDataPaths[block]

		txHash, err := h.Settlement.UpdateState(ctx, []uint64{block}, m.OsOutputPaths, map[uint64]string{block: programOutputKey}, map[uint64]string{block: blobKey})
		if err != nil {
			failed := block
			m.LastFailedBlockNo = &failed
			m.AttemptTxHashes[attemptKey] = strings.Join(txHashes, ",")
			return "", orcherrors.StateUpdateError(fmt.Errorf("settle block %d: %w", block, err))
		}
		txHashes = append(txHashes, txHash)
		m.AttemptTxHashes[attemptKey] = strings.Join(txHashes, ",")
	}

	if len(txHashes) == 0 {
		return "", &orcherrors.InvalidInput{Reason: "no blocks remained to settle after resume"}
	}
	return txHashes[len(txHashes)-1], nil
}

func (h *StateTransitionHandler) Verify(ctx context.Context, job *models.Job) (VerifyResult, error) {
	m := job.Metadata.StateTransition
	if m == nil {
		return VerifyResult{}, &orcherrors.InvalidInput{Reason: "job metadata is not a StateTransition variant"}
	}

	// Verify runs immediately after a successful Process call, before
	// ProcessAttemptNo is incremented (that only happens on failure), so it
	// must use the same +1 key Process just wrote under.
	attemptKey := strconv.Itoa(job.Metadata.Common.ProcessAttemptNo + 1)
	joined, ok := m.AttemptTxHashes[attemptKey]
	if !ok || joined == "" {
		return VerifyResult{Outcome: VerifyPending}, nil
	}

	for _, txHash := range strings.Split(joined, ",") {
		confirmed, _, err := h.Settlement.TxStatus(ctx, txHash)
		if err != nil {
			return VerifyResult{}, orcherrors.StateUpdateError(err)
		}
		if !confirmed {
			return VerifyResult{Outcome: VerifyPending}, nil
		}
	}
	return VerifyResult{Outcome: VerifyVerified}, nil
}

func (h *StateTransitionHandler) MaxProcessAttempts() int { return h.MaxProcessAttemptsN }

func (h *StateTransitionHandler) MaxVerificationAttempts() int { return h.MaxVerificationAttemptsN }

func (h *StateTransitionHandler) VerificationPollingDelay() time.Duration {
	return h.VerificationPollingDelayDur
}
