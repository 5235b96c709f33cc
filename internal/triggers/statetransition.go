package triggers

import (
	"context"
	"fmt"
	"sort"

	"github.com/madara-alliance/orchestrator-go/internal/common"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/stages"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

// StateTransitionTrigger finds DataSubmission jobs Completed without a
// StateTransition successor and, if non-empty, creates a single
// StateTransition job whose internal_id is the first block in the
// contiguous range and whose blocks_to_settle is the joined list
// (spec.md §4.C).
type StateTransitionTrigger struct {
	store   jobstore.Store
	handler stages.Handler
	logger  *common.Logger
}

// NewStateTransitionTrigger constructs a StateTransitionTrigger.
func NewStateTransitionTrigger(store jobstore.Store, handler stages.Handler, logger *common.Logger) *StateTransitionTrigger {
	return &StateTransitionTrigger{store: store, handler: handler, logger: logger}
}

func (t *StateTransitionTrigger) Name() string { return "state_transition_trigger" }

func (t *StateTransitionTrigger) Run(ctx context.Context) error {
	open, err := gateOpen(ctx, t.store, models.JobTypeStateTransition)
	if err != nil {
		return err
	}
	if !open {
		if t.logger != nil {
			t.logger.Warn().Msg("state_transition_trigger: gate closed, skipping")
		}
		return nil
	}

	predecessors, err := t.store.GetWithoutSuccessor(ctx, models.JobTypeDataSubmission, []models.JobStatus{models.StatusCompleted}, models.JobTypeStateTransition)
	if err != nil {
		return err
	}
	if len(predecessors) == 0 {
		return nil
	}

	blocks := make([]uint64, 0, len(predecessors))
	blobDataPaths := make(map[uint64]string, len(predecessors))
	for _, p := range predecessors {
		m := p.Metadata.DataSubmission
		if m == nil {
			continue
		}
		blocks = append(blocks, m.BlockNumber)
		blobDataPaths[m.BlockNumber] = m.BlobDataPath
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	internalID := fmt.Sprintf("%d", blocks[0])
	if len(blocks) > 1 {
		internalID = fmt.Sprintf("%d-%d", blocks[0], blocks[len(blocks)-1])
	}

	if _, err := t.store.GetByInternalID(ctx, models.JobTypeStateTransition, internalID); err == nil {
		return nil
	}

	job := t.handler.Create(internalID, models.Metadata{StateTransition: &models.StateTransitionMetadata{
		BlocksToSettle: blocks,
		BlobDataPaths:  blobDataPaths,
	}})
	return t.store.Create(ctx, job)
}
