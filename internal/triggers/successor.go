package triggers

import (
	"context"
	"errors"

	"github.com/madara-alliance/orchestrator-go/internal/common"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/stages"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

// successorTrigger is the shared shape of ProvingTrigger and
// DataSubmissionTrigger: select predecessor-type jobs Completed without a
// successor, and create one successor per predecessor (spec.md §4.C).
type successorTrigger struct {
	name            string
	store           jobstore.Store
	handler         stages.Handler
	predecessorType models.JobType
	successorType   models.JobType
	buildMetadata   func(predecessor *models.Job) models.Metadata
	logger          *common.Logger
}

func (t *successorTrigger) Name() string { return t.name }

func (t *successorTrigger) Run(ctx context.Context) error {
	open, err := gateOpen(ctx, t.store, t.successorType)
	if err != nil {
		return err
	}
	if !open {
		if t.logger != nil {
			t.logger.Warn().Msgf("%s: gate closed, skipping", t.name)
		}
		return nil
	}

	predecessors, err := t.store.GetWithoutSuccessor(ctx, t.predecessorType, []models.JobStatus{models.StatusCompleted}, t.successorType)
	if err != nil {
		return err
	}

	for _, predecessor := range predecessors {
		job := t.handler.Create(predecessor.InternalID, t.buildMetadata(predecessor))
		if err := t.store.Create(ctx, job); err != nil {
			var dup *orcherrors.Duplicate
			if errors.As(err, &dup) {
				if t.logger != nil {
					t.logger.Info().Msgf("%s: duplicate successor for %s, skipping", t.name, predecessor.InternalID)
				}
				continue
			}
			return err
		}
	}
	return nil
}

// NewProvingTrigger selects OsRun jobs Completed without a ProofCreation
// successor.
func NewProvingTrigger(store jobstore.Store, handler stages.Handler, logger *common.Logger, crossVerify, downloadProof bool) Trigger {
	return &successorTrigger{
		name:            "proving_trigger",
		store:           store,
		handler:         handler,
		predecessorType: models.JobTypeOsRun,
		successorType:   models.JobTypeProofCreation,
		logger:          logger,
		buildMetadata: func(predecessor *models.Job) models.Metadata {
			return models.Metadata{Proving: &models.ProvingMetadata{
				BlockNumber:   predecessor.Metadata.OsRun.BlockNumber,
				CairoPiePath:  predecessor.Metadata.OsRun.CairoPiePath,
				OsFact:        predecessor.Metadata.OsRun.OsFact,
				CrossVerify:   crossVerify,
				DownloadProof: downloadProof,
			}}
		},
	}
}

// NewDataSubmissionTrigger selects ProofCreation jobs Completed without a
// DataSubmission successor.
func NewDataSubmissionTrigger(store jobstore.Store, handler stages.Handler, logger *common.Logger) Trigger {
	return &successorTrigger{
		name:            "data_submission_trigger",
		store:           store,
		handler:         handler,
		predecessorType: models.JobTypeProofCreation,
		successorType:   models.JobTypeDataSubmission,
		logger:          logger,
		buildMetadata: func(predecessor *models.Job) models.Metadata {
			return models.Metadata{DataSubmission: &models.DataSubmissionMetadata{
				BlockNumber: predecessor.Metadata.Proving.BlockNumber,
			}}
		},
	}
}

// NewProofRegistrationTrigger selects ProofCreation jobs Completed without a
// ProofRegistration successor.
func NewProofRegistrationTrigger(store jobstore.Store, handler stages.Handler, logger *common.Logger) Trigger {
	return &successorTrigger{
		name:            "proof_registration_trigger",
		store:           store,
		handler:         handler,
		predecessorType: models.JobTypeProofCreation,
		successorType:   models.JobTypeProofRegistration,
		logger:          logger,
		buildMetadata: func(predecessor *models.Job) models.Metadata {
			return models.Metadata{ProofRegistration: &models.DataSubmissionMetadata{
				BlockNumber:  predecessor.Metadata.Proving.BlockNumber,
				BlobDataPath: predecessor.Metadata.Proving.ProofPath,
			}}
		},
	}
}
