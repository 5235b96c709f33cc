package triggers

import (
	"context"
	"errors"
	"fmt"

	"github.com/joeycumines/go-microbatch"

	"github.com/madara-alliance/orchestrator-go/internal/common"
	"github.com/madara-alliance/orchestrator-go/internal/models"
	"github.com/madara-alliance/orchestrator-go/internal/orcherrors"
	"github.com/madara-alliance/orchestrator-go/internal/stages"
	"github.com/madara-alliance/orchestrator-go/internal/storage/jobstore"
)

// blockNumberRPC is the narrow capability OsRunTrigger needs from the
// Starknet RPC: the latest produced L2 block number.
type blockNumberRPC interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// OsRunTrigger enumerates every produced block not yet covered by an OsRun
// job and creates one for each (spec.md §4.C).
type OsRunTrigger struct {
	store      jobstore.Store
	handler    stages.Handler
	rpc        blockNumberRPC
	logger     *common.Logger
	startBlock uint64
	fullOutput bool
}

// NewOsRunTrigger constructs an OsRunTrigger. startBlock is the first block
// number to ever consider, used when no OsRun job yet exists.
func NewOsRunTrigger(store jobstore.Store, handler stages.Handler, rpc blockNumberRPC, logger *common.Logger, startBlock uint64, fullOutput bool) *OsRunTrigger {
	return &OsRunTrigger{store: store, handler: handler, rpc: rpc, logger: logger, startBlock: startBlock, fullOutput: fullOutput}
}

func (t *OsRunTrigger) Name() string { return "os_run_trigger" }

func (t *OsRunTrigger) Run(ctx context.Context) error {
	open, err := gateOpen(ctx, t.store, models.JobTypeOsRun)
	if err != nil {
		return err
	}
	if !open {
		if t.logger != nil {
			t.logger.Warn().Msg("os_run_trigger: gate closed, skipping")
		}
		return nil
	}

	latest, err := t.rpc.LatestBlockNumber(ctx)
	if err != nil {
		return orcherrors.OsError(fmt.Errorf("fetch latest block number: %w", err))
	}

	next := t.startBlock
	all, err := t.store.List(ctx, jobstore.ListFilter{JobType: models.JobTypeOsRun})
	if err != nil {
		return err
	}
	var highest uint64
	var found bool
	for _, j := range all {
		if j.Metadata.OsRun == nil {
			continue
		}
		if !found || j.Metadata.OsRun.BlockNumber > highest {
			highest = j.Metadata.OsRun.BlockNumber
			found = true
		}
	}
	if found {
		next = highest + 1
	}

	if next > latest {
		return nil
	}

	type block struct {
		number uint64
		err    error
	}

	batcher := microbatch.NewBatcher[*block](&microbatch.BatcherConfig{MaxSize: 25}, func(ctx context.Context, batch []*block) error {
		for _, b := range batch {
			internalID := fmt.Sprintf("%d", b.number)
			if _, err := t.store.GetByInternalID(ctx, models.JobTypeOsRun, internalID); err == nil {
				continue
			}
			job := t.handler.Create(internalID, models.Metadata{OsRun: &models.OsRunMetadata{BlockNumber: b.number, FullOutput: t.fullOutput}})
			if err := t.store.Create(ctx, job); err != nil {
				var dup *orcherrors.Duplicate
				if !errors.As(err, &dup) {
					b.err = err
				}
			}
		}
		return nil
	})
	defer batcher.Close()

	var results []*microbatch.JobResult[*block]
	for n := next; n <= latest; n++ {
		res, err := batcher.Submit(ctx, &block{number: n})
		if err != nil {
			return err
		}
		results = append(results, res)
	}
	for _, res := range results {
		if err := res.Wait(ctx); err != nil {
			return err
		}
		if res.Job.err != nil {
			return res.Job.err
		}
	}
	return nil
}
