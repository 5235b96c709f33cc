// Package adapters defines the capability-contract interfaces the
// dispatcher's stage handlers depend on, grounded on the teacher's
// internal/interfaces package (spec.md §4.F). Each has a pack-grounded
// reference implementation in a subpackage plus an in-memory fake for tests.
package adapters

import (
	"context"
	"io"
	"time"
)

// OsClient executes the Starknet OS run for a block and produces the
// artifacts a ProofCreation job later consumes.
type OsClient interface {
	// RunOs executes the OS program for blockNumber and returns the object
	// store keys of the cairo PIE, OS output, and (if fullOutput) program
	// output artifacts it produced.
	RunOs(ctx context.Context, blockNumber uint64, fullOutput bool) (cairoPieKey, osOutputKey, programOutputKey string, err error)

	// GetOsFact returns the on-chain fact hash for a completed OS run, or
	// an empty string if not yet available.
	GetOsFact(ctx context.Context, blockNumber uint64) (string, error)
}

// ProverClient submits cairo PIEs for proving and polls proof status.
type ProverClient interface {
	// SubmitProof submits cairoPieKey for proving and returns an
	// externally-tracked job id.
	SubmitProof(ctx context.Context, cairoPieKey string, crossVerify bool) (externalID string, err error)

	// ProofStatus reports whether externalID has finished, and on success
	// the object store key of the generated proof.
	ProofStatus(ctx context.Context, externalID string) (done bool, proofKey string, err error)
}

// DAClient publishes state-diff blobs to a data-availability layer.
type DAClient interface {
	// PublishBlob submits the blob at blobDataKey and returns a tx hash
	// and the EIP-4844 versioned hash of the blob's KZG commitment.
	PublishBlob(ctx context.Context, blobDataKey string) (txHash, versionedHash string, err error)

	// TxStatus reports whether a previously submitted transaction has
	// been included and confirmed.
	TxStatus(ctx context.Context, txHash string) (confirmed bool, err error)
}

// SettlementClient posts state transitions to the settlement layer.
type SettlementClient interface {
	// UpdateState submits a state transition covering blockNumbers (which
	// must be a contiguous ascending run) and returns the tx hash of that
	// submission. The StateTransition handler calls it once per block, and
	// a resumed attempt skips the blocks that an earlier attempt settled.
	UpdateState(ctx context.Context, blockNumbers []uint64, snosOutputKeys, programOutputKeys, blobKeys map[uint64]string) (txHash string, err error)

	// TxStatus reports whether a previously submitted settlement
	// transaction has been included and confirmed, and the last settled
	// block number once confirmed.
	TxStatus(ctx context.Context, txHash string) (confirmed bool, lastSettledBlock uint64, err error)

	// GetLastSettledBlock returns the most recent block number the
	// settlement layer has recorded as finalized.
	GetLastSettledBlock(ctx context.Context) (uint64, error)
}

// ObjectStore persists pipeline artifacts (cairo PIEs, proofs, blobs).
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// QueueMessage is one delivered envelope from a Queue.
type QueueMessage struct {
	Body          string
	ReceiptHandle string
}

// Queue is the dispatcher's transport for process/verify/failure/trigger
// work items, grounded on the teacher's channel-backed job queue
// generalized to a provider interface (in-process heap vs SQS).
type Queue interface {
	// Send enqueues body, visible immediately.
	Send(ctx context.Context, queueName, body string) error

	// SendDelayed enqueues body, not visible until delay has elapsed.
	SendDelayed(ctx context.Context, queueName, body string, delay time.Duration) error

	// Receive blocks up to waitTime for at least one message, or returns
	// an empty slice on timeout. Received messages are invisible to other
	// receivers until visibilityTimeout elapses or Ack/Nack is called.
	Receive(ctx context.Context, queueName string, waitTime time.Duration) ([]QueueMessage, error)

	// Ack permanently removes a delivered message.
	Ack(ctx context.Context, queueName string, msg QueueMessage) error

	// Nack makes a delivered message visible again immediately, for
	// redelivery on the next Receive.
	Nack(ctx context.Context, queueName string, msg QueueMessage) error
}

// Alerter notifies an external channel of fatal job failures (spec.md §4,
// exhausted-retries path).
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// RateLimiter gates outbound calls to an external dependency by category,
// grounded on the teacher's per-client x/time/rate limiter generalized to
// multiple named categories.
type RateLimiter interface {
	// Wait blocks until a call in category is permitted, or ctx is done.
	Wait(ctx context.Context, category string) error
}
