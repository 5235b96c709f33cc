// Package orcherrors defines the type-distinguishable error kinds described
// in spec.md §7. Stage handlers and the dispatcher use errors.As against
// these types to classify a failure as retryable or fatal.
package orcherrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra data.
var (
	// ErrVersionConflict is returned by the job store when an update's base
	// version does not match the stored version. It never counts as a
	// retry attempt and is never surfaced as a user-visible failure — the
	// dispatcher's handlers treat it as a lost race: the attempt stops and
	// the message is acked, not nacked, so it is not redelivered.
	ErrVersionConflict = errors.New("job store: version conflict")

	// ErrGapBetweenFirstAndLastBlock is fatal and non-retryable: a
	// StateTransition job's first block does not equal last_settled+1.
	ErrGapBetweenFirstAndLastBlock = errors.New("state transition: gap between first block to settle and last settled block")
)

// Duplicate is returned by the job store's create operation when the
// (job_type, internal_id) pair already exists.
type Duplicate struct {
	InternalID string
	Type       string
}

func (e *Duplicate) Error() string {
	return fmt.Sprintf("job store: duplicate job type=%s internal_id=%s", e.Type, e.InternalID)
}

// InvalidStatus is returned when a dispatcher handler loads a job whose
// current status forbids the attempted transition.
type InvalidStatus struct {
	ID     string
	Status string
}

func (e *InvalidStatus) Error() string {
	return fmt.Sprintf("job %s: invalid status for this transition: %s", e.ID, e.Status)
}

// NotFound is returned when a queue envelope references a job id the store
// does not know about.
type NotFound struct {
	ID string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("job %s: not found", e.ID)
}

// KeyOutOfBounds is returned when a metadata attempt counter would overflow
// its configured bound in a way that signals a configuration error rather
// than a normal retry exhaustion.
type KeyOutOfBounds struct {
	Key string
}

func (e *KeyOutOfBounds) Error() string {
	return fmt.Sprintf("metadata counter out of bounds: %s", e.Key)
}

// InvalidInput is returned by a stage handler's create when given metadata
// it cannot act on (e.g. an unsorted or empty blocks_to_settle list).
type InvalidInput struct {
	Reason string
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// stageError is the shared shape behind DaError/ProvingError/StateUpdateError/OsError.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return fmt.Sprintf("%s: %v", e.stage, e.err) }
func (e *stageError) Unwrap() error { return e.err }

// DaError wraps a failure from the data-availability adapter.
func DaError(err error) error { return &stageError{stage: "da", err: err} }

// ProvingError wraps a failure from the prover adapter.
func ProvingError(err error) error { return &stageError{stage: "proving", err: err} }

// StateUpdateError wraps a failure from the settlement adapter.
func StateUpdateError(err error) error { return &stageError{stage: "state_update", err: err} }

// OsError wraps a failure from OS-run execution or the Starknet RPC.
func OsError(err error) error { return &stageError{stage: "os", err: err} }

// adapterError is the shared shape behind QueueError/StorageError/DatabaseError.
type adapterError struct {
	category string
	err      error
}

func (e *adapterError) Error() string { return fmt.Sprintf("%s: %v", e.category, e.err) }
func (e *adapterError) Unwrap() error { return e.err }

// QueueError wraps a failure from the queue provider.
func QueueError(err error) error { return &adapterError{category: "queue", err: err} }

// StorageError wraps a failure from the object store.
func StorageError(err error) error { return &adapterError{category: "storage", err: err} }

// DatabaseError wraps a failure from the job store's backing database.
func DatabaseError(err error) error { return &adapterError{category: "database", err: err} }

// Retryable reports whether err represents a condition the dispatcher should
// count as an attempt and retry, as opposed to an immediately-fatal one.
// VersionConflict is handled separately by callers (it never counts as an
// attempt) and is intentionally excluded here.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var dup *Duplicate
	var invStatus *InvalidStatus
	var notFound *NotFound
	var keyOOB *KeyOutOfBounds
	var invInput *InvalidInput
	switch {
	case errors.As(err, &dup):
		return false
	case errors.As(err, &invStatus):
		return false
	case errors.As(err, &notFound):
		return false
	case errors.As(err, &keyOOB):
		return false
	case errors.As(err, &invInput):
		return false
	case errors.Is(err, ErrGapBetweenFirstAndLastBlock):
		return false
	case errors.Is(err, ErrVersionConflict):
		return false
	default:
		return true
	}
}
