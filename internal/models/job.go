// Package models defines the persistent job record and its typed metadata.
package models

import "time"

// JobType identifies which stage handler owns a job.
type JobType string

const (
	JobTypeOsRun             JobType = "OsRun"
	JobTypeProofCreation     JobType = "ProofCreation"
	JobTypeProofRegistration JobType = "ProofRegistration"
	JobTypeDataSubmission    JobType = "DataSubmission"
	JobTypeStateTransition   JobType = "StateTransition"
)

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeOsRun, JobTypeProofCreation, JobTypeProofRegistration, JobTypeDataSubmission, JobTypeStateTransition:
		return true
	default:
		return false
	}
}

// JobStatus is the job lifecycle state, per the status state machine in spec.md §3.
type JobStatus string

const (
	StatusCreated             JobStatus = "Created"
	StatusLockedForProcessing JobStatus = "LockedForProcessing"
	StatusPendingVerification JobStatus = "PendingVerification"
	StatusCompleted           JobStatus = "Completed"
	StatusVerificationTimeout JobStatus = "VerificationTimeout"
	StatusVerificationFailed  JobStatus = "VerificationFailed"
	StatusFailed              JobStatus = "Failed"
)

// Terminal reports whether no further mutation of a job in this status is allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RetryEligible reports whether a job in this status may be reset to Created
// by the bounded retry policy (spec.md §4.E).
func (s JobStatus) RetryEligible() bool {
	return s == StatusVerificationTimeout || s == StatusVerificationFailed
}

// Job is the primary persistent entity driven through the pipeline.
type Job struct {
	ID         string    `json:"id"`
	InternalID string    `json:"internal_id"`
	JobType    JobType   `json:"job_type"`
	Status     JobStatus `json:"status"`
	ExternalID string    `json:"external_id,omitempty"`
	Metadata   Metadata  `json:"metadata"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a deep-enough copy for safe mutation by callers that hold a
// job read from the store. The in-memory store clones on every write and
// every read, so a Job obtained from Get can be mutated in place without
// touching the stored copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	cp.Metadata = j.Metadata.clone()
	return &cp
}
