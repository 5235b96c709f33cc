package models

// CommonMetadata is the part of a job's metadata shared by every stage,
// tracking retry/attempt counters under the same optimistic lock as the
// job's status (spec.md §4.E).
type CommonMetadata struct {
	ProcessAttemptNo          int    `json:"process_attempt_no"`
	ProcessRetryAttemptNo     int    `json:"process_retry_attempt_no"`
	VerificationAttemptNo     int    `json:"verification_attempt_no"`
	VerificationRetryAttempNo int    `json:"verification_retry_attempt_no"`
	FailureReason             string `json:"failure_reason,omitempty"`
}

// OsRunMetadata is the per-stage payload for JobTypeOsRun.
type OsRunMetadata struct {
	BlockNumber       uint64 `json:"block_number"`
	FullOutput        bool   `json:"full_output"`
	CairoPiePath      string `json:"cairo_pie_path,omitempty"`
	OsOutputPath      string `json:"os_output_path,omitempty"`
	ProgramOutputPath string `json:"program_output_path,omitempty"`
	OsFact            string `json:"os_fact,omitempty"`
}

// ProvingMetadata is the per-stage payload for JobTypeProofCreation.
type ProvingMetadata struct {
	BlockNumber         uint64 `json:"block_number"`
	CairoPiePath        string `json:"cairo_pie_path,omitempty"`
	OsFact              string `json:"os_fact,omitempty"`
	ProofPath           string `json:"proof_path,omitempty"`
	VerificationKeyPath string `json:"verification_key_path,omitempty"`
	CrossVerify         bool   `json:"cross_verify"`
	DownloadProof       bool   `json:"download_proof"`
}

// DataSubmissionMetadata is the per-stage payload for JobTypeDataSubmission
// and, with a settlement-chain target instead of a DA layer, the mirrored
// contract used by JobTypeProofRegistration.
type DataSubmissionMetadata struct {
	BlockNumber       uint64 `json:"block_number"`
	BlobDataPath      string `json:"blob_data_path,omitempty"`
	BlobCommitment    string `json:"blob_commitment,omitempty"`
	BlobProof         string `json:"blob_proof,omitempty"`
	TxHash            string `json:"tx_hash,omitempty"`
	BlobVersionedHash string `json:"blob_versioned_hash,omitempty"`
}

// StateTransitionMetadata is the per-stage payload for JobTypeStateTransition.
// AttemptTxHashes is keyed by decimal attempt number and holds a
// comma-joined list of tx hashes for that attempt; per spec.md §9 this map
// format is preserved verbatim and never reinterpreted.
type StateTransitionMetadata struct {
	BlocksToSettle     []uint64          `json:"blocks_to_settle"`
	FetchFromTestData  bool              `json:"fetch_from_test_data,omitempty"`
	OsOutputPaths      map[uint64]string `json:"os_output_paths,omitempty"`
	ProgramOutputPaths map[uint64]string `json:"program_output_paths,omitempty"`
	BlobDataPaths      map[uint64]string `json:"blob_data_paths,omitempty"`
	LastFailedBlockNo  *uint64           `json:"last_failed_block_no,omitempty"`
	AttemptTxHashes    map[string]string `json:"attempt_tx_hashes,omitempty"`
}

// Metadata is a tagged record: exactly one stage-specific field is non-nil,
// matching the owning Job's JobType. This makes illegal states
// unrepresentable — e.g. a DataSubmission job cannot carry OsRun paths —
// while sharing the common retry-counter sub-record across stages
// (spec.md §9, "Dynamic metadata").
type Metadata struct {
	Common CommonMetadata `json:"common"`

	OsRun             *OsRunMetadata           `json:"os_run,omitempty"`
	Proving           *ProvingMetadata         `json:"proving,omitempty"`
	DataSubmission    *DataSubmissionMetadata  `json:"data_submission,omitempty"`
	StateTransition   *StateTransitionMetadata `json:"state_transition,omitempty"`
	ProofRegistration *DataSubmissionMetadata  `json:"proof_registration,omitempty"`
}

// Kind returns the JobType implied by which stage-specific field is set, or
// "" if none (or more than one) is set.
func (m Metadata) Kind() JobType {
	set := 0
	var kind JobType
	if m.OsRun != nil {
		set++
		kind = JobTypeOsRun
	}
	if m.Proving != nil {
		set++
		kind = JobTypeProofCreation
	}
	if m.DataSubmission != nil {
		set++
		kind = JobTypeDataSubmission
	}
	if m.StateTransition != nil {
		set++
		kind = JobTypeStateTransition
	}
	if m.ProofRegistration != nil {
		set++
		kind = JobTypeProofRegistration
	}
	if set != 1 {
		return ""
	}
	return kind
}

// MatchesType reports whether exactly the metadata variant for t is set.
func (m Metadata) MatchesType(t JobType) bool {
	return m.Kind() == t
}

func (m Metadata) clone() Metadata {
	cp := m
	if m.OsRun != nil {
		v := *m.OsRun
		cp.OsRun = &v
	}
	if m.Proving != nil {
		v := *m.Proving
		cp.Proving = &v
	}
	if m.DataSubmission != nil {
		v := *m.DataSubmission
		cp.DataSubmission = &v
	}
	if m.ProofRegistration != nil {
		v := *m.ProofRegistration
		cp.ProofRegistration = &v
	}
	if m.StateTransition != nil {
		v := *m.StateTransition
		v.BlocksToSettle = append([]uint64(nil), m.StateTransition.BlocksToSettle...)
		v.OsOutputPaths = cloneU64Map(m.StateTransition.OsOutputPaths)
		v.ProgramOutputPaths = cloneU64Map(m.StateTransition.ProgramOutputPaths)
		v.BlobDataPaths = cloneU64Map(m.StateTransition.BlobDataPaths)
		v.AttemptTxHashes = cloneStringMap(m.StateTransition.AttemptTxHashes)
		if m.StateTransition.LastFailedBlockNo != nil {
			n := *m.StateTransition.LastFailedBlockNo
			v.LastFailedBlockNo = &n
		}
		cp.StateTransition = &v
	}
	return cp
}

func cloneU64Map(src map[uint64]string) map[uint64]string {
	if src == nil {
		return nil
	}
	dst := make(map[uint64]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Artifact key names within a block's object-store namespace (spec.md §3).
const (
	ArtifactBlobData      = "blob_data.txt"
	ArtifactOsOutput      = "os_output.json"
	ArtifactProgramOutput = "program_output.txt"
	ArtifactCairoPie      = "cairo_pie.zip"
)

// ArtifactKey returns the object-store key for an artifact under a block's namespace.
func ArtifactKey(internalID, artifact string) string {
	return internalID + "/" + artifact
}
