package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataKind(t *testing.T) {
	m := Metadata{OsRun: &OsRunMetadata{BlockNumber: 42}}
	assert.Equal(t, JobTypeOsRun, m.Kind())
	assert.True(t, m.MatchesType(JobTypeOsRun))
	assert.False(t, m.MatchesType(JobTypeProofCreation))
}

func TestMetadataKindAmbiguous(t *testing.T) {
	m := Metadata{OsRun: &OsRunMetadata{}, Proving: &ProvingMetadata{}}
	assert.Equal(t, JobType(""), m.Kind())
}

func TestMetadataCloneIsIndependent(t *testing.T) {
	last := uint64(11)
	m := Metadata{
		StateTransition: &StateTransitionMetadata{
			BlocksToSettle:    []uint64{10, 11, 12},
			LastFailedBlockNo: &last,
			AttemptTxHashes:   map[string]string{"1": "0xaa,0xbb"},
		},
	}
	cp := m.clone()
	cp.StateTransition.BlocksToSettle[0] = 999
	*cp.StateTransition.LastFailedBlockNo = 999
	cp.StateTransition.AttemptTxHashes["1"] = "mutated"

	assert.Equal(t, uint64(10), m.StateTransition.BlocksToSettle[0])
	assert.Equal(t, uint64(11), *m.StateTransition.LastFailedBlockNo)
	assert.Equal(t, "0xaa,0xbb", m.StateTransition.AttemptTxHashes["1"])
}

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPendingVerification.Terminal())
	assert.True(t, StatusVerificationTimeout.RetryEligible())
	assert.True(t, StatusVerificationFailed.RetryEligible())
	assert.False(t, StatusCompleted.RetryEligible())
}

func TestArtifactKey(t *testing.T) {
	assert.Equal(t, "42/cairo_pie.zip", ArtifactKey("42", ArtifactCairoPie))
}
