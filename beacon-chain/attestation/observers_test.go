package attestation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wyvernlabs/beacon-fc/types"
)

func TestObservedAggregates_ObserveIsIdempotent(t *testing.T) {
	o := NewObservedAggregates()
	root := types.Root{1}

	require.False(t, o.IsKnown(3, root))
	require.Equal(t, Inserted, o.Observe(3, root))
	require.True(t, o.IsKnown(3, root))
	require.Equal(t, AlreadyKnown, o.Observe(3, root))
}

func TestObservedAggregates_DistinctRootsDoNotCollide(t *testing.T) {
	o := NewObservedAggregates()
	require.Equal(t, Inserted, o.Observe(3, types.Root{1}))
	require.Equal(t, Inserted, o.Observe(3, types.Root{2}))
}

func TestObservedAttesters_DistinctEpochsDoNotCollide(t *testing.T) {
	o := NewObservedAttesters()
	require.Equal(t, Inserted, o.Observe(3, types.ValidatorIndex(7)))
	require.Equal(t, Inserted, o.Observe(4, types.ValidatorIndex(7)))
	require.Equal(t, AlreadyKnown, o.Observe(3, types.ValidatorIndex(7)))
}

// TestObservedAttesters_OldBucketsAreDropped covers the epoch-bucketed
// retention spec §4.3 describes: once the epoch advances two steps, the
// oldest bucket is gone and the same validator can attest again as far
// as this observer is concerned (a stale duplicate is no longer
// distinguishable from a fresh one, which is the intended behavior —
// fork choice and finality have already moved past it).
func TestObservedAttesters_OldBucketsAreDropped(t *testing.T) {
	o := NewObservedAttesters()
	require.Equal(t, Inserted, o.Observe(1, types.ValidatorIndex(9)))
	require.True(t, o.IsKnown(1, types.ValidatorIndex(9)))

	require.Equal(t, Inserted, o.Observe(3, types.ValidatorIndex(1)))
	require.False(t, o.IsKnown(1, types.ValidatorIndex(9)), "epoch 1 bucket should have been dropped once epoch 3 arrived")
}

func TestObservedAggregators_IndependentFromAttesters(t *testing.T) {
	attesters := NewObservedAttesters()
	aggregators := NewObservedAggregators()

	require.Equal(t, Inserted, attesters.Observe(2, types.ValidatorIndex(4)))
	require.False(t, aggregators.IsKnown(2, types.ValidatorIndex(4)))
	require.Equal(t, Inserted, aggregators.Observe(2, types.ValidatorIndex(4)))
}
