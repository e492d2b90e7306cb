package forkchoice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wyvernlabs/beacon-fc/shared/params"
	"github.com/wyvernlabs/beacon-fc/types"
)

type fakeState struct {
	justified types.Checkpoint
	finalized types.Checkpoint
}

func (s *fakeState) Slot() types.Slot                               { return 0 }
func (s *fakeState) CurrentJustifiedCheckpoint() types.Checkpoint { return s.justified }
func (s *fakeState) FinalizedCheckpoint() types.Checkpoint        { return s.finalized }

func rootAt(i byte) types.Root {
	var r types.Root
	r[0] = i
	return r
}

// TestForkChoice_SingleBranchGrowth covers scenario S1.
func TestForkChoice_SingleBranchGrowth(t *testing.T) {
	ctx := context.Background()
	params.OverrideBeaconConfig(params.MinimalConfig())
	defer params.OverrideBeaconConfig(params.MainnetConfig())

	fc := New(types.Root{})
	require.NoError(t, fc.Genesis(ctx, 0, types.Root{}))
	require.NoError(t, fc.OnTick(ctx, 0))
	require.NoError(t, fc.OnTick(ctx, 1))

	state := &fakeState{}
	b1 := &types.BeaconBlock{Slot: 1, ParentRoot: types.Root{}}
	require.NoError(t, fc.OnBlock(ctx, b1, rootAt(1), state))
	require.NoError(t, fc.OnTick(ctx, 2))

	b2 := &types.BeaconBlock{Slot: 2, ParentRoot: rootAt(1)}
	require.NoError(t, fc.OnBlock(ctx, b2, rootAt(2), state))

	head, err := fc.GetHead(ctx, 2, []uint64{})
	require.NoError(t, err)
	require.Equal(t, rootAt(2), head)
}

// TestForkChoice_GetHead_CatchesUpMissedTicks covers get_head's
// "process any missed on_ticks" requirement: a caller that never
// advanced the clock one slot at a time must still succeed, not hit
// ErrInconsistentOnTick.
func TestForkChoice_GetHead_CatchesUpMissedTicks(t *testing.T) {
	ctx := context.Background()
	fc := New(types.Root{})
	require.NoError(t, fc.Genesis(ctx, 0, types.Root{}))

	head, err := fc.GetHead(ctx, 5, []uint64{})
	require.NoError(t, err)
	require.Equal(t, types.Root{}, head)
	require.Equal(t, types.Slot(5), fc.store.CurrentSlot)
}

func TestForkChoice_OnTick_RejectsSkippedSlot(t *testing.T) {
	ctx := context.Background()
	fc := New(types.Root{})
	require.NoError(t, fc.OnTick(ctx, 0))
	err := fc.OnTick(ctx, 5)
	require.ErrorIs(t, err, ErrInconsistentOnTick)
}

func TestForkChoice_OnBlock_RejectsFutureSlot(t *testing.T) {
	ctx := context.Background()
	fc := New(types.Root{})
	require.NoError(t, fc.Genesis(ctx, 0, types.Root{}))
	require.NoError(t, fc.OnTick(ctx, 0))

	state := &fakeState{}
	future := &types.BeaconBlock{Slot: 10, ParentRoot: types.Root{}}
	err := fc.OnBlock(ctx, future, rootAt(9), state)
	require.ErrorIs(t, err, ErrFutureSlot)
}

// TestForkChoice_FinalizationMonotonicity covers testable property 7.
func TestForkChoice_FinalizationMonotonicity(t *testing.T) {
	ctx := context.Background()
	fc := New(types.Root{})
	require.NoError(t, fc.Genesis(ctx, 0, types.Root{}))
	require.NoError(t, fc.OnTick(ctx, 0))
	require.NoError(t, fc.OnTick(ctx, 1))

	state := &fakeState{
		justified: types.Checkpoint{Epoch: 1, Root: rootAt(1)},
		finalized: types.Checkpoint{Epoch: 1, Root: rootAt(1)},
	}
	b1 := &types.BeaconBlock{Slot: 1, ParentRoot: types.Root{}}
	require.NoError(t, fc.OnBlock(ctx, b1, rootAt(1), state))

	before := fc.FinalizedCheckpoint().Epoch
	require.Equal(t, types.Epoch(1), before)

	regressed := &fakeState{
		justified: types.Checkpoint{Epoch: 0},
		finalized: types.Checkpoint{Epoch: 0},
	}
	require.NoError(t, fc.OnTick(ctx, 2))
	b2 := &types.BeaconBlock{Slot: 2, ParentRoot: rootAt(1)}
	require.NoError(t, fc.OnBlock(ctx, b2, rootAt(2), regressed))

	require.GreaterOrEqual(t, fc.FinalizedCheckpoint().Epoch, before)
}

func TestForkChoice_OnAttestation_IgnoresGenesisAlias(t *testing.T) {
	ctx := context.Background()
	fc := New(rootAt(0xAA))
	require.NoError(t, fc.Genesis(ctx, 0, types.Root{}))
	require.NoError(t, fc.OnTick(ctx, 0))

	att := &types.IndexedAttestation{
		AttestingIndices: []types.ValidatorIndex{0},
		Data: &types.AttestationData{
			Slot:            0,
			BeaconBlockRoot: types.Root{},
			Target:          types.Checkpoint{Epoch: 0},
		},
	}
	require.NoError(t, fc.OnAttestation(ctx, att))
}

func TestForkChoice_OnAttestation_RejectsEmptyIndices(t *testing.T) {
	ctx := context.Background()
	fc := New(types.Root{})
	att := &types.IndexedAttestation{Data: &types.AttestationData{}}
	err := fc.OnAttestation(ctx, att)
	require.ErrorIs(t, err, ErrEmptyAttestingIndices)
}
