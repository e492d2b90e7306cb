// Package forkchoice orchestrates the LMD-GHOST head-selection
// algorithm: ForkChoiceStore holds the mutable checkpoint/slot state
// the spec calls out in §4.6, and ForkChoice wires that store to a
// protoarray.Store to answer on_tick/on_block/on_attestation/get_head.
package forkchoice

import (
	"github.com/wyvernlabs/beacon-fc/types"
)

// QueuedAttestation is an attestation whose slot has not yet strictly
// passed: spec §9 requires delaying these rather than applying them
// the instant they're verified, since "current slot" attestations are
// not yet actionable by LMD-GHOST.
type QueuedAttestation struct {
	Slot             types.Slot
	AttestingIndices []types.ValidatorIndex
	BlockRoot        types.Root
	TargetEpoch      types.Epoch
}

// BeaconState is the subset of post-state-transition state ForkChoice
// needs from on_block. The state-transition function itself is out of
// this core's scope (spec §1); this is the abstract boundary it
// crosses through.
type BeaconState interface {
	Slot() types.Slot
	CurrentJustifiedCheckpoint() types.Checkpoint
	FinalizedCheckpoint() types.Checkpoint
}

// ForkChoiceStore is the persistent fork-choice state shared by every
// on_* entry point (spec §4.6).
type ForkChoiceStore struct {
	CurrentSlot            types.Slot
	JustifiedCheckpoint     types.Checkpoint
	BestJustifiedCheckpoint types.Checkpoint
	FinalizedCheckpoint     types.Checkpoint
	JustifiedBalances       []uint64
	QueuedAttestations      []QueuedAttestation
	GenesisBlockRoot        types.Root

	// blockSlots is the ancillary block-root -> slot index
	// after_block persists; OnAttestation's block-slot check and
	// ForkChoice.BlockSlot read it.
	blockSlots map[types.Root]types.Slot
}

// NewForkChoiceStore returns a store anchored at the given genesis
// root, with both checkpoints pointing at genesis.
func NewForkChoiceStore(genesisRoot types.Root) *ForkChoiceStore {
	genesis := types.Checkpoint{Epoch: 0, Root: genesisRoot}
	return &ForkChoiceStore{
		JustifiedCheckpoint:     genesis,
		BestJustifiedCheckpoint: genesis,
		FinalizedCheckpoint:     genesis,
		GenesisBlockRoot:        genesisRoot,
		blockSlots:              make(map[types.Root]types.Slot),
	}
}

// AfterBlock persists the block's slot so later lookups (OnAttestation's
// block-slot check, ForkChoice.BlockSlot) don't need the external block
// store for it.
func (s *ForkChoiceStore) AfterBlock(blockRoot types.Root, slot types.Slot) {
	s.blockSlots[blockRoot] = slot
}

// BlockSlot returns the slot AfterBlock recorded for root, if any.
func (s *ForkChoiceStore) BlockSlot(root types.Root) (types.Slot, bool) {
	slot, ok := s.blockSlots[root]
	return slot, ok
}

// resolveGenesisAlias maps the 0x00...00 root alias used by callers
// who don't yet know the genesis root to the one actually stored.
func (s *ForkChoiceStore) resolveGenesisAlias(root types.Root) types.Root {
	if root.IsZero() {
		return s.GenesisBlockRoot
	}
	return root
}
