package forkchoice

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	logrus "github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/wyvernlabs/beacon-fc/beacon-chain/forkchoice/protoarray"
	"github.com/wyvernlabs/beacon-fc/shared/params"
	"github.com/wyvernlabs/beacon-fc/types"
)

var log = logrus.WithField("prefix", "forkchoice")

// ForkChoice is the orchestrator spec §4.8 describes: the single
// stateful aggregate combining ForkChoiceStore with the protoarray
// DAG. Every entry point takes it by exclusive reference — there is
// deliberately no package-level singleton (spec §9 "Global mutable
// state").
type ForkChoice struct {
	mu    sync.Mutex
	store *ForkChoiceStore
	proto *protoarray.Store
	votes *protoarray.ElasticList
}

// New wires a fresh ForkChoice anchored at genesisRoot.
func New(genesisRoot types.Root) *ForkChoice {
	fcStore := NewForkChoiceStore(genesisRoot)
	protoStore := protoarray.New(fcStore.JustifiedCheckpoint.Epoch, fcStore.FinalizedCheckpoint.Epoch)
	return &ForkChoice{
		store: fcStore,
		proto: protoStore,
		votes: protoarray.NewElasticList(0),
	}
}

// Genesis registers the genesis block as the root of the DAG. Callers
// must do this once, before any OnBlock call.
func (f *ForkChoice) Genesis(ctx context.Context, slot types.Slot, stateRoot types.Root) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	root := f.store.GenesisBlockRoot
	if err := f.proto.Insert(ctx, slot, root, types.Root{}, root, stateRoot, 0, 0); err != nil {
		return err
	}
	f.store.AfterBlock(root, slot)
	return nil
}

// OnTick implements on_tick: advances the store's current slot by
// exactly one (or zero, for a duplicate tick), promotes
// best-justified to justified at an epoch boundary, and drains queued
// attestations whose slot has now strictly passed.
func (f *ForkChoice) OnTick(ctx context.Context, slot types.Slot) error {
	ctx, span := trace.StartSpan(ctx, "forkchoice.OnTick")
	defer span.End()
	f.mu.Lock()
	defer f.mu.Unlock()

	previous := f.store.CurrentSlot
	if slot < previous || slot > previous+1 {
		return errors.Wrapf(ErrInconsistentOnTick, "previous %d, got %d", previous, slot)
	}
	f.store.CurrentSlot = slot

	slotsPerEpoch := params.BeaconConfig().SlotsPerEpoch
	if slot > previous && slot%slotsPerEpoch == 0 {
		if f.store.BestJustifiedCheckpoint.Epoch > f.store.JustifiedCheckpoint.Epoch {
			f.store.JustifiedCheckpoint = f.store.BestJustifiedCheckpoint
		}
	}

	return f.drainQueuedAttestations(ctx, slot)
}

// drainQueuedAttestations applies every queued attestation whose slot
// is strictly before the current slot, then compacts the queue.
func (f *ForkChoice) drainQueuedAttestations(ctx context.Context, currentSlot types.Slot) error {
	remaining := f.store.QueuedAttestations[:0]
	for _, qa := range f.store.QueuedAttestations {
		if qa.Slot >= currentSlot {
			remaining = append(remaining, qa)
			continue
		}
		for _, idx := range qa.AttestingIndices {
			f.votes.ProcessAttestation(idx, qa.BlockRoot, qa.TargetEpoch)
		}
	}
	f.store.QueuedAttestations = remaining
	return nil
}

// OnBlock implements on_block: validates the block isn't from the
// future, updates justified/finalized checkpoints per spec §4.8, and
// appends the block to the DAG.
func (f *ForkChoice) OnBlock(
	ctx context.Context,
	block *types.BeaconBlock,
	blockRoot types.Root,
	state BeaconState,
) error {
	ctx, span := trace.StartSpan(ctx, "forkchoice.OnBlock")
	defer span.End()
	f.mu.Lock()
	defer f.mu.Unlock()

	if block.Slot > f.store.CurrentSlot {
		return errors.Wrapf(ErrFutureSlot, "block slot %d, current slot %d", block.Slot, f.store.CurrentSlot)
	}

	slotsPerEpoch := params.BeaconConfig().SlotsPerEpoch

	stateJustified := state.CurrentJustifiedCheckpoint()
	if stateJustified.Epoch > f.store.JustifiedCheckpoint.Epoch {
		if stateJustified.Epoch > f.store.BestJustifiedCheckpoint.Epoch {
			f.store.BestJustifiedCheckpoint = stateJustified
		}
		if f.shouldUpdateJustifiedCheckpoint(ctx, block.Slot, stateJustified) {
			f.store.JustifiedCheckpoint = stateJustified
		}
	}

	stateFinalized := state.FinalizedCheckpoint()
	if stateFinalized.Epoch > f.store.FinalizedCheckpoint.Epoch {
		f.store.FinalizedCheckpoint = stateFinalized

		finalizedSlot := stateFinalized.Epoch.StartSlot(slotsPerEpoch)
		ancestor, err := f.proto.AncestorRoot(ctx, f.store.JustifiedCheckpoint.Root, finalizedSlot)
		if err != nil || ancestor != stateFinalized.Root {
			f.store.JustifiedCheckpoint = stateJustified
		}
	}

	targetEpoch := block.Slot.ToEpoch(slotsPerEpoch)
	targetSlot := targetEpoch.StartSlot(slotsPerEpoch)

	var targetRoot types.Root
	if block.Slot == targetSlot {
		targetRoot = blockRoot
	} else if ancestor, err := f.proto.AncestorRoot(ctx, block.ParentRoot, targetSlot); err == nil {
		targetRoot = ancestor
	} else {
		targetRoot = block.ParentRoot
	}

	if err := f.proto.Insert(
		ctx, block.Slot, blockRoot, block.ParentRoot, targetRoot, block.StateRoot,
		f.store.JustifiedCheckpoint.Epoch, f.store.FinalizedCheckpoint.Epoch,
	); err != nil {
		return errors.Wrap(err, "could not insert block into fork choice")
	}

	f.store.AfterBlock(blockRoot, block.Slot)
	log.WithFields(logrus.Fields{
		"slot": block.Slot,
		"root": blockRoot.String(),
	}).Debug("Processed block for fork choice")
	return nil
}

// shouldUpdateJustifiedCheckpoint implements should_update_justified_checkpoint:
// true when early in the epoch, or when the candidate descends from
// the currently justified root.
func (f *ForkChoice) shouldUpdateJustifiedCheckpoint(ctx context.Context, blockSlot types.Slot, candidate types.Checkpoint) bool {
	slotsPerEpoch := params.BeaconConfig().SlotsPerEpoch
	epochStart := blockSlot.ToEpoch(slotsPerEpoch).StartSlot(slotsPerEpoch)
	if blockSlot-epochStart < types.Slot(params.BeaconConfig().SafeSlotsToUpdateJustified) {
		return true
	}

	justifiedSlot := f.store.JustifiedCheckpoint.Epoch.StartSlot(slotsPerEpoch)
	ancestor, err := f.proto.AncestorRoot(ctx, candidate.Root, justifiedSlot)
	if err != nil {
		return false
	}
	return ancestor == f.store.JustifiedCheckpoint.Root
}

// OnAttestation implements on_attestation: the genesis alias is
// ignored, and anything not yet current (slot == current slot) is
// queued rather than applied, per spec §9.
func (f *ForkChoice) OnAttestation(ctx context.Context, att *types.IndexedAttestation) error {
	ctx, span := trace.StartSpan(ctx, "forkchoice.OnAttestation")
	defer span.End()
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(att.AttestingIndices) == 0 {
		return ErrEmptyAttestingIndices
	}

	data := att.Data
	if data.BeaconBlockRoot.IsZero() {
		return nil
	}
	blockRoot := data.BeaconBlockRoot

	slotsPerEpoch := params.BeaconConfig().SlotsPerEpoch
	if data.Target.Epoch != data.Slot.ToEpoch(slotsPerEpoch) {
		return ErrBadTargetEpoch
	}

	currentEpoch := f.store.CurrentSlot.ToEpoch(slotsPerEpoch)
	if data.Target.Epoch > currentEpoch {
		return ErrFutureEpoch
	}
	if currentEpoch > 0 && data.Target.Epoch < currentEpoch-1 {
		return ErrPastEpoch
	}

	blockSlot, known := f.store.BlockSlot(blockRoot)
	if !known {
		return ErrUnknownTargetRoot
	}
	if blockSlot > data.Slot {
		return ErrAttestsToFutureBlock
	}

	if data.Slot < f.store.CurrentSlot {
		for _, idx := range att.AttestingIndices {
			f.votes.ProcessAttestation(idx, blockRoot, data.Target.Epoch)
		}
		return nil
	}

	f.store.QueuedAttestations = append(f.store.QueuedAttestations, QueuedAttestation{
		Slot:             data.Slot,
		AttestingIndices: att.AttestingIndices,
		BlockRoot:        blockRoot,
		TargetEpoch:      data.Target.Epoch,
	})
	return nil
}

// GetHead implements get_head: ticks any missed slots, computes
// balance-weighted score deltas since the last call, applies them,
// then finds the head from the justified root.
func (f *ForkChoice) GetHead(ctx context.Context, currentSlot types.Slot, balances []uint64) (types.Root, error) {
	ctx, span := trace.StartSpan(ctx, "forkchoice.GetHead")
	defer span.End()

	for {
		f.mu.Lock()
		previous := f.store.CurrentSlot
		f.mu.Unlock()
		if previous >= currentSlot {
			break
		}
		if err := f.OnTick(ctx, previous+1); err != nil {
			return types.Root{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	deltas, updatedVotes, err := protoarray.ComputeDeltas(ctx, f.proto.NodeIndices, f.votes.Votes, f.store.JustifiedBalances, balances)
	if err != nil {
		return types.Root{}, errors.Wrap(err, "could not compute score deltas")
	}
	f.votes.Votes = updatedVotes
	f.store.JustifiedBalances = balances

	if err := f.proto.ApplyWeightChanges(
		ctx, f.store.JustifiedCheckpoint.Epoch, f.store.FinalizedCheckpoint.Epoch, deltas,
	); err != nil {
		return types.Root{}, errors.Wrap(err, "could not apply score changes")
	}

	justifiedRoot := f.store.resolveGenesisAlias(f.store.JustifiedCheckpoint.Root)
	return f.proto.Head(ctx, justifiedRoot)
}

// Prune drops everything before the finalized root once the DAG grows
// past the prune threshold.
func (f *ForkChoice) Prune(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	finalizedRoot := f.store.resolveGenesisAlias(f.store.FinalizedCheckpoint.Root)
	return f.proto.Prune(ctx, finalizedRoot)
}

// FinalizedCheckpoint returns the store's current finalized checkpoint.
func (f *ForkChoice) FinalizedCheckpoint() types.Checkpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.FinalizedCheckpoint
}

// JustifiedCheckpoint returns the store's current justified checkpoint.
func (f *ForkChoice) JustifiedCheckpoint() types.Checkpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.JustifiedCheckpoint
}

// BlockSlot reports the slot of a known block root, satisfying the
// verifier package's HeadBlocks boundary (spec §4.5: an attestation's
// beacon_block_root must name a block this core has already imported).
func (f *ForkChoice) BlockSlot(root types.Root) (types.Slot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store.BlockSlot(root)
}
