package verifier

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/wyvernlabs/beacon-fc/beacon-chain/attestation"
	"github.com/wyvernlabs/beacon-fc/shared/bls"
	"github.com/wyvernlabs/beacon-fc/shared/params"
	"github.com/wyvernlabs/beacon-fc/shared/slotutil"
	"github.com/wyvernlabs/beacon-fc/types"
)

// HeadBlocks is the "known head block" check: whether beaconBlockRoot
// has been imported by fork choice, and at what slot. ForkChoice
// satisfies this directly.
type HeadBlocks interface {
	BlockSlot(root types.Root) (types.Slot, bool)
}

// Committees resolves the ordered validator-index list for (slot,
// committeeIndex). The shuffling-decision-root bookkeeping CommitteeCache
// needs is an external concern (spec §4.2 depends on state the core
// doesn't own); a host wires CommitteeCache.Committee behind this.
type Committees interface {
	CommitteeAt(ctx context.Context, slot types.Slot, committeeIndex types.CommitteeIndex) ([]types.ValidatorIndex, error)
}

// AggregatorSelector implements is_aggregator: whether a selection
// proof selects its signer as this slot/committee's aggregator.
type AggregatorSelector interface {
	IsAggregator(committeeLen int, proof types.SelectionProof) (bool, error)
}

// Validators resolves a validator index to its BLS public key, needed
// to check AggregatorPubkeyUnknown before a batch-signature check.
type Validators interface {
	PublicKey(index types.ValidatorIndex) ([]byte, bool)
}

// VerifiedUnaggregatedAttestation is the output of UnaggregatedAttestation:
// a fully verified single-signer attestation plus its derived indexed form.
type VerifiedUnaggregatedAttestation struct {
	Attestation *types.Attestation
	Indexed     *types.IndexedAttestation
}

// VerifiedAggregatedAttestation is the output of AggregatedAttestation.
type VerifiedAggregatedAttestation struct {
	SignedAggregateAndProof *types.SignedAggregateAndProof
	Indexed                 *types.IndexedAttestation
}

// Verifier runs the staged pipelines spec §4.5 describes. It is stateless
// aside from the dedup sets and cache it holds references to; every
// entry point is safe for concurrent use since its collaborators are.
type Verifier struct {
	Clock               *slotutil.SlotClock
	Committees          Committees
	HeadBlocks          HeadBlocks
	Selector            AggregatorSelector
	Validators          Validators
	SignatureVerifier   bls.Verifier
	ObservedAttesters   *attestation.ObservedAttesters
	ObservedAggregates  *attestation.ObservedAggregates
	ObservedAggregators *attestation.ObservedAggregators
}

// UnaggregatedAttestation runs the pipeline of spec §4.5.1.
func (v *Verifier) UnaggregatedAttestation(ctx context.Context, att *types.Attestation) (*VerifiedUnaggregatedAttestation, error) {
	ctx, span := trace.StartSpan(ctx, "verifier.UnaggregatedAttestation")
	defer span.End()

	if err := v.checkSlotWindow(att.Data.Slot); err != nil {
		return nil, err
	}

	if att.AggregationBits.Count() != 1 {
		return nil, ErrNotExactlyOneAggregationBitSet
	}

	if _, known := v.HeadBlocks.BlockSlot(att.Data.BeaconBlockRoot); !known {
		return nil, ErrUnknownHeadBlock
	}

	committee, err := v.Committees.CommitteeAt(ctx, att.Data.Slot, att.Data.CommitteeIndex)
	if err != nil {
		return nil, errors.Wrap(ErrNoCommitteeForSlotAndIndex, err.Error())
	}
	indexed := types.NewIndexedAttestation(att, committee)
	if len(indexed.AttestingIndices) != 1 {
		return nil, ErrNotExactlyOneAggregationBitSet
	}
	validatorIndex := indexed.AttestingIndices[0]

	if v.ObservedAttesters.IsKnown(att.Data.Target.Epoch, validatorIndex) {
		return nil, ErrPriorAttestationKnown
	}

	if err := v.verifySignature(indexed); err != nil {
		return nil, err
	}

	if v.ObservedAttesters.Observe(att.Data.Target.Epoch, validatorIndex) == attestation.AlreadyKnown {
		return nil, ErrPriorAttestationKnown
	}

	if err := v.checkForkChoiceStage(att.Data, validatorIndex); err != nil {
		return nil, err
	}

	return &VerifiedUnaggregatedAttestation{Attestation: att, Indexed: indexed}, nil
}

// AggregatedAttestation runs the pipeline of spec §4.5.2.
func (v *Verifier) AggregatedAttestation(ctx context.Context, signed *types.SignedAggregateAndProof) (*VerifiedAggregatedAttestation, error) {
	ctx, span := trace.StartSpan(ctx, "verifier.AggregatedAttestation")
	defer span.End()

	msg := signed.Message
	agg := msg.Aggregate

	if err := v.checkSlotWindow(agg.Data.Slot); err != nil {
		return nil, err
	}

	aggregateRoot := agg.Data.HashTreeRoot()
	if v.ObservedAggregates.IsKnown(agg.Data.Target.Epoch, aggregateRoot) {
		return nil, ErrAttestationAlreadyKnown
	}
	if v.ObservedAggregators.IsKnown(agg.Data.Target.Epoch, msg.AggregatorIndex) {
		return nil, ErrAggregatorAlreadyKnown
	}

	if _, known := v.HeadBlocks.BlockSlot(agg.Data.BeaconBlockRoot); !known {
		return nil, ErrUnknownHeadBlock
	}

	committee, err := v.Committees.CommitteeAt(ctx, agg.Data.Slot, agg.Data.CommitteeIndex)
	if err != nil {
		return nil, errors.Wrap(ErrNoCommitteeForSlotAndIndex, err.Error())
	}
	indexed := types.NewIndexedAttestation(agg, committee)

	isAggregator, err := v.Selector.IsAggregator(len(committee), msg.SelectionProof)
	if err != nil {
		return nil, errors.Wrap(ErrInternal, err.Error())
	}
	if !isAggregator {
		return nil, ErrInvalidSelectionProof
	}

	memberOfCommittee := false
	for _, idx := range committee {
		if idx == msg.AggregatorIndex {
			memberOfCommittee = true
			break
		}
	}
	if !memberOfCommittee {
		return nil, ErrAggregatorNotInCommittee
	}

	if _, ok := v.Validators.PublicKey(msg.AggregatorIndex); !ok {
		return nil, ErrAggregatorPubkeyUnknown
	}

	if err := v.verifyAggregateSignatures(signed, indexed); err != nil {
		return nil, err
	}

	if v.ObservedAggregates.Observe(agg.Data.Target.Epoch, aggregateRoot) == attestation.AlreadyKnown {
		return nil, ErrAttestationAlreadyKnown
	}
	if v.ObservedAggregators.Observe(agg.Data.Target.Epoch, msg.AggregatorIndex) == attestation.AlreadyKnown {
		return nil, ErrAggregatorAlreadyKnown
	}

	if err := v.checkForkChoiceStageIndices(agg.Data, indexed.AttestingIndices); err != nil {
		return nil, err
	}

	return &VerifiedAggregatedAttestation{SignedAggregateAndProof: signed, Indexed: indexed}, nil
}

// checkSlotWindow implements the slot-window stage shared by both
// pipelines: [now_with_past_tolerance() - SLOTS_PER_EPOCH, now_with_future_tolerance()].
func (v *Verifier) checkSlotWindow(slot types.Slot) error {
	d := params.BeaconConfig().MaximumGossipClockDisparity
	upper := v.Clock.NowWithFutureTolerance(d)
	if slot > upper {
		return ErrFutureSlot
	}
	lowerBound := v.Clock.NowWithPastTolerance(d)
	slotsPerEpoch := types.Slot(params.BeaconConfig().SlotsPerEpoch)
	if lowerBound > slotsPerEpoch && slot < lowerBound-slotsPerEpoch {
		return ErrPastSlot
	}
	return nil
}

// verifySignature runs the abstract verify_signature_batch operation
// (spec §1): the exact signing-root/domain derivation is the
// state-transition function's concern, out of scope here; this stage
// only needs a pass/fail verdict over the attestation-data root.
func (v *Verifier) verifySignature(indexed *types.IndexedAttestation) error {
	root := indexed.Data.HashTreeRoot()
	ok, err := v.SignatureVerifier.VerifyMultipleSignatures(&bls.SignatureSet{
		Signatures: [][]byte{indexed.Signature},
		Messages:   [][32]byte{root},
	})
	if err != nil {
		return errors.Wrap(ErrInternal, err.Error())
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// verifyAggregateSignatures runs the aggregated-path verify_signature_batch
// operation: spec §4.5.2 step 8 batches three signatures together —
// the selection proof, the aggregate-and-proof envelope, and the
// aggregate attestation itself — rather than verifying the aggregate
// alone the way the unaggregated path's verifySignature does.
func (v *Verifier) verifyAggregateSignatures(signed *types.SignedAggregateAndProof, indexed *types.IndexedAttestation) error {
	msg := signed.Message
	selectionRoot := types.SelectionProofSigningRoot(msg.Aggregate.Data.Slot)
	envelopeRoot := msg.HashTreeRoot()
	aggregateRoot := indexed.Data.HashTreeRoot()

	ok, err := v.SignatureVerifier.VerifyMultipleSignatures(&bls.SignatureSet{
		Signatures: [][]byte{[]byte(msg.SelectionProof), signed.Signature, indexed.Signature},
		Messages:   [][32]byte{selectionRoot, envelopeRoot, aggregateRoot},
	})
	if err != nil {
		return errors.Wrap(ErrInternal, err.Error())
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// checkForkChoiceStage implements spec §4.5.3 for a single attester.
func (v *Verifier) checkForkChoiceStage(data *types.AttestationData, validatorIndex types.ValidatorIndex) error {
	return v.checkForkChoiceStageIndices(data, []types.ValidatorIndex{validatorIndex})
}

// checkForkChoiceStageIndices implements spec §4.5.3: non-empty
// attesting indices, target epoch consistency, and slot-vs-block-slot
// ordering.
func (v *Verifier) checkForkChoiceStageIndices(data *types.AttestationData, indices []types.ValidatorIndex) error {
	if len(indices) == 0 {
		return ErrEmptyAggregationBitfield
	}

	slotsPerEpoch := params.BeaconConfig().SlotsPerEpoch
	if data.Target.Epoch != data.Slot.ToEpoch(slotsPerEpoch) {
		return ErrBadTargetEpoch
	}

	currentEpoch := v.Clock.Now().ToEpoch(slotsPerEpoch)
	if data.Target.Epoch > currentEpoch {
		return ErrFutureEpoch
	}
	if currentEpoch > 0 && data.Target.Epoch < currentEpoch-1 {
		return ErrPastEpoch
	}

	blockSlot, known := v.HeadBlocks.BlockSlot(data.BeaconBlockRoot)
	if !known {
		return ErrUnknownTargetRoot
	}
	if data.Slot < blockSlot {
		return ErrAttestsToFutureBlock
	}
	return nil
}
