package types

import (
	"sort"

	bitfield "github.com/prysmaticlabs/go-bitfield"
)

// Checkpoint names a justified or finalized block.
//
// Spec pseudocode definition:
//   class Checkpoint(Container):
//       epoch: Epoch
//       root: Root
type Checkpoint struct {
	Epoch Epoch
	Root  Root
}

// GenesisCheckpoint is checkpoint (0, Root{}), the value installed before
// any epoch has been justified or finalized.
var GenesisCheckpoint = Checkpoint{}

// AttestationData is a validator's vote on the head of the chain and
// the last justified checkpoint.
//
// Spec pseudocode definition:
//   class AttestationData(Container):
//       slot: Slot
//       index: CommitteeIndex
//       beacon_block_root: Root
//       source: Checkpoint
//       target: Checkpoint
type AttestationData struct {
	Slot            Slot
	CommitteeIndex  CommitteeIndex
	BeaconBlockRoot Root
	Source          Checkpoint
	Target          Checkpoint
}

// Attestation is a validator's (or committee's) vote, identified by a
// bitlist of committee positions and an aggregate BLS signature.
// Unaggregated: exactly one bit set. Aggregated: any number of bits.
type Attestation struct {
	AggregationBits bitfield.Bitlist
	Data            *AttestationData
	Signature       []byte
}

// Clone returns a deep copy suitable for in-place aggregation.
func (a *Attestation) Clone() *Attestation {
	if a == nil {
		return nil
	}
	sig := make([]byte, len(a.Signature))
	copy(sig, a.Signature)
	bits := make(bitfield.Bitlist, len(a.AggregationBits))
	copy(bits, a.AggregationBits)
	data := *a.Data
	return &Attestation{
		AggregationBits: bits,
		Data:            &data,
		Signature:       sig,
	}
}

// SelectionProof is a BLS signature over the slot, used to randomly
// select aggregators from a committee.
type SelectionProof []byte

// AggregateAndProof binds an aggregate attestation to the validator
// that is claiming to be its aggregator.
type AggregateAndProof struct {
	AggregatorIndex ValidatorIndex
	Aggregate       *Attestation
	SelectionProof  SelectionProof
}

// SignedAggregateAndProof is the gossip wire shape for an aggregated
// attestation: the envelope plus the aggregator's signature over it.
type SignedAggregateAndProof struct {
	Message   *AggregateAndProof
	Signature []byte
}

// IndexedAttestation rewrites an Attestation's bitlist as explicit,
// sorted, unique validator indices once committee membership is known.
type IndexedAttestation struct {
	AttestingIndices []ValidatorIndex
	Data             *AttestationData
	Signature        []byte
}

// NewIndexedAttestation builds an IndexedAttestation from an
// Attestation's aggregation bits and the committee that produced it.
// indices are returned sorted ascending, per the data model invariant.
func NewIndexedAttestation(att *Attestation, committee []ValidatorIndex) *IndexedAttestation {
	indices := make([]ValidatorIndex, 0, att.AggregationBits.Count())
	for i, v := range committee {
		if att.AggregationBits.BitAt(uint64(i)) {
			indices = append(indices, v)
		}
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return &IndexedAttestation{
		AttestingIndices: indices,
		Data:             att.Data,
		Signature:        att.Signature,
	}
}

// BeaconBlockBody holds the operations a block carries; only the
// fields fork choice and slashing protection touch are modeled here.
type BeaconBlockBody struct {
	Attestations      []*Attestation
	ProposerSlashings []*ProposerSlashing
	AttesterSlashings []*AttesterSlashing
}

// BeaconBlock is the minimal block shape fork choice needs: enough to
// link it to its parent and to the state it produced.
type BeaconBlock struct {
	Slot       Slot
	ParentRoot Root
	StateRoot  Root
	Body       *BeaconBlockBody
}

// SignedBeaconBlock pairs a block with its proposer signature.
type SignedBeaconBlock struct {
	Block     *BeaconBlock
	Signature []byte
}

// ProposerSlashing evidences two conflicting signed block headers by
// the same proposer at the same slot.
type ProposerSlashing struct {
	ProposerIndex ValidatorIndex
	Header1Slot   Slot
	Header1Root   Root
	Header2Slot   Slot
	Header2Root   Root
}

// AttesterSlashing evidences two IndexedAttestations violating the
// double-vote or surround-vote slashing conditions.
type AttesterSlashing struct {
	Attestation1 *IndexedAttestation
	Attestation2 *IndexedAttestation
}
