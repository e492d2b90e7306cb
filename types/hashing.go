package types

import (
	"encoding/binary"

	"github.com/wyvernlabs/beacon-fc/shared/hashutil"
)

// HashTreeRoot deterministically serializes AttestationData and hashes
// it into a Root. Real networks merkleize with SSZ; since wire format
// is out of scope here (spec.md §1), this module only needs *a*
// collision-resistant, deterministic root to key the aggregation pool
// and the observed-aggregates set by.
func (d *AttestationData) HashTreeRoot() Root {
	buf := make([]byte, 0, 8+8+32+8+32+8+32)
	buf = appendUint64(buf, uint64(d.Slot))
	buf = appendUint64(buf, uint64(d.CommitteeIndex))
	buf = append(buf, d.BeaconBlockRoot[:]...)
	buf = appendUint64(buf, uint64(d.Source.Epoch))
	buf = append(buf, d.Source.Root[:]...)
	buf = appendUint64(buf, uint64(d.Target.Epoch))
	buf = append(buf, d.Target.Root[:]...)
	return Root(hashutil.Hash(buf))
}

// HashTreeRoot deterministically serializes a BeaconBlock's identifying
// fields into a Root, for the same reason as AttestationData.HashTreeRoot.
func (b *BeaconBlock) HashTreeRoot() Root {
	buf := make([]byte, 0, 8+32+32)
	buf = appendUint64(buf, uint64(b.Slot))
	buf = append(buf, b.ParentRoot[:]...)
	buf = append(buf, b.StateRoot[:]...)
	return Root(hashutil.Hash(buf))
}

// HashTreeRoot deterministically serializes an AggregateAndProof's
// identifying fields into a Root, for the same reason as
// AttestationData.HashTreeRoot: this module needs a stable root to
// verify the aggregator's envelope signature over, not a wire format.
func (a *AggregateAndProof) HashTreeRoot() Root {
	buf := make([]byte, 0, 8+32)
	buf = appendUint64(buf, uint64(a.AggregatorIndex))
	aggregateRoot := a.Aggregate.Data.HashTreeRoot()
	buf = append(buf, aggregateRoot[:]...)
	return Root(hashutil.Hash(buf))
}

// SelectionProofSigningRoot derives the root a selection proof signs
// over: the slot the proof claims aggregator status for.
func SelectionProofSigningRoot(slot Slot) Root {
	buf := make([]byte, 0, 8)
	buf = appendUint64(buf, uint64(slot))
	return Root(hashutil.Hash(buf))
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}
