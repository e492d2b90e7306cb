package attestation

import (
	"sync"

	bitfield "github.com/prysmaticlabs/go-bitfield"
	"github.com/pkg/errors"

	"github.com/wyvernlabs/beacon-fc/shared/bls"
	"github.com/wyvernlabs/beacon-fc/shared/params"
	"github.com/wyvernlabs/beacon-fc/types"
)

// InsertOutcome reports what insert actually did to the pool.
type InsertOutcome int

const (
	// SignatureAggregated means a new bit was folded into an existing
	// aggregate's signature and bitfield.
	SignatureAggregated InsertOutcome = iota
	// SignatureAlreadyKnown means the existing aggregate already had
	// this committee position set; the pool was not mutated.
	SignatureAlreadyKnown
	// Created means this was the first attestation seen for this
	// (slot, attestation-data-root) pair.
	Created
)

var (
	// ErrNoAggregationBitsSet rejects an attestation with zero bits
	// set: insert only accepts single-signer attestations.
	ErrNoAggregationBitsSet = errors.New("aggregationpool: no aggregation bits set")
	// ErrSlotTooLow rejects an attestation older than the pool's
	// current retention window.
	ErrSlotTooLow = errors.New("aggregationpool: slot below lowest permissible slot")
	// ErrReachedMaxAttestationsPerSlot is the DoS guard: the slot's
	// bucket is full and a new attestation-data-root was about to be
	// added.
	ErrReachedMaxAttestationsPerSlot = errors.New("aggregationpool: reached max attestations per slot")
)

// MoreThanOneAggregationBitSetError reports exactly how many bits an
// attestation that should have been unaggregated carried.
type MoreThanOneAggregationBitSetError struct {
	Count int
}

func (e *MoreThanOneAggregationBitSetError) Error() string {
	return errors.Errorf("aggregationpool: %d aggregation bits set, want exactly 1", e.Count).Error()
}

// AggregationPool folds single-signer attestations sharing the same
// attestation-data into one aggregate per (slot, data-root), so a
// block proposer includes one attestation instead of many (spec §4.4).
type AggregationPool struct {
	mu                    sync.Mutex
	aggregator            bls.Aggregator
	buckets               map[types.Slot]map[types.Root]*types.Attestation
	meanBucketSize        int
	lowestPermissibleSlot types.Slot
}

// NewAggregationPool returns an empty pool. aggregator provides the
// abstract signature-combination operation (spec §1: BLS cryptography
// is an external collaborator).
func NewAggregationPool(aggregator bls.Aggregator) *AggregationPool {
	return &AggregationPool{
		aggregator:     aggregator,
		buckets:        make(map[types.Slot]map[types.Root]*types.Attestation),
		meanBucketSize: int(params.BeaconConfig().DefaultSlotBucketCapacityHint()),
	}
}

// Insert folds a in, aggregating with any existing entry that shares
// its attestation-data root, or creating a fresh bucket entry.
func (p *AggregationPool) Insert(a *types.Attestation) (InsertOutcome, error) {
	count := a.AggregationBits.Count()
	if count == 0 {
		return 0, ErrNoAggregationBitsSet
	}
	if count > 1 {
		return 0, &MoreThanOneAggregationBitSetError{Count: int(count)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	slot := a.Data.Slot
	if slot < p.lowestPermissibleSlot {
		return 0, ErrSlotTooLow
	}

	bucket, ok := p.buckets[slot]
	if !ok {
		if len(p.buckets) >= 1 {
			p.meanBucketSize = p.meanBucketSizeLocked()
		}
		bucket = make(map[types.Root]*types.Attestation, p.meanBucketSize)
		p.buckets[slot] = bucket
	}

	root := a.Data.HashTreeRoot()
	existing, ok := bucket[root]
	if !ok {
		if len(bucket) >= int(params.BeaconConfig().MaxAttestationsPerSlot) {
			return 0, ErrReachedMaxAttestationsPerSlot
		}
		bucket[root] = a.Clone()
		p.pruneLocked(slot)
		return Created, nil
	}

	bitIndex := singleBitIndex(a.AggregationBits)
	if existing.AggregationBits.BitAt(bitIndex) {
		return SignatureAlreadyKnown, nil
	}

	aggregated, err := p.aggregator.AggregateSignatures([][]byte{existing.Signature, a.Signature})
	if err != nil {
		return 0, errors.Wrap(err, "could not aggregate signatures")
	}
	existing.Signature = aggregated
	existing.AggregationBits = existing.AggregationBits.Or(a.AggregationBits)

	p.pruneLocked(slot)
	return SignatureAggregated, nil
}

// Aggregate returns the current aggregate for (slot, dataRoot), if any.
func (p *AggregationPool) Aggregate(slot types.Slot, dataRoot types.Root) (*types.Attestation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket, ok := p.buckets[slot]
	if !ok {
		return nil, false
	}
	a, ok := bucket[dataRoot]
	return a, ok
}

// HasAggregate reports whether dataRoot already has a representative
// aggregate at slot, without copying it out.
func (p *AggregationPool) HasAggregate(slot types.Slot, dataRoot types.Root) bool {
	_, ok := p.Aggregate(slot, dataRoot)
	return ok
}

// pruneLocked implements prune(slot): set the lowest permissible slot
// from the just-inserted slot unconditionally, drop everything now
// below it, then drop the lowest-numbered buckets until at most
// SlotsRetained remain.
func (p *AggregationPool) pruneLocked(slot types.Slot) {
	p.lowestPermissibleSlot = slot.SubSlot(types.Slot(params.BeaconConfig().SlotsRetained))
	for s := range p.buckets {
		if s < p.lowestPermissibleSlot {
			delete(p.buckets, s)
		}
	}
	for len(p.buckets) > int(params.BeaconConfig().SlotsRetained) {
		var oldest types.Slot
		first := true
		for s := range p.buckets {
			if first || s < oldest {
				oldest = s
				first = false
			}
		}
		delete(p.buckets, oldest)
	}
}

func (p *AggregationPool) meanBucketSizeLocked() int {
	total, n := 0, 0
	for _, bucket := range p.buckets {
		total += len(bucket)
		n++
	}
	if n == 0 {
		return 128
	}
	return total / n
}

// singleBitIndex returns the position of the one set bit a
// single-signer attestation's bitfield carries. Callers must have
// already verified Count() == 1.
func singleBitIndex(bits bitfield.Bitlist) uint64 {
	for i := uint64(0); i < bits.Len(); i++ {
		if bits.BitAt(i) {
			return i
		}
	}
	return 0
}
