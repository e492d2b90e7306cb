// Package attestation tracks what has already been gossiped this epoch,
// so duplicate attestations and duplicate aggregates are rejected before
// they reach signature verification.
package attestation

import (
	"sync"

	"github.com/wyvernlabs/beacon-fc/types"
)

// ObserveResult is the outcome of an idempotent observe call.
type ObserveResult int

const (
	// Inserted means this was the first time the value was observed.
	Inserted ObserveResult = iota
	// AlreadyKnown means a prior observe already recorded this value.
	AlreadyKnown
)

// epochSet is a single epoch's bucket of observed keys, shared by both
// ObservedAggregates and ObservedAttesters.
type epochSet map[interface{}]struct{}

// epochBuckets keeps exactly the current and previous epoch's sets;
// anything older is dropped on the next epoch change rather than
// evicted lazily, since both observers are only ever queried about
// attestations from {current_epoch, current_epoch - 1} (spec §4.5.3).
type epochBuckets struct {
	mu      sync.RWMutex
	current types.Epoch
	sets    map[types.Epoch]epochSet
}

func newEpochBuckets() *epochBuckets {
	return &epochBuckets{sets: make(map[types.Epoch]epochSet)}
}

// advance drops any bucket strictly older than epoch-1 and starts a
// fresh bucket for epoch if one doesn't already exist. A call for an
// epoch at or before the current one is a no-op beyond ensuring the
// bucket exists: buckets are never pruned by arrival order, only by
// distance from the latest epoch seen.
func (b *epochBuckets) advance(epoch types.Epoch) {
	if epoch > b.current {
		b.current = epoch
	}
	for e := range b.sets {
		if e+1 < b.current {
			delete(b.sets, e)
		}
	}
	if _, ok := b.sets[epoch]; !ok {
		b.sets[epoch] = make(epochSet)
	}
}

func (b *epochBuckets) isKnown(epoch types.Epoch, key interface{}) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	set, ok := b.sets[epoch]
	if !ok {
		return false
	}
	_, known := set[key]
	return known
}

func (b *epochBuckets) observe(epoch types.Epoch, key interface{}) ObserveResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance(epoch)
	set := b.sets[epoch]
	if _, known := set[key]; known {
		return AlreadyKnown
	}
	set[key] = struct{}{}
	return Inserted
}

// ObservedAggregates rejects a duplicate aggregate attestation: the set
// of attestation-data roots already aggregated and gossiped this epoch
// or the one before it.
type ObservedAggregates struct {
	buckets *epochBuckets
}

// NewObservedAggregates returns an empty two-epoch-wide root set.
func NewObservedAggregates() *ObservedAggregates {
	return &ObservedAggregates{buckets: newEpochBuckets()}
}

// IsKnown reports whether root has already been observed for epoch,
// without recording anything.
func (o *ObservedAggregates) IsKnown(epoch types.Epoch, root types.Root) bool {
	return o.buckets.isKnown(epoch, root)
}

// Observe idempotently records root as seen for epoch.
func (o *ObservedAggregates) Observe(epoch types.Epoch, root types.Root) ObserveResult {
	return o.buckets.observe(epoch, root)
}

// attesterKey is (validator_index, epoch) flattened for ObservedAttesters
// and ObservedAggregators, both of which are keyed on a validator/epoch
// pair rather than a data root.
type attesterKey struct {
	Index types.ValidatorIndex
	Epoch types.Epoch
}

// ObservedAttesters rejects an attester who has already produced a
// gossiped unaggregated attestation for an epoch.
type ObservedAttesters struct {
	buckets *epochBuckets
}

// NewObservedAttesters returns an empty two-epoch-wide attester set.
func NewObservedAttesters() *ObservedAttesters {
	return &ObservedAttesters{buckets: newEpochBuckets()}
}

// IsKnown reports whether validatorIndex has already attested in epoch.
func (o *ObservedAttesters) IsKnown(epoch types.Epoch, validatorIndex types.ValidatorIndex) bool {
	return o.buckets.isKnown(epoch, attesterKey{Index: validatorIndex, Epoch: epoch})
}

// Observe idempotently records validatorIndex as having attested in epoch.
func (o *ObservedAttesters) Observe(epoch types.Epoch, validatorIndex types.ValidatorIndex) ObserveResult {
	return o.buckets.observe(epoch, attesterKey{Index: validatorIndex, Epoch: epoch})
}

// ObservedAggregators rejects an aggregator who has already produced a
// gossiped aggregate for an epoch. Same shape as ObservedAttesters but
// kept as a distinct type (spec §4.5.2) since an aggregator's role is
// independent of whether it also attested unaggregated that epoch.
type ObservedAggregators struct {
	buckets *epochBuckets
}

// NewObservedAggregators returns an empty two-epoch-wide aggregator set.
func NewObservedAggregators() *ObservedAggregators {
	return &ObservedAggregators{buckets: newEpochBuckets()}
}

// IsKnown reports whether validatorIndex has already aggregated in epoch.
func (o *ObservedAggregators) IsKnown(epoch types.Epoch, validatorIndex types.ValidatorIndex) bool {
	return o.buckets.isKnown(epoch, attesterKey{Index: validatorIndex, Epoch: epoch})
}

// Observe idempotently records validatorIndex as having aggregated in epoch.
func (o *ObservedAggregators) Observe(epoch types.Epoch, validatorIndex types.ValidatorIndex) ObserveResult {
	return o.buckets.observe(epoch, attesterKey{Index: validatorIndex, Epoch: epoch})
}
