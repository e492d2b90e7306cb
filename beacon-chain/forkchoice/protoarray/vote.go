package protoarray

import (
	"context"

	"go.opencensus.io/trace"

	"github.com/wyvernlabs/beacon-fc/types"
)

// VoteTracker records one validator's last-seen and pending LMD votes.
// CurrentRoot is the root the node-weight deltas were last computed
// against; NextRoot is where process_attestation has moved the vote
// to since. The delta between the two, weighted by the validator's
// balance, is what computeDeltas produces on the next score update.
type VoteTracker struct {
	CurrentRoot types.Root
	NextRoot    types.Root
	NextEpoch   types.Epoch
}

// ElasticList is a flat, validator-index-addressed vote store. It is
// deliberately not a map: ProcessAttestation and computeDeltas run
// once per validator per epoch on the hot path, and O(1) slice access
// beats hashing a validator index every time.
type ElasticList struct {
	Votes []VoteTracker
}

// NewElasticList returns an ElasticList with room for n validators.
func NewElasticList(n int) *ElasticList {
	return &ElasticList{Votes: make([]VoteTracker, n)}
}

// At returns validatorIndex's tracker, growing the backing slice with
// zero-value trackers if the index hasn't been seen before.
func (l *ElasticList) At(validatorIndex types.ValidatorIndex) *VoteTracker {
	idx := int(validatorIndex)
	if idx >= len(l.Votes) {
		grown := make([]VoteTracker, idx+1)
		copy(grown, l.Votes)
		l.Votes = grown
	}
	return &l.Votes[idx]
}

// ProcessAttestation is the exported entry point for process_attestation; see processAttestation.
func (l *ElasticList) ProcessAttestation(validatorIndex types.ValidatorIndex, blockRoot types.Root, targetEpoch types.Epoch) {
	l.processAttestation(validatorIndex, blockRoot, targetEpoch)
}

// processAttestation implements process_attestation: it only ever
// touches NextRoot/NextEpoch. The vote is not applied to any node's
// weight until the next computeDeltas + applyWeightChanges pair runs.
func (l *ElasticList) processAttestation(validatorIndex types.ValidatorIndex, blockRoot types.Root, targetEpoch types.Epoch) {
	v := l.At(validatorIndex)
	if targetEpoch <= v.NextEpoch && v.NextRoot != (types.Root{}) {
		// A vote for a strictly earlier (or equal, already-seen) epoch
		// never overrides a later one.
		return
	}
	v.NextRoot = blockRoot
	v.NextEpoch = targetEpoch
}

// computeDeltas diffs every validator's current vs. next vote,
// weighted by the validator's balance, and advances CurrentRoot to
// NextRoot so the same vote is not double-counted on the next call.
// The returned slice is indexed exactly like Store.Nodes; callers
// with an unknown vote root have their delta skipped (the root simply
// is not present in the DAG yet, e.g. an attestation to a future or
// unseen block).
// ComputeDeltas is the exported entry point used by ForkChoice.GetHead; see computeDeltas.
func ComputeDeltas(
	ctx context.Context,
	nodeIndices map[types.Root]uint64,
	votes []VoteTracker,
	oldBalances, newBalances []uint64,
) ([]int, []VoteTracker, error) {
	return computeDeltas(ctx, nodeIndices, votes, oldBalances, newBalances)
}

func computeDeltas(
	ctx context.Context,
	nodeIndices map[types.Root]uint64,
	votes []VoteTracker,
	oldBalances, newBalances []uint64,
) ([]int, []VoteTracker, error) {
	_, span := trace.StartSpan(ctx, "protoarray.computeDeltas")
	defer span.End()

	deltas := make([]int, len(nodeIndices))
	updated := make([]VoteTracker, len(votes))
	copy(updated, votes)

	for i := range updated {
		v := &updated[i]
		if v.CurrentRoot == v.NextRoot {
			continue
		}

		var oldBalance, newBalance uint64
		if i < len(oldBalances) {
			oldBalance = oldBalances[i]
		}
		if i < len(newBalances) {
			newBalance = newBalances[i]
		}

		if oldBalance != 0 {
			if idx, ok := nodeIndices[v.CurrentRoot]; ok && int(idx) < len(deltas) {
				deltas[idx] -= int(oldBalance)
			}
		}
		if newBalance != 0 {
			if idx, ok := nodeIndices[v.NextRoot]; ok && int(idx) < len(deltas) {
				deltas[idx] += int(newBalance)
			}
		}

		v.CurrentRoot = v.NextRoot
	}

	return deltas, updated, nil
}
