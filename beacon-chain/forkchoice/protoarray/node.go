// Package protoarray implements the dense-array fork-choice DAG: a
// contiguous, append-only slice of block nodes addressed by integer
// index, with a root-to-index hashmap sitting on top. Parent,
// best-child and best-descendant links are indices into the slice,
// never pointers — this is what lets maybe_prune compact the array in
// place instead of walking a graph of heap-owned nodes.
package protoarray

import (
	"github.com/wyvernlabs/beacon-fc/types"
)

// NonExistentNode is the sentinel index meaning "no such node" —
// used for Parent on the root node and for BestChild/BestDescendant
// before either has ever been set.
const NonExistentNode = ^uint64(0)

// Node is one vertex of the fork-choice DAG. Weight is a signed vote
// tally conceptually, but is stored unsigned: callers only ever see it
// move by checked deltas applied in Store.applyWeightChanges, which
// refuses to underflow past zero.
type Node struct {
	Slot           types.Slot
	Root           types.Root
	TargetRoot     types.Root
	StateRoot      types.Root
	Parent         uint64
	JustifiedEpoch types.Epoch
	FinalizedEpoch types.Epoch
	Weight         uint64
	BestChild      uint64
	BestDescendant uint64
}
