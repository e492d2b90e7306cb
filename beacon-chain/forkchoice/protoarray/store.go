package protoarray

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"github.com/wyvernlabs/beacon-fc/types"
)

// Store is the dense ProtoArray: Nodes is an append-only slice, and
// NodeIndices maps a block root to its position in that slice. Every
// link between nodes (Parent, BestChild, BestDescendant) is an index
// into Nodes, never a pointer, so updateBestChildAndDescendant,
// applyWeightChanges and prune never walk a heap graph.
type Store struct {
	JustifiedEpoch types.Epoch
	FinalizedEpoch types.Epoch
	PruneThreshold int
	Nodes          []*Node
	NodeIndices    map[types.Root]uint64
}

// New returns an empty Store with the default prune threshold.
func New(justifiedEpoch, finalizedEpoch types.Epoch) *Store {
	return &Store{
		JustifiedEpoch: justifiedEpoch,
		FinalizedEpoch: finalizedEpoch,
		PruneThreshold: defaultPruneThreshold,
		Nodes:          make([]*Node, 0),
		NodeIndices:    make(map[types.Root]uint64),
	}
}

const defaultPruneThreshold = 256

// Insert is the exported entry point for on_new_block; see insert.
func (s *Store) Insert(
	ctx context.Context,
	slot types.Slot,
	root, parentRoot, targetRoot, stateRoot types.Root,
	justifiedEpoch, finalizedEpoch types.Epoch,
) error {
	return s.insert(ctx, slot, root, parentRoot, targetRoot, stateRoot, justifiedEpoch, finalizedEpoch)
}

// ApplyWeightChanges is the exported entry point for apply_score_changes; see applyWeightChanges.
func (s *Store) ApplyWeightChanges(ctx context.Context, justifiedEpoch, finalizedEpoch types.Epoch, deltas []int) error {
	return s.applyWeightChanges(ctx, justifiedEpoch, finalizedEpoch, deltas)
}

// Head is the exported entry point for find_head; see head.
func (s *Store) Head(ctx context.Context, justifiedRoot types.Root) (types.Root, error) {
	return s.head(ctx, justifiedRoot)
}

// Prune is the exported entry point for maybe_prune; see prune.
func (s *Store) Prune(ctx context.Context, finalizedRoot types.Root) error {
	return s.prune(ctx, finalizedRoot)
}

// insert implements on_new_block: append a node and, if its parent is
// known, run the best-child/best-descendant update from the new leaf
// upward to the root.
func (s *Store) insert(
	ctx context.Context,
	slot types.Slot,
	root, parentRoot, targetRoot, stateRoot types.Root,
	justifiedEpoch, finalizedEpoch types.Epoch,
) error {
	ctx, span := trace.StartSpan(ctx, "protoarray.insert")
	defer span.End()

	if _, ok := s.NodeIndices[root]; ok {
		// Re-inserting an already-known root is a benign no-op: the
		// gossip layer may deliver the same block twice.
		return nil
	}

	index := uint64(len(s.Nodes))
	parentIndex, hasParent := s.NodeIndices[parentRoot]
	if !hasParent {
		parentIndex = NonExistentNode
	}

	n := &Node{
		Slot:           slot,
		Root:           root,
		TargetRoot:     targetRoot,
		StateRoot:      stateRoot,
		Parent:         parentIndex,
		JustifiedEpoch: justifiedEpoch,
		FinalizedEpoch: finalizedEpoch,
		Weight:         0,
		BestChild:      NonExistentNode,
		BestDescendant: NonExistentNode,
	}

	s.NodeIndices[root] = index
	s.Nodes = append(s.Nodes, n)

	if !hasParent {
		return nil
	}
	child := index
	for parent := parentIndex; parent != NonExistentNode; parent = s.Nodes[parent].Parent {
		if parent >= uint64(len(s.Nodes)) {
			return errInvalidNodeIndex
		}
		if err := s.updateBestChildAndDescendant(parent, child); err != nil {
			return err
		}
		child = parent
	}
	return nil
}

// applyWeightChanges implements apply_score_changes: deltas[i] is the
// balance-weighted change in node i's vote weight since the last
// call. It is back-propagated to ancestors in a single backward pass
// because every node's parent index is strictly less than its own.
func (s *Store) applyWeightChanges(
	ctx context.Context,
	justifiedEpoch, finalizedEpoch types.Epoch,
	deltas []int,
) error {
	_, span := trace.StartSpan(ctx, "protoarray.applyWeightChanges")
	defer span.End()

	if len(deltas) != len(s.Nodes) {
		return errInvalidDeltaLength
	}

	s.JustifiedEpoch = justifiedEpoch
	s.FinalizedEpoch = finalizedEpoch

	for i := len(s.Nodes) - 1; i >= 0; i-- {
		n := s.Nodes[i]
		delta := deltas[i]
		if delta == 0 {
			continue
		}

		if delta < 0 {
			d := uint64(-delta)
			if d > n.Weight {
				return errInvalidNodeWeight
			}
			n.Weight -= d
		} else {
			n.Weight += uint64(delta)
		}

		if n.Parent == NonExistentNode {
			continue
		}
		if int(n.Parent) >= len(deltas) {
			return errInvalidNodeIndex
		}
		deltas[n.Parent] += delta

		if err := s.updateBestChildAndDescendant(n.Parent, uint64(i)); err != nil {
			return err
		}
	}
	return nil
}

// updateBestChildAndDescendant implements maybe_update_best_child_and_descendant.
// See spec §4.7's decision table: this never changes best_descendant
// without also reconsidering best_child, and it leaves both alone
// whenever neither candidate is an improvement.
func (s *Store) updateBestChildAndDescendant(parentIndex, childIndex uint64) error {
	if parentIndex >= uint64(len(s.Nodes)) || childIndex >= uint64(len(s.Nodes)) {
		return errInvalidNodeIndex
	}
	parent := s.Nodes[parentIndex]
	child := s.Nodes[childIndex]

	childLeadsToViableHead, err := s.leadsToViableHead(child)
	if err != nil {
		return err
	}

	switch {
	case parent.BestChild == childIndex:
		if !childLeadsToViableHead {
			parent.BestChild = NonExistentNode
			parent.BestDescendant = NonExistentNode
			return nil
		}
		parent.BestChild = childIndex
		parent.BestDescendant = bestDescendantOf(childIndex, child)
		return nil

	case parent.BestChild == NonExistentNode:
		if !childLeadsToViableHead {
			return nil
		}
		parent.BestChild = childIndex
		parent.BestDescendant = bestDescendantOf(childIndex, child)
		return nil

	default:
		if parent.BestChild >= uint64(len(s.Nodes)) {
			return errInvalidNodeIndex
		}
		currentBest := s.Nodes[parent.BestChild]
		currentBestLeadsToViableHead, err := s.leadsToViableHead(currentBest)
		if err != nil {
			return err
		}

		switch {
		case childLeadsToViableHead && currentBestLeadsToViableHead:
			if childWins(child, currentBest) {
				parent.BestChild = childIndex
				parent.BestDescendant = bestDescendantOf(childIndex, child)
			}
		case childLeadsToViableHead && !currentBestLeadsToViableHead:
			parent.BestChild = childIndex
			parent.BestDescendant = bestDescendantOf(childIndex, child)
		}
		// !childLeadsToViableHead, regardless of currentBest: no change.
		return nil
	}
}

func bestDescendantOf(childIndex uint64, child *Node) uint64 {
	if child.BestDescendant != NonExistentNode {
		return child.BestDescendant
	}
	return childIndex
}

// childWins breaks ties on weight by comparing roots, descending —
// this keeps find_head deterministic across nodes racing equal votes.
func childWins(child, currentBest *Node) bool {
	if child.Weight == currentBest.Weight {
		return bytes.Compare(child.Root[:], currentBest.Root[:]) > 0
	}
	return child.Weight > currentBest.Weight
}

// head implements find_head: walk from the justified root's
// best_descendant, or the justified node itself if it has none.
func (s *Store) head(ctx context.Context, justifiedRoot types.Root) (types.Root, error) {
	_, span := trace.StartSpan(ctx, "protoarray.head")
	defer span.End()

	justifiedIndex, ok := s.NodeIndices[justifiedRoot]
	if !ok {
		return types.Root{}, errUnknownJustifiedRoot
	}
	if justifiedIndex >= uint64(len(s.Nodes)) {
		return types.Root{}, errInvalidJustifiedIndex
	}
	justifiedNode := s.Nodes[justifiedIndex]

	bestDescendantIndex := justifiedNode.BestDescendant
	if bestDescendantIndex == NonExistentNode {
		bestDescendantIndex = justifiedIndex
	}
	if bestDescendantIndex >= uint64(len(s.Nodes)) {
		return types.Root{}, errInvalidBestDescendant
	}

	best := s.Nodes[bestDescendantIndex]
	if !s.viableForHead(best) {
		return types.Root{}, errors.Wrapf(errNotViableForHead, "root %s", best.Root)
	}
	return best.Root, nil
}

// viableForHead reports whether n may legally be the chain head given
// the store's current justified/finalized epochs. A zero
// justified/finalized epoch on the store is a wildcard — it matches
// any node, since no checkpoint has been set yet (genesis case).
func (s *Store) viableForHead(n *Node) bool {
	justifiedOK := n.JustifiedEpoch == s.JustifiedEpoch || s.JustifiedEpoch == 0
	finalizedOK := n.FinalizedEpoch == s.FinalizedEpoch || s.FinalizedEpoch == 0
	return justifiedOK && finalizedOK
}

// leadsToViableHead reports whether n's best-descendant subtree (or n
// itself, if it is a leaf) contains a viable head candidate.
func (s *Store) leadsToViableHead(n *Node) (bool, error) {
	if n.BestDescendant != NonExistentNode {
		if n.BestDescendant >= uint64(len(s.Nodes)) {
			return false, errInvalidBestDescendant
		}
		return s.viableForHead(s.Nodes[n.BestDescendant]), nil
	}
	return s.viableForHead(n), nil
}

// prune implements maybe_prune: below PruneThreshold it is a no-op,
// otherwise everything before the finalized index is dropped and
// every surviving index is rewritten in place.
func (s *Store) prune(ctx context.Context, finalizedRoot types.Root) error {
	_, span := trace.StartSpan(ctx, "protoarray.prune")
	defer span.End()

	finalizedIndex, ok := s.NodeIndices[finalizedRoot]
	if !ok {
		return errUnknownJustifiedRoot
	}
	if int(finalizedIndex) < s.PruneThreshold {
		return nil
	}

	canonicalNodes := make([]*Node, 0, len(s.Nodes)-int(finalizedIndex))
	newIndices := make(map[types.Root]uint64, len(s.Nodes)-int(finalizedIndex))

	for i := finalizedIndex; i < uint64(len(s.Nodes)); i++ {
		n := s.Nodes[i]
		if n.Parent != NonExistentNode {
			if n.Parent < finalizedIndex {
				n.Parent = NonExistentNode
			} else {
				n.Parent -= finalizedIndex
			}
		}
		if n.BestChild != NonExistentNode {
			n.BestChild -= finalizedIndex
		}
		if n.BestDescendant != NonExistentNode {
			n.BestDescendant -= finalizedIndex
		}
		newIndices[n.Root] = uint64(len(canonicalNodes))
		canonicalNodes = append(canonicalNodes, n)
	}

	s.Nodes = canonicalNodes
	s.NodeIndices = newIndices
	return nil
}

// HasParent reports whether root names a known node with a known
// parent.
func (s *Store) HasParent(root types.Root) bool {
	index, ok := s.NodeIndices[root]
	if !ok {
		return false
	}
	if index >= uint64(len(s.Nodes)) {
		return false
	}
	return s.Nodes[index].Parent != NonExistentNode
}

// AncestorRoot walks parent links from root back to the first node at
// or below slot, returning that node's root. Used to decide whether a
// justified candidate descends from the current justified checkpoint.
func (s *Store) AncestorRoot(ctx context.Context, root types.Root, slot types.Slot) (types.Root, error) {
	_, span := trace.StartSpan(ctx, "protoarray.ancestorRoot")
	defer span.End()

	index, ok := s.NodeIndices[root]
	if !ok {
		return types.Root{}, errors.New("node does not exist")
	}
	if index >= uint64(len(s.Nodes)) {
		return types.Root{}, errInvalidNodeIndex
	}

	for s.Nodes[index].Slot > slot {
		parent := s.Nodes[index].Parent
		if parent == NonExistentNode {
			break
		}
		if parent >= uint64(len(s.Nodes)) {
			return types.Root{}, errInvalidNodeIndex
		}
		index = parent
	}
	return s.Nodes[index].Root, nil
}
