// Package cache memoizes the validator shuffling: the only state
// fork choice and attestation verification need from the
// state-transition function's much larger output.
package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opencensus.io/trace"

	"github.com/wyvernlabs/beacon-fc/shared/hashutil"
	"github.com/wyvernlabs/beacon-fc/shared/params"
	"github.com/wyvernlabs/beacon-fc/types"
)

var (
	committeeCacheHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "committee_cache_hit",
		Help: "The number of committee cache requests served without a shuffling-loader call.",
	})
	committeeCacheMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "committee_cache_miss",
		Help: "The number of committee cache requests that required loading and deriving a shuffling.",
	})
)

const defaultCacheSize = 4

// ShufflingKey names one memoized shuffling: the decision root is the
// block root whose post-state determined this epoch's active set and
// seed.
type ShufflingKey struct {
	Epoch types.Epoch
	Root  types.Root
}

// Shuffling is the cache miss path's output: everything compute_committee
// needs for any (slot, committee_index) pair in this epoch.
type Shuffling struct {
	ActiveIndices     []types.ValidatorIndex
	Seed              types.Root
	CommitteesPerSlot uint64
}

// ShufflingLoader is the abstract state-load-and-fast-forward step spec
// §4.2 describes: "loads the state at shuffling_decision_root,
// fast-forwards it by epoch transitions without recomputing state
// roots up to epoch, then derives... the shuffling." State storage and
// the state-transition function are both external collaborators (spec
// §1); this is the boundary the cache crosses to reach them.
type ShufflingLoader interface {
	LoadShuffling(ctx context.Context, decisionRoot types.Root, epoch types.Epoch) (*Shuffling, error)
}

// CommitteeCache is the (epoch, shuffling-decision-root)-keyed LRU
// spec §4.2 requires. The exclusive lock is never held across a
// ShufflingLoader call: on miss, the lock is dropped, the loader runs
// unlocked, and the lock is reacquired only to insert the result.
type CommitteeCache struct {
	mu    sync.RWMutex
	cache *lru.Cache
}

// NewCommitteeCache returns an empty cache bounded to the default
// number of retained shufflings (current and recent epochs only —
// entries older than finalization are evictable per spec).
func NewCommitteeCache() (*CommitteeCache, error) {
	c, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize committee LRU")
	}
	return &CommitteeCache{cache: c}, nil
}

// Committee returns the ordered validator-index list for (slot,
// committeeIndex), loading and memoizing the shuffling on a miss.
func (c *CommitteeCache) Committee(
	ctx context.Context,
	key ShufflingKey,
	loader ShufflingLoader,
	slot types.Slot,
	committeeIndex types.CommitteeIndex,
) ([]types.ValidatorIndex, error) {
	ctx, span := trace.StartSpan(ctx, "cache.Committee")
	defer span.End()

	shuffling, ok := c.get(key)
	if !ok {
		committeeCacheMiss.Inc()
		loaded, err := loader.LoadShuffling(ctx, key.Root, key.Epoch)
		if err != nil {
			return nil, errors.Wrap(err, "could not load shuffling")
		}
		c.put(key, loaded)
		shuffling = loaded
	} else {
		committeeCacheHit.Inc()
	}

	slotsPerEpoch := params.BeaconConfig().SlotsPerEpoch
	epochOffset := uint64(committeeIndex) + (uint64(slot)%slotsPerEpoch)*shuffling.CommitteesPerSlot
	count := shuffling.CommitteesPerSlot * slotsPerEpoch

	return computeCommittee(shuffling.ActiveIndices, shuffling.Seed, epochOffset, count)
}

func (c *CommitteeCache) get(key ShufflingKey) (*Shuffling, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*Shuffling), true
}

func (c *CommitteeCache) put(key ShufflingKey, s *Shuffling) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, s)
}

// computeCommittee mirrors the standard compute_committee: slice the
// shuffled index range [start, end) for this committee out of the
// full active set.
func computeCommittee(indices []types.ValidatorIndex, seed types.Root, index, count uint64) ([]types.ValidatorIndex, error) {
	if count == 0 {
		return nil, errors.New("committee count must be non-zero")
	}
	validatorCount := uint64(len(indices))
	start := splitOffset(validatorCount, count, index)
	end := splitOffset(validatorCount, count, index+1)

	committee := make([]types.ValidatorIndex, 0, end-start)
	for i := start; i < end; i++ {
		shuffledIndex, err := shuffledIndex(i, validatorCount, seed)
		if err != nil {
			return nil, errors.Wrapf(err, "could not compute shuffled index at %d", i)
		}
		committee = append(committee, indices[shuffledIndex])
	}
	return committee, nil
}

func splitOffset(listSize, chunks, index uint64) uint64 {
	return (listSize * index) / chunks
}

const shuffleRounds = 90

// shuffledIndex implements the swap-or-not shuffle used by the
// consensus spec: it permutes a single index without materializing
// the full permutation, so CommitteeCache only ever touches the
// indices it needs for one committee.
func shuffledIndex(index, indexCount uint64, seed types.Root) (uint64, error) {
	if index >= indexCount {
		return 0, errors.New("index out of range")
	}

	for round := byte(0); round < shuffleRounds; round++ {
		pivotSource := append(append([]byte{}, seed[:]...), round)
		pivotHash := hashutil.Hash(pivotSource)
		pivot := bytesToUint64(pivotHash[:8]) % indexCount

		flip := (pivot + indexCount - index) % indexCount
		position := index
		if flip > position {
			position = flip
		}

		sourceInput := append(append([]byte{}, seed[:]...), round)
		sourceInput = append(sourceInput, uint32ToBytes(uint32(position>>8))...)
		source := hashutil.Hash(sourceInput)
		byteV := source[(position%256)/8]
		bitV := (byteV >> (position % 8)) % 2

		if bitV == 1 {
			index = flip
		}
	}
	return index, nil
}

func bytesToUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < len(b) && i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func uint32ToBytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
