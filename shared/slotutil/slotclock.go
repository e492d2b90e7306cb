// Package slotutil turns wall-clock time into the slot/epoch numbers
// fork choice reasons about, tolerating the small clock disparity
// honest peers exhibit on gossip (spec §4.1, §9 "Clock disparity").
package slotutil

import (
	"sync"
	"time"

	"github.com/wyvernlabs/beacon-fc/types"
)

// SlotClock is a monotone source of the current slot, genesis-anchored
// and configured with the network's seconds-per-slot. Implementations
// must use a monotonic time source (Go's time.Now() already is one);
// Now never reports a slot smaller than a prior call by more than the
// caller-supplied tolerance.
type SlotClock struct {
	mu              sync.RWMutex
	genesisTime     time.Time
	secondsPerSlot  uint64
}

// NewSlotClock anchors a SlotClock at genesisTime with the given
// seconds-per-slot.
func NewSlotClock(genesisTime time.Time, secondsPerSlot uint64) *SlotClock {
	return &SlotClock{genesisTime: genesisTime, secondsPerSlot: secondsPerSlot}
}

// GenesisTime returns the anchor time slot 0 began.
func (c *SlotClock) GenesisTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.genesisTime
}

// Now returns the current slot with no tolerance applied: the slot
// whose interval [start, start+secondsPerSlot) wall-clock now falls
// within, saturating at 0 before genesis.
func (c *SlotClock) Now() types.Slot {
	return c.slotAt(time.Now())
}

// NowWithFutureTolerance returns the current slot as if time had
// advanced by d — used to accept attestations from a slot that
// technically hasn't started yet, but is within gossip clock
// disparity tolerance.
func (c *SlotClock) NowWithFutureTolerance(d time.Duration) types.Slot {
	return c.slotAt(time.Now().Add(d))
}

// NowWithPastTolerance returns the current slot as if time had not yet
// advanced by d — used to avoid prematurely rejecting attestations
// from a slot that, from the sender's clock, hasn't passed yet.
func (c *SlotClock) NowWithPastTolerance(d time.Duration) types.Slot {
	return c.slotAt(time.Now().Add(-d))
}

func (c *SlotClock) slotAt(now time.Time) types.Slot {
	c.mu.RLock()
	genesis := c.genesisTime
	secondsPerSlot := c.secondsPerSlot
	c.mu.RUnlock()

	if secondsPerSlot == 0 || now.Before(genesis) {
		return 0
	}
	elapsed := now.Sub(genesis)
	return types.Slot(uint64(elapsed.Seconds()) / secondsPerSlot)
}
