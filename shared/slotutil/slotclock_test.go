package slotutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wyvernlabs/beacon-fc/types"
)

func TestSlotClock_Now(t *testing.T) {
	genesis := time.Now().Add(-30 * time.Second)
	clock := NewSlotClock(genesis, 12)
	require.Equal(t, types.Slot(2), clock.Now())
}

func TestSlotClock_BeforeGenesisIsZero(t *testing.T) {
	genesis := time.Now().Add(1 * time.Hour)
	clock := NewSlotClock(genesis, 12)
	require.Equal(t, types.Slot(0), clock.Now())
}

func TestSlotClock_FutureTolerance_AcceptsEarlySlot(t *testing.T) {
	// Genesis was 11.5s ago, so Now() is still slot 0, but slot 1
	// begins within the 1s tolerance and becomes visible under it.
	genesis := time.Now().Add(-11500 * time.Millisecond)
	clock := NewSlotClock(genesis, 12)
	require.Equal(t, types.Slot(0), clock.Now())
	require.Equal(t, types.Slot(1), clock.NowWithFutureTolerance(1*time.Second))
}

func TestSlotClock_PastTolerance_WidensWindow(t *testing.T) {
	genesis := time.Now().Add(-1 * time.Second)
	clock := NewSlotClock(genesis, 12)
	require.Equal(t, types.Slot(0), clock.Now())
	// Rolling the clock back by more than elapsed time keeps it pinned at 0,
	// never negative.
	require.Equal(t, types.Slot(0), clock.NowWithPastTolerance(5*time.Second))
}
