package slotutil

import (
	"time"

	"github.com/wyvernlabs/beacon-fc/types"
)

// EpochTicker notifies on every new epoch boundary. Genesis-anchored,
// like SlotClock, but fires a channel rather than being polled —
// used by callers that need to promote best-justified at epoch
// boundaries (ForkChoice.OnTick) without busy-waiting on SlotClock.
type EpochTicker struct {
	c    chan types.Epoch
	done chan struct{}
}

// NewEpochTicker returns a ticker firing at the start of every epoch
// from genesisTime onward.
func NewEpochTicker(genesisTime time.Time, secondsPerEpoch uint64) *EpochTicker {
	t := &EpochTicker{
		c:    make(chan types.Epoch),
		done: make(chan struct{}),
	}
	t.start(genesisTime, secondsPerEpoch, time.Since, time.Until, time.After)
	return t
}

// C returns the channel epoch numbers are delivered on.
func (t *EpochTicker) C() <-chan types.Epoch {
	return t.c
}

// Done stops the ticker.
func (t *EpochTicker) Done() {
	close(t.done)
}

func (t *EpochTicker) start(
	genesisTime time.Time,
	secondsPerEpoch uint64,
	since, until func(time.Time) time.Duration,
	after func(time.Duration) <-chan time.Time,
) {
	d := time.Duration(secondsPerEpoch) * time.Second

	go func() {
		sinceGenesis := since(genesisTime)
		var nextTickTime time.Time
		var epoch uint64
		if sinceGenesis < 0 {
			// Ticker started before genesis: wait until genesis, fire epoch 0.
			nextTickTime = genesisTime
			epoch = 0
		} else {
			nextTick := sinceGenesis.Truncate(d) + d
			nextTickTime = genesisTime.Add(nextTick)
			epoch = uint64(nextTick / d)
		}

		for {
			waitTime := until(nextTickTime)
			select {
			case <-after(waitTime):
				select {
				case t.c <- types.Epoch(epoch):
				case <-t.done:
					return
				}
				epoch++
				nextTickTime = nextTickTime.Add(d)
			case <-t.done:
				return
			}
		}
	}()
}
