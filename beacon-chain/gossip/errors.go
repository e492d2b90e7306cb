package gossip

import "github.com/pkg/errors"

var (
	// ErrQueueOverflow is returned by Submit when the bounded event
	// queue itself (not a work-type queue) is full; the caller should
	// treat this the same as a dropped message.
	ErrQueueOverflow = errors.New("gossip: work queue overflow")
	// ErrSchedulerClosed is returned by Submit after Close.
	ErrSchedulerClosed = errors.New("gossip: scheduler closed")
	// ErrLockTimeout is the bounded try_acquire(timeout) failure mode
	// spec §5 requires in place of an unbounded wait.
	ErrLockTimeout = errors.New("gossip: lock acquisition timed out")
)
