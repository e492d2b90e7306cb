// Package gossip routes incoming gossip messages into a bounded worker
// pool and reports a propagation verdict back to the network layer
// (spec §4.10). It generalizes the synchronous libp2p-pubsub validator
// callback style the teacher's sync package uses into an explicit
// producer/consumer queue pair with one manager goroutine.
package gossip

import (
	"context"

	"github.com/libp2p/go-libp2p-core/peer"
)

// Verdict is fed back to the gossip layer once a work item finishes.
type Verdict int

const (
	// Ignore means the message should neither be propagated nor
	// penalized: it's stale or duplicate, not malicious.
	Ignore Verdict = iota
	// Accept means the message is valid and should be propagated.
	Accept
	// Reject means the message is invalid; the sending peer should be
	// penalized.
	Reject
)

// MisbehaviorKind names why a peer was flagged, mirroring the error
// taxonomy surfaced at the verifier boundary.
type MisbehaviorKind string

// PropagationVerdict is the scheduler's output for one work item.
type PropagationVerdict struct {
	MessageID string
	PeerID    peer.ID
	Verdict   Verdict
}

// PeerMisbehaved is emitted alongside a Reject verdict when the
// failure reason implicates the sending peer rather than the message
// itself being stale.
type PeerMisbehaved struct {
	PeerID peer.ID
	Kind   MisbehaviorKind
}

// Kind distinguishes the two work-type queues; aggregated work is
// always drained before unaggregated work (spec §4.10).
type Kind int

const (
	Unaggregated Kind = iota
	Aggregated
)

// Job is one unit of gossip work: verify a message and report what
// happened. Run is executed on a worker goroutine; it must not block
// forever since workers only yield by returning.
type Job struct {
	Kind      Kind
	MessageID string
	PeerID    peer.ID
	Run       func(ctx context.Context) (PropagationVerdict, *PeerMisbehaved, error)
}
