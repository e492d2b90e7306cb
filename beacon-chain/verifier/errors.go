// Package verifier implements the staged pipeline that turns a
// gossiped Attestation or SignedAggregateAndProof into a verified
// IndexedAttestation fork choice can consume directly, per spec §4.5.
package verifier

import "github.com/pkg/errors"

// The error taxonomy surfaced to the gossip layer (spec §6), used also
// as metric labels there. Every stage below fails with exactly one of
// these; none wraps a lower-level error message into the ones that
// double as peer-scoring signals.
var (
	ErrFutureSlot                     = errors.New("verifier: attestation slot is in the future")
	ErrPastSlot                       = errors.New("verifier: attestation slot is too old")
	ErrFutureEpoch                    = errors.New("verifier: target epoch is in the future")
	ErrPastEpoch                      = errors.New("verifier: target epoch is too far in the past")
	ErrInvalidSelectionProof          = errors.New("verifier: invalid selection proof")
	ErrInvalidSignature               = errors.New("verifier: invalid signature")
	ErrEmptyAggregationBitfield       = errors.New("verifier: empty aggregation bitfield")
	ErrAggregatorPubkeyUnknown        = errors.New("verifier: aggregator public key unknown")
	ErrAggregatorNotInCommittee       = errors.New("verifier: aggregator index not in committee")
	ErrAttestationAlreadyKnown        = errors.New("verifier: attestation already known")
	ErrAggregatorAlreadyKnown         = errors.New("verifier: aggregator already known for this epoch")
	ErrPriorAttestationKnown          = errors.New("verifier: validator already attested this epoch")
	ErrValidatorIndexTooHigh          = errors.New("verifier: validator index exceeds committee size")
	ErrUnknownHeadBlock               = errors.New("verifier: beacon block root unknown to fork choice")
	ErrUnknownTargetRoot              = errors.New("verifier: target root unknown")
	ErrBadTargetEpoch                 = errors.New("verifier: target epoch does not match attestation slot's epoch")
	ErrNoCommitteeForSlotAndIndex     = errors.New("verifier: no committee for slot and committee index")
	ErrNotExactlyOneAggregationBitSet = errors.New("verifier: unaggregated attestation must set exactly one bit")
	ErrAttestsToFutureBlock           = errors.New("verifier: attestation slot precedes the block it attests to")
	ErrInvalidSubnetID                = errors.New("verifier: attestation delivered on the wrong subnet")
	ErrInternal                       = errors.New("verifier: internal error")
)
