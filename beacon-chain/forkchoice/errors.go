package forkchoice

import "github.com/pkg/errors"

var (
	// ErrInconsistentOnTick is a fatal invariant: a tick moved the
	// clock backward or skipped more than one slot.
	ErrInconsistentOnTick = errors.New("forkchoice: inconsistent on_tick")
	// ErrFutureSlot rejects (not queues) a block from a slot later
	// than the current one.
	ErrFutureSlot = errors.New("forkchoice: block slot is in the future")
	// ErrUnknownTargetRoot is an ignore error: the attestation names a
	// target block this node has not imported.
	ErrUnknownTargetRoot = errors.New("forkchoice: unknown target root")
	// ErrAttestsToFutureBlock is an ignore error: the attested block
	// is later than the attestation's own slot.
	ErrAttestsToFutureBlock = errors.New("forkchoice: attestation slot precedes block slot")
	// ErrEmptyAttestingIndices rejects an indexed attestation with no
	// attesting validators.
	ErrEmptyAttestingIndices = errors.New("forkchoice: attestation has no attesting indices")
	// ErrBadTargetEpoch rejects an attestation whose target epoch does
	// not match its slot's epoch.
	ErrBadTargetEpoch = errors.New("forkchoice: target epoch does not match attestation slot's epoch")
	// ErrFutureEpoch is an ignore error: the attestation's target
	// epoch is ahead of what the current slot allows.
	ErrFutureEpoch = errors.New("forkchoice: target epoch is in the future")
	// ErrPastEpoch is an ignore error: the attestation's target epoch
	// predates the one-epoch lookback window.
	ErrPastEpoch = errors.New("forkchoice: target epoch is too far in the past")
)
