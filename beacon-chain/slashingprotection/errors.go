package slashingprotection

import "github.com/pkg/errors"

// SlashingKind names why check_and_insert_attestation refused to
// record a vote, mirroring the validator protection store's own
// classification of double vs. surround votes.
type SlashingKind int

const (
	// NotSlashable means the vote was safe to record.
	NotSlashable SlashingKind = iota
	// DoubleVote means a different signing root was already recorded
	// for this target epoch.
	DoubleVote
	// SurroundingVote means this vote surrounds a previously recorded
	// one (its source is older and its target is newer).
	SurroundingVote
	// SurroundedVote means this vote is surrounded by a previously
	// recorded one (its source is newer and its target is older).
	SurroundedVote
)

var (
	// ErrDoubleBlockProposal rejects a block at a slot that was
	// already signed, or at a slot at or below the highest slot this
	// validator has signed (spec §4.9: "fails if a block at ≥ slot was
	// already signed").
	ErrDoubleBlockProposal = errors.New("slashingprotection: block at or above this slot already signed")
	// ErrDoubleVote rejects an attestation whose target epoch was
	// already signed with a different signing root.
	ErrDoubleVote = errors.New("slashingprotection: double vote")
	// ErrSurroundingVote rejects an attestation that surrounds a
	// previously signed one.
	ErrSurroundingVote = errors.New("slashingprotection: surrounding vote")
	// ErrSurroundedVote rejects an attestation surrounded by a
	// previously signed one.
	ErrSurroundedVote = errors.New("slashingprotection: surrounded vote")
)
