// Package params holds the chain-spec constants the fork-choice core
// must treat as bit-exact for interop: slot/epoch timing, retention
// windows and gossip tolerances. Mirrors the teacher's
// BeaconConfig()/OverrideBeaconConfig() swap pattern so tests can
// install a minimal-config preset without a global rebuild.
package params

import "time"

// BeaconChainConfig holds the constants an implementer must adopt
// bit-exact for interop, per spec §6.
type BeaconChainConfig struct {
	NetworkName string

	// Time parameters.
	SecondsPerSlot uint64
	SlotsPerEpoch  uint64

	// Fork choice.
	SafeSlotsToUpdateJustified uint64

	// Aggregation pool.
	SlotsRetained            uint64
	MaxAttestationsPerSlot   uint64
	defaultSlotBucketHint    uint64 // initial per-slot bucket capacity estimate

	// Gossip / propagation tolerance.
	MaximumGossipClockDisparity time.Duration

	// Committees.
	TargetCommitteeSize    uint64
	MaxCommitteesPerSlot   uint64
	MaxValidatorsPerCommittee uint64

	// Weak subjectivity / slashing-protection pruning.
	WeakSubjectivityPeriod uint64
}

const (
	mainnetSlotsPerEpoch = 32
	minimalSlotsPerEpoch = 8
)

// MainnetConfig returns the production network configuration.
func MainnetConfig() *BeaconChainConfig {
	return &BeaconChainConfig{
		NetworkName:                 "mainnet",
		SecondsPerSlot:              12,
		SlotsPerEpoch:               mainnetSlotsPerEpoch,
		SafeSlotsToUpdateJustified:  8,
		SlotsRetained:               3,
		MaxAttestationsPerSlot:      16384,
		defaultSlotBucketHint:       128,
		MaximumGossipClockDisparity: 500 * time.Millisecond,
		TargetCommitteeSize:         128,
		MaxCommitteesPerSlot:        64,
		MaxValidatorsPerCommittee:   2048,
		WeakSubjectivityPeriod:      54000,
	}
}

// MinimalConfig returns the reduced-size configuration used by spec
// tests and local devnets (8 slots per epoch rather than 32).
func MinimalConfig() *BeaconChainConfig {
	cfg := MainnetConfig().Copy()
	cfg.NetworkName = "minimal"
	cfg.SlotsPerEpoch = minimalSlotsPerEpoch
	cfg.SafeSlotsToUpdateJustified = 4
	cfg.TargetCommitteeSize = 4
	return cfg
}

// Copy returns a deep copy of c so callers may override fields for a
// derived network without mutating the shared default.
func (c *BeaconChainConfig) Copy() *BeaconChainConfig {
	copied := *c
	return &copied
}

var beaconConfig = MainnetConfig()

// BeaconConfig returns the currently active chain configuration.
func BeaconConfig() *BeaconChainConfig {
	return beaconConfig
}

// OverrideBeaconConfig swaps the active configuration, for use by
// alternate-network presets and tests.
func OverrideBeaconConfig(cfg *BeaconChainConfig) {
	beaconConfig = cfg
}

// UseMainnetConfig installs the production configuration.
func UseMainnetConfig() {
	OverrideBeaconConfig(MainnetConfig())
}

// UseMinimalConfig installs the reduced-size configuration.
func UseMinimalConfig() {
	OverrideBeaconConfig(MinimalConfig())
}

// DefaultSlotBucketCapacityHint is the fallback initial bucket
// capacity the aggregation pool sizes a brand new per-slot map to,
// before any slot has produced a bucket to average over.
func (c *BeaconChainConfig) DefaultSlotBucketCapacityHint() uint64 {
	return c.defaultSlotBucketHint
}
