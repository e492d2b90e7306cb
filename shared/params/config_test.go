package params

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainnetConfig_Defaults(t *testing.T) {
	cfg := MainnetConfig()
	require.Equal(t, uint64(32), cfg.SlotsPerEpoch)
	require.Equal(t, uint64(8), cfg.SafeSlotsToUpdateJustified)
	require.Equal(t, uint64(3), cfg.SlotsRetained)
	require.Equal(t, uint64(16384), cfg.MaxAttestationsPerSlot)
}

func TestMinimalConfig_OverridesSlotsPerEpoch(t *testing.T) {
	cfg := MinimalConfig()
	require.Equal(t, uint64(8), cfg.SlotsPerEpoch)
	require.Equal(t, uint64(16384), cfg.MaxAttestationsPerSlot, "non-overridden fields fall through from mainnet")
}

func TestOverrideBeaconConfig_RoundTrips(t *testing.T) {
	orig := BeaconConfig()
	defer OverrideBeaconConfig(orig)

	UseMinimalConfig()
	require.Equal(t, uint64(8), BeaconConfig().SlotsPerEpoch)

	UseMainnetConfig()
	require.Equal(t, uint64(32), BeaconConfig().SlotsPerEpoch)
}

func TestCopy_IsIndependent(t *testing.T) {
	cfg := MainnetConfig()
	cpy := cfg.Copy()
	cpy.SlotsPerEpoch = 4
	require.Equal(t, uint64(32), cfg.SlotsPerEpoch)
	require.Equal(t, uint64(4), cpy.SlotsPerEpoch)
}
