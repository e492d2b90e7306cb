package types_test

import (
	"testing"

	bitfield "github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/require"

	"github.com/wyvernlabs/beacon-fc/types"
)

func TestNewIndexedAttestation_SortsAndMaps(t *testing.T) {
	bits := bitfield.NewBitlist(4)
	bits.SetBitAt(1, true)
	bits.SetBitAt(3, true)

	att := &types.Attestation{
		AggregationBits: bits,
		Data:            &types.AttestationData{Slot: 5},
	}
	committee := []types.ValidatorIndex{40, 41, 42, 43}

	idx := types.NewIndexedAttestation(att, committee)
	require.Equal(t, []types.ValidatorIndex{41, 43}, idx.AttestingIndices)
}

func TestAttestation_Clone_IsIndependent(t *testing.T) {
	bits := bitfield.NewBitlist(4)
	bits.SetBitAt(0, true)
	att := &types.Attestation{
		AggregationBits: bits,
		Data:            &types.AttestationData{Slot: 1},
		Signature:       []byte{1, 2, 3},
	}
	clone := att.Clone()
	clone.Signature[0] = 0xff
	clone.AggregationBits.SetBitAt(1, true)
	clone.Data.Slot = 99

	require.Equal(t, byte(1), att.Signature[0])
	require.False(t, att.AggregationBits.BitAt(1))
	require.Equal(t, types.Slot(1), att.Data.Slot)
}

func TestRoot_IsZero(t *testing.T) {
	var r types.Root
	require.True(t, r.IsZero())
	r[0] = 1
	require.False(t, r.IsZero())
}

func TestHashTreeRoot_Deterministic(t *testing.T) {
	d := &types.AttestationData{
		Slot:           3,
		CommitteeIndex: 1,
		Source:         types.Checkpoint{Epoch: 1},
		Target:         types.Checkpoint{Epoch: 2},
	}
	d2 := &types.AttestationData{
		Slot:           3,
		CommitteeIndex: 1,
		Source:         types.Checkpoint{Epoch: 1},
		Target:         types.Checkpoint{Epoch: 2},
	}
	require.Equal(t, d.HashTreeRoot(), d2.HashTreeRoot())

	d2.Target.Epoch = 3
	require.NotEqual(t, d.HashTreeRoot(), d2.HashTreeRoot())
}
