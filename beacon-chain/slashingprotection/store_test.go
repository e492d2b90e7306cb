package slashingprotection

import (
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wyvernlabs/beacon-fc/types"
)

func testStore(t *testing.T) *Store {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
		require.NoError(t, os.RemoveAll(dir))
	})
	return s
}

func attData(source, target types.Epoch) *types.AttestationData {
	return &types.AttestationData{
		Slot:   target.StartSlot(32),
		Source: types.Checkpoint{Epoch: source},
		Target: types.Checkpoint{Epoch: target},
	}
}

func TestCheckAndInsertBlock_RejectsEqualOrLowerSlot(t *testing.T) {
	s := testStore(t)
	pubkey := Pubkey{1}

	require.NoError(t, s.CheckAndInsertBlock(pubkey, 10))
	require.ErrorIs(t, s.CheckAndInsertBlock(pubkey, 10), ErrDoubleBlockProposal)
	require.ErrorIs(t, s.CheckAndInsertBlock(pubkey, 9), ErrDoubleBlockProposal)
	require.NoError(t, s.CheckAndInsertBlock(pubkey, 11))
}

func TestCheckAndInsertBlock_IndependentPerPubkey(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.CheckAndInsertBlock(Pubkey{1}, 10))
	require.NoError(t, s.CheckAndInsertBlock(Pubkey{2}, 5))
}

func TestCheckAndInsertAttestation_RejectsDoubleVote(t *testing.T) {
	s := testStore(t)
	pubkey := Pubkey{1}

	data := attData(1, 2)
	kind, err := s.CheckAndInsertAttestation(pubkey, data, types.Root{0xAA})
	require.NoError(t, err)
	require.Equal(t, NotSlashable, kind)

	kind, err = s.CheckAndInsertAttestation(pubkey, data, types.Root{0xBB})
	require.ErrorIs(t, err, ErrDoubleVote)
	require.Equal(t, DoubleVote, kind)
}

func TestCheckAndInsertAttestation_SameVoteTwiceIsSafe(t *testing.T) {
	s := testStore(t)
	pubkey := Pubkey{1}

	data := attData(1, 2)
	_, err := s.CheckAndInsertAttestation(pubkey, data, types.Root{0xAA})
	require.NoError(t, err)

	_, err = s.CheckAndInsertAttestation(pubkey, data, types.Root{0xAA})
	require.NoError(t, err)
}

func TestCheckAndInsertAttestation_RejectsSurroundingVote(t *testing.T) {
	s := testStore(t)
	pubkey := Pubkey{1}

	// first: (source 2, target 3)
	_, err := s.CheckAndInsertAttestation(pubkey, attData(2, 3), types.Root{0xAA})
	require.NoError(t, err)

	// new vote surrounds it: source 1 < 2, target 4 > 3
	kind, err := s.CheckAndInsertAttestation(pubkey, attData(1, 4), types.Root{0xBB})
	require.ErrorIs(t, err, ErrSurroundingVote)
	require.Equal(t, SurroundingVote, kind)
}

func TestCheckAndInsertAttestation_RejectsSurroundedVote(t *testing.T) {
	s := testStore(t)
	pubkey := Pubkey{1}

	// first: (source 1, target 4)
	_, err := s.CheckAndInsertAttestation(pubkey, attData(1, 4), types.Root{0xAA})
	require.NoError(t, err)

	// new vote is surrounded by it: source 2 > 1, target 3 < 4
	kind, err := s.CheckAndInsertAttestation(pubkey, attData(2, 3), types.Root{0xBB})
	require.ErrorIs(t, err, ErrSurroundedVote)
	require.Equal(t, SurroundedVote, kind)
}

func TestCheckAndInsertAttestation_NonConflictingVotesSucceed(t *testing.T) {
	s := testStore(t)
	pubkey := Pubkey{1}

	_, err := s.CheckAndInsertAttestation(pubkey, attData(1, 2), types.Root{0xAA})
	require.NoError(t, err)

	_, err = s.CheckAndInsertAttestation(pubkey, attData(2, 3), types.Root{0xBB})
	require.NoError(t, err)
}

func TestCheckAndInsertBlock_ExactlyOneOfConcurrentCallersSucceeds(t *testing.T) {
	s := testStore(t)
	pubkey := Pubkey{1}

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.CheckAndInsertBlock(pubkey, 100)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	require.Equal(t, 1, successes)
}
