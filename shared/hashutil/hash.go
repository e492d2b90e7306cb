package hashutil

import (
	"golang.org/x/crypto/sha3"
)

// Hash returns the Keccak-256/SHA3 hash of data. AttestationData,
// BeaconBlock and the other container HashTreeRoot methods in package
// types all key off this, and the committee-shuffling pivot/source
// derivation in beacon-chain/cache uses it directly.
func Hash(data []byte) [32]byte {
	var hash [32]byte

	h := sha3.NewLegacyKeccak256()

	// The hash interface never returns an error, for that reason
	// we are not handling the error below. For reference, it is
	// stated here https://golang.org/pkg/hash/#Hash

	// #nosec G104
	h.Write(data)
	h.Sum(hash[:0])

	return hash
}

// RepeatHash applies Hash repeatedly, numTimes, to a [32]byte array.
// Not otherwise exercised in this module; kept as a small, independently
// testable primitive alongside Hash rather than split into its own file.
func RepeatHash(data [32]byte, numTimes uint64) [32]byte {
	if numTimes == 0 {
		return data
	}
	return RepeatHash(Hash(data[:]), numTimes-1)
}
