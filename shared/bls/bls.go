// Package bls is the abstract signature boundary the core crosses but
// does not implement: "state-transition function and BLS signature
// cryptography" are external collaborators this subsystem invokes
// through an interface, never a concrete pairing-curve implementation.
// A host binary wires a real suite behind these types; this package
// ships no concrete implementation.
package bls

import "github.com/pkg/errors"

// ErrVerificationFailed is returned by a Verifier whose batch check
// did not validate, never wrapped around a lower-level crypto error —
// the core only needs to know accept or reject.
var ErrVerificationFailed = errors.New("bls: signature verification failed")

// SignatureSet is one batch-verification job: parallel messages,
// public keys and an aggregate (or individual) signature per entry,
// mirroring the teacher's own batching shape in
// beacon-chain/core/state/transition_no_verify_sig.go.
type SignatureSet struct {
	Signatures [][]byte
	PublicKeys [][]byte
	Messages   [][32]byte
}

// Verifier is the abstract verify_signature_batch operation spec §1
// names as an external collaborator.
type Verifier interface {
	VerifyMultipleSignatures(set *SignatureSet) (bool, error)
}

// Aggregator is the abstract signature-combination operation the
// AggregationPool needs to fold a new single-signer attestation into
// an existing aggregate. Concrete suites aggregate in the pairing
// group; this interface only asks for bytes in, bytes out.
type Aggregator interface {
	AggregateSignatures(sigs [][]byte) ([]byte, error)
}
