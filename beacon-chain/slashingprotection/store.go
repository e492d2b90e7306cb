// Package slashingprotection is the per-validator record that must
// never let this node sign two conflicting blocks or attestations
// (spec §4.9). It is a distinct, flush-on-write store from
// ForkChoiceStore's in-memory snapshot (spec §6
// "SlashingProtectionDb — a separate, flush-on-write store keyed by
// validator pubkey").
package slashingprotection

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/wyvernlabs/beacon-fc/shared/bytesutil"
	"github.com/wyvernlabs/beacon-fc/types"
)

// Pubkey is a validator's 48-byte BLS public key, used as the top-level
// bucket key for every record this store holds.
type Pubkey [48]byte

var (
	pubKeysBucket                 = []byte("pubkeys-bucket")
	highestSignedProposalBucket   = []byte("highest-signed-proposal-bucket")
	attestationSigningRootsBucket = []byte("attestation-signing-roots-bucket")
	attestationSourceEpochsBucket = []byte("attestation-source-epochs-bucket")
)

// Store is a bbolt-backed slashing protection database. Every
// check-and-insert runs inside a single bbolt write transaction: bbolt
// serializes all writers against the whole database, which already
// gives the "single writer per validator" property spec §4.9 asks for
// via "a single-row transaction", without a separate per-pubkey lock.
type Store struct {
	db           *bolt.DB
	databasePath string
}

const fileName = "slashing_protection.db"

// Open creates or opens the slashing-protection database at dirPath.
func Open(dirPath string) (*Store, error) {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		if err := os.MkdirAll(dirPath, 0700); err != nil {
			return nil, errors.Wrap(err, "could not create slashing protection directory")
		}
	}
	datafile := filepath.Join(dirPath, fileName)
	db, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, errors.New("cannot obtain slashing protection database lock, database may be in use by another process")
		}
		return nil, err
	}

	s := &Store{db: db, databasePath: dirPath}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{pubKeysBucket, highestSignedProposalBucket, attestationSigningRootsBucket, attestationSourceEpochsBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize slashing protection buckets")
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DatabasePath returns the directory this store writes to.
func (s *Store) DatabasePath() string {
	return s.databasePath
}

// CheckAndInsertBlock implements check_and_insert_block: rejects a
// proposal at or below the highest slot already signed for pubkey,
// otherwise records slot as the new highest and succeeds.
func (s *Store) CheckAndInsertBlock(pubkey Pubkey, slot types.Slot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(highestSignedProposalBucket)
		existing := bucket.Get(pubkey[:])
		if existing != nil {
			highest := types.Slot(bytesutil.BytesToUint64BigEndian(existing))
			if slot <= highest {
				return ErrDoubleBlockProposal
			}
		}
		return bucket.Put(pubkey[:], bytesutil.Uint64ToBytesBigEndian(uint64(slot)))
	})
}

// CheckAndInsertAttestation implements check_and_insert_attestation:
// rejects a double vote (same target epoch, different signing root)
// or a surround vote against any previously recorded (source, target)
// pair, otherwise records both and succeeds.
func (s *Store) CheckAndInsertAttestation(pubkey Pubkey, data *types.AttestationData, signingRoot types.Root) (SlashingKind, error) {
	var kind SlashingKind
	err := s.db.Update(func(tx *bolt.Tx) error {
		signingRoots, err := ensurePubkeyBucket(tx, attestationSigningRootsBucket, pubkey)
		if err != nil {
			return err
		}
		targetBytes := bytesutil.Uint64ToBytesBigEndian(uint64(data.Target.Epoch))
		if existing := signingRoots.Get(targetBytes); existing != nil {
			if !rootsEqual(existing, signingRoot) {
				kind = DoubleVote
				return ErrDoubleVote
			}
		}

		sourceEpochs, err := ensurePubkeyBucket(tx, attestationSourceEpochsBucket, pubkey)
		if err != nil {
			return err
		}
		cursor := sourceEpochs.Cursor()
		for sourceBytes, targetBytesPrev := cursor.First(); sourceBytes != nil; sourceBytes, targetBytesPrev = cursor.Next() {
			prevSource := types.Epoch(bytesutil.BytesToUint64BigEndian(sourceBytes))
			prevTarget := types.Epoch(bytesutil.BytesToUint64BigEndian(targetBytesPrev))
			if data.Source.Epoch < prevSource && data.Target.Epoch > prevTarget {
				kind = SurroundingVote
				return ErrSurroundingVote
			}
			if data.Source.Epoch > prevSource && data.Target.Epoch < prevTarget {
				kind = SurroundedVote
				return ErrSurroundedVote
			}
		}

		if err := signingRoots.Put(targetBytes, signingRoot[:]); err != nil {
			return err
		}
		return sourceEpochs.Put(bytesutil.Uint64ToBytesBigEndian(uint64(data.Source.Epoch)), targetBytes)
	})
	if err != nil {
		return kind, err
	}
	return NotSlashable, nil
}

func ensurePubkeyBucket(tx *bolt.Tx, parent []byte, pubkey Pubkey) (*bolt.Bucket, error) {
	bucket := tx.Bucket(parent)
	return bucket.CreateBucketIfNotExists(pubkey[:])
}

func rootsEqual(existing []byte, signingRoot types.Root) bool {
	if len(existing) != len(signingRoot) {
		return false
	}
	for i := range existing {
		if existing[i] != signingRoot[i] {
			return false
		}
	}
	return true
}
