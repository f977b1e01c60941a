package shachain

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// element is a single stored bucket entry: the secret received at a given
// index and how many of its trailing bits are known to be zero (its
// "height" in the shachain tree).
type element struct {
	index  uint64
	height uint8
	secret chainhash.Hash
}

// Store is implemented by the side of a channel that receives
// per-commitment secrets from its counterparty's Producer and must verify
// and retain enough of them to later derive any of them on demand.
type Store interface {
	// LookUp returns the secret for the given index, deriving it from a
	// stored ancestor bucket if it is not held directly.
	LookUp(index uint64) (*chainhash.Hash, error)

	// Store inserts a newly received secret. The index is implied to be
	// one less than the previous insertion; the secret must be
	// consistent with every previously stored bucket or Store returns an
	// error rather than accept state that could let a counterparty later
	// claim a stale commitment.
	Store(secret chainhash.Hash, index uint64) error

	// Encode serializes the store's retained buckets to w.
	Encode(w io.Writer) error
}

// RevocationStore implements the receiving side of BOLT-3 Appendix D: a
// bucket-insertion shachain that retains at most maxHeight+1 secrets
// regardless of how many commitments the channel runs through, using the
// fact that receiving a secret at index i lets the store derive every
// index j > i whose bits above the lowest zero bit of i match.
type RevocationStore struct {
	buckets [maxHeight + 1]*element

	// numValid tracks how many of the maxHeight+1 buckets currently hold
	// a secret so LookUp knows how far it can search.
	numValid uint8
}

// NewRevocationStore returns an empty RevocationStore, ready to receive the
// first secret (conventionally at index rootIndex).
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{}
}

// countTrailingZeros returns the number of trailing zero bits in index,
// which is the bucket height BOLT-3 assigns to a secret received at that
// index: the number of low bits that are free to vary in any descendant.
func countTrailingZeros(index uint64) uint8 {
	if index == 0 {
		return maxHeight
	}

	var zeros uint8
	for zeros = 0; zeros < maxHeight; zeros++ {
		if (index>>uint(zeros))&1 != 0 {
			break
		}
	}
	return zeros
}

// Store inserts secret, received for the given index, after verifying it
// derives every previously stored bucket it should be able to reach.
func (s *RevocationStore) Store(secret chainhash.Hash, index uint64) error {
	height := countTrailingZeros(index)

	// Every bucket below this one's height must already be populated:
	// the counterparty is only allowed to skip revealing a secret when
	// this one derives it, which requires the bucket it would have gone
	// in to already be known.
	for b := uint8(0); b < height; b++ {
		if s.buckets[b] == nil {
			return fmt.Errorf("shachain: cannot store secret at "+
				"index %d, bucket %d not yet populated",
				index, b)
		}
	}

	// Verify against every bucket whose index shares the higher bits of
	// this one: if our new secret can derive that bucket's secret, the
	// counterparty is behaving and that bucket becomes redundant.
	for b := uint8(0); b < height; b++ {
		bucket := s.buckets[b]

		derived := deriveChild(secret, index, bucket.index)
		if derived != bucket.secret {
			return fmt.Errorf("shachain: secret at index %d does "+
				"not derive previously stored secret at "+
				"index %d", index, bucket.index)
		}
	}

	s.buckets[height] = &element{
		index:  index,
		height: height,
		secret: secret,
	}

	// Buckets below height are now derivable from this one; drop them.
	for b := uint8(0); b < height; b++ {
		s.buckets[b] = nil
	}

	if height+1 > s.numValid {
		s.numValid = height + 1
	}

	return nil
}

// LookUp returns the secret for index, either because it is held directly
// in a bucket or because some bucket can derive it.
func (s *RevocationStore) LookUp(index uint64) (*chainhash.Hash, error) {
	for b := uint8(0); b < uint8(len(s.buckets)); b++ {
		bucket := s.buckets[b]
		if bucket == nil {
			continue
		}

		// A bucket can derive index only if index agrees with the
		// bucket's own index on every bit above the bucket's height.
		mask := ^uint64(0) << bucket.height
		if bucket.index&mask != index&mask {
			continue
		}

		derived := deriveChild(bucket.secret, bucket.index, index)
		return &derived, nil
	}

	return nil, fmt.Errorf("shachain: no bucket can derive secret at "+
		"index %d", index)
}

// Encode serializes the store as a count-prefixed list of (height, index,
// secret) entries, the populated-bucket analogue of the elkrem receiver's
// historic wire format.
func (s *RevocationStore) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{s.numValid}); err != nil {
		return err
	}

	for b := uint8(0); b < s.numValid; b++ {
		bucket := s.buckets[b]
		if bucket == nil {
			if _, err := w.Write([]byte{0}); err != nil {
				return err
			}
			continue
		}

		if _, err := w.Write([]byte{1, bucket.height}); err != nil {
			return err
		}
		if err := writeUint64(w, bucket.index); err != nil {
			return err
		}
		if _, err := w.Write(bucket.secret[:]); err != nil {
			return err
		}
	}

	return nil
}

// NewRevocationStoreFromBytes reconstructs a RevocationStore previously
// written by Encode.
func NewRevocationStoreFromBytes(r io.Reader) (*RevocationStore, error) {
	s := NewRevocationStore()

	var countBuf [1]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	count := countBuf[0]

	for b := uint8(0); b < count; b++ {
		var present [1]byte
		if _, err := io.ReadFull(r, present[:]); err != nil {
			return nil, err
		}
		if present[0] == 0 {
			continue
		}

		var heightBuf [1]byte
		if _, err := io.ReadFull(r, heightBuf[:]); err != nil {
			return nil, err
		}

		index, err := readUint64(r)
		if err != nil {
			return nil, err
		}

		var secret chainhash.Hash
		if _, err := io.ReadFull(r, secret[:]); err != nil {
			return nil, err
		}

		s.buckets[b] = &element{
			index:  index,
			height: heightBuf[0],
			secret: secret,
		}
		s.numValid = b + 1
	}

	return s, nil
}
