package shachain

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// TestProducerStoreRoundTrip verifies that every secret produced by a
// RevocationProducer can be stored by a RevocationStore and later looked up
// again bit-for-bit, walking the index space downward from the root the way
// a real channel would as it advances through commitments.
func TestProducerStoreRoundTrip(t *testing.T) {
	t.Parallel()

	root := chainhash.HashH([]byte("test shachain root seed"))
	producer := NewRevocationProducer(root)
	store := NewRevocationStore()

	for i := uint64(0); i < 10000; i++ {
		index := rootIndex - i

		secret, err := producer.AtIndex(index)
		if err != nil {
			t.Fatalf("unable to derive secret at index %d: %v",
				index, err)
		}

		if err := store.Store(*secret, index); err != nil {
			t.Fatalf("unable to store secret at index %d: %v",
				index, err)
		}

		looked, err := store.LookUp(index)
		if err != nil {
			t.Fatalf("unable to look up secret at index %d: %v",
				index, err)
		}

		if *looked != *secret {
			t.Fatalf("looked up secret does not match produced "+
				"secret at index %d", index)
		}
	}
}

// TestStoreDerivesEarlierIndices checks that once a handful of secrets have
// been stored, the store can derive every earlier index's secret without it
// ever having been stored directly.
func TestStoreDerivesEarlierIndices(t *testing.T) {
	t.Parallel()

	root := chainhash.HashH([]byte("another root seed"))
	producer := NewRevocationProducer(root)
	store := NewRevocationStore()

	const count = 256
	secrets := make([]chainhash.Hash, count)
	for i := 0; i < count; i++ {
		index := rootIndex - uint64(i)
		secret, err := producer.AtIndex(index)
		if err != nil {
			t.Fatalf("unable to derive secret: %v", err)
		}
		secrets[i] = *secret

		if err := store.Store(*secret, index); err != nil {
			t.Fatalf("unable to store secret: %v", err)
		}
	}

	for i := 0; i < count; i++ {
		index := rootIndex - uint64(i)
		looked, err := store.LookUp(index)
		if err != nil {
			t.Fatalf("unable to look up index %d: %v", index, err)
		}
		if *looked != secrets[i] {
			t.Fatalf("mismatched secret at index %d", index)
		}
	}
}

// TestStoreRejectsInconsistentSecret ensures the store detects a secret
// that does not derive an already-stored descendant, the condition that
// signals a misbehaving or buggy counterparty.
func TestStoreRejectsInconsistentSecret(t *testing.T) {
	t.Parallel()

	store := NewRevocationStore()

	if err := store.Store(chainhash.HashH([]byte("first")), rootIndex); err != nil {
		t.Fatalf("unable to store first secret: %v", err)
	}

	// A random, unrelated secret at the next index should fail: it
	// cannot derive the secret already stored at rootIndex.
	if err := store.Store(chainhash.HashH([]byte("unrelated")), rootIndex-1); err == nil {
		t.Fatalf("expected store to reject inconsistent secret")
	}
}

// TestRevocationProducerEncodeDecode checks that a producer's root secret
// round-trips through Encode/NewRevocationProducerFromBytes and continues
// to derive identical children afterward.
func TestRevocationProducerEncodeDecode(t *testing.T) {
	t.Parallel()

	root := chainhash.HashH([]byte("encode me"))
	producer := NewRevocationProducer(root)

	var buf bytes.Buffer
	if err := producer.Encode(&buf); err != nil {
		t.Fatalf("unable to encode producer: %v", err)
	}

	restored, err := NewRevocationProducerFromBytes(&buf)
	if err != nil {
		t.Fatalf("unable to decode producer: %v", err)
	}

	want, err := producer.AtIndex(rootIndex - 5)
	if err != nil {
		t.Fatalf("unable to derive from original producer: %v", err)
	}
	got, err := restored.AtIndex(rootIndex - 5)
	if err != nil {
		t.Fatalf("unable to derive from restored producer: %v", err)
	}

	if *want != *got {
		t.Fatalf("restored producer derived a different secret")
	}
}

// TestRevocationStoreEncodeDecode checks that a populated store round-trips
// through Encode/NewRevocationStoreFromBytes and still answers lookups
// identically afterward.
func TestRevocationStoreEncodeDecode(t *testing.T) {
	t.Parallel()

	root := chainhash.HashH([]byte("store encode seed"))
	producer := NewRevocationProducer(root)
	store := NewRevocationStore()

	for i := uint64(0); i < 64; i++ {
		index := rootIndex - i
		secret, err := producer.AtIndex(index)
		if err != nil {
			t.Fatalf("unable to derive secret: %v", err)
		}
		if err := store.Store(*secret, index); err != nil {
			t.Fatalf("unable to store secret: %v", err)
		}
	}

	var buf bytes.Buffer
	if err := store.Encode(&buf); err != nil {
		t.Fatalf("unable to encode store: %v", err)
	}

	restored, err := NewRevocationStoreFromBytes(&buf)
	if err != nil {
		t.Fatalf("unable to decode store: %v", err)
	}

	for i := uint64(0); i < 64; i++ {
		index := rootIndex - i
		want, err := store.LookUp(index)
		if err != nil {
			t.Fatalf("unable to look up original: %v", err)
		}
		got, err := restored.LookUp(index)
		if err != nil {
			t.Fatalf("unable to look up restored: %v", err)
		}
		if *want != *got {
			t.Fatalf("restored store disagrees at index %d", index)
		}
	}
}
