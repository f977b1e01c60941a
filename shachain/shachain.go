// Package shachain implements the per-commitment secret hierarchy described
// in BOLT-3 Appendix D. A shachain lets the funder of either side of a
// channel derive and hand out secrets for a decreasing sequence of
// commitment heights while only ever storing O(log n) of them, and lets the
// receiver of those secrets reconstruct any earlier one it has not been
// given directly but has the means to derive.
package shachain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// maxHeight is the number of bits in a shachain index, fixing the maximum
// number of commitments a channel may run through before the per-commitment
// index space is exhausted.
const maxHeight uint8 = 48

// rootIndex is the first index a shachain produces from; the chain counts
// down from here as the channel advances through successive commitments.
const rootIndex = (uint64(1) << maxHeight) - 1

// CommitHeightToIndex converts a commitment height, which counts up from
// zero as a channel advances, to the shachain index that height's
// per-commitment secret is derived at and stored under, which counts down
// from rootIndex.
func CommitHeightToIndex(height uint64) uint64 {
	return rootIndex - height
}

// flip returns hash with bit position b (counting from the least
// significant bit) toggled.
func flip(hash chainhash.Hash, b uint8) chainhash.Hash {
	byteNumber := b / 8
	bitNumber := b % 8

	hash[byteNumber] ^= 1 << bitNumber
	return hash
}

// deriveChild derives the descendant of hash, held at index `from`, at
// index `to`. Per BOLT-3, for every bit position from maxHeight-1 down to 0
// at which `from` and `to` differ, the corresponding bit of the hash is
// flipped and the result is re-hashed with a single SHA-256 pass.
func deriveChild(hash chainhash.Hash, from, to uint64) chainhash.Hash {
	for i := int(maxHeight) - 1; i >= 0; i-- {
		fromBit := (from >> uint(i)) & 1
		toBit := (to >> uint(i)) & 1

		if fromBit == toBit {
			continue
		}

		hash = flip(hash, uint8(i))
		hash = chainhash.HashH(hash[:])
	}

	return hash
}
