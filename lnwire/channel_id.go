package lnwire

import (
	"bytes"

	"github.com/btcsuite/btcd/wire"
)

// ChannelID is a unique identifier for a particular channel. It is computed
// from the funding txid and the output index of the funding output, via
// funding_txid XOR output_index (big-endian, zero-extended to 32 bytes).
// Before the funding outpoint is known, a PendingChannelID is used in its
// place, carried in the same 32-byte field.
type ChannelID [32]byte

// NewChanIDFromOutPoint derives the canonical ChannelID for the funding
// outpoint of a channel, per BOLT-2.
func NewChanIDFromOutPoint(op *wire.OutPoint) ChannelID {
	var cid ChannelID
	copy(cid[:], op.Hash[:])

	cid[30] ^= byte(op.Index >> 8)
	cid[31] ^= byte(op.Index)

	return cid
}

// String returns the hex representation of the ChannelID.
func (c ChannelID) String() string {
	return bytesToHexReversed(c[:])
}

// IsZero returns true if the ChannelID is the all-zero value used in some
// protocol contexts to mean "no specific channel" (e.g. an Error sent before
// a channel has a final ID).
func (c ChannelID) IsZero() bool {
	var zero ChannelID
	return bytes.Equal(c[:], zero[:])
}

func bytesToHexReversed(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		j := (len(b) - 1 - i) * 2
		out[j] = hextable[v>>4]
		out[j+1] = hextable[v&0x0f]
	}
	return string(out)
}
