package lnwire

import (
	"fmt"
	"io"
)

// ShortChannelID encodes the funding transaction's confirmed on-chain
// location: the block it was mined in, its index within that block, and
// the index of the funding output itself.
type ShortChannelID struct {
	BlockHeight uint32
	TxIndex     uint32
	TxPosition  uint16
}

// NewShortChanIDFromInt decodes the packed 8-byte big-endian form BOLT-7
// uses on the wire (and BOLT-11's `r` hint fields) back into its three
// components.
func NewShortChanIDFromInt(chanID uint64) ShortChannelID {
	return ShortChannelID{
		BlockHeight: uint32(chanID >> 40),
		TxIndex:     uint32(chanID>>16) & 0xffffff,
		TxPosition:  uint16(chanID),
	}
}

// ToUint64 packs the short channel ID into its 8-byte big-endian wire form.
func (c ShortChannelID) ToUint64() uint64 {
	return (uint64(c.BlockHeight) << 40) |
		(uint64(c.TxIndex) << 16) |
		uint64(c.TxPosition)
}

// String returns the conventional blockxtxxoutput representation.
func (c ShortChannelID) String() string {
	return fmt.Sprintf("%dx%dx%d", c.BlockHeight, c.TxIndex, c.TxPosition)
}

// Encode writes the packed form of the short channel ID.
func (c ShortChannelID) Encode(w io.Writer) error {
	return WriteUint64(w, c.ToUint64())
}

// Decode reads the packed form of a short channel ID.
func (c *ShortChannelID) Decode(r io.Reader) error {
	packed, err := ReadUint64(r)
	if err != nil {
		return err
	}
	*c = NewShortChanIDFromInt(packed)
	return nil
}
