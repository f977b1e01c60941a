package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ChannelReestablish is exchanged by both peers immediately after
// reconnection, before any other channel traffic, so each side can detect
// whether the two commitment chains are still in sync and recover if not.
// NextLocalCommitHeight is the commitment height the sender expects to
// receive next; RemoteCommitTailHeight is the highest commitment height the
// sender has revoked.
type ChannelReestablish struct {
	ChanID ChannelID

	NextLocalCommitHeight  uint64
	RemoteCommitTailHeight uint64

	// LastRemoteCommitSecret is the per-commitment secret the sender
	// believes it last received from its counterparty, proving it has not
	// lost state. Zero if the sender has not yet received any commitment.
	LastRemoteCommitSecret [32]byte

	// LocalUnrevokedCommitPoint is the sender's current, as-yet-unrevoked
	// per-commitment point, allowing the counterparty to rebuild or
	// re-sign state if it detects it has fallen behind.
	LocalUnrevokedCommitPoint *btcec.PublicKey
}

var _ Message = (*ChannelReestablish)(nil)

func (c *ChannelReestablish) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	c.ChanID = cid

	if c.NextLocalCommitHeight, err = ReadUint64(r); err != nil {
		return err
	}
	if c.RemoteCommitTailHeight, err = ReadUint64(r); err != nil {
		return err
	}

	// The optional data-loss-protection fields are only present if more
	// bytes remain; an older peer may send only the first two fields.
	n, err := io.ReadFull(r, c.LastRemoteCommitSecret[:])
	if err == io.EOF || n == 0 {
		return nil
	}
	if err != nil {
		return err
	}

	c.LocalUnrevokedCommitPoint, err = ReadPublicKey(r)
	return err
}

func (c *ChannelReestablish) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, c.NextLocalCommitHeight); err != nil {
		return err
	}
	if err := WriteUint64(w, c.RemoteCommitTailHeight); err != nil {
		return err
	}

	if c.LocalUnrevokedCommitPoint == nil {
		return nil
	}

	if err := WriteBytes(w, c.LastRemoteCommitSecret[:]); err != nil {
		return err
	}
	return WritePublicKey(w, c.LocalUnrevokedCommitPoint)
}

func (c *ChannelReestablish) MsgType() MessageType { return MsgChannelReestablish }

func (c *ChannelReestablish) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
