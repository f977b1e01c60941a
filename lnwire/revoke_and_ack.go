package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// RevokeAndAck is sent in reply to a CommitSig once the receiver has
// verified and persisted the new commitment. It releases the
// per-commitment secret of the commitment it is replacing, irrevocably
// giving up the ability to broadcast that old state, and advances the
// sender's next per-commitment point.
type RevokeAndAck struct {
	ChanID ChannelID

	// Revocation is the per-commitment secret for the commitment number
	// being revoked.
	Revocation [32]byte

	NextPerCommitmentPoint *btcec.PublicKey
}

var _ Message = (*RevokeAndAck)(nil)

func (r2 *RevokeAndAck) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	r2.ChanID = cid

	if _, err := io.ReadFull(r, r2.Revocation[:]); err != nil {
		return err
	}

	r2.NextPerCommitmentPoint, err = ReadPublicKey(r)
	return err
}

func (r2 *RevokeAndAck) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, r2.ChanID); err != nil {
		return err
	}
	if err := WriteBytes(w, r2.Revocation[:]); err != nil {
		return err
	}
	return WritePublicKey(w, r2.NextPerCommitmentPoint)
}

func (r2 *RevokeAndAck) MsgType() MessageType { return MsgRevokeAndAck }

func (r2 *RevokeAndAck) MaxPayloadLength(uint32) uint32 { return 32 + 32 + 33 }
