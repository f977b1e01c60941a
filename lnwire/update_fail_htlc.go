package lnwire

import "io"

// UpdateFailHTLC is sent to cancel an HTLC that could not be resolved
// downstream, carrying an encrypted reason blob meant only for the sender
// who originated the payment (each hop along the way peels one layer of
// encryption).
type UpdateFailHTLC struct {
	ChanID ChannelID
	ID     uint64
	Reason []byte
}

var _ Message = (*UpdateFailHTLC)(nil)

func (u *UpdateFailHTLC) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	u.ChanID = cid

	if u.ID, err = ReadUint64(r); err != nil {
		return err
	}
	u.Reason, err = ReadVarBytes(r)
	return err
}

func (u *UpdateFailHTLC) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, u.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, u.ID); err != nil {
		return err
	}
	return WriteVarBytes(w, u.Reason)
}

func (u *UpdateFailHTLC) MsgType() MessageType { return MsgUpdateFailHTLC }

func (u *UpdateFailHTLC) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
