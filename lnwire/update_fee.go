package lnwire

import "io"

// UpdateFee is sent by the channel funder to propose a new commitment
// feerate. Per spec.md §4.3, only the funder may send this message.
type UpdateFee struct {
	ChanID   ChannelID
	FeePerKw uint32
}

var _ Message = (*UpdateFee)(nil)

func (u *UpdateFee) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	u.ChanID = cid

	u.FeePerKw, err = ReadUint32(r)
	return err
}

func (u *UpdateFee) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, u.ChanID); err != nil {
		return err
	}
	return WriteUint32(w, u.FeePerKw)
}

func (u *UpdateFee) MsgType() MessageType { return MsgUpdateFee }

func (u *UpdateFee) MaxPayloadLength(uint32) uint32 { return 32 + 4 }
