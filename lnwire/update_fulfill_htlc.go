package lnwire

import "io"

// UpdateFulfillHTLC is sent by the receiver of an HTLC to settle it by
// revealing the payment preimage once it has been resolved downstream.
type UpdateFulfillHTLC struct {
	ChanID ChannelID

	// ID denotes the HTLC, within the counterparty's offered update log,
	// being settled.
	ID uint64

	PaymentPreimage [32]byte
}

// NewUpdateFulfillHTLC returns a new empty UpdateFulfillHTLC.
func NewUpdateFulfillHTLC(chanID ChannelID, id uint64,
	preimage [32]byte) *UpdateFulfillHTLC {

	return &UpdateFulfillHTLC{
		ChanID:          chanID,
		ID:              id,
		PaymentPreimage: preimage,
	}
}

var _ Message = (*UpdateFulfillHTLC)(nil)

func (c *UpdateFulfillHTLC) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	c.ChanID = cid

	if c.ID, err = ReadUint64(r); err != nil {
		return err
	}
	_, err = io.ReadFull(r, c.PaymentPreimage[:])
	return err
}

func (c *UpdateFulfillHTLC) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, c.ID); err != nil {
		return err
	}
	return WriteBytes(w, c.PaymentPreimage[:])
}

func (c *UpdateFulfillHTLC) MsgType() MessageType { return MsgUpdateFulfillHTLC }

func (c *UpdateFulfillHTLC) MaxPayloadLength(uint32) uint32 { return 32 + 8 + 32 }
