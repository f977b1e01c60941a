package lnwire

import "io"

// OnionPacketSize is the fixed size, in bytes, of the Sphinx onion routing
// packet carried by every UpdateAddHTLC.
const OnionPacketSize = 1366

// UpdateAddHTLC is sent by either side to offer a new HTLC to the other
// party's commitment transaction.
type UpdateAddHTLC struct {
	ChanID ChannelID

	// ID is the index this HTLC will occupy within the proposing side's
	// update log (spec §3's HtlcId).
	ID uint64

	Amount      MilliSatoshi
	PaymentHash [32]byte
	Expiry      uint32

	OnionBlob [OnionPacketSize]byte
}

var _ Message = (*UpdateAddHTLC)(nil)

func (u *UpdateAddHTLC) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	u.ChanID = cid

	if u.ID, err = ReadUint64(r); err != nil {
		return err
	}
	if u.Amount, err = ReadMilliSatoshi(r); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, u.PaymentHash[:]); err != nil {
		return err
	}
	if u.Expiry, err = ReadUint32(r); err != nil {
		return err
	}
	_, err = io.ReadFull(r, u.OnionBlob[:])
	return err
}

func (u *UpdateAddHTLC) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, u.ChanID); err != nil {
		return err
	}
	if err := WriteUint64(w, u.ID); err != nil {
		return err
	}
	if err := WriteMilliSatoshi(w, u.Amount); err != nil {
		return err
	}
	if err := WriteBytes(w, u.PaymentHash[:]); err != nil {
		return err
	}
	if err := WriteUint32(w, u.Expiry); err != nil {
		return err
	}
	return WriteBytes(w, u.OnionBlob[:])
}

func (u *UpdateAddHTLC) MsgType() MessageType { return MsgUpdateAddHTLC }

func (u *UpdateAddHTLC) MaxPayloadLength(uint32) uint32 {
	return 32 + 8 + 8 + 32 + 4 + OnionPacketSize
}
