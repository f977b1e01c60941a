package lnwire

import "io"

// FundingCreated is sent by the funder once the funding transaction has been
// constructed (but not yet broadcast), carrying the funding outpoint and the
// funder's signature for the fundee's initial commitment transaction.
type FundingCreated struct {
	PendingChannelID [32]byte
	FundingTxid      [32]byte
	FundingOutputIdx uint16
	CommitSig        Sig
}

var _ Message = (*FundingCreated)(nil)

func (f *FundingCreated) Decode(r io.Reader, pver uint32) error {
	if _, err := io.ReadFull(r, f.PendingChannelID[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, f.FundingTxid[:]); err != nil {
		return err
	}
	idx, err := ReadUint16(r)
	if err != nil {
		return err
	}
	f.FundingOutputIdx = idx

	sig, err := ReadSig(r)
	if err != nil {
		return err
	}
	f.CommitSig = sig
	return nil
}

func (f *FundingCreated) Encode(w io.Writer, pver uint32) error {
	if err := WriteBytes(w, f.PendingChannelID[:]); err != nil {
		return err
	}
	if err := WriteBytes(w, f.FundingTxid[:]); err != nil {
		return err
	}
	if err := WriteUint16(w, f.FundingOutputIdx); err != nil {
		return err
	}
	return WriteSig(w, f.CommitSig)
}

func (f *FundingCreated) MsgType() MessageType { return MsgFundingCreated }

func (f *FundingCreated) MaxPayloadLength(uint32) uint32 { return 32 + 32 + 2 + 64 }

// FundingSigned completes the funder's commitment-signature exchange: it
// carries the fundee's signature over the funder's initial commitment
// transaction, keyed by the now-final ChannelID.
type FundingSigned struct {
	ChanID    ChannelID
	CommitSig Sig
}

var _ Message = (*FundingSigned)(nil)

func (f *FundingSigned) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	f.ChanID = cid

	sig, err := ReadSig(r)
	if err != nil {
		return err
	}
	f.CommitSig = sig
	return nil
}

func (f *FundingSigned) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, f.ChanID); err != nil {
		return err
	}
	return WriteSig(w, f.CommitSig)
}

func (f *FundingSigned) MsgType() MessageType { return MsgFundingSigned }

func (f *FundingSigned) MaxPayloadLength(uint32) uint32 { return 32 + 64 }
