package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
)

// FundingLocked is sent by both channel participants once they have
// observed the funding transaction reach the channel's configured
// confirmation depth. It carries the sender's second per-commitment point,
// needed by the counterparty to build the sender's next commitment.
type FundingLocked struct {
	ChanID                 ChannelID
	NextPerCommitmentPoint *btcec.PublicKey
}

// NewFundingLocked creates a new FundingLocked message.
func NewFundingLocked(cid ChannelID, npcp *btcec.PublicKey) *FundingLocked {
	return &FundingLocked{
		ChanID:                 cid,
		NextPerCommitmentPoint: npcp,
	}
}

var _ Message = (*FundingLocked)(nil)

func (f *FundingLocked) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	f.ChanID = cid

	f.NextPerCommitmentPoint, err = ReadPublicKey(r)
	return err
}

func (f *FundingLocked) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, f.ChanID); err != nil {
		return err
	}
	return WritePublicKey(w, f.NextPerCommitmentPoint)
}

func (f *FundingLocked) MsgType() MessageType { return MsgFundingLocked }

func (f *FundingLocked) MaxPayloadLength(uint32) uint32 { return 32 + 33 }
