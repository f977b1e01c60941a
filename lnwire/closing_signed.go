package lnwire

import (
	"io"

	"github.com/btcsuite/btcd/btcutil"
)

// ClosingSigned proposes (or counter-proposes) a mutual close fee during
// the closing_signed fee-bisection negotiation that follows Shutdown. Each
// message carries a signature valid for a closing transaction paying the
// proposed FeeSatoshis.
type ClosingSigned struct {
	ChanID      ChannelID
	FeeSatoshis btcutil.Amount
	Signature   Sig
	ExtraData   ExtraOpaqueData
}

var _ Message = (*ClosingSigned)(nil)

// NewClosingSigned returns a new ClosingSigned message.
func NewClosingSigned(cid ChannelID, fee btcutil.Amount,
	sig Sig) *ClosingSigned {

	return &ClosingSigned{
		ChanID:      cid,
		FeeSatoshis: fee,
		Signature:   sig,
	}
}

func (c *ClosingSigned) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	c.ChanID = cid

	if c.FeeSatoshis, err = ReadSatoshi(r); err != nil {
		return err
	}

	if c.Signature, err = ReadSig(r); err != nil {
		return err
	}

	return c.ExtraData.Decode(r)
}

func (c *ClosingSigned) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteSatoshi(w, c.FeeSatoshis); err != nil {
		return err
	}
	if err := WriteSig(w, c.Signature); err != nil {
		return err
	}
	return c.ExtraData.Encode(w)
}

func (c *ClosingSigned) MsgType() MessageType { return MsgClosingSigned }

func (c *ClosingSigned) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
