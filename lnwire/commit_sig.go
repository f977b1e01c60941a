package lnwire

import "io"

// CommitSig is sent by either side to stage a new commitment transaction
// for the receiver, along with the signatures for any non-dust HTLC
// transactions carried on that commitment. Sending this message advances
// the sender's view of the receiver's next commitment number.
type CommitSig struct {
	ChanID    ChannelID
	CommitSig Sig

	// HtlcSigs carries one signature per non-dust HTLC output on the new
	// commitment, in the same canonical order the outputs themselves
	// appear in.
	HtlcSigs []Sig
}

var _ Message = (*CommitSig)(nil)

func (c *CommitSig) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	c.ChanID = cid

	if c.CommitSig, err = ReadSig(r); err != nil {
		return err
	}

	numSigs, err := ReadUint16(r)
	if err != nil {
		return err
	}

	c.HtlcSigs = make([]Sig, numSigs)
	for i := 0; i < int(numSigs); i++ {
		if c.HtlcSigs[i], err = ReadSig(r); err != nil {
			return err
		}
	}

	return nil
}

func (c *CommitSig) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, c.ChanID); err != nil {
		return err
	}
	if err := WriteSig(w, c.CommitSig); err != nil {
		return err
	}
	if err := WriteUint16(w, uint16(len(c.HtlcSigs))); err != nil {
		return err
	}
	for _, sig := range c.HtlcSigs {
		if err := WriteSig(w, sig); err != nil {
			return err
		}
	}
	return nil
}

func (c *CommitSig) MsgType() MessageType { return MsgCommitSig }

func (c *CommitSig) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
