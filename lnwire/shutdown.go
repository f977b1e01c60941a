package lnwire

import "io"

// Shutdown initiates or continues the mutual close flow. Either side may
// send it once there are no outstanding HTLCs it's willing to add; the
// ScriptPubkey is where the sender wants its final settlement output paid.
type Shutdown struct {
	ChanID       ChannelID
	ScriptPubkey []byte
	ExtraData    ExtraOpaqueData
}

var _ Message = (*Shutdown)(nil)

// NewShutdown returns a new Shutdown message targeting the given channel.
func NewShutdown(cid ChannelID, script []byte) *Shutdown {
	return &Shutdown{
		ChanID:       cid,
		ScriptPubkey: script,
	}
}

func (s *Shutdown) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	s.ChanID = cid

	if s.ScriptPubkey, err = ReadVarBytes(r); err != nil {
		return err
	}

	return s.ExtraData.Decode(r)
}

func (s *Shutdown) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, s.ChanID); err != nil {
		return err
	}
	if err := WriteVarBytes(w, s.ScriptPubkey); err != nil {
		return err
	}
	return s.ExtraData.Encode(w)
}

func (s *Shutdown) MsgType() MessageType { return MsgShutdown }

func (s *Shutdown) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
