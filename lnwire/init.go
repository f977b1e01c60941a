package lnwire

import "io"

// Init is the first message reciprocated between any two peers. It conveys
// both parties' local and global feature vectors so both sides can
// determine supported/required features before proceeding to channel
// establishment.
type Init struct {
	// GlobalFeatures is the set of features advertised to the entire
	// network.
	GlobalFeatures *RawFeatureVector

	// Features is the set of features only relevant to this connection.
	Features *RawFeatureVector
}

// NewInitMessage creates a new Init message from the two feature vectors.
func NewInitMessage(gf, f *RawFeatureVector) *Init {
	return &Init{
		GlobalFeatures: gf,
		Features:       f,
	}
}

var _ Message = (*Init)(nil)

// Decode deserializes an Init message from r.
func (msg *Init) Decode(r io.Reader, pver uint32) error {
	msg.GlobalFeatures = NewRawFeatureVector()
	if err := msg.GlobalFeatures.Decode(r); err != nil {
		return err
	}

	msg.Features = NewRawFeatureVector()
	return msg.Features.Decode(r)
}

// Encode serializes the Init message to w.
func (msg *Init) Encode(w io.Writer, pver uint32) error {
	if err := msg.GlobalFeatures.Encode(w); err != nil {
		return err
	}
	return msg.Features.Encode(w)
}

// MsgType returns the message's unique identifying integer.
func (msg *Init) MsgType() MessageType {
	return MsgInit
}

// MaxPayloadLength returns the maximum payload this message type permits.
func (msg *Init) MaxPayloadLength(uint32) uint32 {
	return 2 + maxAllowedSize + 2 + maxAllowedSize
}

// Ping is sent periodically to keep a peer connection alive and to verify
// the remote party is responsive.
type Ping struct {
	// NumPongBytes is the number of bytes the Pong reply should carry.
	NumPongBytes uint16

	// PaddingBytes is ignored filler.
	PaddingBytes []byte
}

var _ Message = (*Ping)(nil)

func (msg *Ping) Decode(r io.Reader, pver uint32) error {
	n, err := ReadUint16(r)
	if err != nil {
		return err
	}
	msg.NumPongBytes = n

	pad, err := ReadVarBytes(r)
	if err != nil {
		return err
	}
	msg.PaddingBytes = pad
	return nil
}

func (msg *Ping) Encode(w io.Writer, pver uint32) error {
	if err := WriteUint16(w, msg.NumPongBytes); err != nil {
		return err
	}
	return WriteVarBytes(w, msg.PaddingBytes)
}

func (msg *Ping) MsgType() MessageType { return MsgPing }

func (msg *Ping) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }

// Pong is the reply to a Ping.
type Pong struct {
	PongBytes []byte
}

var _ Message = (*Pong)(nil)

func (msg *Pong) Decode(r io.Reader, pver uint32) error {
	b, err := ReadVarBytes(r)
	if err != nil {
		return err
	}
	msg.PongBytes = b
	return nil
}

func (msg *Pong) Encode(w io.Writer, pver uint32) error {
	return WriteVarBytes(w, msg.PongBytes)
}

func (msg *Pong) MsgType() MessageType { return MsgPong }

func (msg *Pong) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
