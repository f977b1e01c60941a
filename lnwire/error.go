package lnwire

import "io"

// Error is sent by either side to report a protocol violation or other
// failure. A zero ChanID applies to the whole connection and should be
// followed by disconnection; a non-zero ChanID names the single channel at
// fault, which the recipient should force-close.
type Error struct {
	ChanID ChannelID
	Data   []byte
}

var _ Message = (*Error)(nil)

// NewError returns a connection-wide Error carrying the given message text.
func NewError(msg string) *Error {
	return &Error{
		Data: []byte(msg),
	}
}

// Error implements the error interface so Error can be passed around and
// wrapped like any other Go error.
func (e *Error) Error() string {
	return string(e.Data)
}

func (e *Error) Decode(r io.Reader, pver uint32) error {
	cid, err := ReadChannelID(r)
	if err != nil {
		return err
	}
	e.ChanID = cid

	e.Data, err = ReadVarBytes(r)
	return err
}

func (e *Error) Encode(w io.Writer, pver uint32) error {
	if err := WriteChannelID(w, e.ChanID); err != nil {
		return err
	}
	return WriteVarBytes(w, e.Data)
}

func (e *Error) MsgType() MessageType { return MsgError }

func (e *Error) MaxPayloadLength(uint32) uint32 { return MaxMessagePayload }
