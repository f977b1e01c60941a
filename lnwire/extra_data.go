package lnwire

import (
	"bytes"
	"io"

	"github.com/lightningnetwork/lnd/tlv"
)

// ExtraOpaqueData is the set of bytes that are appended to a BOLT-2 message
// to fill out the full message, carrying optional TLV extension records
// (such as UpfrontShutdownScript) that this node may not fully understand.
// ExtraOpaqueData round-trips unknown records intact so a relaying node
// never drops data a future software version might depend on.
type ExtraOpaqueData []byte

// PackRecords serializes a set of TLV records into the target
// ExtraOpaqueData instance.
func (e *ExtraOpaqueData) PackRecords(records ...tlv.Record) error {
	tlvStream, err := tlv.NewStream(records...)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	if err := tlvStream.Encode(&b); err != nil {
		return err
	}

	*e = b.Bytes()

	return nil
}

// ExtractRecords attempts to extract the set of records from the internal
// opaque byte slice into the target records. Any records parsed that aren't
// the target records are returned as a separate TLV map, keyed by type.
func (e *ExtraOpaqueData) ExtractRecords(records ...tlv.Record) (
	map[uint64][]byte, error) {

	tlvStream, err := tlv.NewStream(records...)
	if err != nil {
		return nil, err
	}

	extraBytesReader := bytes.NewReader(*e)

	tlvMap, err := tlvStream.DecodeWithParsedTypes(extraBytesReader)
	if err != nil {
		return nil, err
	}

	return tlvMap, nil
}

// Encode writes the opaque data to w verbatim, with no length prefix, the
// shape it takes as the tail of a BOLT-2 message.
func (e ExtraOpaqueData) Encode(w io.Writer) error {
	return WriteBytes(w, e)
}

// Decode reads the remaining bytes of a message (already framed by the
// outer message-length accounting) into the opaque data.
func (e *ExtraOpaqueData) Decode(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	*e = b
	return nil
}
