package lnwire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// WriteUint16 writes a big-endian uint16 to w.
func WriteUint16(w io.Writer, i uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], i)
	_, err := w.Write(b[:])
	return err
}

// WriteUint32 writes a big-endian uint32 to w.
func WriteUint32(w io.Writer, i uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], i)
	_, err := w.Write(b[:])
	return err
}

// WriteUint64 writes a big-endian uint64 to w.
func WriteUint64(w io.Writer, i uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	_, err := w.Write(b[:])
	return err
}

// WriteBytes writes a raw byte slice to w verbatim (no length prefix — the
// caller's wire format dictates a fixed or already-framed length).
func WriteBytes(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

// WriteSatoshi writes a btcutil.Amount as a big-endian uint64.
func WriteSatoshi(w io.Writer, amt btcutil.Amount) error {
	return WriteUint64(w, uint64(amt))
}

// WriteMilliSatoshi writes a MilliSatoshi as a big-endian uint64.
func WriteMilliSatoshi(w io.Writer, m MilliSatoshi) error {
	return WriteUint64(w, uint64(m))
}

// WritePublicKey writes a secp256k1 public key in 33-byte compressed form.
func WritePublicKey(w io.Writer, pub *btcec.PublicKey) error {
	if pub == nil {
		return fmt.Errorf("cannot write nil public key")
	}
	return WriteBytes(w, pub.SerializeCompressed())
}

// WriteChannelID writes the 32-byte ChannelID.
func WriteChannelID(w io.Writer, cid ChannelID) error {
	return WriteBytes(w, cid[:])
}

// WriteOutPoint writes a wire.OutPoint as 32-byte txid followed by a
// big-endian uint32 output index, matching BOLT-2's funding_txid/output_index
// pair.
func WriteOutPoint(w io.Writer, op wire.OutPoint) error {
	if err := WriteBytes(w, op.Hash[:]); err != nil {
		return err
	}
	return WriteUint32(w, op.Index)
}

// WriteSig writes the fixed 64-byte compact signature.
func WriteSig(w io.Writer, sig Sig) error {
	return WriteBytes(w, sig[:])
}

// WriteBool writes a single byte boolean.
func WriteBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

// WriteVarBytes writes a 2-byte big-endian length prefix followed by the
// bytes themselves, the pattern BOLT-2 uses for variable-length fields such
// as UpfrontShutdownScript and error data.
func WriteVarBytes(w io.Writer, b []byte) error {
	if len(b) > 65535 {
		return fmt.Errorf("byte slice too long to encode: %d", len(b))
	}
	if err := WriteUint16(w, uint16(len(b))); err != nil {
		return err
	}
	return WriteBytes(w, b)
}

// ReadUint16 reads a big-endian uint16 from r.
func ReadUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// ReadUint32 reads a big-endian uint32 from r.
func ReadUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// ReadUint64 reads a big-endian uint64 from r.
func ReadUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// ReadSatoshi reads a big-endian uint64 into a btcutil.Amount.
func ReadSatoshi(r io.Reader) (btcutil.Amount, error) {
	v, err := ReadUint64(r)
	if err != nil {
		return 0, err
	}
	return btcutil.Amount(v), nil
}

// ReadMilliSatoshi reads a big-endian uint64 into a MilliSatoshi.
func ReadMilliSatoshi(r io.Reader) (MilliSatoshi, error) {
	v, err := ReadUint64(r)
	if err != nil {
		return 0, err
	}
	return MilliSatoshi(v), nil
}

// ReadPublicKey reads a 33-byte compressed secp256k1 public key.
func ReadPublicKey(r io.Reader) (*btcec.PublicKey, error) {
	var b [33]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return nil, err
	}
	return btcec.ParsePubKey(b[:])
}

// ReadChannelID reads the 32-byte ChannelID.
func ReadChannelID(r io.Reader) (ChannelID, error) {
	var cid ChannelID
	_, err := io.ReadFull(r, cid[:])
	return cid, err
}

// ReadOutPoint reads a wire.OutPoint (32-byte txid + big-endian uint32
// index).
func ReadOutPoint(r io.Reader) (wire.OutPoint, error) {
	var op wire.OutPoint
	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return op, err
	}
	idx, err := ReadUint32(r)
	if err != nil {
		return op, err
	}
	op.Index = idx
	return op, nil
}

// ReadSig reads the fixed 64-byte compact signature.
func ReadSig(r io.Reader) (Sig, error) {
	var sig Sig
	_, err := io.ReadFull(r, sig[:])
	return sig, err
}

// ReadBool reads a single byte boolean.
func ReadBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadVarBytes reads a 2-byte big-endian length prefix followed by that many
// bytes.
func ReadVarBytes(r io.Reader) ([]byte, error) {
	length, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
