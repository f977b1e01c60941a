package lnwire

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Sig is a fixed 64-byte compact representation of an ECDSA signature, as
// used on the wire for commitment_signed and closing_signed. Unlike the
// BOLT-11 invoice signature, wire signatures do not carry a recovery byte:
// the signer's identity is already known from the peer connection.
type Sig [64]byte

// NewSigFromSignature converts a DER/compact ecdsa.Signature into the fixed
// 64-byte wire format (32-byte R || 32-byte S).
func NewSigFromSignature(e *ecdsa.Signature) (Sig, error) {
	var sig Sig
	if e == nil {
		return sig, fmt.Errorf("cannot encode nil signature")
	}

	b := e.Serialize()
	// Serialize() returns a DER-encoded signature; re-derive raw R || S
	// by round-tripping through btcec's fixed-size parser so the wire
	// format is always exactly 64 bytes regardless of DER padding.
	rs, err := parseDERToRS(b)
	if err != nil {
		return sig, err
	}
	copy(sig[:], rs)

	return sig, nil
}

// ToSignature parses the fixed 64-byte wire representation back into an
// ecdsa.Signature usable for verification.
func (s Sig) ToSignature() (*ecdsa.Signature, error) {
	rBytes := s[:32]
	sBytes := s[32:]

	var r, sVal btcec.ModNScalar
	if overflow := r.SetByteSlice(rBytes); overflow {
		return nil, fmt.Errorf("invalid sig: r overflows mod N")
	}
	if overflow := sVal.SetByteSlice(sBytes); overflow {
		return nil, fmt.Errorf("invalid sig: s overflows mod N")
	}

	return ecdsa.NewSignature(&r, &sVal), nil
}

// parseDERToRS extracts the raw 32-byte R and S values from a DER-encoded
// ECDSA signature produced by btcec/v2/ecdsa.Signature.Serialize.
func parseDERToRS(der []byte) ([]byte, error) {
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 64)
	r := sig.R()
	s := sig.S()
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(out[0:32], rBytes[:])
	copy(out[32:64], sBytes[:])

	return out, nil
}
