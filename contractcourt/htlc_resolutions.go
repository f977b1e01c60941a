package contractcourt

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/input"
)

// endian is the byte order used throughout the package's Encode/Decode
// methods, matching the big-endian convention the rest of the repo's wire
// and database codecs use.
var endian = binary.BigEndian

// newResolverID derives a resolver's persistence key from the outpoint it
// resolves. Two resolvers can never collide on this key within the same
// channel, since no outpoint is ever spent by two different commitment
// outputs.
func newResolverID(op wire.OutPoint) [36]byte {
	var id [36]byte
	copy(id[:32], op.Hash[:])
	endian.PutUint32(id[32:], op.Index)
	return id
}

// OutgoingHtlcResolution houses the information required to resolve an
// outgoing (offered) HTLC that ended up on-chain, whether on our own
// commitment (via the second-level timeout transaction) or the remote
// party's (via a direct timeout-clause spend).
type OutgoingHtlcResolution struct {
	// Expiry is the absolute block height at which the HTLC times out.
	Expiry uint32

	// SignedTimeoutTx is the fully signed second-level HTLC timeout
	// transaction. It is nil when the HTLC landed on the remote party's
	// commitment, where the timeout clause is spent directly.
	SignedTimeoutTx *wire.MsgTx

	// CsvDelay is the relative locktime in blocks that must elapse after
	// SignedTimeoutTx confirms before its lone output can be swept. Zero
	// when SignedTimeoutTx is nil.
	CsvDelay uint32

	// ClaimOutpoint is the outpoint to watch for a spend: the output of
	// SignedTimeoutTx if present, otherwise the HTLC output directly on
	// the commitment transaction.
	ClaimOutpoint wire.OutPoint

	// SweepSignDesc is the sign descriptor needed to sweep
	// ClaimOutpoint to a wallet-controlled output once it is spendable.
	SweepSignDesc input.SignDescriptor
}

// IncomingHtlcResolution houses the information required to resolve an
// incoming (accepted) HTLC for which we know the payment preimage, whether
// it landed on our own commitment (via the second-level success
// transaction) or the remote party's (via a direct preimage-clause spend).
type IncomingHtlcResolution struct {
	// Preimage is the payment preimage that unlocks this HTLC.
	Preimage [32]byte

	// SignedSuccessTx is the fully signed second-level HTLC success
	// transaction. It is nil when the HTLC landed on the remote party's
	// commitment, where the preimage clause is spent directly.
	SignedSuccessTx *wire.MsgTx

	// CsvDelay is the relative locktime in blocks that must elapse after
	// SignedSuccessTx confirms before its lone output can be swept. Zero
	// when SignedSuccessTx is nil.
	CsvDelay uint32

	// ClaimOutpoint is the outpoint to watch for a spend: the output of
	// SignedSuccessTx if present, otherwise the HTLC output directly on
	// the commitment transaction.
	ClaimOutpoint wire.OutPoint

	// SweepSignDesc is the sign descriptor needed to sweep
	// ClaimOutpoint to a wallet-controlled output once it is spendable.
	SweepSignDesc input.SignDescriptor
}

// CommitOutputResolution houses the information needed to sweep our own
// to_local output on a confirmed commitment transaction once its CSV delay
// has matured.
type CommitOutputResolution struct {
	// SelfOutPoint is the to_local output on the confirmed commitment
	// transaction.
	SelfOutPoint wire.OutPoint

	// SelfOutputSignDesc is the sign descriptor needed to sweep
	// SelfOutPoint.
	SelfOutputSignDesc input.SignDescriptor

	// MaturityDelay is the relative locktime, in blocks, imposed on
	// SelfOutPoint by the commitment script.
	MaturityDelay uint32
}

func encodeSignDescriptor(w io.Writer, desc *input.SignDescriptor) error {
	if err := binary.Write(w, endian, desc.KeyDesc.Family); err != nil {
		return err
	}
	if err := binary.Write(w, endian, desc.KeyDesc.Index); err != nil {
		return err
	}

	var pubBytes []byte
	if desc.KeyDesc.PubKey != nil {
		pubBytes = desc.KeyDesc.PubKey.SerializeCompressed()
	}
	if err := wire.WriteVarBytes(w, 0, pubBytes); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, 0, desc.SingleTweak); err != nil {
		return err
	}
	if err := wire.WriteVarBytes(w, 0, desc.WitnessScript); err != nil {
		return err
	}

	if desc.Output == nil {
		return fmt.Errorf("sign descriptor missing output")
	}
	if err := binary.Write(w, endian, desc.Output.Value); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, 0, desc.Output.PkScript)
}

func decodeSignDescriptor(r io.Reader, desc *input.SignDescriptor) error {
	if err := binary.Read(r, endian, &desc.KeyDesc.Family); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &desc.KeyDesc.Index); err != nil {
		return err
	}

	pubBytes, err := wire.ReadVarBytes(r, 0, 66, "pubkey")
	if err != nil {
		return err
	}
	if len(pubBytes) > 0 {
		pubKey, err := parseCompressedPubKey(pubBytes)
		if err != nil {
			return err
		}
		desc.KeyDesc.PubKey = pubKey
	}

	desc.SingleTweak, err = wire.ReadVarBytes(r, 0, 32, "tweak")
	if err != nil {
		return err
	}
	desc.WitnessScript, err = wire.ReadVarBytes(r, 0, 520, "witness script")
	if err != nil {
		return err
	}

	var value int64
	if err := binary.Read(r, endian, &value); err != nil {
		return err
	}
	pkScript, err := wire.ReadVarBytes(r, 0, 34, "pkscript")
	if err != nil {
		return err
	}
	desc.Output = wire.NewTxOut(value, pkScript)

	return nil
}

func encodeOutgoingResolution(w io.Writer, res *OutgoingHtlcResolution) error {
	if err := binary.Write(w, endian, res.Expiry); err != nil {
		return err
	}

	hasTimeoutTx := res.SignedTimeoutTx != nil
	if err := binary.Write(w, endian, hasTimeoutTx); err != nil {
		return err
	}
	if hasTimeoutTx {
		if err := res.SignedTimeoutTx.Serialize(w); err != nil {
			return err
		}
	}

	if err := binary.Write(w, endian, res.CsvDelay); err != nil {
		return err
	}
	if err := writeOutPoint(w, res.ClaimOutpoint); err != nil {
		return err
	}
	return encodeSignDescriptor(w, &res.SweepSignDesc)
}

func decodeOutgoingResolution(r io.Reader, res *OutgoingHtlcResolution) error {
	if err := binary.Read(r, endian, &res.Expiry); err != nil {
		return err
	}

	var hasTimeoutTx bool
	if err := binary.Read(r, endian, &hasTimeoutTx); err != nil {
		return err
	}
	if hasTimeoutTx {
		res.SignedTimeoutTx = &wire.MsgTx{}
		if err := res.SignedTimeoutTx.Deserialize(r); err != nil {
			return err
		}
	}

	if err := binary.Read(r, endian, &res.CsvDelay); err != nil {
		return err
	}
	if err := readOutPoint(r, &res.ClaimOutpoint); err != nil {
		return err
	}
	return decodeSignDescriptor(r, &res.SweepSignDesc)
}

func encodeIncomingResolution(w io.Writer, res *IncomingHtlcResolution) error {
	if _, err := w.Write(res.Preimage[:]); err != nil {
		return err
	}

	hasSuccessTx := res.SignedSuccessTx != nil
	if err := binary.Write(w, endian, hasSuccessTx); err != nil {
		return err
	}
	if hasSuccessTx {
		if err := res.SignedSuccessTx.Serialize(w); err != nil {
			return err
		}
	}

	if err := binary.Write(w, endian, res.CsvDelay); err != nil {
		return err
	}
	if err := writeOutPoint(w, res.ClaimOutpoint); err != nil {
		return err
	}
	return encodeSignDescriptor(w, &res.SweepSignDesc)
}

func decodeIncomingResolution(r io.Reader, res *IncomingHtlcResolution) error {
	if _, err := io.ReadFull(r, res.Preimage[:]); err != nil {
		return err
	}

	var hasSuccessTx bool
	if err := binary.Read(r, endian, &hasSuccessTx); err != nil {
		return err
	}
	if hasSuccessTx {
		res.SignedSuccessTx = &wire.MsgTx{}
		if err := res.SignedSuccessTx.Deserialize(r); err != nil {
			return err
		}
	}

	if err := binary.Read(r, endian, &res.CsvDelay); err != nil {
		return err
	}
	if err := readOutPoint(r, &res.ClaimOutpoint); err != nil {
		return err
	}
	return decodeSignDescriptor(r, &res.SweepSignDesc)
}

func writeOutPoint(w io.Writer, op wire.OutPoint) error {
	if _, err := w.Write(op.Hash[:]); err != nil {
		return err
	}
	return binary.Write(w, endian, op.Index)
}

func readOutPoint(r io.Reader, op *wire.OutPoint) error {
	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return err
	}
	return binary.Read(r, endian, &op.Index)
}

func parseCompressedPubKey(b []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(b)
}
