package input

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// WitnessType determines how an output's witness will be generated. It acts
// as an abstraction layer hiding the details of a particular script from
// the sweeper and contract-resolution packages, which only need to know
// "this output requires this kind of witness" to spend it.
type WitnessType uint16

const (
	// CommitSpendTimeout spends a to_local output on our own commitment
	// after its CSV delay has matured.
	CommitSpendTimeout WitnessType = 0

	// CommitSpendNoDelay spends a to_remote output on the counterparty's
	// commitment, payable immediately.
	CommitSpendNoDelay WitnessType = 1

	// CommitSpendRevoke spends a to_local output on a commitment that
	// was subsequently revoked, using the derived revocation key.
	CommitSpendRevoke WitnessType = 2

	// HtlcOfferedRevoke spends an offered HTLC output on a commitment
	// that was subsequently revoked.
	HtlcOfferedRevoke WitnessType = 3

	// HtlcAcceptedRevoke spends an accepted HTLC output on a commitment
	// that was subsequently revoked.
	HtlcAcceptedRevoke WitnessType = 4

	// HtlcOfferedTimeout spends an offered HTLC on our own commitment
	// after its CLTV expiry has passed, via the second-level timeout
	// transaction.
	HtlcOfferedTimeout WitnessType = 5

	// HtlcAcceptedSuccess spends an accepted HTLC on our own commitment
	// by revealing the payment preimage, via the second-level success
	// transaction.
	HtlcAcceptedSuccess WitnessType = 6

	// HtlcSecondLevelTimeoutOrSuccess spends the output of a second-level
	// HTLC transaction once its own CSV delay has matured.
	HtlcSecondLevelTimeoutOrSuccess WitnessType = 7
)

// String returns a human-readable name for the witness type, used in logs
// when a sweep attempt fails and the operator needs to know what kind of
// output tripped it up.
func (wt WitnessType) String() string {
	switch wt {
	case CommitSpendTimeout:
		return "CommitSpendTimeout"
	case CommitSpendNoDelay:
		return "CommitSpendNoDelay"
	case CommitSpendRevoke:
		return "CommitSpendRevoke"
	case HtlcOfferedRevoke:
		return "HtlcOfferedRevoke"
	case HtlcAcceptedRevoke:
		return "HtlcAcceptedRevoke"
	case HtlcOfferedTimeout:
		return "HtlcOfferedTimeout"
	case HtlcAcceptedSuccess:
		return "HtlcAcceptedSuccess"
	case HtlcSecondLevelTimeoutOrSuccess:
		return "HtlcSecondLevelTimeoutOrSuccess"
	default:
		return "unknown"
	}
}

// Signer abstracts the ability to produce a raw signature for a given
// SignDescriptor. lnwallet's wallet-backed signer and any test stub satisfy
// this interface identically.
type Signer interface {
	SignOutputRaw(tx *wire.MsgTx, desc *SignDescriptor) ([]byte, error)
}

// SignDescriptor houses the information needed to sign a particular input
// of a transaction spending a Lightning-specific output: which key to sign
// with, the redeem script it commits to, and the value and index of the
// output being spent (needed for BIP-143 sighash digests).
type SignDescriptor struct {
	// KeyDesc identifies the private key the signer should use.
	KeyDesc KeyDescriptor

	// SingleTweak, when non-nil, is the tweak that must be applied to
	// the base private key before signing, per BOLT-3's per-commitment
	// key derivation.
	SingleTweak []byte

	// WitnessScript is the script the output being spent commits to.
	WitnessScript []byte

	// Output is the TxOut being spent.
	Output *wire.TxOut

	// HashType is the sighash flag to sign with.
	HashType txscript.SigHashType

	// SigHashes caches the BIP-143 midstate hashes for the transaction
	// being signed.
	SigHashes *txscript.TxSigHashes

	// InputIndex is the index of the input being signed within the
	// spending transaction.
	InputIndex int
}

// KeyDescriptor identifies a private key, either directly or via a
// key-family/index pair resolved against a wallet's key-derivation scheme.
type KeyDescriptor struct {
	PubKey *btcec.PublicKey
	Family uint32
	Index  uint32
}

// WitnessGenerator produces the final witness stack for a given input of a
// sweep transaction, hiding the particular script and signing details
// behind a single call signature.
type WitnessGenerator func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
	inputIndex int) (wire.TxWitness, error)

// GenWitnessFunc returns the WitnessGenerator appropriate for this witness
// type, closing over the signer and sign descriptor it needs.
func (wt WitnessType) GenWitnessFunc(signer Signer,
	descriptor *SignDescriptor) WitnessGenerator {

	return func(tx *wire.MsgTx, hc *txscript.TxSigHashes,
		inputIndex int) (wire.TxWitness, error) {

		desc := *descriptor
		desc.SigHashes = hc
		desc.InputIndex = inputIndex

		sig, err := signer.SignOutputRaw(tx, &desc)
		if err != nil {
			return nil, err
		}

		switch wt {
		case CommitSpendTimeout:
			return wire.TxWitness(CommitSpendTimeoutWitness(
				sig, desc.WitnessScript,
			)), nil
		case CommitSpendNoDelay:
			return wire.TxWitness(CommitSpendNoDelayWitness(
				sig, desc.KeyDesc.PubKey.SerializeCompressed(),
			)), nil
		case CommitSpendRevoke:
			return wire.TxWitness(CommitSpendRevokeWitness(
				sig, desc.WitnessScript,
			)), nil
		case HtlcOfferedRevoke, HtlcAcceptedRevoke:
			return wire.TxWitness(HtlcSpendRevokeWitness(
				sig, desc.KeyDesc.PubKey.SerializeCompressed(),
			)), nil
		case HtlcSecondLevelTimeoutOrSuccess:
			// The second-level output reuses CommitScriptToSelf
			// verbatim, so it shares CommitSpendTimeout's
			// non-revocation witness shape.
			return wire.TxWitness(CommitSpendTimeoutWitness(
				sig, desc.WitnessScript,
			)), nil
		default:
			return wire.TxWitness(CommitSpendTimeoutWitness(
				sig, desc.WitnessScript,
			)), nil
		}
	}
}
