// Package input holds the witness-script templates, weight accounting, and
// generic outpoint abstraction shared by the commitment, sweep, and
// contract-resolution code: anything that needs to know how to spend a
// Lightning-specific output rather than just hold one.
package input

const (
	// P2WSHSize is the length of a P2WSH pkScript: OP_0 <32-byte hash>.
	P2WSHSize = 1 + 1 + 32

	// P2WKHSize is the length of a P2WPKH pkScript: OP_0 <20-byte hash>.
	P2WKHSize = 1 + 1 + 20

	// P2WKHOutputSize is a P2WPKH TxOut's serialized size: 8-byte value +
	// varint length + P2WKHSize.
	P2WKHOutputSize = 8 + 1 + P2WKHSize

	// P2WSHOutputSize is a P2WSH TxOut's serialized size: 8-byte value +
	// varint length + P2WSHSize.
	P2WSHOutputSize = 8 + 1 + P2WSHSize

	// P2WKHWitnessSize is the witness size of a standard P2WPKH spend:
	// signature + pubkey, each length-prefixed.
	P2WKHWitnessSize = 1 + 73 + 1 + 33

	// MultiSigSize is the serialized size of the 2-of-2 funding redeem
	// script: OP_2 <pubkeyA> <pubkeyB> OP_2 OP_CHECKMULTISIG.
	MultiSigSize = 1 + 1 + 33 + 1 + 33 + 1 + 1

	// WitnessScaleFactor is the divisor BIP-141 defines for converting a
	// weight unit count into a virtual size (vbyte) count.
	WitnessScaleFactor = 4

	// InputSize is a TxIn's serialized size excluding witness data:
	// 32-byte prevout hash + 4-byte index + 1-byte empty scriptSig
	// length + 4-byte sequence.
	InputSize = 32 + 4 + 1 + 4

	// ToLocalScriptSize is the length of the to_local output's witness
	// script: revocation pubkey branch or CSV-delayed local-delay-pubkey
	// branch. OP_IF, a 33-byte revocation key push, OP_ELSE, a CSV delay
	// push of at most 4 bytes, OP_CHECKSEQUENCEVERIFY, OP_DROP, a 33-byte
	// delay key push, OP_ENDIF, OP_CHECKSIG.
	ToLocalScriptSize = 1 + 1 + 33 + 1 + 1 + 4 + 1 + 1 + 1 + 33 + 1 + 1

	// ToLocalTimeoutWitnessSize is the witness size for the delayed
	// (CSV-matured) spend path of a to_local output: one empty vector to
	// choose the non-revocation branch, a signature, and the witness
	// script.
	ToLocalTimeoutWitnessSize = 1 + 1 + 73 + 1 + ToLocalScriptSize

	// ToLocalPenaltyWitnessSize is the witness size for the revocation
	// spend path of a to_local output: a signature, a single non-empty
	// byte selecting the revocation branch, and the witness script.
	ToLocalPenaltyWitnessSize = 1 + 73 + 1 + 1 + 1 + ToLocalScriptSize

	// OfferedHtlcScriptSize is the approximate length of an offered
	// (outgoing) HTLC's witness script.
	OfferedHtlcScriptSize = 133

	// AcceptedHtlcScriptSize is the approximate length of an accepted
	// (incoming) HTLC's witness script.
	AcceptedHtlcScriptSize = 139

	// HtlcSuccessWitnessSize is the witness size for spending an offered
	// HTLC output with the preimage on the remote party's commitment:
	// two signatures, the preimage, and the witness script.
	HtlcSuccessWitnessSize = 1 + 1 + 73 + 1 + 73 + 1 + 32 + 1 + OfferedHtlcScriptSize

	// HtlcTimeoutWitnessSize is the witness size for spending an
	// accepted HTLC output after its timeout on the remote party's
	// commitment: two signatures and the witness script.
	HtlcTimeoutWitnessSize = 1 + 1 + 73 + 1 + 73 + 1 + AcceptedHtlcScriptSize

	// HtlcSecondLevelInputSize is the weight added by an input spending
	// an HTLC-success or HTLC-timeout second-level transaction.
	HtlcSecondLevelInputSize = InputSize + (HtlcSuccessWitnessSize / WitnessScaleFactor)

	// HtlcOfferedRevokeWitnessSize is the witness size for claiming an
	// offered HTLC output on a revoked commitment via the revocation
	// key: a signature, the revocation pubkey, and the witness script.
	HtlcOfferedRevokeWitnessSize = 1 + 73 + 1 + 33 + 1 + OfferedHtlcScriptSize

	// HtlcAcceptedRevokeWitnessSize is the witness size for claiming an
	// accepted HTLC output on a revoked commitment via the revocation
	// key.
	HtlcAcceptedRevokeWitnessSize = 1 + 73 + 1 + 33 + 1 + AcceptedHtlcScriptSize
)

// TxWeightEstimator accumulates the weight of a transaction being built up
// incrementally, mirroring the fee-estimation helper btcwallet's txrules
// package expects callers to supply, specialized with Lightning's own
// witness shapes.
type TxWeightEstimator struct {
	hasWitness      bool
	inputCount      uint32
	outputCount     uint32
	inputSize       int
	inputWitnessSize int
	outputSize      int
}

// AddP2WKHInput updates the weight estimate to account for an additional
// P2WPKH input.
func (twe *TxWeightEstimator) AddP2WKHInput() *TxWeightEstimator {
	twe.inputCount++
	twe.inputSize += InputSize
	twe.inputWitnessSize += P2WKHWitnessSize
	twe.hasWitness = true
	return twe
}

// AddWitnessInput updates the weight estimate to account for an additional
// input with the given witness size, for Lightning-specific spend paths.
func (twe *TxWeightEstimator) AddWitnessInput(witnessSize int) *TxWeightEstimator {
	twe.inputCount++
	twe.inputSize += InputSize
	twe.inputWitnessSize += witnessSize
	twe.hasWitness = true
	return twe
}

// AddP2WKHOutput updates the weight estimate to account for an additional
// P2WPKH output.
func (twe *TxWeightEstimator) AddP2WKHOutput() *TxWeightEstimator {
	twe.outputCount++
	twe.outputSize += P2WKHOutputSize
	return twe
}

// AddP2WSHOutput updates the weight estimate to account for an additional
// P2WSH output.
func (twe *TxWeightEstimator) AddP2WSHOutput() *TxWeightEstimator {
	twe.outputCount++
	twe.outputSize += P2WSHOutputSize
	return twe
}

// Weight returns the estimated weight of the transaction, in weight units,
// as BIP-141 defines them.
func (twe *TxWeightEstimator) Weight() int {
	baseSize := 4 + 1 + twe.inputSize + 1 + twe.outputSize + 4
	witnessSize := twe.inputWitnessSize
	if twe.hasWitness {
		witnessSize += 2 // segwit marker + flag
	}
	return baseSize*WitnessScaleFactor + witnessSize
}

// VSize returns the estimated virtual size of the transaction, in vbytes.
func (twe *TxWeightEstimator) VSize() int {
	w := twe.Weight()
	return (w + WitnessScaleFactor - 1) / WitnessScaleFactor
}
