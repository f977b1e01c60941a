package input

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// btcutilHash160 is a thin wrapper over btcutil.Hash160 (SHA-256 followed
// by RIPEMD-160), the digest BOLT-3's HTLC and revocation scripts use.
func btcutilHash160(data []byte) []byte {
	return btcutil.Hash160(data)
}

// GenMultiSigScript generates the non-P2SH 2-of-2 multisig redeem script for
// the funding output, with the two pubkeys in canonical lexicographic order
// so both sides derive the identical script independently.
func GenMultiSigScript(aPub, bPub []byte) ([]byte, error) {
	if len(aPub) != 33 || len(bPub) != 33 {
		return nil, fmt.Errorf("pubkey size error, compressed " +
			"pubkeys only")
	}

	if bytes.Compare(aPub, bPub) == 1 {
		aPub, bPub = bPub, aPub
	}

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_2)
	bldr.AddData(aPub)
	bldr.AddData(bPub)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	return bldr.Script()
}

// WitnessScriptHash generates a P2WSH pkScript paying to the given witness
// script.
func WitnessScriptHash(witnessScript []byte) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	scriptHash := sha256.Sum256(witnessScript)
	bldr.AddData(scriptHash[:])
	return bldr.Script()
}

// GenFundingPkScript creates the funding transaction's 2-of-2 redeem script
// and its P2WSH output paying the channel capacity to it.
func GenFundingPkScript(aPub, bPub []byte, amt int64) ([]byte, *wire.TxOut, error) {
	if amt <= 0 {
		return nil, nil, fmt.Errorf("can't create funding script " +
			"with non-positive amount")
	}

	redeemScript, err := GenMultiSigScript(aPub, bPub)
	if err != nil {
		return nil, nil, err
	}

	pkScript, err := WitnessScriptHash(redeemScript)
	if err != nil {
		return nil, nil, err
	}

	return redeemScript, wire.NewTxOut(amt, pkScript), nil
}

// SpendMultiSig generates the witness stack needed to spend the funding
// output's 2-of-2 P2WSH script, keeping the two signatures in the same
// order the redeem script's pubkeys were sorted into.
func SpendMultiSig(witnessScript, pubA, sigA, pubB, sigB []byte) [][]byte {
	witness := make([][]byte, 4)
	witness[0] = nil

	if bytes.Compare(pubA, pubB) == 1 {
		witness[1] = sigB
		witness[2] = sigA
	} else {
		witness[1] = sigA
		witness[2] = sigB
	}

	witness[3] = witnessScript
	return witness
}

// CommitScriptToSelf constructs the witness script paid to by a commitment
// transaction's to_local output, per BOLT-3: the owner can claim it after
// csvDelay confirmations via the delayed pubkey, or the counterparty can
// claim it immediately with the revocation pubkey if this commitment was
// ever revoked.
//
//	OP_IF
//	    <revocationpubkey>
//	OP_ELSE
//	    <csvDelay>
//	    OP_CHECKSEQUENCEVERIFY
//	    OP_DROP
//	    <local_delayedpubkey>
//	OP_ENDIF
//	OP_CHECKSIG
func CommitScriptToSelf(csvDelay uint32, selfKey,
	revocationKey *btcec.PublicKey) ([]byte, error) {

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_IF)
	bldr.AddData(revocationKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddInt64(int64(csvDelay))
	bldr.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddData(selfKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_ENDIF)
	bldr.AddOp(txscript.OP_CHECKSIG)
	return bldr.Script()
}

// CommitScriptToRemote returns the pkScript for the to_remote output of a
// commitment transaction: a plain P2WKH paid directly to the counterparty's
// payment key, spendable immediately and with no revocation path, since a
// breach is only ever punished through the broadcaster's own to_local
// output.
func CommitScriptToRemote(remoteKey *btcec.PublicKey) ([]byte, error) {
	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_0)
	bldr.AddData(btcutilHash160(remoteKey.SerializeCompressed()))
	return bldr.Script()
}

// CommitSpendTimeoutWitness constructs the witness satisfying
// CommitScriptToSelf along the CSV-matured, non-revoked path.
func CommitSpendTimeoutWitness(sweepSig []byte, witnessScript []byte) [][]byte {
	return [][]byte{sweepSig, nil, witnessScript}
}

// CommitSpendRevokeWitness constructs the witness satisfying
// CommitScriptToSelf along the revocation path, given the revoking party's
// signature.
func CommitSpendRevokeWitness(revokeSig []byte, witnessScript []byte) [][]byte {
	return [][]byte{revokeSig, {1}, witnessScript}
}

// CommitSpendNoDelayWitness constructs the standard P2WKH witness spending a
// to_remote output.
func CommitSpendNoDelayWitness(sig, pubKey []byte) [][]byte {
	return [][]byte{sig, pubKey}
}

// HtlcSpendRevokeWitness constructs the witness satisfying the revocation
// branch of SenderHTLCScript/ReceiverHTLCScript: the script's OP_DUP
// OP_HASH160 <revocationHash> OP_EQUAL guard expects the revocation pubkey
// on top of the stack ahead of the signature, same shape as a plain P2PKH
// spend rather than CommitSpendRevokeWitness's OP_IF-selector stack.
func HtlcSpendRevokeWitness(sig, revocationPubKey []byte) [][]byte {
	return [][]byte{sig, revocationPubKey}
}

// SenderHTLCScript constructs the witness script for an offered (outgoing)
// HTLC output on the sender's own commitment transaction, per BOLT-3: the
// receiver can claim it immediately by revealing the payment preimage, the
// sender can reclaim it after the HTLC's CLTV expiry via a second-level
// timeout transaction, and the revocation key claims it immediately if the
// commitment was revoked.
func SenderHTLCScript(remoteHtlcKey, localHtlcKey,
	revocationKey *btcec.PublicKey, paymentHash [32]byte) ([]byte, error) {

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_DUP)
	bldr.AddOp(txscript.OP_HASH160)
	revocationHash := btcutilHash160(revocationKey.SerializeCompressed())
	bldr.AddData(revocationHash)
	bldr.AddOp(txscript.OP_EQUAL)
	bldr.AddOp(txscript.OP_IF)
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddData(remoteHtlcKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_SWAP)
	bldr.AddOp(txscript.OP_SIZE)
	bldr.AddInt64(32)
	bldr.AddOp(txscript.OP_EQUAL)
	bldr.AddOp(txscript.OP_IF)
	bldr.AddOp(txscript.OP_HASH160)
	bldr.AddData(input160(paymentHash[:]))
	bldr.AddOp(txscript.OP_EQUALVERIFY)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_SWAP)
	bldr.AddData(localHtlcKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ENDIF)
	bldr.AddOp(txscript.OP_ENDIF)
	return bldr.Script()
}

// ReceiverHTLCScript constructs the witness script for an accepted
// (incoming) HTLC output on the receiver's own commitment transaction: the
// receiver claims it by revealing the preimage, the offerer reclaims it
// after the CLTV expiry, and the revocation key claims it immediately if
// the commitment was revoked.
func ReceiverHTLCScript(cltvExpiry uint32, remoteHtlcKey, localHtlcKey,
	revocationKey *btcec.PublicKey, paymentHash [32]byte) ([]byte, error) {

	bldr := txscript.NewScriptBuilder()
	bldr.AddOp(txscript.OP_DUP)
	bldr.AddOp(txscript.OP_HASH160)
	revocationHash := btcutilHash160(revocationKey.SerializeCompressed())
	bldr.AddData(revocationHash)
	bldr.AddOp(txscript.OP_EQUAL)
	bldr.AddOp(txscript.OP_IF)
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddData(remoteHtlcKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_SWAP)
	bldr.AddOp(txscript.OP_SIZE)
	bldr.AddInt64(32)
	bldr.AddOp(txscript.OP_EQUAL)
	bldr.AddOp(txscript.OP_IF)
	bldr.AddOp(txscript.OP_HASH160)
	bldr.AddData(input160(paymentHash[:]))
	bldr.AddOp(txscript.OP_EQUALVERIFY)
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_SWAP)
	bldr.AddData(localHtlcKey.SerializeCompressed())
	bldr.AddOp(txscript.OP_2)
	bldr.AddOp(txscript.OP_CHECKMULTISIG)
	bldr.AddOp(txscript.OP_ELSE)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddInt64(int64(cltvExpiry))
	bldr.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	bldr.AddOp(txscript.OP_DROP)
	bldr.AddOp(txscript.OP_CHECKSIG)
	bldr.AddOp(txscript.OP_ENDIF)
	bldr.AddOp(txscript.OP_ENDIF)
	return bldr.Script()
}

// input160 hashes data with SHA-256 then RIPEMD-160, the HASH160 operation
// BOLT-3's HTLC scripts use over the payment hash.
func input160(data []byte) []byte {
	return btcutilHash160(data)
}
