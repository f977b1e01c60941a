package lnwallet

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/input"
)

// mockSigner is a bare-bones input.Signer backed by a fixed set of private
// keys, looked up by matching public key. It ignores
// SignDescriptor.SingleTweak: to sign with a tweaked key, such as an HTLC
// key, a test registers the already-tweaked private key.
type mockSigner struct {
	privkeys []*btcec.PrivateKey
}

func (m *mockSigner) SignOutputRaw(tx *wire.MsgTx,
	signDesc *input.SignDescriptor) ([]byte, error) {

	privKey := m.findKey(signDesc.KeyDesc.PubKey)
	if privKey == nil {
		return nil, fmt.Errorf("mock signer: no matching private key")
	}

	sig, err := txscript.RawTxInWitnessSignature(
		tx, signDesc.SigHashes, signDesc.InputIndex,
		signDesc.Output.Value, signDesc.WitnessScript,
		signDesc.HashType, privKey,
	)
	if err != nil {
		return nil, err
	}

	return sig[:len(sig)-1], nil
}

func (m *mockSigner) findKey(pubkey *btcec.PublicKey) *btcec.PrivateKey {
	for _, priv := range m.privkeys {
		if priv.PubKey().IsEqual(pubkey) {
			return priv
		}
	}
	return nil
}

// newTestKey derives a deterministic private key from seed, for test
// fixtures that need a stable key across runs.
func newTestKey(seed byte) *btcec.PrivateKey {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = seed
	}
	return btcec.PrivKeyFromBytes(buf)
}
