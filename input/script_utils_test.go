package input

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
)

func randKey(t *testing.T, seed byte) *btcec.PrivateKey {
	t.Helper()
	buf := bytes.Repeat([]byte{seed}, 32)
	return btcec.PrivKeyFromBytes(buf)
}

func TestGenMultiSigScriptOrdersPubkeys(t *testing.T) {
	t.Parallel()

	keyA := randKey(t, 0x01).PubKey().SerializeCompressed()
	keyB := randKey(t, 0x02).PubKey().SerializeCompressed()

	script1, err := GenMultiSigScript(keyA, keyB)
	if err != nil {
		t.Fatalf("unable to generate multisig script: %v", err)
	}
	script2, err := GenMultiSigScript(keyB, keyA)
	if err != nil {
		t.Fatalf("unable to generate multisig script: %v", err)
	}

	if !bytes.Equal(script1, script2) {
		t.Fatalf("multisig script must not depend on argument order")
	}
}

func TestGenFundingPkScriptRejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()

	keyA := randKey(t, 0x01).PubKey().SerializeCompressed()
	keyB := randKey(t, 0x02).PubKey().SerializeCompressed()

	if _, _, err := GenFundingPkScript(keyA, keyB, 0); err == nil {
		t.Fatalf("expected error for zero-value funding output")
	}
}

func TestCommitScriptToSelfRoundTripsWitnessStacks(t *testing.T) {
	t.Parallel()

	selfKey := randKey(t, 0x03).PubKey()
	revKey := randKey(t, 0x04).PubKey()

	script, err := CommitScriptToSelf(144, selfKey, revKey)
	if err != nil {
		t.Fatalf("unable to build to_local script: %v", err)
	}
	if len(script) == 0 {
		t.Fatalf("expected non-empty witness script")
	}

	timeoutWitness := CommitSpendTimeoutWitness([]byte("sig"), script)
	if len(timeoutWitness) != 3 || timeoutWitness[1] != nil {
		t.Fatalf("timeout witness malformed: %v", timeoutWitness)
	}

	revokeWitness := CommitSpendRevokeWitness([]byte("sig"), script)
	if len(revokeWitness) != 3 || len(revokeWitness[1]) == 0 {
		t.Fatalf("revoke witness malformed: %v", revokeWitness)
	}
}

func TestSenderAndReceiverHTLCScriptsDiffer(t *testing.T) {
	t.Parallel()

	remoteKey := randKey(t, 0x05).PubKey()
	localKey := randKey(t, 0x06).PubKey()
	revKey := randKey(t, 0x07).PubKey()
	paymentHash := sha256.Sum256([]byte("preimage"))

	offered, err := SenderHTLCScript(remoteKey, localKey, revKey, paymentHash)
	if err != nil {
		t.Fatalf("unable to build offered htlc script: %v", err)
	}

	accepted, err := ReceiverHTLCScript(500, remoteKey, localKey, revKey, paymentHash)
	if err != nil {
		t.Fatalf("unable to build accepted htlc script: %v", err)
	}

	if bytes.Equal(offered, accepted) {
		t.Fatalf("offered and accepted htlc scripts must differ")
	}
}

func TestTxWeightEstimatorP2WKH(t *testing.T) {
	t.Parallel()

	var twe TxWeightEstimator
	twe.AddP2WKHInput().AddP2WKHOutput().AddP2WKHOutput()

	weight := twe.Weight()
	if weight <= 0 {
		t.Fatalf("expected positive weight, got %d", weight)
	}

	vsize := twe.VSize()
	if vsize <= 0 || vsize*WitnessScaleFactor < weight {
		t.Fatalf("vsize %d inconsistent with weight %d", vsize, weight)
	}
}

func TestDeriveRevocationKeysAreConsistent(t *testing.T) {
	t.Parallel()

	revBasePriv := randKey(t, 0x08)
	commitPriv := randKey(t, 0x09)

	revPub := DeriveRevocationPubkey(revBasePriv.PubKey(), commitPriv.PubKey())
	revPriv := DeriveRevocationPrivKey(revBasePriv, commitPriv)

	if !revPriv.PubKey().IsEqual(revPub) {
		t.Fatalf("derived revocation private key does not match public key")
	}
}

func TestTweakPubKeyMatchesTweakPrivKey(t *testing.T) {
	t.Parallel()

	basePriv := randKey(t, 0x0a)
	commitPriv := randKey(t, 0x0b)
	commitPoint := commitPriv.PubKey()

	tweakedPub := TweakPubKey(basePriv.PubKey(), commitPoint)
	tweakedPriv := TweakPrivKey(basePriv, commitPoint)

	if !tweakedPriv.PubKey().IsEqual(tweakedPub) {
		t.Fatalf("tweaked private key does not match tweaked public key")
	}
}
