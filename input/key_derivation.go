package input

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
)

// singleTweakBytes returns the SHA-256 tweak used to derive a commitment's
// localpubkey/remotepubkey/delayedpubkey/htlcpubkey from a basepoint and the
// per-commitment point, per BOLT-3: SHA256(per_commitment_point ||
// basepoint).
func singleTweakBytes(commitPoint, basePoint *btcec.PublicKey) []byte {
	h := sha256.New()
	h.Write(commitPoint.SerializeCompressed())
	h.Write(basePoint.SerializeCompressed())
	return h.Sum(nil)
}

// TweakPubKey derives one of the per-commitment keys (localpubkey,
// remotepubkey, htlcpubkey) from its basepoint and the current
// per-commitment point:
//
//	tweakedPub := basePoint + SHA256(commitPoint || basePoint)*G
func TweakPubKey(basePoint, commitPoint *btcec.PublicKey) *btcec.PublicKey {
	tweakBytes := singleTweakBytes(commitPoint, basePoint)
	return addPubkeyTweak(basePoint, tweakBytes)
}

// TweakPrivKey derives the private key counterpart of TweakPubKey, used by
// the key's owner to sign with their per-commitment key:
//
//	tweakedPriv := basePriv + SHA256(commitPoint || basePoint) mod N
func TweakPrivKey(basePriv *btcec.PrivateKey, commitPoint *btcec.PublicKey) *btcec.PrivateKey {
	tweakBytes := singleTweakBytes(commitPoint, basePriv.PubKey())

	var tweakScalar btcec.ModNScalar
	tweakScalar.SetByteSlice(tweakBytes)

	privScalar := basePriv.Key
	privScalar.Add(&tweakScalar)

	return scalarToPrivKey(&privScalar)
}

// DeriveRevocationPubkey derives the revocation pubkey for a to_local
// output, per BOLT-3:
//
//	revocationPubkey := revocationBasepoint*SHA256(revocationBasepoint ||
//	    perCommitmentPoint) + perCommitmentPoint*SHA256(perCommitmentPoint
//	    || revocationBasepoint)
//
// Once the per-commitment secret behind commitPoint is later revealed, the
// counterparty can combine it with their own revocation basepoint private
// key to recover the private key for this point and sweep a broadcast,
// revoked commitment.
func DeriveRevocationPubkey(revBasePoint, commitPoint *btcec.PublicKey) *btcec.PublicKey {
	revTweak := revocationTweakBytes(revBasePoint, commitPoint)
	commitTweak := commitTweakBytes(revBasePoint, commitPoint)

	revPart := scalarMultPubkey(revBasePoint, revTweak)
	commitPart := scalarMultPubkey(commitPoint, commitTweak)

	return addPubkeyPoints(revPart, commitPart)
}

// DeriveRevocationPrivKey derives the private key behind
// DeriveRevocationPubkey once both the revocation basepoint secret and the
// per-commitment secret are known:
//
//	revocationPrivKey := revocationBasepointSecret*SHA256(revocationBasepoint
//	    || perCommitmentPoint) + perCommitmentSecret*SHA256(perCommitmentPoint
//	    || revocationBasepoint)
func DeriveRevocationPrivKey(revBasePriv *btcec.PrivateKey,
	commitPriv *btcec.PrivateKey) *btcec.PrivateKey {

	revBasePoint := revBasePriv.PubKey()
	commitPoint := commitPriv.PubKey()

	revTweak := revocationTweakBytes(revBasePoint, commitPoint)
	commitTweak := commitTweakBytes(revBasePoint, commitPoint)

	var revTweakScalar, commitTweakScalar btcec.ModNScalar
	revTweakScalar.SetByteSlice(revTweak)
	commitTweakScalar.SetByteSlice(commitTweak)

	revPart := revBasePriv.Key
	revPart.Mul(&revTweakScalar)

	commitPart := commitPriv.Key
	commitPart.Mul(&commitTweakScalar)

	revPart.Add(&commitPart)

	return scalarToPrivKey(&revPart)
}

func revocationTweakBytes(revBasePoint, commitPoint *btcec.PublicKey) []byte {
	h := sha256.New()
	h.Write(revBasePoint.SerializeCompressed())
	h.Write(commitPoint.SerializeCompressed())
	return h.Sum(nil)
}

func commitTweakBytes(revBasePoint, commitPoint *btcec.PublicKey) []byte {
	h := sha256.New()
	h.Write(commitPoint.SerializeCompressed())
	h.Write(revBasePoint.SerializeCompressed())
	return h.Sum(nil)
}

func addPubkeyTweak(base *btcec.PublicKey, tweak []byte) *btcec.PublicKey {
	var tweakScalar btcec.ModNScalar
	tweakScalar.SetByteSlice(tweak)

	var tweakPoint btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&tweakScalar, &tweakPoint)

	var basePoint btcec.JacobianPoint
	base.AsJacobian(&basePoint)

	var result btcec.JacobianPoint
	btcec.AddNonConst(&basePoint, &tweakPoint, &result)
	result.ToAffine()

	return btcec.NewPublicKey(&result.X, &result.Y)
}

func scalarMultPubkey(point *btcec.PublicKey, scalar []byte) *btcec.JacobianPoint {
	var scalarN btcec.ModNScalar
	scalarN.SetByteSlice(scalar)

	var p btcec.JacobianPoint
	point.AsJacobian(&p)

	var result btcec.JacobianPoint
	btcec.ScalarMultNonConst(&scalarN, &p, &result)
	result.ToAffine()
	return &result
}

func addPubkeyPoints(a, b *btcec.JacobianPoint) *btcec.PublicKey {
	var result btcec.JacobianPoint
	btcec.AddNonConst(a, b, &result)
	result.ToAffine()
	return btcec.NewPublicKey(&result.X, &result.Y)
}

func scalarToPrivKey(scalar *btcec.ModNScalar) *btcec.PrivateKey {
	scalarBytes := scalar.Bytes()
	return btcec.PrivKeyFromBytes(scalarBytes[:])
}
