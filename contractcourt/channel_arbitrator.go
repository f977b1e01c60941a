package contractcourt

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/channeldb"
	"github.com/lnchan/lnnode/input"
)

// CloseType classifies how a channel's on-chain closure arrived, mirroring
// channeldb.ClosureType so the arbitrator can decide which resolver set to
// spawn without depending on channeldb's persistence concerns.
type CloseType uint8

const (
	// CloseCooperative means both parties signed off on a mutual close;
	// there is nothing left to resolve on-chain.
	CloseCooperative CloseType = iota

	// CloseLocalForce means we broadcast our own latest commitment.
	CloseLocalForce

	// CloseRemoteForce means the remote party broadcast their own latest
	// commitment.
	CloseRemoteForce

	// CloseBreach means the counterparty broadcast a commitment state
	// that was already revoked.
	CloseBreach
)

// ChannelArbitrator drives the ContractResolvers registered for a closed
// channel to completion. Which resolvers a close needs is decided by the
// caller, which adds them via AddResolver; the arbitrator does not inspect
// the close type itself. It is the coordinating layer breacharbiter.go's
// contractObserver loop played for a single channel, usable for all three
// non-cooperative close types instead of breaches alone.
type ChannelArbitrator struct {
	chanPoint wire.OutPoint
	kit       ResolverKit

	resolvers []ContractResolver
}

// NewChannelArbitrator constructs an arbitrator for chanPoint, ready to
// have resolvers added to it via AddResolver.
func NewChannelArbitrator(chanPoint wire.OutPoint,
	kit ResolverKit) *ChannelArbitrator {

	return &ChannelArbitrator{
		chanPoint: chanPoint,
		kit:       kit,
	}
}

// AddResolver registers a resolver to be driven by Resolve. Each concrete
// resolver type (htlcTimeoutResolver, htlcSuccessResolver,
// commitSweepResolver, breachResolver) is constructed by the caller, which
// has access to the channel and close-summary state needed to populate its
// fields; the arbitrator only needs the ContractResolver interface to drive
// it.
func (c *ChannelArbitrator) AddResolver(r ContractResolver) {
	r.AttachResolverKit(c.kit)
	c.resolvers = append(c.resolvers, r)
}

// Resolve drives every registered resolver to completion, in parallel,
// returning once all outputs of the closing transaction have been claimed
// or an unrecoverable error occurs. A resolver that produces a follow-up
// resolver (e.g. a second-level HTLC transaction needing its own wait) has
// that follow-up driven to completion too before Resolve returns for that
// output.
func (c *ChannelArbitrator) Resolve() error {
	errChan := make(chan error, len(c.resolvers))

	for _, r := range c.resolvers {
		go func(r ContractResolver) {
			for {
				next, err := r.Resolve()
				if err != nil {
					errChan <- fmt.Errorf("%v: %w", c.chanPoint, err)
					return
				}
				if next == nil {
					errChan <- nil
					return
				}

				next.AttachResolverKit(c.kit)
				r = next
			}
		}(r)
	}

	var firstErr error
	for range c.resolvers {
		if err := <-errChan; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// revokedCommitKeys holds the per-commitment keys needed to reconstruct a
// revoked commitment's scripts, derived once the revocation secret has been
// recovered from the shachain store.
type revokedCommitKeys struct {
	revocationPriv *btcec.PrivateKey
	revocationPub  *btcec.PublicKey
	localDelayPub  *btcec.PublicKey
	remotePayPub   *btcec.PublicKey
	localHtlcPub   *btcec.PublicKey
	remoteHtlcPub  *btcec.PublicKey
}

// deriveRevokedCommitKeys reconstructs the key ring used to build a revoked
// commitment's scripts, given the recovered per-commitment secret and the
// channel's static configuration. revBaseSecret is our revocation
// basepoint's private key; commitSecret is the counterparty's
// per-commitment secret for the breached state, recovered via
// shachain.Store.LookUp.
func deriveRevokedCommitKeys(revBaseSecret *btcec.PrivateKey,
	commitSecret *btcec.PrivateKey,
	localCfg, remoteCfg *channeldb.ChannelConfig) *revokedCommitKeys {

	commitPoint := commitSecret.PubKey()

	return &revokedCommitKeys{
		revocationPriv: input.DeriveRevocationPrivKey(
			revBaseSecret, commitSecret,
		),
		revocationPub: input.DeriveRevocationPubkey(
			localCfg.RevocationBasePoint, commitPoint,
		),
		localDelayPub: input.TweakPubKey(
			remoteCfg.DelayBasePoint, commitPoint,
		),
		remotePayPub: input.TweakPubKey(
			localCfg.PaymentBasePoint, commitPoint,
		),
		localHtlcPub: input.TweakPubKey(
			remoteCfg.HtlcBasePoint, commitPoint,
		),
		remoteHtlcPub: input.TweakPubKey(
			localCfg.HtlcBasePoint, commitPoint,
		),
	}
}

// buildBreachedOutputs reconstructs every output of a revoked commitment
// transaction into a breachedOutput ready for the justice transaction: the
// revoked party's to_local balance (claimed via the revocation key), and
// every HTLC output outstanding at that state (also claimed via the
// revocation key, since the breach is discovered strictly after the state
// was revoked). It generalizes breacharbiter.go's hardcoded
// self-output/revoked-output pair to however many HTLCs the breached state
// actually carried.
func buildBreachedOutputs(commitTx *wire.MsgTx, csvDelay uint32,
	htlcs []channeldb.HTLC, keys *revokedCommitKeys) ([]breachedOutput, error) {

	toLocalScript, err := input.CommitScriptToSelf(
		csvDelay, keys.localDelayPub, keys.revocationPub,
	)
	if err != nil {
		return nil, err
	}
	toLocalPkScript, err := input.WitnessScriptHash(toLocalScript)
	if err != nil {
		return nil, err
	}

	var outputs []breachedOutput
	for i, txOut := range commitTx.TxOut {
		if string(txOut.PkScript) != string(toLocalPkScript) {
			continue
		}

		outputs = append(outputs, breachedOutput{
			amt:      txOut.Value,
			outpoint: wire.OutPoint{Hash: commitTx.TxHash(), Index: uint32(i)},
			witnessType: input.CommitSpendRevoke,
			signDesc: input.SignDescriptor{
				KeyDesc: input.KeyDescriptor{
					PubKey: keys.revocationPriv.PubKey(),
				},
				WitnessScript: toLocalScript,
				Output:        txOut,
				HashType:      txscript.SigHashAll,
			},
		})
	}

	for _, htlc := range htlcs {
		var (
			script      []byte
			err         error
			witnessType input.WitnessType
		)
		if htlc.Incoming {
			script, err = input.ReceiverHTLCScript(
				htlc.RefundTimeout, keys.remoteHtlcPub,
				keys.localHtlcPub, keys.revocationPub, htlc.RHash,
			)
			witnessType = input.HtlcAcceptedRevoke
		} else {
			script, err = input.SenderHTLCScript(
				keys.remoteHtlcPub, keys.localHtlcPub,
				keys.revocationPub, htlc.RHash,
			)
			witnessType = input.HtlcOfferedRevoke
		}
		if err != nil {
			return nil, err
		}

		htlcPkScript, err := input.WitnessScriptHash(script)
		if err != nil {
			return nil, err
		}

		for i, txOut := range commitTx.TxOut {
			if string(txOut.PkScript) != string(htlcPkScript) {
				continue
			}

			outputs = append(outputs, breachedOutput{
				amt: txOut.Value,
				outpoint: wire.OutPoint{
					Hash: commitTx.TxHash(), Index: uint32(i),
				},
				witnessType: witnessType,
				signDesc: input.SignDescriptor{
					KeyDesc: input.KeyDescriptor{
						PubKey: keys.revocationPriv.PubKey(),
					},
					WitnessScript: script,
					Output:        txOut,
					HashType:      txscript.SigHashAll,
				},
			})
		}
	}

	return outputs, nil
}

// NewBreachResolverFromRevokedState reconstructs a breachResolver capable of
// sweeping every output of a broadcast, previously-revoked commitment
// transaction. commitSecret is the per-commitment secret for the breached
// state, recovered via shachain.Store.LookUp against the commit height
// encoded in the broadcast transaction; revBaseSecret is our own revocation
// basepoint private key.
func NewBreachResolverFromRevokedState(commitTx *wire.MsgTx,
	breachHeight, csvDelay uint32, htlcs []channeldb.HTLC,
	revBaseSecret, commitSecret *btcec.PrivateKey,
	localCfg, remoteCfg *channeldb.ChannelConfig) (*breachResolver, error) {

	keys := deriveRevokedCommitKeys(
		revBaseSecret, commitSecret, localCfg, remoteCfg,
	)

	outputs, err := buildBreachedOutputs(commitTx, csvDelay, htlcs, keys)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no breached outputs found on commitment %v",
			commitTx.TxHash())
	}

	return &breachResolver{
		commitHash:   commitTx.TxHash(),
		breachHeight: breachHeight,
		outputs:      outputs,
		signer:       newPrivKeySigner(keys.revocationPriv),
	}, nil
}

// privKeySigner is a minimal input.Signer backed by a fixed set of private
// keys, keyed by their compressed public key. It gives the breach resolver
// a signer capable of producing signatures under the one-off revocation
// private key reconstructed for a specific breached commitment, without
// requiring the wallet's general-purpose signer to know about revocation
// keys at all.
type privKeySigner struct {
	keys map[string]*btcec.PrivateKey
}

func newPrivKeySigner(keys ...*btcec.PrivateKey) *privKeySigner {
	s := &privKeySigner{keys: make(map[string]*btcec.PrivateKey, len(keys))}
	for _, k := range keys {
		s.keys[string(k.PubKey().SerializeCompressed())] = k
	}
	return s
}

// SignOutputRaw produces a raw signature for desc using the private key
// matching desc.KeyDesc.PubKey.
//
// NOTE: Part of the input.Signer interface.
func (s *privKeySigner) SignOutputRaw(tx *wire.MsgTx,
	desc *input.SignDescriptor) ([]byte, error) {

	priv, ok := s.keys[string(desc.KeyDesc.PubKey.SerializeCompressed())]
	if !ok {
		return nil, fmt.Errorf("no private key for %x",
			desc.KeyDesc.PubKey.SerializeCompressed())
	}

	sigHashes := desc.SigHashes
	if sigHashes == nil {
		sigHashes = txscript.NewTxSigHashes(tx)
	}

	sig, err := txscript.RawTxInWitnessSignature(
		tx, sigHashes, desc.InputIndex, desc.Output.Value,
		desc.WitnessScript, desc.HashType, priv,
	)
	if err != nil {
		return nil, err
	}

	return sig, nil
}

var _ input.Signer = (*privKeySigner)(nil)
