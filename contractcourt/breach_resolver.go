package contractcourt

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/input"
)

// breachedOutput contains all the information needed to sweep a single
// output of a revoked commitment transaction: the counterparty's to_local
// output (now claimable via the revocation key) or one of the HTLC outputs
// the revoked state carried.
type breachedOutput struct {
	amt      int64
	outpoint wire.OutPoint

	signDesc    input.SignDescriptor
	witnessType input.WitnessType
}

// breachResolver exacts justice for a broadcast revoked commitment
// transaction: it sweeps the revoked party's balance and all HTLCs
// outstanding at that state into a single justice transaction before the
// revoking party's own timeouts let them reclaim anything. Our own balance
// on that commitment is not among the justice transaction's inputs; this
// resolver does not claim it. Adapts breacharbiter.go's createJusticeTx
// from a hardcoded two-input (self, revoked) justice transaction to the
// revoked output plus an arbitrary number of HTLC outputs.
type breachResolver struct {
	// commitHash is the txid of the broadcast revoked commitment.
	commitHash chainhash.Hash

	// breachHeight is the height at which the revoked commitment
	// confirmed.
	breachHeight uint32

	// outputs holds every output on the revoked commitment we're
	// entitled to sweep.
	outputs []breachedOutput

	// resolved reflects whether the justice transaction has confirmed.
	resolved bool

	// justiceTxid is set once the justice transaction has been
	// broadcast, so Resolve can pick back up waiting for its
	// confirmation across restarts.
	justiceTxid chainhash.Hash
	published   bool

	// signer produces signatures under the one-off revocation private
	// key reconstructed for this specific breached commitment. It takes
	// precedence over ResolverKit.Signer, which only knows the wallet's
	// ordinary channel keys.
	signer input.Signer

	ResolverKit
}

// ResolverKey returns an identifier unique to this resolver within the
// chain the contract resides on — the revoked commitment's txid, since a
// given commitment is only ever breached once.
//
// NOTE: Part of the ContractResolver interface.
func (b *breachResolver) ResolverKey() []byte {
	key := make([]byte, chainhash.HashSize)
	copy(key, b.commitHash[:])
	return key
}

// Resolve crafts and broadcasts the justice transaction sweeping every
// output of the revoked commitment, then waits for it to confirm.
//
// NOTE: Part of the ContractResolver interface.
func (b *breachResolver) Resolve() (ContractResolver, error) {
	if b.resolved {
		return nil, nil
	}

	if !b.published {
		justiceTx, err := b.createJusticeTx()
		if err != nil {
			return nil, fmt.Errorf("unable to create justice tx: %w", err)
		}

		log.Infof("broadcasting justice transaction %v for breached "+
			"commitment %v", justiceTx.TxHash(), b.commitHash)

		if err := b.PublishTx(justiceTx); err != nil {
			return nil, fmt.Errorf("unable to publish justice tx: %w", err)
		}

		b.justiceTxid = justiceTx.TxHash()
		b.published = true

		if err := b.Checkpoint(b); err != nil {
			log.Errorf("unable to Checkpoint: %v", err)
			return nil, err
		}
	}

	confNtfn, err := b.Notifier.RegisterConfirmationsNtfn(
		&b.justiceTxid, nil, 1, b.breachHeight,
	)
	if err != nil {
		return nil, err
	}

	select {
	case _, ok := <-confNtfn.Confirmed:
		if !ok {
			return nil, fmt.Errorf("notifier quit")
		}
	case <-b.Quit:
		return nil, fmt.Errorf("quitting")
	}

	b.resolved = true
	return nil, b.Checkpoint(b)
}

// createJusticeTx builds the fully signed transaction sweeping every
// breached output to a single wallet-controlled output, net of a flat
// chain fee.
func (b *breachResolver) createJusticeTx() (*wire.MsgTx, error) {
	pkScript, err := b.SweepAddr()
	if err != nil {
		return nil, err
	}

	var total int64
	for _, out := range b.outputs {
		total += out.amt
	}

	const justiceTxFee = 5000
	sweepAmt := total - justiceTxFee
	if sweepAmt <= 0 {
		return nil, fmt.Errorf("breached outputs total %v too small "+
			"to sweep after fees", total)
	}

	justiceTx := wire.NewMsgTx(2)
	justiceTx.AddTxOut(&wire.TxOut{
		PkScript: pkScript,
		Value:    sweepAmt,
	})
	for _, out := range b.outputs {
		justiceTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: out.outpoint,
		})
	}

	hashCache := txscript.NewTxSigHashes(justiceTx)
	for i, out := range b.outputs {
		desc := out.signDesc
		genWitness := out.witnessType.GenWitnessFunc(b.signer, &desc)
		witness, err := genWitness(justiceTx, hashCache, i)
		if err != nil {
			return nil, fmt.Errorf("unable to generate witness for "+
				"breached output %v: %w", out.outpoint, err)
		}
		justiceTx.TxIn[i].Witness = witness
	}

	return justiceTx, nil
}

// Stop signals the resolver to abandon any in-progress wait.
//
// NOTE: Part of the ContractResolver interface.
func (b *breachResolver) Stop() {
	close(b.Quit)
}

// IsResolved returns true once the justice transaction has confirmed.
//
// NOTE: Part of the ContractResolver interface.
func (b *breachResolver) IsResolved() bool {
	return b.resolved
}

// Encode writes an encoded version of the resolver to w.
//
// NOTE: Part of the ContractResolver interface.
func (b *breachResolver) Encode(w io.Writer) error {
	if _, err := w.Write(b.commitHash[:]); err != nil {
		return err
	}
	if err := binary.Write(w, endian, b.breachHeight); err != nil {
		return err
	}

	if err := binary.Write(w, endian, uint32(len(b.outputs))); err != nil {
		return err
	}
	for _, out := range b.outputs {
		if err := binary.Write(w, endian, out.amt); err != nil {
			return err
		}
		if err := writeOutPoint(w, out.outpoint); err != nil {
			return err
		}
		if err := encodeSignDescriptor(w, &out.signDesc); err != nil {
			return err
		}
		if err := binary.Write(w, endian, out.witnessType); err != nil {
			return err
		}
	}

	if err := binary.Write(w, endian, b.published); err != nil {
		return err
	}
	if _, err := w.Write(b.justiceTxid[:]); err != nil {
		return err
	}
	return binary.Write(w, endian, b.resolved)
}

// Decode reads an encoded breachResolver from r. The revocation private
// key is never persisted, so the caller must re-derive it (via
// deriveRevokedCommitKeys from the channel's shachain store) and assign it
// through AttachSigner before calling Resolve again after a restart.
//
// NOTE: Part of the ContractResolver interface.
func (b *breachResolver) Decode(r io.Reader) error {
	if _, err := io.ReadFull(r, b.commitHash[:]); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &b.breachHeight); err != nil {
		return err
	}

	var numOutputs uint32
	if err := binary.Read(r, endian, &numOutputs); err != nil {
		return err
	}
	b.outputs = make([]breachedOutput, numOutputs)
	for i := range b.outputs {
		if err := binary.Read(r, endian, &b.outputs[i].amt); err != nil {
			return err
		}
		if err := readOutPoint(r, &b.outputs[i].outpoint); err != nil {
			return err
		}
		if err := decodeSignDescriptor(r, &b.outputs[i].signDesc); err != nil {
			return err
		}
		if err := binary.Read(r, endian, &b.outputs[i].witnessType); err != nil {
			return err
		}
	}

	if err := binary.Read(r, endian, &b.published); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, b.justiceTxid[:]); err != nil {
		return err
	}
	return binary.Read(r, endian, &b.resolved)
}

// AttachResolverKit supplies the shared dependencies after decoding.
//
// NOTE: Part of the ContractResolver interface.
func (b *breachResolver) AttachResolverKit(r ResolverKit) {
	b.ResolverKit = r
}

// AttachSigner supplies the one-off revocation-key signer this resolver
// needs to build the justice transaction's witnesses. It must be called
// before Resolve whenever this resolver was constructed via Decode rather
// than NewBreachResolverFromRevokedState.
func (b *breachResolver) AttachSigner(signer input.Signer) {
	b.signer = signer
}

var _ ContractResolver = (*breachResolver)(nil)
