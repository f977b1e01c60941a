package contractcourt

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/input"
)

// utxoNursery publishes the transactions that claim the outputs of a
// force-closed commitment transaction: IncubateOutputs broadcasts any
// second-level HTLC transaction required, and sweepMatureOutput builds and
// broadcasts a one-input sweep to a wallet-controlled output. The nursery
// does not wait for confirmations or CSV delays itself; the calling
// resolver does that before asking it to sweep. It mirrors the nursery
// breacharbiter.go's force closure path leans on.
type utxoNursery struct {
	notifier ChainNotifier
	signer   input.Signer
	publish  func(*wire.MsgTx) error
	sweepPkScript func() ([]byte, error)
}

func newUtxoNursery(notifier ChainNotifier, signer input.Signer,
	publish func(*wire.MsgTx) error,
	sweepPkScript func() ([]byte, error)) *utxoNursery {

	return &utxoNursery{
		notifier:      notifier,
		signer:        signer,
		publish:       publish,
		sweepPkScript: sweepPkScript,
	}
}

// IncubateOutputs drives a commitment, outgoing-HTLC, and/or incoming-HTLC
// resolution through to maturity. Second-level transactions are broadcast
// immediately; the caller's resolver is the one that waits for confirmation
// and CSV maturity before calling back in to sweep.
func (n *utxoNursery) IncubateOutputs(chanPoint wire.OutPoint,
	commitRes *CommitOutputResolution, outRes *OutgoingHtlcResolution,
	inRes *IncomingHtlcResolution, broadcastHeight uint32) error {

	if outRes != nil && outRes.SignedTimeoutTx != nil {
		log.Infof("%v: publishing second-level timeout tx %v",
			chanPoint, outRes.SignedTimeoutTx.TxHash())
		if err := n.publish(outRes.SignedTimeoutTx); err != nil {
			return fmt.Errorf("unable to publish timeout tx: %w", err)
		}
	}

	if inRes != nil && inRes.SignedSuccessTx != nil {
		log.Infof("%v: publishing second-level success tx %v",
			chanPoint, inRes.SignedSuccessTx.TxHash())
		if err := n.publish(inRes.SignedSuccessTx); err != nil {
			return fmt.Errorf("unable to publish success tx: %w", err)
		}
	}

	return nil
}

// sweepMatureOutput builds and broadcasts a one-input transaction spending
// outpoint, which must already be confirmed and past any CSV/CLTV
// requirement its sign descriptor's witness type carries, to a fresh wallet
// output. commitSweepResolver sweeps the to_local output through this
// helper; the HTLC resolvers do not call it.
func (n *utxoNursery) sweepMatureOutput(outpoint wire.OutPoint,
	desc *input.SignDescriptor, witnessType input.WitnessType,
	csvDelay uint32) (*wire.MsgTx, error) {

	pkScript, err := n.sweepPkScript()
	if err != nil {
		return nil, err
	}

	feePerKw := int64(2500)
	const sweepTxWeight = 400
	fee := feePerKw * sweepTxWeight / 1000

	sweepAmt := desc.Output.Value - fee
	if sweepAmt <= 0 {
		return nil, fmt.Errorf("output %v too small to sweep after fees",
			outpoint)
	}

	sweepTx := wire.NewMsgTx(2)
	sweepTx.AddTxOut(&wire.TxOut{
		PkScript: pkScript,
		Value:    sweepAmt,
	})
	sweepTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: outpoint,
		Sequence:         csvDelay,
	})

	hashCache := txscript.NewTxSigHashes(sweepTx)
	genWitness := witnessType.GenWitnessFunc(n.signer, desc)
	witness, err := genWitness(sweepTx, hashCache, 0)
	if err != nil {
		return nil, fmt.Errorf("unable to generate witness: %w", err)
	}
	sweepTx.TxIn[0].Witness = witness

	if err := n.publish(sweepTx); err != nil {
		return nil, fmt.Errorf("unable to publish sweep tx: %w", err)
	}

	return sweepTx, nil
}
