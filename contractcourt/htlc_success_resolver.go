package contractcourt

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/lnwire"
)

// htlcSuccessResolver is a ContractResolver that's capable of resolving an
// incoming HTLC for which we know the payment preimage. Mirrors
// htlcTimeoutResolver's two-path structure: an output on our own commitment
// resolves once the second-level success transaction (and its own CSV
// delay) has fully confirmed, while an output on the remote party's
// commitment resolves once we see a direct spend via the preimage clause.
type htlcSuccessResolver struct {
	// htlcResolution contains all the information required to properly
	// resolve this incoming HTLC.
	htlcResolution IncomingHtlcResolution

	// outputIncubating returns true if we've sent the output to the
	// nursery.
	outputIncubating bool

	// resolved reflects if the contract has been fully resolved or not.
	resolved bool

	// broadcastHeight is the height the original contract was broadcast
	// at.
	broadcastHeight uint32

	// htlcIndex is the index of this HTLC within the channel's update
	// log.
	htlcIndex uint64

	// htlcAmt is the original amount of the htlc, not taking into
	// account any fees that may have to be paid if it goes on chain.
	htlcAmt lnwire.MilliSatoshi

	ResolverKit
}

// ResolverKey returns an identifier unique to this resolver within the
// chain the contract resides on.
//
// NOTE: Part of the ContractResolver interface.
func (h *htlcSuccessResolver) ResolverKey() []byte {
	var op wire.OutPoint
	if h.htlcResolution.SignedSuccessTx != nil {
		op = h.htlcResolution.SignedSuccessTx.TxIn[0].PreviousOutPoint
	} else {
		op = h.htlcResolution.ClaimOutpoint
	}

	key := newResolverID(op)
	return key[:]
}

// Resolve drives the incoming HTLC to full resolution. Since we already
// hold the preimage, there is no race to win here: we report success back
// to the switch as soon as the spend that reveals it (ours or the second
// level transaction) is broadcast, then wait for on-chain confirmation
// before marking the output resolved.
//
// NOTE: Part of the ContractResolver interface.
func (h *htlcSuccessResolver) Resolve() (ContractResolver, error) {
	if h.resolved {
		return nil, nil
	}

	if !h.outputIncubating {
		log.Tracef("%T(%v): incubating htlc output", h,
			h.htlcResolution.ClaimOutpoint)

		err := h.IncubateOutputs(
			h.ChanPoint, nil, nil, &h.htlcResolution,
			h.broadcastHeight,
		)
		if err != nil {
			return nil, err
		}

		h.outputIncubating = true

		if err := h.Checkpoint(h); err != nil {
			log.Errorf("unable to Checkpoint: %v", err)
			return nil, err
		}
	}

	log.Infof("%T(%v): resolving incoming htlc with preimage %x", h,
		h.htlcResolution.ClaimOutpoint, h.htlcResolution.Preimage)

	if err := h.DeliverResolutionMsg(ResolutionMsg{
		SourceChan: h.ShortChanID,
		HtlcIndex:  h.htlcIndex,
	}); err != nil {
		return nil, err
	}

	waitForOutputResolution := func() error {
		spendNtfn, err := h.Notifier.RegisterSpendNtfn(
			&h.htlcResolution.ClaimOutpoint,
			h.htlcResolution.SweepSignDesc.Output.PkScript,
			h.broadcastHeight,
		)
		if err != nil {
			return err
		}

		select {
		case _, ok := <-spendNtfn.Spend:
			if !ok {
				return fmt.Errorf("notifier quit")
			}

		case <-h.Quit:
			return fmt.Errorf("quitting")
		}

		return nil
	}

	log.Infof("%T(%v): waiting for nursery to sweep output", h,
		h.htlcResolution.ClaimOutpoint)
	if err := waitForOutputResolution(); err != nil {
		return nil, err
	}

	h.resolved = true
	return nil, h.Checkpoint(h)
}

// Stop signals the resolver to abandon any in-progress wait.
//
// NOTE: Part of the ContractResolver interface.
func (h *htlcSuccessResolver) Stop() {
	close(h.Quit)
}

// IsResolved returns true once the output has been fully swept.
//
// NOTE: Part of the ContractResolver interface.
func (h *htlcSuccessResolver) IsResolved() bool {
	return h.resolved
}

// Encode writes an encoded version of the resolver to w.
//
// NOTE: Part of the ContractResolver interface.
func (h *htlcSuccessResolver) Encode(w io.Writer) error {
	if err := encodeIncomingResolution(w, &h.htlcResolution); err != nil {
		return err
	}

	if err := binary.Write(w, endian, h.outputIncubating); err != nil {
		return err
	}
	if err := binary.Write(w, endian, h.resolved); err != nil {
		return err
	}
	if err := binary.Write(w, endian, h.broadcastHeight); err != nil {
		return err
	}
	return binary.Write(w, endian, h.htlcIndex)
}

// Decode reads an encoded htlcSuccessResolver from r.
//
// NOTE: Part of the ContractResolver interface.
func (h *htlcSuccessResolver) Decode(r io.Reader) error {
	if err := decodeIncomingResolution(r, &h.htlcResolution); err != nil {
		return err
	}

	if err := binary.Read(r, endian, &h.outputIncubating); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &h.resolved); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &h.broadcastHeight); err != nil {
		return err
	}
	return binary.Read(r, endian, &h.htlcIndex)
}

// AttachResolverKit supplies the shared dependencies after decoding.
//
// NOTE: Part of the ContractResolver interface.
func (h *htlcSuccessResolver) AttachResolverKit(r ResolverKit) {
	h.ResolverKit = r
}

var _ ContractResolver = (*htlcSuccessResolver)(nil)
