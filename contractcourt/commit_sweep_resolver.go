package contractcourt

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lnchan/lnnode/input"
)

// commitSweepResolver resolves our own to_local output on a force-closed
// commitment transaction. The output becomes spendable only after
// MaturityDelay blocks have elapsed since the commitment confirmed, per
// BOLT-3's to_self_delay.
type commitSweepResolver struct {
	// commitResolution contains the information required to sweep the
	// to_local output once it matures.
	commitResolution CommitOutputResolution

	// resolved reflects if the contract has been fully resolved or not.
	resolved bool

	// broadcastHeight is the height at which the force-closing
	// commitment transaction confirmed.
	broadcastHeight uint32

	ResolverKit
}

// ResolverKey returns an identifier unique to this resolver within the
// chain the contract resides on.
//
// NOTE: Part of the ContractResolver interface.
func (c *commitSweepResolver) ResolverKey() []byte {
	key := newResolverID(c.commitResolution.SelfOutPoint)
	return key[:]
}

// Resolve waits for the to_local output's CSV delay to mature, via a
// confirmation notification once the commitment has MaturityDelay
// confirmations (one block before a spend carrying the relative delay can
// be mined), then sweeps it to the wallet.
//
// NOTE: Part of the ContractResolver interface.
func (c *commitSweepResolver) Resolve() (ContractResolver, error) {
	if c.resolved {
		return nil, nil
	}

	log.Infof("%T(%v): waiting for commit output to mature (delay=%v)",
		c, c.commitResolution.SelfOutPoint,
		c.commitResolution.MaturityDelay)

	numConfs := c.commitResolution.MaturityDelay
	if numConfs == 0 {
		numConfs = 1
	}

	confNtfn, err := c.Notifier.RegisterConfirmationsNtfn(
		&c.commitResolution.SelfOutPoint.Hash,
		c.commitResolution.SelfOutputSignDesc.Output.PkScript,
		numConfs, c.broadcastHeight,
	)
	if err != nil {
		return nil, err
	}

	select {
	case _, ok := <-confNtfn.Confirmed:
		if !ok {
			return nil, fmt.Errorf("notifier quit")
		}
	case <-c.Quit:
		return nil, fmt.Errorf("quitting")
	}

	nursery := newUtxoNursery(c.Notifier, c.Signer, c.PublishTx, c.SweepAddr)
	_, err = nursery.sweepMatureOutput(
		c.commitResolution.SelfOutPoint,
		&c.commitResolution.SelfOutputSignDesc,
		input.CommitSpendTimeout,
		c.commitResolution.MaturityDelay,
	)
	if err != nil {
		return nil, err
	}

	if err := c.Checkpoint(c); err != nil {
		log.Errorf("unable to Checkpoint: %v", err)
		return nil, err
	}

	spendNtfn, err := c.Notifier.RegisterSpendNtfn(
		&c.commitResolution.SelfOutPoint,
		c.commitResolution.SelfOutputSignDesc.Output.PkScript,
		c.broadcastHeight,
	)
	if err != nil {
		return nil, err
	}

	select {
	case _, ok := <-spendNtfn.Spend:
		if !ok {
			return nil, fmt.Errorf("notifier quit")
		}
	case <-c.Quit:
		return nil, fmt.Errorf("quitting")
	}

	c.resolved = true
	return nil, c.Checkpoint(c)
}

// Stop signals the resolver to abandon any in-progress wait.
//
// NOTE: Part of the ContractResolver interface.
func (c *commitSweepResolver) Stop() {
	close(c.Quit)
}

// IsResolved returns true once the to_local output has been swept.
//
// NOTE: Part of the ContractResolver interface.
func (c *commitSweepResolver) IsResolved() bool {
	return c.resolved
}

// Encode writes an encoded version of the resolver to w.
//
// NOTE: Part of the ContractResolver interface.
func (c *commitSweepResolver) Encode(w io.Writer) error {
	if err := writeOutPoint(w, c.commitResolution.SelfOutPoint); err != nil {
		return err
	}
	if err := encodeSignDescriptor(w, &c.commitResolution.SelfOutputSignDesc); err != nil {
		return err
	}
	if err := binary.Write(w, endian, c.commitResolution.MaturityDelay); err != nil {
		return err
	}
	if err := binary.Write(w, endian, c.resolved); err != nil {
		return err
	}
	return binary.Write(w, endian, c.broadcastHeight)
}

// Decode reads an encoded commitSweepResolver from r.
//
// NOTE: Part of the ContractResolver interface.
func (c *commitSweepResolver) Decode(r io.Reader) error {
	if err := readOutPoint(r, &c.commitResolution.SelfOutPoint); err != nil {
		return err
	}
	if err := decodeSignDescriptor(r, &c.commitResolution.SelfOutputSignDesc); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &c.commitResolution.MaturityDelay); err != nil {
		return err
	}
	if err := binary.Read(r, endian, &c.resolved); err != nil {
		return err
	}
	return binary.Read(r, endian, &c.broadcastHeight)
}

// AttachResolverKit supplies the shared dependencies after decoding.
//
// NOTE: Part of the ContractResolver interface.
func (c *commitSweepResolver) AttachResolverKit(r ResolverKit) {
	c.ResolverKit = r
}

var _ ContractResolver = (*commitSweepResolver)(nil)
