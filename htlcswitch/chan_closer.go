package htlcswitch

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/lnchan/lnnode/lnwire"
)

// closeFeeToleranceSat bounds how far apart two ClosingSigned proposals may
// be before we accept the remote party's number outright: past a handful of
// rounds the gap is never going to close exactly, and endless rounds of
// negotiation over a few sats of fee serve nobody.
const closeFeeToleranceSat = 10

// maxCloseFeeRounds caps the number of ClosingSigned round trips before we
// give up bisecting and accept the remote party's last offer.
const maxCloseFeeRounds = 10

// chanCloser hosts the mutual-close negotiation for one channelLink. It
// lives in htlcswitch rather than contractcourt because it only ever
// operates on the link's live Commitments and exchanges wire messages with
// the connected peer; contractcourt is reserved for resolving a channel
// after it has already left the link's hands on-chain.
type chanCloser struct {
	link *channelLink

	localDeliveryScript  []byte
	remoteDeliveryScript []byte

	// localShutdownSent/remoteShutdownSent record whether Shutdown has
	// been sent/received, at which point closing_signed bisection may
	// begin.
	localShutdownSent  bool
	remoteShutdownSent bool

	lastSentFee btcutil.Amount
	rounds      int
}

func newChanCloser(l *channelLink) *chanCloser {
	return &chanCloser{link: l}
}

// initiate is CMD_CLOSE: send our Shutdown, recording the delivery script
// and starting fee to offer once HTLCs have drained and NEGOTIATING begins.
func (c *chanCloser) initiate(deliveryScript []byte, targetFee lnwire.MilliSatoshi) error {
	if c.link.getState() != StateNormal {
		return fmt.Errorf("cannot begin close in state %v", c.link.getState())
	}

	c.localDeliveryScript = deliveryScript
	c.lastSentFee = targetFee.ToSatoshis()
	c.localShutdownSent = true

	c.link.setState(StateShutdown)

	msg := &lnwire.Shutdown{
		ChanID:       c.link.ChanID(),
		ScriptPubkey: deliveryScript,
	}
	if err := c.link.cfg.Peer.SendMessage(msg, false); err != nil {
		return err
	}

	return c.maybeStartNegotiation()
}

// handleShutdown processes a Shutdown received from the remote peer.
func (c *chanCloser) handleShutdown(msg *lnwire.Shutdown) error {
	state := c.link.getState()
	if state != StateNormal && state != StateShutdown {
		return fmt.Errorf("unexpected shutdown in state %v", state)
	}

	c.remoteShutdownSent = true
	c.remoteDeliveryScript = msg.ScriptPubkey

	if !c.localShutdownSent {
		c.link.setState(StateShutdown)

		c.localDeliveryScript = c.link.cfg.DefaultDeliveryScript
		c.localShutdownSent = true

		reply := &lnwire.Shutdown{
			ChanID:       c.link.ChanID(),
			ScriptPubkey: c.localDeliveryScript,
		}
		if err := c.link.cfg.Peer.SendMessage(reply, false); err != nil {
			return err
		}
	}

	return c.maybeStartNegotiation()
}

// maybeStartNegotiation transitions SHUTDOWN -> NEGOTIATING and sends the
// first ClosingSigned proposal once both sides have exchanged Shutdown.
// HTLCs draining ahead of Shutdown is enforced upstream: processAddHTLC
// refuses new HTLCs outside of StateNormal, so by the time both Shutdowns
// have crossed, the update logs are already quiescent.
func (c *chanCloser) maybeStartNegotiation() error {
	if !c.localShutdownSent || !c.remoteShutdownSent {
		return nil
	}
	if c.link.getState() != StateShutdown {
		return nil
	}

	c.link.setState(StateNegotiating)

	return c.sendClosingSigned(c.lastSentFee)
}

func (c *chanCloser) sendClosingSigned(fee btcutil.Amount) error {
	rawSig, _, err := c.link.cfg.Channel.CreateCloseProposal(
		fee, c.localDeliveryScript, c.remoteDeliveryScript,
	)
	if err != nil {
		return err
	}

	sig, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		return err
	}
	wireSig, err := lnwire.NewSigFromSignature(sig)
	if err != nil {
		return err
	}

	c.lastSentFee = fee

	msg := &lnwire.ClosingSigned{
		ChanID:      c.link.ChanID(),
		FeeSatoshis: fee,
		Signature:   wireSig,
	}
	return c.link.cfg.Peer.SendMessage(msg, false)
}

// handleClosingSigned implements the fee bisection of BOLT 2: if the
// remote party's proposed fee is within tolerance of our last offer the
// close transaction is final and ready to broadcast; otherwise we split the
// difference and try again.
func (c *chanCloser) handleClosingSigned(msg *lnwire.ClosingSigned) error {
	if c.link.getState() != StateNegotiating {
		return fmt.Errorf("unexpected closing_signed in state %v",
			c.link.getState())
	}

	remoteFee := msg.FeeSatoshis
	c.rounds++

	delta := remoteFee - c.lastSentFee
	if delta < 0 {
		delta = -delta
	}

	if delta <= closeFeeToleranceSat || c.rounds > maxCloseFeeRounds {
		_, closeTx, err := c.link.cfg.Channel.CreateCloseProposal(
			remoteFee, c.localDeliveryScript, c.remoteDeliveryScript,
		)
		if err != nil {
			return err
		}

		c.link.setState(StateClosing)

		log.Infof("mutual close negotiated for chan_id=%v at fee=%v, "+
			"txid=%v", c.link.ChanID(), remoteFee, closeTx.TxHash())

		if c.link.cfg.OnCooperativeClose != nil {
			c.link.cfg.OnCooperativeClose(
				c.link.cfg.Channel.ChannelPoint(), closeTx,
			)
		}

		return nil
	}

	nextFee := (c.lastSentFee + remoteFee) / 2
	return c.sendClosingSigned(nextFee)
}
