package htlcswitch

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/lnchan/lnnode/lnwallet"
	"github.com/lnchan/lnnode/lnwire"
)

// LinkState tags a channel's position in the per-channel state machine.
// Every channel with an open commitment sits in one of these at all times;
// persisting the tag (and the Commitments value underneath it) is what lets
// a restarted node resume exactly where it left off.
type LinkState uint8

const (
	// StateWaitForInit is the zero state before a channel negotiation
	// has begun. Reaching this package always skips straight past the
	// funding handshake states below: a ChannelLink is only constructed
	// once channeldb holds a fully funded OpenChannel, so the states
	// from StateWaitForInit through StateWaitForFundingLocked describe
	// the peer/wallet-driven funding workflow that precedes a link's
	// existence, not a transition the link itself ever makes.
	StateWaitForInit LinkState = iota
	StateWaitForOpenChannel
	StateWaitForAcceptChannel
	StateWaitForFundingCreated
	StateWaitForFundingSigned
	StateWaitForFundingInternal
	StateWaitForFundingConfirmed
	StateWaitForFundingLocked

	// StateNormal is the steady state: HTLCs may be added, settled,
	// failed, and the commitment chain advanced in either direction.
	StateNormal

	// StateShutdown is entered once either side has sent Shutdown but
	// HTLCs are still draining; no new HTLCs may be added.
	StateShutdown

	// StateNegotiating is entered once both commitment chains are clear
	// of HTLCs and ClosingSigned fee bisection is underway.
	StateNegotiating

	// StateClosing covers both a broadcast mutual-close transaction
	// awaiting confirmation and a unilateral close in flight.
	StateClosing

	// StateClosed is terminal: the channel is gone from channeldb in
	// all but its final audit record.
	StateClosed

	// StateOffline is the shadow state entered from any state with an
	// open commitment on disconnect; the underlying Commitments value is
	// untouched and resumed on reconnection.
	StateOffline

	// StateWaitForRemotePublishFutureCommitment is entered when a
	// channel_reestablish reveals the remote party is ahead of us by a
	// commitment we cannot reconstruct; we wait for them to either
	// publish that commitment on-chain or catch us up.
	StateWaitForRemotePublishFutureCommitment
)

func (s LinkState) String() string {
	switch s {
	case StateWaitForInit:
		return "WAIT_FOR_INIT"
	case StateWaitForOpenChannel:
		return "WAIT_FOR_OPEN_CHANNEL"
	case StateWaitForAcceptChannel:
		return "WAIT_FOR_ACCEPT_CHANNEL"
	case StateWaitForFundingCreated:
		return "WAIT_FOR_FUNDING_CREATED"
	case StateWaitForFundingSigned:
		return "WAIT_FOR_FUNDING_SIGNED"
	case StateWaitForFundingInternal:
		return "WAIT_FOR_FUNDING_INTERNAL"
	case StateWaitForFundingConfirmed:
		return "WAIT_FOR_FUNDING_CONFIRMED"
	case StateWaitForFundingLocked:
		return "WAIT_FOR_FUNDING_LOCKED"
	case StateNormal:
		return "NORMAL"
	case StateShutdown:
		return "SHUTDOWN"
	case StateNegotiating:
		return "NEGOTIATING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateOffline:
		return "OFFLINE"
	case StateWaitForRemotePublishFutureCommitment:
		return "WAIT_FOR_REMOTE_PUBLISH_FUTURE_COMMITMENT"
	default:
		return fmt.Sprintf("LinkState(%d)", uint8(s))
	}
}

// LinkError is returned for a protocol violation by the remote party. It
// carries both a wire-ready lnwire.Error (the channel id plus a human
// description) and a stack trace for the logs, mirroring how failed
// transitions are reported elsewhere in this codebase.
type LinkError struct {
	*lnwire.Error
	cause error
}

// NewLinkError builds a LinkError for chanID, recording msg on the wire and
// wrapping cause (if non-nil) with a stack trace for the logs.
func NewLinkError(chanID lnwire.ChannelID, msg string, cause error) *LinkError {
	if cause != nil {
		cause = errors.Wrap(cause, 1)
	}
	return &LinkError{
		Error: &lnwire.Error{ChanID: chanID, Data: []byte(msg)},
		cause: cause,
	}
}

func (e *LinkError) Unwrap() error { return e.cause }

// batchTimeout is how long the link waits after the first unsigned update
// before it sends a new CommitSig, letting several updates ride in one
// commitment instead of one round trip per HTLC.
const batchTimeout = 50 * time.Millisecond

// Ticker is the subset of ticker.Ticker a channelLink depends on, broken out
// as a local interface so tests can substitute a manually-driven fake
// without pulling in a real time.Ticker.
type Ticker interface {
	Ticks() <-chan time.Time
	Resume()
	Pause()
	Stop()
}

// LinkConfig bundles the dependencies a channelLink needs to run. Switch,
// Clock, BatchTicker and OnChannelFailure may be left nil; the link either
// substitutes a default or skips the call.
type LinkConfig struct {
	// Channel is the commitment-engine handle for this channel.
	Channel *lnwallet.LightningChannel

	// Peer is the remote node this channel is held with.
	Peer Peer

	// Switch forwards packets between links and notifies the Switch of
	// circuit state. May be nil in tests driving a single link directly.
	Switch *Switch

	// FwrdingPolicy is the initial forwarding policy applied to HTLCs
	// this link is asked to relay onward.
	FwrdingPolicy ForwardingPolicy

	// Clock abstracts time for deterministic tests of timers (open
	// timeout, reconnection).
	Clock clock.Clock

	// BatchTicker fires to flush any pending local updates into a new
	// CommitSig. Defaults to a ticker.New(batchTimeout) if nil.
	BatchTicker Ticker

	// OnChannelFailure is invoked with the reason a channel has moved to
	// StateClosing outside of a requested close, e.g. on a protocol
	// violation or unrecoverable reestablish gap.
	OnChannelFailure func(lnwire.ChannelID, *LinkError)

	// OnCooperativeClose is invoked once a mutual close has been fully
	// negotiated and is ready for the owner to broadcast and remove this
	// link's indices.
	OnCooperativeClose func(chanPoint wire.OutPoint, closeTx *wire.MsgTx)

	// DefaultDeliveryScript is the script used to claim our settled
	// balance on a mutual close we didn't ourselves request, i.e. when
	// we're replying to the remote party's Shutdown rather than acting
	// on our own InitCooperativeClose.
	DefaultDeliveryScript []byte
}

// channelLink is the concrete ChannelLink: one actor per channel, consuming
// a single serialized queue of peer messages, local commands, and timer
// events exactly as described for the channel state machine.
type channelLink struct {
	started int32
	stopped int32

	cfg LinkConfig

	mailBox MailBox

	state    LinkState
	stateMtx sync.RWMutex

	closer *chanCloser

	// sigPending is true once a CommitSig has been sent that the remote
	// party has not yet acked with RevokeAndAck; per the revocation
	// window, at most one unacked CommitSig may be outstanding.
	sigPending bool

	// numUpdates/satSent/satRecv back Stats().
	numUpdates uint64
	satSent    lnwire.MilliSatoshi
	satRecv    lnwire.MilliSatoshi
	statsMtx   sync.Mutex

	cmdCh chan interface{}

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewChannelLink creates a new link for cfg.Channel, to be started once a
// MailBox has been attached.
func NewChannelLink(cfg LinkConfig) *channelLink {
	return &channelLink{
		cfg:   cfg,
		state: StateNormal,
		cmdCh: make(chan interface{}),
		quit:  make(chan struct{}),
	}
}

func (l *channelLink) setState(s LinkState) {
	l.stateMtx.Lock()
	defer l.stateMtx.Unlock()
	l.state = s
}

func (l *channelLink) getState() LinkState {
	l.stateMtx.RLock()
	defer l.stateMtx.RUnlock()
	return l.state
}

// ChanID returns the channel ID for the channel link.
func (l *channelLink) ChanID() lnwire.ChannelID {
	return l.cfg.Channel.State().ChanID()
}

// ShortChanID returns the short channel ID for the channel link.
func (l *channelLink) ShortChanID() lnwire.ShortChannelID {
	return l.cfg.Channel.State().ShortChannelID
}

// UpdateShortChanID updates the short channel ID for the link, once the
// funding transaction's confirmed location is known or has moved due to a
// reorg.
func (l *channelLink) UpdateShortChanID(sid lnwire.ShortChannelID) {
	l.cfg.Channel.State().ShortChannelID = sid
}

// UpdateForwardingPolicy updates the forwarding policy this link applies to
// HTLCs it's asked to relay onward.
func (l *channelLink) UpdateForwardingPolicy(p ForwardingPolicy) {
	l.cfg.FwrdingPolicy = p
}

// Peer returns the remote node this link's channel is held with.
func (l *channelLink) Peer() Peer {
	return l.cfg.Peer
}

// Bandwidth returns the channel's configured local MaxPendingAmount. It
// does not subtract in-flight HTLCs and does not reflect the local balance.
func (l *channelLink) Bandwidth() lnwire.MilliSatoshi {
	return l.cfg.Channel.State().LocalChanCfg.MaxPendingAmount
}

// Stats returns the running count of processed updates and the total
// satoshis sent/received over the life of the link.
func (l *channelLink) Stats() (uint64, lnwire.MilliSatoshi, lnwire.MilliSatoshi) {
	l.statsMtx.Lock()
	defer l.statsMtx.Unlock()
	return l.numUpdates, l.satSent, l.satRecv
}

// EligibleToForward reports whether the channel is in a state that may
// accept new forwarded HTLCs.
func (l *channelLink) EligibleToForward() bool {
	return l.getState() == StateNormal
}

// AttachMailBox delivers an active MailBox to the link.
func (l *channelLink) AttachMailBox(mb MailBox) {
	l.mailBox = mb
}

// Start begins the link's event loop.
func (l *channelLink) Start() error {
	if !atomic.CompareAndSwapInt32(&l.started, 0, 1) {
		return fmt.Errorf("link %v already started", l.ChanID())
	}

	if l.mailBox == nil {
		l.mailBox = newMemoryMailBox()
	}
	l.mailBox.Start()

	if l.cfg.Clock == nil {
		l.cfg.Clock = clock.NewDefaultClock()
	}
	if l.cfg.BatchTicker == nil {
		l.cfg.BatchTicker = ticker.New(batchTimeout)
	}
	l.cfg.BatchTicker.Resume()

	l.closer = newChanCloser(l)

	l.wg.Add(1)
	go l.htlcManager()

	return nil
}

// Stop shuts the link's event loop down.
func (l *channelLink) Stop() {
	if !atomic.CompareAndSwapInt32(&l.stopped, 0, 1) {
		return
	}

	close(l.quit)
	l.wg.Wait()

	l.cfg.BatchTicker.Stop()
	l.mailBox.Stop()
}

// HandleChannelUpdate enqueues a wire message received from the remote
// peer for processing by the link's event loop.
//
// NOTE: Part of the ChannelLink interface. Non-blocking.
func (l *channelLink) HandleChannelUpdate(msg lnwire.Message) {
	l.mailBox.AddMessage(msg)
}

// HandleSwitchPacket enqueues a packet forwarded from the Switch.
//
// NOTE: Part of the ChannelLink interface. Non-blocking.
func (l *channelLink) HandleSwitchPacket(pkt *htlcPacket) error {
	l.mailBox.AddPacket(pkt)
	return nil
}

// cmd* are the CMD_* user commands of the per-channel state machine,
// delivered through cmdCh so they're serialized with everything else the
// link processes.
type cmdAddHTLC struct {
	htlc  *lnwire.UpdateAddHTLC
	errCh chan error
}

type cmdSettleHTLC struct {
	preimage [32]byte
	index    uint64
	errCh    chan error
}

type cmdFailHTLC struct {
	index  uint64
	reason []byte
	errCh  chan error
}

type cmdUpdateFee struct {
	feePerKw uint32
	errCh    chan error
}

type cmdClose struct {
	deliveryScript []byte
	targetFee      lnwire.MilliSatoshi
	errCh          chan error
}

type cmdForceClose struct {
	doneCh chan *lnwallet.ForceCloseSummary
	errCh  chan error
}

type cmdSign struct {
	errCh chan error
}

func (l *channelLink) sendCmd(cmd interface{}, errCh chan error) error {
	select {
	case l.cmdCh <- cmd:
	case <-l.quit:
		return fmt.Errorf("link shutting down")
	}

	select {
	case err := <-errCh:
		return err
	case <-l.quit:
		return fmt.Errorf("link shutting down")
	}
}

// AddHTLC is CMD_ADD_HTLC: propose a new outgoing HTLC on this channel.
func (l *channelLink) AddHTLC(htlc *lnwire.UpdateAddHTLC) error {
	errCh := make(chan error, 1)
	return l.sendCmd(&cmdAddHTLC{htlc: htlc, errCh: errCh}, errCh)
}

// SettleHTLC is CMD_FULFILL_HTLC: settle an HTLC we received, by index
// within our update log, with its preimage.
func (l *channelLink) SettleHTLC(preimage [32]byte, index uint64) error {
	errCh := make(chan error, 1)
	return l.sendCmd(&cmdSettleHTLC{preimage: preimage, index: index, errCh: errCh}, errCh)
}

// FailHTLC is CMD_FAIL_HTLC: cancel an HTLC we received, by index, with an
// already-encoded failure reason.
func (l *channelLink) FailHTLC(index uint64, reason []byte) error {
	errCh := make(chan error, 1)
	return l.sendCmd(&cmdFailHTLC{index: index, reason: reason, errCh: errCh}, errCh)
}

// UpdateFee is CMD_UPDATE_FEE: propose a new commitment feerate. Only valid
// if this node is the channel funder.
func (l *channelLink) UpdateFee(feePerKw uint32) error {
	errCh := make(chan error, 1)
	return l.sendCmd(&cmdUpdateFee{feePerKw: feePerKw, errCh: errCh}, errCh)
}

// InitCooperativeClose is CMD_CLOSE: begin the mutual close flow.
func (l *channelLink) InitCooperativeClose(deliveryScript []byte,
	targetFee lnwire.MilliSatoshi) error {

	errCh := make(chan error, 1)
	return l.sendCmd(&cmdClose{
		deliveryScript: deliveryScript,
		targetFee:      targetFee,
		errCh:          errCh,
	}, errCh)
}

// ForceClose is CMD_FORCECLOSE: broadcast the current commitment
// immediately and tear the link down.
func (l *channelLink) ForceClose() (*lnwallet.ForceCloseSummary, error) {
	errCh := make(chan error, 1)
	doneCh := make(chan *lnwallet.ForceCloseSummary, 1)

	select {
	case l.cmdCh <- &cmdForceClose{doneCh: doneCh, errCh: errCh}:
	case <-l.quit:
		return nil, fmt.Errorf("link shutting down")
	}

	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
		return <-doneCh, nil
	case <-l.quit:
		return nil, fmt.Errorf("link shutting down")
	}
}

// htlcManager is the link's single event loop. Every branch here is one
// per-transition: validate against state, mutate the Commitments value via
// lc.Channel, persist (handled inside lnwallet.LightningChannel itself
// ahead of any secret release), then emit effects.
//
// NOTE: must be run as a goroutine.
func (l *channelLink) htlcManager() {
	defer l.wg.Done()

	for {
		select {
		case msg := <-l.mailBox.MessageOutBox():
			l.handleUpstreamMsg(msg)

		case pkt := <-l.mailBox.PacketOutBox():
			l.handleDownstreamPacket(pkt)

		case cmd := <-l.cmdCh:
			l.handleCommand(cmd)

		case <-l.cfg.BatchTicker.Ticks():
			l.updateCommitTx()

		case <-l.quit:
			return
		}
	}
}

func (l *channelLink) handleCommand(cmd interface{}) {
	switch c := cmd.(type) {
	case *cmdAddHTLC:
		c.errCh <- l.processAddHTLC(c.htlc)

	case *cmdSettleHTLC:
		c.errCh <- l.processSettleHTLC(c.preimage, c.index)

	case *cmdFailHTLC:
		c.errCh <- l.processFailHTLC(c.index, c.reason)

	case *cmdUpdateFee:
		c.errCh <- l.processUpdateFee(c.feePerKw)

	case *cmdClose:
		c.errCh <- l.closer.initiate(c.deliveryScript, c.targetFee)

	case *cmdForceClose:
		summary, err := l.processForceClose()
		c.errCh <- err
		if err == nil {
			c.doneCh <- summary
		}

	case *cmdSign:
		c.errCh <- l.updateCommitTx()
	}
}

func (l *channelLink) processAddHTLC(htlc *lnwire.UpdateAddHTLC) error {
	if l.getState() != StateNormal {
		return fmt.Errorf("cannot add htlc in state %v", l.getState())
	}

	htlcIndex, err := l.cfg.Channel.AddHTLC(htlc)
	if err != nil {
		return err
	}
	htlc.ID = htlcIndex

	if err := l.cfg.Peer.SendMessage(htlc, false); err != nil {
		return err
	}

	l.bumpStats(htlc.Amount, true)
	return nil
}

func (l *channelLink) processSettleHTLC(preimage [32]byte, index uint64) error {
	if err := l.cfg.Channel.SettleHTLC(preimage, index); err != nil {
		return err
	}

	msg := lnwire.NewUpdateFulfillHTLC(l.ChanID(), index, preimage)
	return l.cfg.Peer.SendMessage(msg, false)
}

func (l *channelLink) processFailHTLC(index uint64, reason []byte) error {
	if err := l.cfg.Channel.FailHTLC(index, reason); err != nil {
		return err
	}

	msg := &lnwire.UpdateFailHTLC{
		ChanID: l.ChanID(),
		ID:     index,
		Reason: reason,
	}
	return l.cfg.Peer.SendMessage(msg, false)
}

func (l *channelLink) processUpdateFee(feePerKw uint32) error {
	if !l.cfg.Channel.IsInitiator() {
		return fmt.Errorf("only the channel funder may send update_fee")
	}
	if l.getState() != StateNormal {
		return fmt.Errorf("cannot update fee in state %v", l.getState())
	}

	msg := &lnwire.UpdateFee{ChanID: l.ChanID(), FeePerKw: feePerKw}
	return l.cfg.Peer.SendMessage(msg, false)
}

func (l *channelLink) processForceClose() (*lnwallet.ForceCloseSummary, error) {
	summary, err := l.cfg.Channel.ForceClose()
	if err != nil {
		return nil, err
	}
	l.setState(StateClosing)
	return summary, nil
}

// updateCommitTx flushes any pending local updates into a new CommitSig,
// respecting the one-outstanding-commitment revocation window.
func (l *channelLink) updateCommitTx() error {
	if l.sigPending {
		return nil
	}

	sig, htlcSigs, err := l.cfg.Channel.SignNextCommitment()
	if err == lnwallet.ErrNoWindow {
		return nil
	}
	if err != nil {
		return err
	}

	msg := &lnwire.CommitSig{
		ChanID:    l.ChanID(),
		CommitSig: sig,
		HtlcSigs:  htlcSigs,
	}
	if err := l.cfg.Peer.SendMessage(msg, false); err != nil {
		return err
	}

	l.sigPending = true
	return nil
}

// handleUpstreamMsg processes a single wire message received from the
// remote peer on this channel.
func (l *channelLink) handleUpstreamMsg(msg lnwire.Message) {
	var err error

	switch m := msg.(type) {
	case *lnwire.UpdateAddHTLC:
		_, err = l.cfg.Channel.ReceiveHTLC(m)
		if err == nil {
			l.bumpStats(m.Amount, false)
		}

	case *lnwire.UpdateFulfillHTLC:
		err = l.cfg.Channel.ReceiveHTLCSettle(m.PaymentPreimage, m.ID)
		if err == nil && l.cfg.Switch != nil {
			l.forwardSettleOrFail(m, m.ID)
		}

	case *lnwire.UpdateFailHTLC:
		err = l.cfg.Channel.ReceiveFailHTLC(m.ID, m.Reason)
		if err == nil && l.cfg.Switch != nil {
			l.forwardSettleOrFail(m, m.ID)
		}

	case *lnwire.CommitSig:
		err = l.cfg.Channel.ReceiveNewCommitment(m.CommitSig, m.HtlcSigs)
		if err == nil {
			err = l.revokeCurrentCommitment()
		}

	case *lnwire.RevokeAndAck:
		err = l.cfg.Channel.ReceiveRevocation(m)
		if err == nil {
			l.sigPending = false
		}

	case *lnwire.UpdateFee:
		if l.cfg.Channel.IsInitiator() {
			err = fmt.Errorf("funder does not accept update_fee")
		}

	case *lnwire.Shutdown:
		err = l.closer.handleShutdown(m)

	case *lnwire.ClosingSigned:
		err = l.closer.handleClosingSigned(m)

	case *lnwire.ChannelReestablish:
		err = l.handleReestablish(m)

	default:
		log.Warnf("channel link %v received unhandled message %T",
			l.ChanID(), msg)
		return
	}

	if err != nil {
		l.fail(err)
	}
}

func (l *channelLink) forwardSettleOrFail(htlc lnwire.Message, id uint64) {
	pkt := &htlcPacket{
		outgoingChanID: l.ShortChanID(),
		outgoingHTLCID: id,
		htlc:           htlc,
	}
	if err := l.cfg.Switch.forward(pkt); err != nil {
		log.Errorf("unable to forward settle/fail for chan_id=%v: %v",
			l.ChanID(), err)
	}
}

func (l *channelLink) revokeCurrentCommitment() error {
	rev, err := l.cfg.Channel.RevokeCurrentCommitment()
	if err != nil {
		return err
	}
	return l.cfg.Peer.SendMessage(rev, false)
}

// handleReestablish implements the reconnection resync of spec.md §4.3: the
// two commitment-height counters are compared and exactly the missing
// signatures/revocations are retransmitted; an impossible gap forces a
// unilateral close.
func (l *channelLink) handleReestablish(msg *lnwire.ChannelReestablish) error {
	localNextHeight := l.cfg.Channel.State().LocalCommitment.CommitHeight + 1
	localTailHeight := l.cfg.Channel.State().RemoteCommitment.CommitHeight

	switch {
	// The remote party is missing our most recent revocation: resend it.
	case msg.NextLocalCommitHeight == localTailHeight:
		if err := l.revokeCurrentCommitment(); err != nil {
			return err
		}

	// We're in sync on revocations; nothing further to retransmit for
	// that half of the handshake.
	case msg.NextLocalCommitHeight == localTailHeight+1:

	// The remote party claims to be ahead of a commitment height we
	// cannot reconstruct: wait for them to publish it rather than risk
	// broadcasting a stale commitment ourselves.
	case msg.NextLocalCommitHeight > localTailHeight+1:
		l.setState(StateWaitForRemotePublishFutureCommitment)
		return nil

	default:
		return fmt.Errorf("peer is behind by an illegal gap: "+
			"next_local_commit_height=%d, our tail=%d",
			msg.NextLocalCommitHeight, localTailHeight)
	}

	// If the remote party hasn't yet seen our latest commitment
	// signature, resend it.
	if msg.RemoteCommitTailHeight < localNextHeight-1 {
		if err := l.updateCommitTx(); err != nil {
			return err
		}
	}

	l.setState(StateNormal)
	return nil
}

// fail transitions the channel to CLOSING following a protocol violation,
// sending an Error to the peer and notifying the owner.
func (l *channelLink) fail(cause error) {
	linkErr := NewLinkError(l.ChanID(), cause.Error(), cause)

	log.Errorf("channel link %v failing: %v", l.ChanID(), cause)

	l.cfg.Peer.SendMessage(linkErr.Error, false)
	l.setState(StateClosing)

	if l.cfg.OnChannelFailure != nil {
		l.cfg.OnChannelFailure(l.ChanID(), linkErr)
	}
}

func (l *channelLink) handleDownstreamPacket(pkt *htlcPacket) {
	switch htlc := pkt.htlc.(type) {
	case *lnwire.UpdateAddHTLC:
		htlc.ChanID = l.ChanID()
		if err := l.processAddHTLC(htlc); err != nil {
			l.failBackward(pkt, err)
			return
		}
		pkt.outgoingHTLCID = htlc.ID
		if l.cfg.Switch != nil {
			l.cfg.Switch.addCircuit(&PaymentCircuit{
				PaymentHash:    htlc.PaymentHash,
				IncomingChanID: pkt.incomingChanID,
				IncomingHTLCID: pkt.incomingHTLCID,
				OutgoingChanID: l.ShortChanID(),
				OutgoingHTLCID: htlc.ID,
				ErrorEncrypter: pkt.obfuscator,
			})
		}

	case *lnwire.UpdateFulfillHTLC:
		if err := l.processSettleHTLC(htlc.PaymentPreimage, pkt.outgoingHTLCID); err != nil {
			log.Errorf("unable to settle forwarded htlc on chan_id=%v: %v",
				l.ChanID(), err)
		}

	case *lnwire.UpdateFailHTLC:
		if err := l.processFailHTLC(pkt.outgoingHTLCID, htlc.Reason); err != nil {
			log.Errorf("unable to fail forwarded htlc on chan_id=%v: %v",
				l.ChanID(), err)
		}
	}
}

func (l *channelLink) failBackward(pkt *htlcPacket, cause error) {
	if l.cfg.Switch == nil || pkt.obfuscator == nil {
		return
	}

	reason, err := pkt.obfuscator.EncryptFirstHop(&ForwardingError{
		FailureCode: FailTemporaryChannelFailure,
		ExtraMsg:    cause.Error(),
	})
	if err != nil {
		log.Errorf("unable to encrypt failure reason: %v", err)
		return
	}

	failPkt := &htlcPacket{
		incomingChanID: pkt.incomingChanID,
		incomingHTLCID: pkt.incomingHTLCID,
		isRouted:       true,
		htlc:           &lnwire.UpdateFailHTLC{Reason: reason},
	}
	if err := l.cfg.Switch.forward(failPkt); err != nil {
		log.Errorf("unable to fail backward: %v", err)
	}
}

func (l *channelLink) bumpStats(amt lnwire.MilliSatoshi, sent bool) {
	l.statsMtx.Lock()
	defer l.statsMtx.Unlock()

	l.numUpdates++
	if sent {
		l.satSent += amt
	} else {
		l.satRecv += amt
	}
}

var _ ChannelLink = (*channelLink)(nil)
