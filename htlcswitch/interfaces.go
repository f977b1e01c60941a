package htlcswitch

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lnchan/lnnode/lnwire"
)

// ChannelLink is the interface implemented by the per-channel state machine.
// It manages the incoming HTLC requests for a single channel, applies them
// to the channel's commitment chain, and hands settled/failed updates back
// to the Switch for propagation to whichever link (or local payment) opened
// the circuit.
//
//  abstraction level
//       ^
//       |
//       | - - - - - - - - - - - - Lightning - - - - - - - - - - - - -
//       |
//       | (Switch)		     (Switch)		       (Switch)
//       |  Alice <-- channel link --> Bob <-- channel link --> Carol
//       |
//       | - - - - - - - - - - - - - TCP - - - - - - - - - - - - - - -
//       |
//       |  (Peer) 		     (Peer)	                (Peer)
//       |  Alice <----- tcp conn --> Bob <---- tcp conn -----> Carol
//       |
type ChannelLink interface {
	// HandleSwitchPacket handles a packet that was forwarded to this link
	// from another channel link, or originated locally via the Switch.
	//
	// NOTE: This function MUST be non-blocking.
	HandleSwitchPacket(*htlcPacket) error

	// HandleChannelUpdate handles a BOLT-2 channel update message (an
	// add/settle/fail/commit_sig/revoke_and_ack/...) received from the
	// remote peer on this channel.
	//
	// NOTE: This function MUST be non-blocking.
	HandleChannelUpdate(lnwire.Message)

	// ChanID returns the channel ID for the channel link.
	ChanID() lnwire.ChannelID

	// ShortChanID returns the short channel ID for the channel link.
	ShortChanID() lnwire.ShortChannelID

	// UpdateShortChanID updates the short channel ID for a link, e.g.
	// once the funding transaction's confirmed location is known.
	UpdateShortChanID(lnwire.ShortChannelID)

	// UpdateForwardingPolicy updates the forwarding policy used to
	// evaluate whether an incoming HTLC should be forwarded.
	UpdateForwardingPolicy(ForwardingPolicy)

	// Bandwidth returns the amount of millisatoshis the link reports as
	// available for forwarding.
	Bandwidth() lnwire.MilliSatoshi

	// Stats returns the number of updates processed plus the total
	// satoshis sent/received over the life of the link.
	Stats() (uint64, lnwire.MilliSatoshi, lnwire.MilliSatoshi)

	// Peer returns the remote node this link's channel is held with.
	Peer() Peer

	// EligibleToForward reports whether the channel has completed the
	// pre-NORMAL handshake and is not presently shutting down, so the
	// Switch may use it as a forwarding destination.
	EligibleToForward() bool

	// AttachMailBox delivers an active MailBox to the link. The mailbox
	// may already hold buffered messages from before the link started.
	AttachMailBox(MailBox)

	// Start/Stop begin and end the link's internal event loop.
	Start() error
	Stop()
}

// Peer is the representation of a remote Lightning node that a ChannelLink
// needs in order to send wire messages and clean up on channel close.
type Peer interface {
	// SendMessage sends a message to the remote peer. If sync is true,
	// the call blocks until the message has actually gone out on the
	// wire.
	SendMessage(msg lnwire.Message, sync bool) error

	// WipeChannel removes the channel uniquely identified by its funding
	// outpoint from any indexes the peer maintains.
	WipeChannel(*wire.OutPoint) error

	// PubKey returns the remote peer's compressed serialized public key.
	PubKey() [33]byte
}

// ForwardingPolicy describes the fee/htlc-size policy a link enforces on
// HTLCs it is asked to forward onward.
type ForwardingPolicy struct {
	// MinHTLC is the smallest HTLC, in millisatoshis, the link will
	// forward.
	MinHTLC lnwire.MilliSatoshi

	// MaxHTLC is the largest HTLC, in millisatoshis, the link will
	// forward.
	MaxHTLC lnwire.MilliSatoshi

	// BaseFee is the flat fee, in millisatoshis, charged for any
	// forwarded HTLC regardless of size.
	BaseFee lnwire.MilliSatoshi

	// FeeRate is the proportional fee, in millionths of the forwarded
	// amount, charged in addition to BaseFee.
	FeeRate lnwire.MilliSatoshi

	// TimeLockDelta is the minimum difference the link requires between
	// an incoming HTLC's CLTV and the CLTV it offers the next hop.
	TimeLockDelta uint32
}

// Fee computes the forwarding fee owed for relaying amt millisatoshis under
// this policy.
func (f ForwardingPolicy) Fee(amt lnwire.MilliSatoshi) lnwire.MilliSatoshi {
	return f.BaseFee + (amt*f.FeeRate)/1000000
}

// MailBox buffers inbound wire messages and switch packets for a link,
// decoupling delivery from the link's own goroutine scheduling so neither
// the peer's reader loop nor the Switch ever blocks on a busy link.
type MailBox interface {
	// AddMessage enqueues a wire message received from the remote peer.
	AddMessage(lnwire.Message)

	// AddPacket enqueues an htlcPacket forwarded from the Switch.
	AddPacket(*htlcPacket)

	// MessageOutBox returns the channel the link should range over to
	// receive buffered wire messages.
	MessageOutBox() <-chan lnwire.Message

	// PacketOutBox returns the channel the link should range over to
	// receive buffered switch packets.
	PacketOutBox() <-chan *htlcPacket

	Start()
	Stop()
}
