package htlcswitch

import "github.com/lnchan/lnnode/lnwire"

// htlcPacket is the switch's internal envelope around a single HTLC update
// in flight between two links (or between a link and a local payment). It
// carries enough routing metadata for the Switch to decide where the
// wrapped wire message goes next without needing to inspect the message
// itself.
type htlcPacket struct {
	// incomingChanID/incomingHTLCID identify where this update entered
	// the node: the short channel ID and HTLC ID of the link that
	// forwarded it here. Zero incomingChanID marks a locally-initiated
	// payment, in which case incomingHTLCID is instead the Switch's
	// pendingPayment ID.
	incomingChanID lnwire.ShortChannelID
	incomingHTLCID uint64

	// outgoingChanID/outgoingHTLCID identify where this update is
	// headed: the short channel ID and HTLC ID (once assigned) of the
	// link it's being forwarded to.
	outgoingChanID lnwire.ShortChannelID
	outgoingHTLCID uint64

	// destNode is the compressed public key of the peer a locally
	// initiated htlc is destined for. Only set for packets produced by
	// Switch.SendHTLC.
	destNode [33]byte

	// htlc is the actual wire update (UpdateAddHTLC, UpdateFulfillHTLC,
	// or UpdateFailHTLC) this packet carries.
	htlc lnwire.Message

	// obfuscator encrypts any failure reason generated locally while
	// processing this packet before it travels back to the incoming
	// link.
	obfuscator ErrorEncrypter

	// isRouted is true once this packet's incoming side has already been
	// resolved via the circuit map, so handlePacketForward should not
	// look it up again.
	isRouted bool

	// localFailure is true when a failure on this packet originated on
	// this node (as opposed to arriving pre-encrypted from downstream),
	// so the Switch should use ExtraMsg/FailureCode directly instead of
	// handing it to an ErrorDecrypter.
	localFailure bool
}
