package contractcourt

import (
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/htlcswitch"
	"github.com/lnchan/lnnode/input"
	"github.com/lnchan/lnnode/lnwire"
)

// ConfirmationEvent carries the one-time notification that a transaction
// the caller registered interest in has reached its requested depth.
type ConfirmationEvent struct {
	// Confirmed delivers the confirming block's height exactly once,
	// then is closed.
	Confirmed chan uint32
}

// SpendEvent carries the one-time notification that a watched outpoint has
// been spent.
type SpendEvent struct {
	// Spend delivers the spending transaction exactly once, then is
	// closed.
	Spend chan *wire.MsgTx
}

// ChainNotifier abstracts the blockchain-watching primitives the closure
// handler needs: waiting for a transaction to confirm, and waiting for an
// outpoint to be spent. Implementations sit on top of a full node's (or
// light client's) block/mempool feed; tests substitute a manually-driven
// fake.
type ChainNotifier interface {
	// RegisterConfirmationsNtfn asks to be notified once txid (whose
	// output pays pkScript) reaches numConfs confirmations. heightHint
	// bounds how far back the notifier needs to rescan.
	RegisterConfirmationsNtfn(txid *chainhash.Hash, pkScript []byte,
		numConfs, heightHint uint32) (*ConfirmationEvent, error)

	// RegisterSpendNtfn asks to be notified the first time outpoint
	// (whose output pays pkScript) is spent by a confirmed transaction.
	RegisterSpendNtfn(outpoint *wire.OutPoint, pkScript []byte,
		heightHint uint32) (*SpendEvent, error)
}

// ResolutionMsg reports the outcome of resolving one HTLC on a closed
// channel back to the switch, so it can relay the result to whichever link
// or local payment is waiting on it.
type ResolutionMsg struct {
	// SourceChan is the short channel ID the HTLC arrived on.
	SourceChan lnwire.ShortChannelID

	// HtlcIndex is the HTLC's index within that channel's update log.
	HtlcIndex uint64

	// Failure is set when the HTLC could not be claimed; nil signals a
	// successful resolution (a preimage was recovered and delivered
	// through the normal settle path instead).
	Failure *htlcswitch.ForwardingError
}

// ResolverKit bundles the dependencies every ContractResolver needs to do
// its job, so concrete resolvers don't each carry their own copy of the
// chain notifier, the channel point they're resolving against, and the
// plumbing back to persistence and the switch.
type ResolverKit struct {
	// ChanPoint is the funding outpoint of the channel being resolved.
	ChanPoint wire.OutPoint

	// ShortChanID is the channel's short channel ID, used to address
	// ResolutionMsg back to the right link.
	ShortChanID lnwire.ShortChannelID

	// Notifier is used to watch for confirmations/spends of the
	// transactions this resolver produces or waits on.
	Notifier ChainNotifier

	// Signer produces the signatures resolvers need to build their
	// sweep transactions' witnesses.
	Signer input.Signer

	// SweepAddr returns the pkScript the resolver should sweep mature
	// outputs to.
	SweepAddr func() ([]byte, error)

	// PublishTx broadcasts a fully signed transaction to the network.
	PublishTx func(*wire.MsgTx) error

	// Checkpoint persists the resolver's current state so resolution can
	// resume after a restart without re-deriving or re-broadcasting
	// anything already in flight.
	Checkpoint func(ContractResolver) error

	// DeliverResolutionMsg reports a settled/failed HTLC back to the
	// switch.
	DeliverResolutionMsg func(...ResolutionMsg) error

	// IncubateOutputs hands a commitment, outgoing-HTLC, and/or
	// incoming-HTLC resolution to the nursery, which will broadcast
	// their second-level transactions (if any), wait out CSV/CLTV
	// maturity, and sweep the proceeds to the wallet.
	IncubateOutputs func(chanPoint wire.OutPoint,
		commitRes *CommitOutputResolution,
		outRes *OutgoingHtlcResolution,
		inRes *IncomingHtlcResolution, broadcastHeight uint32) error

	// Quit is closed when the channel arbitrator managing this resolver
	// is shutting down.
	Quit chan struct{}
}

// ContractResolver is the interface every on-chain contract resolver
// (HTLC timeout, HTLC success, commitment sweep, breach) implements. A
// resolver drives a single output of a closed channel's commitment
// transaction to final spend.
type ContractResolver interface {
	// ResolverKey returns an identifier unique to this resolver within
	// the chain the contract resides on, used as its persistence key.
	ResolverKey() []byte

	// Resolve instructs the resolver to continue advancing its output
	// toward full resolution. It may block waiting on a chain event; it
	// returns nil, nil once no further action remains, or a follow-up
	// resolver if resolving this output produced a new one to track
	// (e.g. a second-level HTLC transaction needing its own CSV wait).
	Resolve() (ContractResolver, error)

	// IsResolved returns true once the output this resolver tracks is
	// fully and irrevocably spent to a final destination.
	IsResolved() bool

	// Encode writes a serialized form of the resolver's state.
	Encode(w io.Writer) error

	// AttachResolverKit supplies the shared dependencies after a
	// resolver has been decoded from persisted state.
	AttachResolverKit(r ResolverKit)

	// Stop signals the resolver to abandon any in-progress wait and
	// return from Resolve.
	Stop()
}
