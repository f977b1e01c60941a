package channeldb

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lnchan/lnnode/lnwire"
	"github.com/lnchan/lnnode/shachain"
	"go.etcd.io/bbolt"
)

var (
	// openChannelBucket holds one sub-bucket per remote node pubkey;
	// within it a sub-bucket keyed by the channel's funding outpoint
	// holds the serialized OpenChannel.
	openChannelBucket = []byte("open-chan-bucket")

	// closedChannelBucket holds serialized ChannelCloseSummary values
	// keyed by funding outpoint. Entries are kept after a channel's
	// on-chain resolution completes; MarkChanFullyClosed only clears the
	// summary's IsPending flag and does not remove it.
	closedChannelBucket = []byte("closed-chan-bucket")

	// chanInfoKey and chanCommitmentKey are the keys used within a
	// channel's own bucket to store its ChannelConfig pair and its two
	// ChannelCommitment halves respectively.
	chanInfoKey       = []byte("chan-info-key")
	chanCommitmentKey = []byte("chan-commitment-key")

	// feeRateBucket holds a single row per chain hash recording the
	// fee-per-kw this node last used for new commitments on that chain.
	feeRateBucket = []byte("fee-rate-bucket")
)

// ChannelType records the negotiated channel feature set (currently only
// distinguishes the base anchorless type from future extensions).
type ChannelType uint8

const (
	// SingleFunder is the only channel type this implementation
	// negotiates: one party funds the channel outright.
	SingleFunder ChannelType = iota
)

// ChannelConfig holds one party's contribution to a channel: its base
// points and the channel parameters it dictates to its counterparty, per
// BOLT-2's open_channel/accept_channel fields.
type ChannelConfig struct {
	// ChanReserve is the minimum amount of satoshis this party must keep
	// as a direct payment to itself.
	ChanReserve btcutil.Amount

	// MinHTLC is the smallest HTLC value this party will accept.
	MinHTLC lnwire.MilliSatoshi

	// MaxAcceptedHtlcs caps the number of concurrent HTLCs this party
	// will accept on a single commitment.
	MaxAcceptedHtlcs uint16

	// MaxPendingAmount caps the aggregate value of HTLCs this party will
	// allow to be outstanding at once.
	MaxPendingAmount lnwire.MilliSatoshi

	// CsvDelay is the number of blocks this party's to_local output must
	// mature for on its own commitment transaction.
	CsvDelay uint16

	// DustLimit is the smallest output value this party considers
	// economical to include on its commitment transaction.
	DustLimit btcutil.Amount

	// MultiSigKey is this party's key contributed to the funding output's
	// 2-of-2 multisig script.
	MultiSigKey *btcec.PublicKey

	// RevocationBasePoint, PaymentBasePoint, DelayBasePoint, and
	// HtlcBasePoint are this party's four BOLT-3 basepoints, tweaked by
	// the per-commitment point to derive the actual per-state keys.
	RevocationBasePoint *btcec.PublicKey
	PaymentBasePoint    *btcec.PublicKey
	DelayBasePoint      *btcec.PublicKey
	HtlcBasePoint       *btcec.PublicKey
}

// HTLC records one outstanding HTLC as it sits within a ChannelCommitment's
// serialized view.
type HTLC struct {
	// Incoming is true if this HTLC is being received, false if offered.
	Incoming bool

	// Amt is the amount this HTLC is worth.
	Amt lnwire.MilliSatoshi

	// RHash is the payment hash this HTLC is conditioned on.
	RHash [32]byte

	// RefundTimeout is the CLTV expiry height at which an offered HTLC
	// may be reclaimed by its sender.
	RefundTimeout uint32

	// OutputIndex is this HTLC's output index on the commitment
	// transaction it's recorded against, or -1 if trimmed as dust.
	OutputIndex int32

	// HtlcIndex is the index assigned to this HTLC when it was first
	// added to the update log, stable across re-signing.
	HtlcIndex uint64

	// LogIndex is the log index of the Add entry that introduced this
	// HTLC, used to reconstruct update-log ordering on restart.
	LogIndex uint64
}

// Copy returns a deep copy of the receiver so callers building two
// independent per-party commitment views don't alias the same HTLC slice
// element.
func (h *HTLC) Copy() HTLC {
	return *h
}

// LogUpdate represents a pending, unsigned local or remote update-log entry
// that survives a restart before it's been included in a signed commitment.
type LogUpdate struct {
	// LogIndex is this entry's position in the shared update log.
	LogIndex uint64

	// UpdateMsg is the original wire message (UpdateAddHTLC,
	// UpdateFulfillHTLC, UpdateFailHTLC, or UpdateFee) that produced this
	// entry.
	UpdateMsg lnwire.Message
}

// ChannelCommitment is one party's view of the channel's state as of a
// particular commitment height: its balances, fee, height, and the set of
// HTLCs committed to at that height.
type ChannelCommitment struct {
	// CommitHeight is the commitment number (state index) this snapshot
	// represents.
	CommitHeight uint64

	// LocalLogIndex and RemoteLogIndex record how far into each party's
	// update log this commitment extends.
	LocalLogIndex  uint64
	RemoteLogIndex uint64

	// LocalHtlcIndex and RemoteHtlcIndex record the running HTLC
	// counters as of this commitment.
	LocalHtlcIndex  uint64
	RemoteHtlcIndex uint64

	// LocalBalance and RemoteBalance are the settled balances as of this
	// commitment, after evaluating every log entry below the indexes
	// above.
	LocalBalance  lnwire.MilliSatoshi
	RemoteBalance lnwire.MilliSatoshi

	// CommitFee is the fee paid by this commitment transaction.
	CommitFee btcutil.Amount

	// FeePerKw is the fee rate, in satoshis per 1000 weight units, used
	// to compute CommitFee.
	FeePerKw btcutil.Amount

	// CommitTx is the fully signed commitment transaction for this
	// state.
	CommitTx *wire.MsgTx

	// CommitSig is the counterparty's signature authorizing CommitTx.
	CommitSig []byte

	// Htlcs is the set of HTLCs committed to as of this commitment
	// height.
	Htlcs []HTLC
}

// ChannelCloseSummary records why and how a channel left the open state,
// retained so the closure handler can finish on-chain resolution even
// across a restart.
type ChannelCloseSummary struct {
	ChanPoint      wire.OutPoint
	ShortChanID    lnwire.ShortChannelID
	ClosingTXID    chainhash.Hash
	CloseHeight    uint32
	RemotePub      *btcec.PublicKey
	Capacity       btcutil.Amount
	SettledBalance btcutil.Amount
	CloseType      ClosureType
	IsPending      bool
}

// ClosureType enumerates the way a channel left the open state.
type ClosureType uint8

const (
	CooperativeClose ClosureType = iota
	LocalForceClose
	RemoteForceClose
	BreachClose
)

// OpenChannel is the persisted state of a single channel, the unit of work
// a ChannelLink actor owns and mutates.
type OpenChannel struct {
	db *DB

	// ChanType records the negotiated channel feature set.
	ChanType ChannelType

	// ChainHash is the genesis hash of the chain this channel's funding
	// output resides on.
	ChainHash chainhash.Hash

	// FundingOutpoint is the outpoint of the 2-of-2 funding output that
	// anchors this channel.
	FundingOutpoint wire.OutPoint

	// ShortChannelID is the funding transaction's confirmed location,
	// assigned once the channel transitions out of pending-open.
	ShortChannelID lnwire.ShortChannelID

	// IsPending is true until the funding transaction has reached its
	// required confirmation depth.
	IsPending bool

	// IsInitiator is true if the local node opened this channel (and so
	// pays the commitment fee).
	IsInitiator bool

	// IdentityPub is the remote peer's long-term identity public key.
	IdentityPub *btcec.PublicKey

	// Capacity is the channel's total funding value.
	Capacity btcutil.Amount

	// LocalChanCfg and RemoteChanCfg are the two parties' negotiated
	// channel parameters and basepoints.
	LocalChanCfg  ChannelConfig
	RemoteChanCfg ChannelConfig

	// LocalCommitment and RemoteCommitment are the latest commitment
	// each party holds.
	LocalCommitment  ChannelCommitment
	RemoteCommitment ChannelCommitment

	// RemoteCurrentRevocation is the current, already-revealed
	// per-commitment point the remote party's latest commitment was
	// built against.
	RemoteCurrentRevocation *btcec.PublicKey

	// RemoteNextRevocation is the remote party's next, not-yet-used
	// per-commitment point, received with their last RevokeAndAck.
	RemoteNextRevocation *btcec.PublicKey

	// RevocationProducer derives this channel's own per-commitment
	// secrets.
	RevocationProducer shachain.Producer

	// RevocationStore records the per-commitment secrets the remote
	// party has revealed to us.
	RevocationStore shachain.Store
}

// FullySynced reports whether both commitment chains have converged on a
// single agreed-upon state with no unacked updates pending.
func (c *OpenChannel) FullySynced() bool {
	return c.LocalCommitment.CommitHeight == c.RemoteCommitment.CommitHeight
}

// ChanID returns the canonical channel identifier derived from the funding
// outpoint, per BOLT-2.
func (c *OpenChannel) ChanID() lnwire.ChannelID {
	return lnwire.NewChanIDFromOutPoint(&c.FundingOutpoint)
}

// Put persists the channel's static info and current commitment pair
// atomically, grouped under a single remote-node/outpoint bucket path so a
// reader never observes a commitment update without its matching config.
func (c *OpenChannel) Put() error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		chanBucket, err := fetchChanBucketRW(
			tx, c.IdentityPub, &c.FundingOutpoint, c.ChainHash,
		)
		if err != nil {
			return err
		}

		if err := putChanInfo(chanBucket, c); err != nil {
			return err
		}
		return putChanCommitments(chanBucket, c)
	})
}

// UpdateCommitment persists a newly signed local or remote commitment in
// place of the channel's prior one of the same side, called immediately
// before the corresponding wire message (CommitSig or RevokeAndAck) is
// sent, so a crash never loses a state transition the peer believes
// completed.
func (c *OpenChannel) UpdateCommitment(newCommit *ChannelCommitment, local bool) error {
	if local {
		c.LocalCommitment = *newCommit
	} else {
		c.RemoteCommitment = *newCommit
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		chanBucket, err := fetchChanBucketRW(
			tx, c.IdentityPub, &c.FundingOutpoint, c.ChainHash,
		)
		if err != nil {
			return err
		}
		return putChanCommitments(chanBucket, c)
	})
}

// CloseChannel removes a channel's open-channel record and writes its
// ChannelCloseSummary in its place, called once a mutual or unilateral
// close has been broadcast.
func (c *OpenChannel) CloseChannel(summary *ChannelCloseSummary) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteOpenChannel(tx, c); err != nil {
			return err
		}
		return putChannelCloseSummary(tx, summary)
	})
}

func fetchChanBucketRW(tx *bbolt.Tx, nodeKey *btcec.PublicKey,
	outPoint *wire.OutPoint, chainHash chainhash.Hash) (*bbolt.Bucket, error) {

	readBucket, err := tx.CreateBucketIfNotExists(openChannelBucket)
	if err != nil {
		return nil, err
	}

	nodePub := nodeKey.SerializeCompressed()
	nodeChanBucket, err := readBucket.CreateBucketIfNotExists(nodePub)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	if err := writeOutpoint(&b, outPoint); err != nil {
		return nil, err
	}

	return nodeChanBucket.CreateBucketIfNotExists(b.Bytes())
}

func putChanInfo(chanBucket *bbolt.Bucket, channel *OpenChannel) error {
	var b bytes.Buffer
	if err := serializeChanInfo(&b, channel); err != nil {
		return err
	}
	return chanBucket.Put(chanInfoKey, b.Bytes())
}

func putChanCommitments(chanBucket *bbolt.Bucket, channel *OpenChannel) error {
	var b bytes.Buffer
	if err := serializeChanCommitment(&b, &channel.LocalCommitment); err != nil {
		return err
	}
	if err := serializeChanCommitment(&b, &channel.RemoteCommitment); err != nil {
		return err
	}
	return chanBucket.Put(chanCommitmentKey, b.Bytes())
}

func deleteOpenChannel(tx *bbolt.Tx, c *OpenChannel) error {
	openBucket := tx.Bucket(openChannelBucket)
	if openBucket == nil {
		return nil
	}
	nodeChanBucket := openBucket.Bucket(c.IdentityPub.SerializeCompressed())
	if nodeChanBucket == nil {
		return nil
	}

	var b bytes.Buffer
	if err := writeOutpoint(&b, &c.FundingOutpoint); err != nil {
		return err
	}
	return nodeChanBucket.DeleteBucket(b.Bytes())
}

func putChannelCloseSummary(tx *bbolt.Tx, summary *ChannelCloseSummary) error {
	closeBucket, err := tx.CreateBucketIfNotExists(closedChannelBucket)
	if err != nil {
		return err
	}

	var keyBuf bytes.Buffer
	if err := writeOutpoint(&keyBuf, &summary.ChanPoint); err != nil {
		return err
	}

	var b bytes.Buffer
	if err := serializeChannelCloseSummary(&b, summary); err != nil {
		return err
	}

	return closeBucket.Put(keyBuf.Bytes(), b.Bytes())
}

// serializeChanInfo writes the channel's static configuration. It's
// intentionally a flat field-at-a-time encoding rather than gob/json: the
// schema is controlled entirely by this package, so an explicit wire format
// keeps old records readable across Go version upgrades.
func serializeChanInfo(w io.Writer, channel *OpenChannel) error {
	if err := writeOutpoint(w, &channel.FundingOutpoint); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, channel.ChanType); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, channel.IsPending); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, channel.IsInitiator); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint64(channel.Capacity)); err != nil {
		return err
	}
	if _, err := w.Write(channel.IdentityPub.SerializeCompressed()); err != nil {
		return err
	}
	return writeChanConfigPair(w, &channel.LocalChanCfg, &channel.RemoteChanCfg)
}

func writeChanConfigPair(w io.Writer, local, remote *ChannelConfig) error {
	for _, cfg := range []*ChannelConfig{local, remote} {
		if err := binary.Write(w, byteOrder, uint64(cfg.ChanReserve)); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, uint64(cfg.DustLimit)); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, cfg.CsvDelay); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, cfg.MaxAcceptedHtlcs); err != nil {
			return err
		}
	}
	return nil
}

func serializeChanCommitment(w io.Writer, c *ChannelCommitment) error {
	if err := binary.Write(w, byteOrder, c.CommitHeight); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint64(c.LocalBalance)); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint64(c.RemoteBalance)); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint64(c.CommitFee)); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint32(len(c.Htlcs))); err != nil {
		return err
	}
	for _, htlc := range c.Htlcs {
		if err := binary.Write(w, byteOrder, htlc.Incoming); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, uint64(htlc.Amt)); err != nil {
			return err
		}
		if _, err := w.Write(htlc.RHash[:]); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, htlc.RefundTimeout); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, htlc.HtlcIndex); err != nil {
			return err
		}
	}

	if c.CommitTx == nil {
		return binary.Write(w, byteOrder, uint32(0))
	}
	var txBuf bytes.Buffer
	if err := c.CommitTx.Serialize(&txBuf); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint32(txBuf.Len())); err != nil {
		return err
	}
	_, err := w.Write(txBuf.Bytes())
	return err
}

func serializeChannelCloseSummary(w io.Writer, s *ChannelCloseSummary) error {
	if err := writeOutpoint(w, &s.ChanPoint); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, s.CloseHeight); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint64(s.Capacity)); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, uint64(s.SettledBalance)); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, s.CloseType); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, s.IsPending)
}

func writeOutpoint(w io.Writer, o *wire.OutPoint) error {
	if _, err := w.Write(o.Hash[:]); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, o.Index)
}

func readOutpoint(r io.Reader, o *wire.OutPoint) error {
	if _, err := io.ReadFull(r, o.Hash[:]); err != nil {
		return err
	}
	return binary.Read(r, byteOrder, &o.Index)
}

// findChanBucket locates a channel's bucket by funding outpoint alone,
// searching across every counterparty bucket. Used by call sites (like
// MarkChannelAsOpen) that don't have the remote node's pubkey on hand.
func findChanBucket(openChanBucket *bbolt.Bucket,
	outpoint *wire.OutPoint) (*bbolt.Bucket, error) {

	var keyBuf bytes.Buffer
	if err := writeOutpoint(&keyBuf, outpoint); err != nil {
		return nil, err
	}
	key := keyBuf.Bytes()

	var found *bbolt.Bucket
	err := forEachSubBucket(openChanBucket, func(nodePub []byte) error {
		if found != nil {
			return nil
		}
		nodeChanBucket := openChanBucket.Bucket(nodePub)
		if b := nodeChanBucket.Bucket(key); b != nil {
			found = b
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrChannelNoExist
	}

	return found, nil
}

// fetchOpenChannel deserializes the OpenChannel rooted at chanBucket.
func fetchOpenChannel(chanBucket *bbolt.Bucket) (*OpenChannel, error) {
	infoBytes := chanBucket.Get(chanInfoKey)
	if infoBytes == nil {
		return nil, ErrChannelNoExist
	}

	channel, err := deserializeChanInfo(bytes.NewReader(infoBytes))
	if err != nil {
		return nil, err
	}

	commitBytes := chanBucket.Get(chanCommitmentKey)
	if commitBytes != nil {
		r := bytes.NewReader(commitBytes)

		local, err := deserializeChanCommitment(r)
		if err != nil {
			return nil, err
		}
		remote, err := deserializeChanCommitment(r)
		if err != nil {
			return nil, err
		}

		channel.LocalCommitment = *local
		channel.RemoteCommitment = *remote
	}

	return channel, nil
}

func deserializeChanInfo(r io.Reader) (*OpenChannel, error) {
	channel := &OpenChannel{}

	if err := readOutpoint(r, &channel.FundingOutpoint); err != nil {
		return nil, err
	}

	var chanType uint8
	if err := binary.Read(r, byteOrder, &chanType); err != nil {
		return nil, err
	}
	channel.ChanType = ChannelType(chanType)

	if err := binary.Read(r, byteOrder, &channel.IsPending); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &channel.IsInitiator); err != nil {
		return nil, err
	}

	var capacity uint64
	if err := binary.Read(r, byteOrder, &capacity); err != nil {
		return nil, err
	}
	channel.Capacity = btcutil.Amount(capacity)

	pubBytes := make([]byte, 33)
	if _, err := io.ReadFull(r, pubBytes); err != nil {
		return nil, err
	}
	identityPub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return nil, err
	}
	channel.IdentityPub = identityPub

	local, remote, err := readChanConfigPair(r)
	if err != nil {
		return nil, err
	}
	channel.LocalChanCfg = *local
	channel.RemoteChanCfg = *remote

	return channel, nil
}

func readChanConfigPair(r io.Reader) (*ChannelConfig, *ChannelConfig, error) {
	cfgs := make([]*ChannelConfig, 2)
	for i := range cfgs {
		cfg := &ChannelConfig{}

		var reserve, dust uint64
		if err := binary.Read(r, byteOrder, &reserve); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, byteOrder, &dust); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, byteOrder, &cfg.CsvDelay); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, byteOrder, &cfg.MaxAcceptedHtlcs); err != nil {
			return nil, nil, err
		}
		cfg.ChanReserve = btcutil.Amount(reserve)
		cfg.DustLimit = btcutil.Amount(dust)

		cfgs[i] = cfg
	}

	return cfgs[0], cfgs[1], nil
}

func deserializeChanCommitment(r io.Reader) (*ChannelCommitment, error) {
	c := &ChannelCommitment{}

	if err := binary.Read(r, byteOrder, &c.CommitHeight); err != nil {
		return nil, err
	}

	var localBal, remoteBal, fee uint64
	if err := binary.Read(r, byteOrder, &localBal); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &remoteBal); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &fee); err != nil {
		return nil, err
	}
	c.LocalBalance = lnwire.MilliSatoshi(localBal)
	c.RemoteBalance = lnwire.MilliSatoshi(remoteBal)
	c.CommitFee = btcutil.Amount(fee)

	var numHtlcs uint32
	if err := binary.Read(r, byteOrder, &numHtlcs); err != nil {
		return nil, err
	}

	c.Htlcs = make([]HTLC, numHtlcs)
	for i := uint32(0); i < numHtlcs; i++ {
		htlc := &c.Htlcs[i]

		if err := binary.Read(r, byteOrder, &htlc.Incoming); err != nil {
			return nil, err
		}
		var amt uint64
		if err := binary.Read(r, byteOrder, &amt); err != nil {
			return nil, err
		}
		htlc.Amt = lnwire.MilliSatoshi(amt)

		if _, err := io.ReadFull(r, htlc.RHash[:]); err != nil {
			return nil, err
		}
		if err := binary.Read(r, byteOrder, &htlc.RefundTimeout); err != nil {
			return nil, err
		}
		if err := binary.Read(r, byteOrder, &htlc.HtlcIndex); err != nil {
			return nil, err
		}
	}

	var txLen uint32
	if err := binary.Read(r, byteOrder, &txLen); err != nil {
		return nil, err
	}
	if txLen == 0 {
		return c, nil
	}

	txBytes := make([]byte, txLen)
	if _, err := io.ReadFull(r, txBytes); err != nil {
		return nil, err
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(txBytes)); err != nil {
		return nil, err
	}
	c.CommitTx = tx

	return c, nil
}

func deserializeChannelCloseSummary(r io.Reader) (*ChannelCloseSummary, error) {
	s := &ChannelCloseSummary{}

	if err := readOutpoint(r, &s.ChanPoint); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &s.CloseHeight); err != nil {
		return nil, err
	}

	var capacity, settled uint64
	if err := binary.Read(r, byteOrder, &capacity); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &settled); err != nil {
		return nil, err
	}
	s.Capacity = btcutil.Amount(capacity)
	s.SettledBalance = btcutil.Amount(settled)

	var closeType uint8
	if err := binary.Read(r, byteOrder, &closeType); err != nil {
		return nil, err
	}
	s.CloseType = ClosureType(closeType)

	return s, binary.Read(r, byteOrder, &s.IsPending)
}
