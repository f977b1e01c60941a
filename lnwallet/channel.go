package lnwallet

import (
	"bytes"
	"container/list"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil/txsort"

	"github.com/lnchan/lnnode/channeldb"
	"github.com/lnchan/lnnode/input"
	"github.com/lnchan/lnnode/lnwire"
	"github.com/lnchan/lnnode/shachain"
)

var (
	// ErrChanClosing is returned when a caller attempts to close a channel
	// that has already been closed or is in the process of being closed.
	ErrChanClosing = fmt.Errorf("channel is being closed, operation disallowed")

	// ErrNoWindow is returned when the revocation window is exhausted: the
	// local party has an unacked commitment outstanding and must wait
	// for a revocation before signing another.
	ErrNoWindow = fmt.Errorf("unable to sign new commitment, the current" +
		" revocation window is exhausted")

	// ErrMaxWeightCost is returned when a commitment transaction's weight
	// would exceed the maximum standard policy weight.
	ErrMaxWeightCost = fmt.Errorf("commitment transaction exceed max " +
		"available cost")

	// ErrMaxHTLCNumber is returned when a proposed HTLC would exceed the
	// maximum number of allowed HTLCs in a single commitment.
	ErrMaxHTLCNumber = fmt.Errorf("commitment transaction exceed max " +
		"htlc number")

	// ErrInsufficientBalance is returned when a proposed HTLC or fee
	// update would exceed one side's available balance.
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")

	// ErrCannotSyncCommitChains is returned if, upon receiving a
	// ChannelReestablish, the state machine deems the two commitment
	// chains unrecoverable without manual intervention.
	ErrCannotSyncCommitChains = fmt.Errorf("unable to sync commit chains")

	// ErrInvalidLastCommitSecret is returned when the commitment secret
	// sent by the remote party in ChannelReestablish doesn't match the
	// secret we expect at that commitment height.
	ErrInvalidLastCommitSecret = fmt.Errorf("commit secret is incorrect")

	// ErrCommitSyncDataLoss is returned when the remote party proves
	// (via a valid commit secret) that it holds a commitment height
	// higher than the one we believe is current, meaning we've lost
	// state and should not broadcast anything further.
	ErrCommitSyncDataLoss = fmt.Errorf("possible commitment state data loss")

	// ErrNoDescriptor is returned when an operation references an HTLC
	// index absent from the update log.
	ErrNoDescriptor = fmt.Errorf("no corresponding update found in log")
)

// PaymentHash is the sha256 of a randomly generated preimage, used to
// uniquely identify and atomically settle an HTLC across every hop of a
// route.
type PaymentHash [32]byte

// updateType is the kind of mutation a PaymentDescriptor represents within
// the shared update log.
type updateType uint8

const (
	// Add adds a new HTLC to the log.
	Add updateType = iota

	// Fail removes a prior HTLC, denying it.
	Fail

	// MalformedFail removes a prior HTLC due to a malformed onion,
	// carrying a failure code and onion-blob hash rather than an
	// encrypted reason.
	MalformedFail

	// Settle removes a prior HTLC, crediting its amount to the balance
	// of the party that received it.
	Settle
)

func (u updateType) String() string {
	switch u {
	case Add:
		return "Add"
	case Fail:
		return "Fail"
	case MalformedFail:
		return "MalformedFail"
	case Settle:
		return "Settle"
	default:
		return "<unknown type>"
	}
}

// PaymentDescriptor represents a single mutation - an add, settle, or fail -
// applied to the shared HTLC update log. A PaymentDescriptor is appended to
// the log of the party that originates the change; the counterparty's log
// is only updated once that change is locked in by a subsequent commitment.
type PaymentDescriptor struct {
	// RHash is the payment hash this HTLC can be claimed with, present
	// on every Add descriptor.
	RHash PaymentHash

	// RPreimage is the preimage revealed by a Settle descriptor.
	RPreimage PaymentHash

	// Timeout is the absolute block height at which this HTLC's offerer
	// may reclaim its value.
	Timeout uint32

	// Amount is the HTLC value.
	Amount lnwire.MilliSatoshi

	// LogIndex is this entry's position in the shared update log of the
	// party that added it.
	LogIndex uint64

	// HtlcIndex is the index within the running HTLC counter of the
	// party that added this HTLC. Only populated on Add descriptors;
	// Fail/Settle/MalformedFail descriptors reference their parent Add
	// via ParentIndex using this same numbering.
	HtlcIndex uint64

	// ParentIndex is the HtlcIndex of the Add entry a Fail, Settle, or
	// MalformedFail descriptor resolves.
	ParentIndex uint64

	// EntryType distinguishes an Add from the various ways it can later
	// be resolved.
	EntryType updateType

	// OnionBlob is the Sphinx onion routing packet, populated on Add
	// descriptors only.
	OnionBlob [lnwire.OnionPacketSize]byte

	// FailReason is the (possibly onion-encrypted) reason an HTLC was
	// failed, populated on Fail and MalformedFail descriptors.
	FailReason []byte

	// localOutputIndex/remoteOutputIndex record this HTLC's output index
	// within the local/remote commitment transaction respectively, or -1
	// if it is dust from that party's point of view.
	localOutputIndex  int32
	remoteOutputIndex int32

	// addCommitHeightRemote/Local record the commitment height at which
	// this HTLC first appeared on the remote/local commitment chain,
	// used to determine when it is fully locked in.
	addCommitHeightRemote uint64
	addCommitHeightLocal  uint64

	// removeCommitHeightRemote/Local record the commitment height at
	// which the resolution of this HTLC (its Fail/Settle counterpart)
	// was locked in on each chain. Once both are below both chain
	// tails, the original Add and its resolution can be pruned from the
	// logs entirely.
	removeCommitHeightRemote uint64
	removeCommitHeightLocal  uint64
}

// commitment represents one party's view of a single state within the
// channel's commitment chain: a signed transaction plus enough bookkeeping
// to reconstruct, verify, and revoke it.
type commitment struct {
	height uint64

	// isOurs is true if this is the local node's own broadcastable
	// version of the commitment (signed by the remote party), false if
	// it's our view of the remote party's commitment.
	isOurs bool

	// ourMessageIndex/theirMessageIndex mark how far into each party's
	// update log this commitment extends.
	ourMessageIndex   uint64
	theirMessageIndex uint64

	// ourHtlcIndex/theirHtlcIndex are the running HTLC counters as of
	// this commitment, used to number any further HTLCs added on top of
	// it.
	ourHtlcIndex   uint64
	theirHtlcIndex uint64

	txn      *wire.MsgTx
	sig      []byte
	fee      btcutil.Amount
	feePerKw btcutil.Amount

	// htlcSigs holds the counterparty-supplied signature for each
	// non-dust HTLC's second-level transaction, in ascending output-index
	// order, needed to broadcast those transactions if this commitment
	// is ever force-closed.
	htlcSigs []lnwire.Sig

	ourBalance   lnwire.MilliSatoshi
	theirBalance lnwire.MilliSatoshi

	dustLimit btcutil.Amount

	outgoingHTLCs []PaymentDescriptor
	incomingHTLCs []PaymentDescriptor
}

// commitmentKeyRing holds the five keys derived for a single commitment:
// the two HTLC keys (unchanged across commitments), and the three keys
// that are re-derived per-commitment-point (delay, no-delay, revocation).
type commitmentKeyRing struct {
	localHtlcKey  *btcec.PublicKey
	remoteHtlcKey *btcec.PublicKey

	delayKey       *btcec.PublicKey
	noDelayKey     *btcec.PublicKey
	revocationKey  *btcec.PublicKey
}

// deriveCommitmentKeys derives the full key ring for the commitment bound
// to commitPoint. Which basepoints play which roles flips depending on
// whose commitment is being built: on our own commitment, our to_local
// output is delayed and revocable by the counterparty; on theirs, the
// roles are reversed.
func deriveCommitmentKeys(commitPoint *btcec.PublicKey, isOurCommit bool,
	localChanCfg, remoteChanCfg *channeldb.ChannelConfig) *commitmentKeyRing {

	keyRing := &commitmentKeyRing{
		localHtlcKey:  input.TweakPubKey(localChanCfg.HtlcBasePoint, commitPoint),
		remoteHtlcKey: input.TweakPubKey(remoteChanCfg.HtlcBasePoint, commitPoint),
	}

	if isOurCommit {
		keyRing.delayKey = input.TweakPubKey(
			localChanCfg.DelayBasePoint, commitPoint,
		)
		keyRing.noDelayKey = input.TweakPubKey(
			remoteChanCfg.PaymentBasePoint, commitPoint,
		)
		keyRing.revocationKey = input.DeriveRevocationPubkey(
			remoteChanCfg.RevocationBasePoint, commitPoint,
		)
		return keyRing
	}

	keyRing.delayKey = input.TweakPubKey(
		remoteChanCfg.DelayBasePoint, commitPoint,
	)
	keyRing.noDelayKey = input.TweakPubKey(
		localChanCfg.PaymentBasePoint, commitPoint,
	)
	keyRing.revocationKey = input.DeriveRevocationPubkey(
		localChanCfg.RevocationBasePoint, commitPoint,
	)
	return keyRing
}

// commitmentChain tracks the linked list of commitments extended to one
// party, from the oldest not-yet-revoked commitment (tail) to the newest,
// possibly-unacked one (tip).
type commitmentChain struct {
	commitments *list.List
}

func newCommitmentChain() *commitmentChain {
	return &commitmentChain{commitments: list.New()}
}

func (s *commitmentChain) addCommitment(c *commitment) {
	s.commitments.PushBack(c)
}

// advanceTail drops the current tail, promoting its successor once that
// successor has been acked by a revocation.
func (s *commitmentChain) advanceTail() {
	s.commitments.Remove(s.commitments.Front())
}

func (s *commitmentChain) tip() *commitment {
	return s.commitments.Back().Value.(*commitment)
}

func (s *commitmentChain) tail() *commitment {
	return s.commitments.Front().Value.(*commitment)
}

// hasUnackedCommitment reports whether more than one commitment is
// currently extended - i.e. a CommitSig has been sent/received but not yet
// answered with a RevokeAndAck.
func (s *commitmentChain) hasUnackedCommitment() bool {
	return s.commitments.Front() != s.commitments.Back()
}

// updateLog is the append-mostly ledger of PaymentDescriptors one party has
// proposed. Entries are never removed by index shifting, and nothing in
// this package prunes fully-resolved entries from it.
type updateLog struct {
	logIndex    uint64
	htlcCounter uint64

	updates *list.List

	updateIndex map[uint64]*list.Element
	htlcIndex   map[uint64]*list.Element
}

func newUpdateLog() *updateLog {
	return &updateLog{
		updates:     list.New(),
		updateIndex: make(map[uint64]*list.Element),
		htlcIndex:   make(map[uint64]*list.Element),
	}
}

func (u *updateLog) appendUpdate(pd *PaymentDescriptor) {
	pd.LogIndex = u.logIndex
	u.updateIndex[u.logIndex] = u.updates.PushBack(pd)
	u.logIndex++
}

func (u *updateLog) appendHtlc(pd *PaymentDescriptor) {
	pd.HtlcIndex = u.htlcCounter
	u.appendUpdate(pd)

	u.htlcIndex[u.htlcCounter] = u.updates.Back()
	u.htlcCounter++
}

func (u *updateLog) lookupHtlc(i uint64) *PaymentDescriptor {
	e, ok := u.htlcIndex[i]
	if !ok {
		return nil
	}
	return e.Value.(*PaymentDescriptor)
}

func (u *updateLog) removeHtlc(i uint64) {
	e, ok := u.htlcIndex[i]
	if !ok {
		return
	}
	delete(u.htlcIndex, i)
	u.updates.Remove(e)
}

// htlcTimeoutWeight and htlcSuccessWeight are the fixed BOLT-3 weights of
// the second-level HTLC-timeout and HTLC-success transactions, each
// spending a single HTLC output with no change.
const (
	htlcTimeoutWeight = 663
	htlcSuccessWeight = 703
)

// htlcTimeoutFee returns the fee, at feePerKw, for a second-level HTLC
// timeout transaction.
func htlcTimeoutFee(feePerKw btcutil.Amount) btcutil.Amount {
	return feePerKw * htlcTimeoutWeight / 1000
}

// htlcSuccessFee returns the fee, at feePerKw, for a second-level HTLC
// success transaction.
func htlcSuccessFee(feePerKw btcutil.Amount) btcutil.Amount {
	return feePerKw * htlcSuccessWeight / 1000
}

// htlcIsDust reports whether an HTLC's value, net of the fee its
// second-level transaction would cost, falls below the dust limit in
// effect for the commitment it would appear on. The fee that applies
// depends on both whether the HTLC is incoming/outgoing from that
// commitment owner's perspective, and on the feePerKw of that commitment.
func htlcIsDust(incoming, ourCommit bool, feePerKw btcutil.Amount,
	htlcAmt, dustLimit btcutil.Amount) bool {

	var htlcFee btcutil.Amount
	switch {
	case incoming && ourCommit:
		htlcFee = htlcSuccessFee(feePerKw)
	case incoming && !ourCommit:
		htlcFee = htlcTimeoutFee(feePerKw)
	case !incoming && ourCommit:
		htlcFee = htlcTimeoutFee(feePerKw)
	case !incoming && !ourCommit:
		htlcFee = htlcSuccessFee(feePerKw)
	}

	return (htlcAmt - htlcFee) < dustLimit
}

// LightningChannel implements the per-channel state machine: it tracks the
// shared HTLC update log, the local and remote commitment chains, and the
// operations that advance them (adding/resolving HTLCs, signing and
// revoking commitments, and the cooperative/unilateral closure paths).
// All exported methods are safe for concurrent use.
type LightningChannel struct {
	signer input.Signer

	channelState *channeldb.OpenChannel

	localChanCfg  *channeldb.ChannelConfig
	remoteChanCfg *channeldb.ChannelConfig

	localCommitChain  *commitmentChain
	remoteCommitChain *commitmentChain

	localUpdateLog  *updateLog
	remoteUpdateLog *updateLog

	currentHeight uint64

	status channelState

	sync.RWMutex
}

type channelState uint8

const (
	channelPending channelState = iota
	channelOpen
	channelClosing
	channelClosed
)

// NewLightningChannel creates a LightningChannel bound to an already-open
// channeldb.OpenChannel, seeding both commitment chains from the channel's
// last-persisted state.
func NewLightningChannel(signer input.Signer,
	state *channeldb.OpenChannel) (*LightningChannel, error) {

	lc := &LightningChannel{
		signer:            signer,
		channelState:      state,
		localChanCfg:      &state.LocalChanCfg,
		remoteChanCfg:     &state.RemoteChanCfg,
		localCommitChain:  newCommitmentChain(),
		remoteCommitChain: newCommitmentChain(),
		localUpdateLog:    newUpdateLog(),
		remoteUpdateLog:   newUpdateLog(),
		currentHeight:     state.LocalCommitment.CommitHeight,
		status:            channelOpen,
	}

	localCommit := &commitment{
		height:            state.LocalCommitment.CommitHeight,
		isOurs:            true,
		ourMessageIndex:   state.LocalCommitment.LocalLogIndex,
		theirMessageIndex: state.LocalCommitment.RemoteLogIndex,
		ourHtlcIndex:      state.LocalCommitment.LocalHtlcIndex,
		theirHtlcIndex:    state.LocalCommitment.RemoteHtlcIndex,
		txn:               state.LocalCommitment.CommitTx,
		sig:               state.LocalCommitment.CommitSig,
		fee:               state.LocalCommitment.CommitFee,
		feePerKw:          state.LocalCommitment.FeePerKw,
		ourBalance:        state.LocalCommitment.LocalBalance,
		theirBalance:      state.LocalCommitment.RemoteBalance,
		dustLimit:         state.LocalChanCfg.DustLimit,
	}
	remoteCommit := &commitment{
		height:            state.RemoteCommitment.CommitHeight,
		isOurs:            false,
		ourMessageIndex:   state.RemoteCommitment.LocalLogIndex,
		theirMessageIndex: state.RemoteCommitment.RemoteLogIndex,
		ourHtlcIndex:      state.RemoteCommitment.LocalHtlcIndex,
		theirHtlcIndex:    state.RemoteCommitment.RemoteHtlcIndex,
		txn:               state.RemoteCommitment.CommitTx,
		sig:               state.RemoteCommitment.CommitSig,
		fee:               state.RemoteCommitment.CommitFee,
		feePerKw:          state.RemoteCommitment.FeePerKw,
		ourBalance:        state.RemoteCommitment.LocalBalance,
		theirBalance:      state.RemoteCommitment.RemoteBalance,
		dustLimit:         state.RemoteChanCfg.DustLimit,
	}

	lc.localCommitChain.addCommitment(localCommit)
	lc.remoteCommitChain.addCommitment(remoteCommit)

	return lc, nil
}

// createCommitmentTx builds the commitment transaction for one party at a
// given balance split and HTLC set, per BOLT-3: a single input spending the
// 2-of-2 funding output, an optional to_local and to_remote output, and one
// output per HTLC that isn't dust under the commitment's own feerate.
func createCommitmentTx(fundingTxIn wire.TxIn, keyRing *commitmentKeyRing,
	cfg, remoteCfg *channeldb.ChannelConfig, ourBalance,
	theirBalance lnwire.MilliSatoshi, feePerKw btcutil.Amount,
	htlcs []PaymentDescriptor, ourCommit bool) (*wire.MsgTx, error) {

	commitTx := wire.NewMsgTx(2)
	commitTx.AddTxIn(&fundingTxIn)

	if ourBalance >= lnwire.NewMSatFromSatoshis(cfg.DustLimit) {
		toLocalScript, err := input.CommitScriptToSelf(
			uint32(cfg.CsvDelay), keyRing.delayKey, keyRing.revocationKey,
		)
		if err != nil {
			return nil, err
		}
		toLocalPkScript, err := input.WitnessScriptHash(toLocalScript)
		if err != nil {
			return nil, err
		}
		commitTx.AddTxOut(&wire.TxOut{
			Value:    int64(ourBalance.ToSatoshis()),
			PkScript: toLocalPkScript,
		})
	}

	if theirBalance >= lnwire.NewMSatFromSatoshis(remoteCfg.DustLimit) {
		toRemotePkScript, err := input.CommitScriptToRemote(keyRing.noDelayKey)
		if err != nil {
			return nil, err
		}
		commitTx.AddTxOut(&wire.TxOut{
			Value:    int64(theirBalance.ToSatoshis()),
			PkScript: toRemotePkScript,
		})
	}

	for _, htlc := range htlcs {
		incoming := htlc.isIncomingFor(ourCommit)
		if htlcIsDust(incoming, ourCommit, feePerKw,
			htlc.Amount.ToSatoshis(), cfg.DustLimit) {
			continue
		}

		var script []byte
		var err error
		if incoming {
			script, err = input.ReceiverHTLCScript(
				htlc.Timeout, keyRing.remoteHtlcKey,
				keyRing.localHtlcKey, keyRing.revocationKey,
				htlc.RHash,
			)
		} else {
			script, err = input.SenderHTLCScript(
				keyRing.remoteHtlcKey, keyRing.localHtlcKey,
				keyRing.revocationKey, htlc.RHash,
			)
		}
		if err != nil {
			return nil, err
		}

		pkScript, err := input.WitnessScriptHash(script)
		if err != nil {
			return nil, err
		}

		commitTx.AddTxOut(&wire.TxOut{
			Value:    int64(htlc.Amount.ToSatoshis()),
			PkScript: pkScript,
		})
	}

	txsort.InPlaceSort(commitTx)

	return commitTx, nil
}

// htlcOutput pairs a locked-in, non-dust HTLC with the output index it
// landed on within an already txsort-sorted commitment transaction, plus
// everything needed to build and sign its second-level transaction.
type htlcOutput struct {
	htlc          PaymentDescriptor
	incoming      bool
	outputIndex   int
	amt           int64
	witnessScript []byte
}

// locateHtlcOutputs rebuilds the witness script createCommitmentTx used for
// each non-dust HTLC and matches it against commitTx's outputs, recovering
// the output index each HTLC landed on after canonical sorting. The
// returned slice is ordered by ascending output index, the order BOLT-3
// requires htlc_signature entries to follow.
func locateHtlcOutputs(commitTx *wire.MsgTx, keyRing *commitmentKeyRing,
	htlcs []PaymentDescriptor, feePerKw, dustLimit btcutil.Amount,
	ourCommit bool) ([]htlcOutput, error) {

	var outputs []htlcOutput
	for _, htlc := range htlcs {
		incoming := htlc.isIncomingFor(ourCommit)
		if htlcIsDust(incoming, ourCommit, feePerKw,
			htlc.Amount.ToSatoshis(), dustLimit) {
			continue
		}

		var script []byte
		var err error
		if incoming {
			script, err = input.ReceiverHTLCScript(
				htlc.Timeout, keyRing.remoteHtlcKey,
				keyRing.localHtlcKey, keyRing.revocationKey,
				htlc.RHash,
			)
		} else {
			script, err = input.SenderHTLCScript(
				keyRing.remoteHtlcKey, keyRing.localHtlcKey,
				keyRing.revocationKey, htlc.RHash,
			)
		}
		if err != nil {
			return nil, err
		}

		pkScript, err := input.WitnessScriptHash(script)
		if err != nil {
			return nil, err
		}

		found := false
		for i, txOut := range commitTx.TxOut {
			if !bytes.Equal(txOut.PkScript, pkScript) {
				continue
			}
			outputs = append(outputs, htlcOutput{
				htlc:          htlc,
				incoming:      incoming,
				outputIndex:   i,
				amt:           txOut.Value,
				witnessScript: script,
			})
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("htlc output for rhash=%x not "+
				"found on commitment tx %v", htlc.RHash,
				commitTx.TxHash())
		}
	}

	sort.Slice(outputs, func(i, j int) bool {
		return outputs[i].outputIndex < outputs[j].outputIndex
	})

	return outputs, nil
}

// createHtlcSecondLevelTx builds the unsigned second-level transaction
// spending a single non-dust HTLC output of a commitment transaction: an
// HTLC-timeout transaction for an offered HTLC, locked until its CLTV
// expiry, or an HTLC-success transaction for an accepted HTLC, spendable
// immediately once its preimage is known. Either way the single output pays
// the HTLC amount, net of its own second-stage fee, to a CSV-delayed,
// revocable script under the commitment owner's own keys, mirroring the
// commitment's own to_local output.
func createHtlcSecondLevelTx(commitOutpoint wire.OutPoint, out htlcOutput,
	keyRing *commitmentKeyRing, csvDelay uint32,
	feePerKw btcutil.Amount) (*wire.MsgTx, error) {

	toLocalScript, err := input.CommitScriptToSelf(
		csvDelay, keyRing.delayKey, keyRing.revocationKey,
	)
	if err != nil {
		return nil, err
	}
	toLocalPkScript, err := input.WitnessScriptHash(toLocalScript)
	if err != nil {
		return nil, err
	}

	var (
		fee      btcutil.Amount
		locktime uint32
	)
	if out.incoming {
		fee = htlcSuccessFee(feePerKw)
	} else {
		fee = htlcTimeoutFee(feePerKw)
		locktime = out.htlc.Timeout
	}

	tx := wire.NewMsgTx(2)
	tx.LockTime = locktime
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: commitOutpoint,
		Sequence:         0,
	})
	tx.AddTxOut(&wire.TxOut{
		PkScript: toLocalPkScript,
		Value:    out.amt - int64(fee),
	})

	return tx, nil
}

// signHtlcSecondLevelTx produces the htlc_signature for a single
// second-level transaction, under SIGHASH_SINGLE|SIGHASH_ANYONECANPAY so
// the party that eventually broadcasts it (after adding its own
// counter-signature) is free to append further fee inputs without
// invalidating this signature, per spec.md's required re-fee-bumping of
// delayed on-chain claims.
func signHtlcSecondLevelTx(signer input.Signer, tx *wire.MsgTx,
	witnessScript []byte, amt int64,
	keyDesc input.KeyDescriptor) (lnwire.Sig, error) {

	pkScript, err := input.WitnessScriptHash(witnessScript)
	if err != nil {
		return lnwire.Sig{}, err
	}

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(pkScript, amt)
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)

	rawSig, err := signer.SignOutputRaw(tx, &input.SignDescriptor{
		KeyDesc:       keyDesc,
		WitnessScript: witnessScript,
		Output:        &wire.TxOut{PkScript: pkScript, Value: amt},
		HashType:      txscript.SigHashSingle | txscript.SigHashAnyOneCanPay,
		SigHashes:     sigHashes,
		InputIndex:    0,
	})
	if err != nil {
		return lnwire.Sig{}, err
	}

	sig, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		return lnwire.Sig{}, err
	}

	return lnwire.NewSigFromSignature(sig)
}

// verifyHtlcSecondLevelSig checks a counterparty-supplied htlc_signature
// against the second-level transaction it must cover.
func verifyHtlcSecondLevelSig(wireSig lnwire.Sig, tx *wire.MsgTx,
	witnessScript []byte, amt int64, signerKey *btcec.PublicKey) error {

	sig, err := wireSig.ToSignature()
	if err != nil {
		return err
	}

	pkScript, err := input.WitnessScriptHash(witnessScript)
	if err != nil {
		return err
	}

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(pkScript, amt)
	hash, err := txscript.CalcWitnessSigHash(
		witnessScript, txscript.NewTxSigHashes(tx, prevOutFetcher),
		txscript.SigHashSingle|txscript.SigHashAnyOneCanPay, tx, 0, amt,
	)
	if err != nil {
		return err
	}

	if !sig.Verify(hash, signerKey) {
		return fmt.Errorf("invalid htlc signature")
	}

	return nil
}

// isIncomingFor reports whether htlc is "incoming" from the point of view
// of the owner of the commitment being built: an HTLC we offered is
// incoming on their commitment and outgoing on ours, and vice versa.
func (pd *PaymentDescriptor) isIncomingFor(ourCommit bool) bool {
	addedByRemote := pd.localOutputIndex == -1
	if ourCommit {
		return addedByRemote
	}
	return !addedByRemote
}

// fundingTxIn returns the single input every commitment transaction spends:
// the channel's 2-of-2 funding outpoint.
func fundingTxIn(chanState *channeldb.OpenChannel) wire.TxIn {
	return wire.TxIn{
		PreviousOutPoint: chanState.FundingOutpoint,
		Sequence:         wire.MaxTxInSequenceNum,
	}
}

// AddHTLC appends a new outgoing HTLC to the local update log, returning
// the index it was assigned.
func (lc *LightningChannel) AddHTLC(htlc *lnwire.UpdateAddHTLC) (uint64, error) {
	lc.Lock()
	defer lc.Unlock()

	if lc.status != channelOpen {
		return 0, ErrChanClosing
	}

	pd := &PaymentDescriptor{
		EntryType:         Add,
		RHash:             PaymentHash(htlc.PaymentHash),
		Timeout:           htlc.Expiry,
		Amount:            htlc.Amount,
		OnionBlob:         htlc.OnionBlob,
		localOutputIndex:  -2,
		remoteOutputIndex: -1,
	}

	lc.localUpdateLog.appendHtlc(pd)

	return pd.HtlcIndex, nil
}

// ReceiveHTLC records an HTLC offered by the remote party into their update
// log.
func (lc *LightningChannel) ReceiveHTLC(htlc *lnwire.UpdateAddHTLC) (uint64, error) {
	lc.Lock()
	defer lc.Unlock()

	if lc.status != channelOpen {
		return 0, ErrChanClosing
	}

	pd := &PaymentDescriptor{
		EntryType:         Add,
		RHash:             PaymentHash(htlc.PaymentHash),
		Timeout:           htlc.Expiry,
		Amount:            htlc.Amount,
		OnionBlob:         htlc.OnionBlob,
		localOutputIndex:  -1,
		remoteOutputIndex: -2,
	}

	lc.remoteUpdateLog.appendHtlc(pd)

	return pd.HtlcIndex, nil
}

// SettleHTLC records the preimage for an HTLC the remote party offered us,
// queuing a Settle entry in our own update log.
func (lc *LightningChannel) SettleHTLC(preimage [32]byte, htlcIndex uint64) error {
	lc.Lock()
	defer lc.Unlock()

	htlc := lc.remoteUpdateLog.lookupHtlc(htlcIndex)
	if htlc == nil {
		return ErrNoDescriptor
	}

	hash := chainhash.Hash(sha256Sum(preimage[:]))
	if !bytes.Equal(hash[:], htlc.RHash[:]) {
		return fmt.Errorf("preimage does not match rhash")
	}

	pd := &PaymentDescriptor{
		EntryType:   Settle,
		RPreimage:   preimage,
		ParentIndex: htlc.HtlcIndex,
		Amount:      htlc.Amount,
	}
	lc.localUpdateLog.appendUpdate(pd)

	return nil
}

// ReceiveHTLCSettle processes a settle the remote party sent for an HTLC we
// offered.
func (lc *LightningChannel) ReceiveHTLCSettle(preimage [32]byte, htlcIndex uint64) error {
	lc.Lock()
	defer lc.Unlock()

	htlc := lc.localUpdateLog.lookupHtlc(htlcIndex)
	if htlc == nil {
		return ErrNoDescriptor
	}

	hash := chainhash.Hash(sha256Sum(preimage[:]))
	if !bytes.Equal(hash[:], htlc.RHash[:]) {
		return fmt.Errorf("preimage does not match rhash")
	}

	pd := &PaymentDescriptor{
		EntryType:   Settle,
		RPreimage:   preimage,
		ParentIndex: htlc.HtlcIndex,
		Amount:      htlc.Amount,
	}
	lc.remoteUpdateLog.appendUpdate(pd)

	return nil
}

// FailHTLC queues a Fail entry in our own log for an HTLC the remote party
// offered us.
func (lc *LightningChannel) FailHTLC(htlcIndex uint64, reason []byte) error {
	lc.Lock()
	defer lc.Unlock()

	htlc := lc.remoteUpdateLog.lookupHtlc(htlcIndex)
	if htlc == nil {
		return ErrNoDescriptor
	}

	pd := &PaymentDescriptor{
		EntryType:   Fail,
		ParentIndex: htlc.HtlcIndex,
		FailReason:  reason,
		Amount:      htlc.Amount,
	}
	lc.localUpdateLog.appendUpdate(pd)

	return nil
}

// ReceiveFailHTLC processes a fail the remote party sent for an HTLC we
// offered.
func (lc *LightningChannel) ReceiveFailHTLC(htlcIndex uint64, reason []byte) error {
	lc.Lock()
	defer lc.Unlock()

	htlc := lc.localUpdateLog.lookupHtlc(htlcIndex)
	if htlc == nil {
		return ErrNoDescriptor
	}

	pd := &PaymentDescriptor{
		EntryType:   Fail,
		ParentIndex: htlc.HtlcIndex,
		FailReason:  reason,
		Amount:      htlc.Amount,
	}
	lc.remoteUpdateLog.appendUpdate(pd)

	return nil
}

// evalHTLCView walks the pending entries of both update logs up to the
// given indexes, returning the resulting balances and locked-in HTLC set
// as seen from ourCommit's perspective.
func (lc *LightningChannel) evalHTLCView(ourLogIndex,
	theirLogIndex uint64, ourBalance, theirBalance lnwire.MilliSatoshi,
	ourCommit bool) (lnwire.MilliSatoshi, lnwire.MilliSatoshi, []PaymentDescriptor) {

	var htlcSet []PaymentDescriptor
	resolved := make(map[uint64]bool)

	applyLog := func(log *updateLog, upperBound uint64, mine bool) {
		for e := log.updates.Front(); e != nil; e = e.Next() {
			pd := e.Value.(*PaymentDescriptor)
			if pd.LogIndex >= upperBound {
				continue
			}

			switch pd.EntryType {
			case Settle:
				resolved[pd.ParentIndex] = true
				if mine {
					theirBalance += pd.Amount
				} else {
					ourBalance += pd.Amount
				}
			case Fail, MalformedFail:
				resolved[pd.ParentIndex] = true
				if mine {
					ourBalance += pd.Amount
				} else {
					theirBalance += pd.Amount
				}
			}
		}
	}

	applyLog(lc.localUpdateLog, ourLogIndex, true)
	applyLog(lc.remoteUpdateLog, theirLogIndex, false)

	collect := func(log *updateLog, upperBound uint64, fromLocal bool) {
		for e := log.updates.Front(); e != nil; e = e.Next() {
			pd := e.Value.(*PaymentDescriptor)
			if pd.LogIndex >= upperBound || pd.EntryType != Add {
				continue
			}
			if resolved[pd.HtlcIndex] {
				continue
			}

			htlc := *pd
			if fromLocal {
				htlc.localOutputIndex, htlc.remoteOutputIndex = -2, -1
			} else {
				htlc.localOutputIndex, htlc.remoteOutputIndex = -1, -2
			}
			htlcSet = append(htlcSet, htlc)

			if fromLocal {
				ourBalance -= pd.Amount
			} else {
				theirBalance -= pd.Amount
			}
		}
	}

	collect(lc.localUpdateLog, ourLogIndex, true)
	collect(lc.remoteUpdateLog, theirLogIndex, false)

	_ = ourCommit
	return ourBalance, theirBalance, htlcSet
}

// sha256Sum is a small local helper so this file doesn't need a second
// crypto/sha256 import alias at every call site.
func sha256Sum(b []byte) [32]byte {
	return chainhash.HashH(b)
}

// SignNextCommitment signs the next commitment to extend to the remote
// party, covering every update in both logs up to their current tips, and
// advances our view of their commitment chain.
func (lc *LightningChannel) SignNextCommitment() (lnwire.Sig, []lnwire.Sig, error) {
	lc.Lock()
	defer lc.Unlock()

	if lc.remoteCommitChain.hasUnackedCommitment() {
		return lnwire.Sig{}, nil, ErrNoWindow
	}

	oldRemoteCommit := lc.remoteCommitChain.tip()

	ourBalance, theirBalance, htlcs := lc.evalHTLCView(
		lc.localUpdateLog.logIndex, lc.remoteUpdateLog.logIndex,
		oldRemoteCommit.ourBalance, oldRemoteCommit.theirBalance, false,
	)

	keyRing := deriveCommitmentKeys(
		lc.remoteChanCfg.MultiSigKey, false, lc.localChanCfg, lc.remoteChanCfg,
	)

	commitTx, err := createCommitmentTx(
		fundingTxIn(lc.channelState), keyRing, lc.remoteChanCfg,
		lc.localChanCfg, theirBalance, ourBalance,
		oldRemoteCommit.feePerKw, htlcs, false,
	)
	if err != nil {
		return lnwire.Sig{}, nil, err
	}

	newCommit := &commitment{
		height:            oldRemoteCommit.height + 1,
		isOurs:            false,
		ourMessageIndex:   lc.localUpdateLog.logIndex,
		theirMessageIndex: lc.remoteUpdateLog.logIndex,
		ourHtlcIndex:      lc.localUpdateLog.htlcCounter,
		theirHtlcIndex:    lc.remoteUpdateLog.htlcCounter,
		txn:               commitTx,
		ourBalance:        theirBalance,
		theirBalance:      ourBalance,
		feePerKw:          oldRemoteCommit.feePerKw,
		dustLimit:         lc.remoteChanCfg.DustLimit,
	}

	fundingScript, err := input.GenMultiSigScript(
		lc.localChanCfg.MultiSigKey.SerializeCompressed(),
		lc.remoteChanCfg.MultiSigKey.SerializeCompressed(),
	)
	if err != nil {
		return lnwire.Sig{}, nil, err
	}
	fundingPkScript, err := input.WitnessScriptHash(fundingScript)
	if err != nil {
		return lnwire.Sig{}, nil, err
	}
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(
		fundingPkScript, int64(lc.channelState.Capacity),
	)
	sigHashes := txscript.NewTxSigHashes(commitTx, prevOutFetcher)

	rawSig, err := lc.signer.SignOutputRaw(commitTx, &input.SignDescriptor{
		KeyDesc:       input.KeyDescriptor{PubKey: lc.localChanCfg.MultiSigKey},
		WitnessScript: fundingScript,
		Output: &wire.TxOut{
			PkScript: fundingPkScript,
			Value:    int64(lc.channelState.Capacity),
		},
		HashType:  txscript.SigHashAll,
		SigHashes: sigHashes,
		InputIndex: 0,
	})
	if err != nil {
		return lnwire.Sig{}, nil, err
	}

	sig, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		return lnwire.Sig{}, nil, err
	}
	wireSig, err := lnwire.NewSigFromSignature(sig)
	if err != nil {
		return lnwire.Sig{}, nil, err
	}
	newCommit.sig = wireSig[:]

	htlcOutputs, err := locateHtlcOutputs(
		commitTx, keyRing, htlcs, oldRemoteCommit.feePerKw,
		lc.remoteChanCfg.DustLimit, false,
	)
	if err != nil {
		return lnwire.Sig{}, nil, err
	}

	htlcSigs := make([]lnwire.Sig, len(htlcOutputs))
	for i, out := range htlcOutputs {
		htlcTx, err := createHtlcSecondLevelTx(
			wire.OutPoint{
				Hash:  commitTx.TxHash(),
				Index: uint32(out.outputIndex),
			},
			out, keyRing, uint32(lc.remoteChanCfg.CsvDelay),
			oldRemoteCommit.feePerKw,
		)
		if err != nil {
			return lnwire.Sig{}, nil, err
		}

		htlcSig, err := signHtlcSecondLevelTx(
			lc.signer, htlcTx, out.witnessScript, out.amt,
			input.KeyDescriptor{PubKey: keyRing.localHtlcKey},
		)
		if err != nil {
			return lnwire.Sig{}, nil, err
		}
		htlcSigs[i] = htlcSig
	}
	newCommit.htlcSigs = htlcSigs

	lc.remoteCommitChain.addCommitment(newCommit)

	return wireSig, htlcSigs, nil
}

// ReceiveNewCommitment verifies and stores a commitment the remote party
// has signed and sent to us, advancing our own commitment chain.
func (lc *LightningChannel) ReceiveNewCommitment(commitSig lnwire.Sig,
	htlcSigs []lnwire.Sig) error {

	lc.Lock()
	defer lc.Unlock()

	oldLocalCommit := lc.localCommitChain.tip()

	ourBalance, theirBalance, htlcs := lc.evalHTLCView(
		lc.localUpdateLog.logIndex, lc.remoteUpdateLog.logIndex,
		oldLocalCommit.ourBalance, oldLocalCommit.theirBalance, true,
	)

	keyRing := deriveCommitmentKeys(
		lc.localChanCfg.MultiSigKey, true, lc.localChanCfg, lc.remoteChanCfg,
	)

	commitTx, err := createCommitmentTx(
		fundingTxIn(lc.channelState), keyRing, lc.localChanCfg,
		lc.remoteChanCfg, ourBalance, theirBalance,
		oldLocalCommit.feePerKw, htlcs, true,
	)
	if err != nil {
		return err
	}

	sig, err := commitSig.ToSignature()
	if err != nil {
		return err
	}

	fundingScript, err := input.GenMultiSigScript(
		lc.localChanCfg.MultiSigKey.SerializeCompressed(),
		lc.remoteChanCfg.MultiSigKey.SerializeCompressed(),
	)
	if err != nil {
		return err
	}
	fundingPkScript, err := input.WitnessScriptHash(fundingScript)
	if err != nil {
		return err
	}
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(
		fundingPkScript, int64(lc.channelState.Capacity),
	)

	hash, err := txscript.CalcWitnessSigHash(
		fundingScript, txscript.NewTxSigHashes(commitTx, prevOutFetcher),
		txscript.SigHashAll, commitTx, 0, int64(lc.channelState.Capacity),
	)
	if err != nil {
		return err
	}
	if !sig.Verify(hash, lc.remoteChanCfg.MultiSigKey) {
		return fmt.Errorf("invalid commitment signature")
	}

	sigBytes, err := lnwire.NewSigFromSignature(sig)
	if err != nil {
		return err
	}

	htlcOutputs, err := locateHtlcOutputs(
		commitTx, keyRing, htlcs, oldLocalCommit.feePerKw,
		lc.localChanCfg.DustLimit, true,
	)
	if err != nil {
		return err
	}
	if len(htlcSigs) != len(htlcOutputs) {
		return fmt.Errorf("expected %v htlc sigs, got %v",
			len(htlcOutputs), len(htlcSigs))
	}

	for i, out := range htlcOutputs {
		htlcTx, err := createHtlcSecondLevelTx(
			wire.OutPoint{
				Hash:  commitTx.TxHash(),
				Index: uint32(out.outputIndex),
			},
			out, keyRing, uint32(lc.localChanCfg.CsvDelay),
			oldLocalCommit.feePerKw,
		)
		if err != nil {
			return err
		}

		if err := verifyHtlcSecondLevelSig(
			htlcSigs[i], htlcTx, out.witnessScript, out.amt,
			keyRing.remoteHtlcKey,
		); err != nil {
			return fmt.Errorf("htlc %d: %w", i, err)
		}
	}

	newCommit := &commitment{
		height:            oldLocalCommit.height + 1,
		isOurs:            true,
		ourMessageIndex:   lc.localUpdateLog.logIndex,
		theirMessageIndex: lc.remoteUpdateLog.logIndex,
		ourHtlcIndex:      lc.localUpdateLog.htlcCounter,
		theirHtlcIndex:    lc.remoteUpdateLog.htlcCounter,
		txn:               commitTx,
		sig:               sigBytes[:],
		htlcSigs:          htlcSigs,
		ourBalance:        ourBalance,
		theirBalance:      theirBalance,
		feePerKw:          oldLocalCommit.feePerKw,
		dustLimit:         lc.localChanCfg.DustLimit,
	}

	lc.localCommitChain.addCommitment(newCommit)

	return nil
}

// RevokeCurrentCommitment revokes the local party's current commitment
// tail, releasing its per-commitment secret and advancing to the next
// per-commitment point, as the local commitment chain's tip is promoted to
// tail.
func (lc *LightningChannel) RevokeCurrentCommitment() (*lnwire.RevokeAndAck, error) {
	lc.Lock()
	defer lc.Unlock()

	tail := lc.localCommitChain.tail()

	producer := lc.channelState.RevocationProducer
	commitSecret, err := producer.AtIndex(
		shachain.CommitHeightToIndex(tail.height),
	)
	if err != nil {
		return nil, err
	}

	nextSecret, err := producer.AtIndex(
		shachain.CommitHeightToIndex(tail.height + 2),
	)
	if err != nil {
		return nil, err
	}
	nextPoint := btcec.PrivKeyFromBytes(nextSecret[:]).PubKey()

	lc.localCommitChain.advanceTail()

	return &lnwire.RevokeAndAck{
		ChanID:                  lc.channelState.ChanID(),
		Revocation:              *commitSecret,
		NextPerCommitmentPoint:  nextPoint,
	}, nil
}

// ReceiveRevocation processes a RevokeAndAck from the remote party,
// recording the revealed secret in the revocation store (which rejects a
// secret inconsistent with those stored before it) and advancing our view
// of the remote commitment chain. The secret is not checked against the
// previous commitment point.
func (lc *LightningChannel) ReceiveRevocation(rev *lnwire.RevokeAndAck) error {
	lc.Lock()
	defer lc.Unlock()

	tail := lc.remoteCommitChain.tail()

	if err := lc.channelState.RevocationStore.Store(
		chainhash.Hash(rev.Revocation),
		shachain.CommitHeightToIndex(tail.height),
	); err != nil {
		return err
	}

	lc.channelState.RemoteCurrentRevocation = lc.channelState.RemoteNextRevocation
	lc.channelState.RemoteNextRevocation = rev.NextPerCommitmentPoint

	lc.remoteCommitChain.advanceTail()

	return nil
}

// FullySynced reports whether both commitment chains agree on the current
// height with no unacked commitment outstanding on either side.
func (lc *LightningChannel) FullySynced() bool {
	lc.RLock()
	defer lc.RUnlock()

	return !lc.localCommitChain.hasUnackedCommitment() &&
		!lc.remoteCommitChain.hasUnackedCommitment()
}

// ChannelPoint returns the channel's funding outpoint.
func (lc *LightningChannel) ChannelPoint() wire.OutPoint {
	return lc.channelState.FundingOutpoint
}

// State returns the persistent channeldb state underlying this channel.
func (lc *LightningChannel) State() *channeldb.OpenChannel {
	return lc.channelState
}

// IsInitiator reports whether this node opened the channel, and so pays the
// commitment transaction fee.
func (lc *LightningChannel) IsInitiator() bool {
	return lc.channelState.IsInitiator
}

// CreateCloseProposal signs a cooperative closing transaction at the given
// proposed fee, for the remote party to countersign.
func (lc *LightningChannel) CreateCloseProposal(proposedFee btcutil.Amount,
	localDeliveryScript, remoteDeliveryScript []byte) ([]byte, *wire.MsgTx, error) {

	lc.Lock()
	defer lc.Unlock()

	localCommit := lc.localCommitChain.tail()

	ourBalance := localCommit.ourBalance.ToSatoshis()
	theirBalance := localCommit.theirBalance.ToSatoshis()

	if lc.IsInitiator() {
		ourBalance -= proposedFee
	} else {
		theirBalance -= proposedFee
	}

	closeTx := CreateCooperativeCloseTx(
		fundingTxIn(lc.channelState), lc.localChanCfg.DustLimit,
		lc.remoteChanCfg.DustLimit, ourBalance, theirBalance,
		localDeliveryScript, remoteDeliveryScript,
	)

	fundingScript, err := input.GenMultiSigScript(
		lc.localChanCfg.MultiSigKey.SerializeCompressed(),
		lc.remoteChanCfg.MultiSigKey.SerializeCompressed(),
	)
	if err != nil {
		return nil, nil, err
	}
	fundingPkScript, err := input.WitnessScriptHash(fundingScript)
	if err != nil {
		return nil, nil, err
	}
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(
		fundingPkScript, int64(lc.channelState.Capacity),
	)

	sig, err := lc.signer.SignOutputRaw(closeTx, &input.SignDescriptor{
		KeyDesc:       input.KeyDescriptor{PubKey: lc.localChanCfg.MultiSigKey},
		WitnessScript: fundingScript,
		Output: &wire.TxOut{
			PkScript: fundingPkScript,
			Value:    int64(lc.channelState.Capacity),
		},
		HashType:   txscript.SigHashAll,
		SigHashes:  txscript.NewTxSigHashes(closeTx, prevOutFetcher),
		InputIndex: 0,
	})
	if err != nil {
		return nil, nil, err
	}

	lc.status = channelClosing

	return sig, closeTx, nil
}

// CreateCooperativeCloseTx builds the unsigned mutual-close transaction:
// the funding input, and up to two outputs paying each side's settled
// balance above its own dust limit, BIP-69 sorted like every other
// transaction this channel produces.
func CreateCooperativeCloseTx(fundingTxIn wire.TxIn,
	localDust, remoteDust, ourBalance, theirBalance btcutil.Amount,
	ourDeliveryScript, theirDeliveryScript []byte) *wire.MsgTx {

	closeTx := wire.NewMsgTx(2)
	closeTx.AddTxIn(&fundingTxIn)

	if ourBalance >= localDust {
		closeTx.AddTxOut(&wire.TxOut{
			Value:    int64(ourBalance),
			PkScript: ourDeliveryScript,
		})
	}
	if theirBalance >= remoteDust {
		closeTx.AddTxOut(&wire.TxOut{
			Value:    int64(theirBalance),
			PkScript: theirDeliveryScript,
		})
	}

	txsort.InPlaceSort(closeTx)

	return closeTx
}

// ForceCloseSummary bundles together the broadcastable local commitment
// transaction and what is needed to sweep its to_local output. It carries
// nothing for the commitment's HTLC outputs.
type ForceCloseSummary struct {
	ChanPoint      wire.OutPoint
	CloseTx        *wire.MsgTx
	ToLocalOutpoint wire.OutPoint
	ToLocalWitnessScript []byte
	CsvDelay       uint32
}

// ForceClose marks the channel closing and returns the local party's
// currently signed commitment transaction along with the information
// needed to later sweep its to_local output once the CSV delay matures.
func (lc *LightningChannel) ForceClose() (*ForceCloseSummary, error) {
	lc.Lock()
	defer lc.Unlock()

	if lc.status == channelClosed {
		return nil, ErrChanClosing
	}

	localCommit := lc.localCommitChain.tail()
	commitTx := localCommit.txn

	keyRing := deriveCommitmentKeys(
		lc.localChanCfg.MultiSigKey, true, lc.localChanCfg, lc.remoteChanCfg,
	)
	toLocalScript, err := input.CommitScriptToSelf(
		uint32(lc.localChanCfg.CsvDelay), keyRing.delayKey, keyRing.revocationKey,
	)
	if err != nil {
		return nil, err
	}

	var toLocalOutpoint wire.OutPoint
	toLocalPkScript, err := input.WitnessScriptHash(toLocalScript)
	if err != nil {
		return nil, err
	}
	for i, txOut := range commitTx.TxOut {
		if bytes.Equal(txOut.PkScript, toLocalPkScript) {
			toLocalOutpoint = wire.OutPoint{
				Hash:  commitTx.TxHash(),
				Index: uint32(i),
			}
			break
		}
	}

	lc.status = channelClosing

	return &ForceCloseSummary{
		ChanPoint:            lc.channelState.FundingOutpoint,
		CloseTx:              commitTx,
		ToLocalOutpoint:      toLocalOutpoint,
		ToLocalWitnessScript: toLocalScript,
		CsvDelay:             uint32(lc.localChanCfg.CsvDelay),
	}, nil
}

// CalcFee returns the fee, in satoshis, a commitment transaction pays at
// the given feerate (sat/kw), accounting for the fixed weight of the base
// commitment transaction shape (no HTLC outputs).
func CalcFee(feeRate btcutil.Amount) btcutil.Amount {
	var estimator input.TxWeightEstimator
	estimator.AddWitnessInput(input.MultiSigSize)
	estimator.AddP2WSHOutput()
	estimator.AddP2WKHOutput()

	return feeRate * btcutil.Amount(estimator.Weight()) / 1000
}
