package sweep

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/input"
)

// ReevaluateInterval is the default interval callers should drive the
// aggregator's ticker at: how often a pending claim batch is
// re-partitioned and, if the feerate has moved enough to justify it,
// rebroadcast with a higher fee.
const ReevaluateInterval = 10 * time.Minute

// Ticker is the subset of ticker.Ticker UtxoAggregator depends on, broken
// out as a local interface so tests can drive re-evaluation manually
// without a real time.Ticker.
type Ticker interface {
	Ticks() <-chan time.Time
	Stop()
}

// sweepConfTarget is the confirmation target, in blocks, the aggregator
// asks the fee estimator to target for claim transactions.
const sweepConfTarget = 6

// FeeEstimator supplies the current relay fee floor and the fee rate a
// sweep transaction should target, so the aggregator can decide whether a
// re-fee-bump is warranted. Modeled on the EstimateFeePerKW/RelayFeePerKW
// split the teacher's fee estimator exposes elsewhere in the codebase.
type FeeEstimator interface {
	// RelayFeePerKW returns the minimum feerate the backend will relay,
	// used to compute the dust threshold for a sweep's single output.
	RelayFeePerKW() SatPerKWeight

	// EstimateFeePerKW returns the feerate recommended for a
	// transaction targeting confirmation within confTarget blocks.
	EstimateFeePerKW(confTarget uint32) (SatPerKWeight, error)
}

// PublishedTx records the last claim transaction broadcast for a batch of
// inputs, so a subsequent re-evaluation can tell whether the feerate has
// moved enough to justify replacing it.
type PublishedTx struct {
	Tx       *wire.MsgTx
	FeePerKW SatPerKWeight
}

// UtxoAggregator batches pending claim inputs — to_local, to_remote, and
// HTLC outputs recovered from a force-close or justice scenario — into
// input sets by fee yield, and periodically re-evaluates the current
// feerate against what each set's last broadcast transaction paid. On each
// tick, a set whose current target feerate exceeds its last broadcast
// feerate by more than minFeeBumpPercent is rebuilt and rebroadcast at the
// new rate; the aggregator does not track confirmations itself, and an
// input stays pending until RemoveInput drops it. This is the
// mechanism spec.md §4.4 requires so "the penalty tx may be repeatedly
// re-fee-bumped" instead of getting stuck at a feerate the chain later
// outpaces.
type UtxoAggregator struct {
	mu sync.Mutex

	pending map[wire.OutPoint]Input
	last    map[chainhash.Hash]PublishedTx

	signer    input.Signer
	estimator FeeEstimator

	publishTx func(*wire.MsgTx) error
	sweepAddr func() ([]byte, error)

	ticker Ticker
	quit   chan struct{}
	wg     sync.WaitGroup
}

// minFeeBumpPercent is the minimum percentage increase in target feerate,
// over a batch's last broadcast feerate, required before re-evaluation
// bothers rebuilding and rebroadcasting its transaction.
const minFeeBumpPercent = 10

// NewUtxoAggregator constructs an aggregator ready to have inputs added via
// AddInput and started via Start.
func NewUtxoAggregator(signer input.Signer, estimator FeeEstimator,
	publishTx func(*wire.MsgTx) error,
	sweepAddr func() ([]byte, error), ticker Ticker) *UtxoAggregator {

	return &UtxoAggregator{
		pending:   make(map[wire.OutPoint]Input),
		last:      make(map[chainhash.Hash]PublishedTx),
		signer:    signer,
		estimator: estimator,
		publishTx: publishTx,
		sweepAddr: sweepAddr,
		ticker:    ticker,
		quit:      make(chan struct{}),
	}
}

// AddInput registers a new claimable output with the aggregator. It takes
// effect on the next re-evaluation.
func (u *UtxoAggregator) AddInput(inp Input) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.pending[*inp.OutPoint()] = inp
}

// RemoveInput drops an output once it has confirmed spent, so later
// re-evaluations stop trying to include it in a new batch.
func (u *UtxoAggregator) RemoveInput(op wire.OutPoint) {
	u.mu.Lock()
	defer u.mu.Unlock()

	delete(u.pending, op)
}

// Start launches the aggregator's re-evaluation loop, driven by ticker.
func (u *UtxoAggregator) Start() {
	u.wg.Add(1)
	go u.reevaluateLoop()
}

// Stop signals the re-evaluation loop to exit and waits for it to do so.
func (u *UtxoAggregator) Stop() {
	close(u.quit)
	u.wg.Wait()
	u.ticker.Stop()
}

func (u *UtxoAggregator) reevaluateLoop() {
	defer u.wg.Done()

	for {
		select {
		case <-u.ticker.Ticks():
			if err := u.reevaluate(); err != nil {
				log.Errorf("unable to re-evaluate pending "+
					"sweep inputs: %v", err)
			}

		case <-u.quit:
			return
		}
	}
}

// reevaluate re-partitions every pending input into fresh sets, and for any
// set whose target feerate has risen by more than minFeeBumpPercent over
// what it last paid, builds and (re-)broadcasts a new claim transaction.
func (u *UtxoAggregator) reevaluate() error {
	u.mu.Lock()
	inputs := make([]Input, 0, len(u.pending))
	for _, inp := range u.pending {
		inputs = append(inputs, inp)
	}
	u.mu.Unlock()

	if len(inputs) == 0 {
		return nil
	}

	relayFee := u.estimator.RelayFeePerKW()
	targetFee, err := u.estimator.EstimateFeePerKW(sweepConfTarget)
	if err != nil {
		return fmt.Errorf("unable to estimate sweep feerate: %w", err)
	}

	sets, err := generateInputPartitionings(
		inputs, relayFee, targetFee, DefaultMaxInputsPerTx,
	)
	if err != nil {
		return fmt.Errorf("unable to partition sweep inputs: %w", err)
	}

	for _, set := range sets {
		if err := u.publishSet(set, targetFee); err != nil {
			return err
		}
	}

	return nil
}

// batchKey derives a stable identifier for a set of inputs, used to track
// the last transaction published for that exact batch across
// re-evaluations. Two batches with the same inputs, in any order, collapse
// to the same key.
func batchKey(set inputSet) chainhash.Hash {
	var key chainhash.Hash
	for _, inp := range set {
		h := chainhash.HashH([]byte(inp.OutPoint().String()))
		for i := range key {
			key[i] ^= h[i]
		}
	}
	return key
}

// publishSet builds, signs, and broadcasts a claim transaction for set at
// targetFee, skipping the rebroadcast if a transaction for this exact batch
// already went out at a feerate targetFee isn't enough of an improvement
// over.
func (u *UtxoAggregator) publishSet(set inputSet, targetFee SatPerKWeight) error {
	key := batchKey(set)

	u.mu.Lock()
	prev, ok := u.last[key]
	u.mu.Unlock()

	if ok {
		bumpThreshold := prev.FeePerKW +
			prev.FeePerKW*minFeeBumpPercent/100
		if targetFee <= bumpThreshold {
			return nil
		}
	}

	sweepAddr, err := u.sweepAddr()
	if err != nil {
		return fmt.Errorf("unable to generate sweep address: %w", err)
	}

	tx, err := createSweepTx(set, sweepAddr, 0, targetFee, u.signer)
	if err != nil {
		return fmt.Errorf("unable to create sweep tx: %w", err)
	}

	if err := u.publishTx(tx); err != nil {
		return fmt.Errorf("unable to publish sweep tx: %w", err)
	}

	log.Infof("published sweep tx %v for %v inputs at %v sat/kw "+
		"(previous feerate %v sat/kw)", tx.TxHash(), len(set),
		int64(targetFee), int64(prev.FeePerKW))

	u.mu.Lock()
	u.last[key] = PublishedTx{Tx: tx, FeePerKW: targetFee}
	u.mu.Unlock()

	return nil
}
