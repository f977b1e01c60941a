package sweep

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/input"
)

// fakeTicker lets a test drive UtxoAggregator's re-evaluation loop by hand.
type fakeTicker struct {
	ticks chan time.Time
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ticks: make(chan time.Time, 1)}
}

func (f *fakeTicker) Ticks() <-chan time.Time { return f.ticks }
func (f *fakeTicker) Stop()                   {}

// fakeFeeEstimator returns a fixed feerate regardless of confirmation
// target, enough for generateInputPartitionings to exercise the aggregator
// without a real chain backend.
type fakeFeeEstimator struct {
	relay  SatPerKWeight
	target SatPerKWeight
}

func (f *fakeFeeEstimator) RelayFeePerKW() SatPerKWeight { return f.relay }

func (f *fakeFeeEstimator) EstimateFeePerKW(uint32) (SatPerKWeight, error) {
	return f.target, nil
}

type fakeSigner struct{}

func (fakeSigner) SignOutputRaw(tx *wire.MsgTx,
	desc *input.SignDescriptor) ([]byte, error) {

	return []byte{0x01}, nil
}

func TestUtxoAggregatorPublishesPendingInput(t *testing.T) {
	t.Parallel()

	var published []*wire.MsgTx

	agg := NewUtxoAggregator(
		fakeSigner{},
		&fakeFeeEstimator{relay: 253, target: 10_000},
		func(tx *wire.MsgTx) error {
			published = append(published, tx)
			return nil
		},
		func() ([]byte, error) {
			return []byte{txscript.OP_0, 0}, nil
		},
		newFakeTicker(),
	)

	agg.AddInput(newTestInput(0, 500_000, input.CommitSpendTimeout))

	if err := agg.reevaluate(); err != nil {
		t.Fatalf("unable to re-evaluate: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("expected exactly one published tx, got %v", len(published))
	}
}

func TestUtxoAggregatorSkipsRebumpBelowThreshold(t *testing.T) {
	t.Parallel()

	var published []*wire.MsgTx

	estimator := &fakeFeeEstimator{relay: 253, target: 10_000}
	agg := NewUtxoAggregator(
		fakeSigner{},
		estimator,
		func(tx *wire.MsgTx) error {
			published = append(published, tx)
			return nil
		},
		func() ([]byte, error) {
			return []byte{txscript.OP_0, 0}, nil
		},
		newFakeTicker(),
	)

	agg.AddInput(newTestInput(0, 500_000, input.CommitSpendTimeout))

	if err := agg.reevaluate(); err != nil {
		t.Fatalf("unable to re-evaluate: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("expected one tx after first re-evaluation, got %v",
			len(published))
	}

	// A feerate bump too small to clear minFeeBumpPercent shouldn't
	// trigger a second broadcast.
	estimator.target = 10_500

	if err := agg.reevaluate(); err != nil {
		t.Fatalf("unable to re-evaluate: %v", err)
	}
	if len(published) != 1 {
		t.Fatalf("expected no rebroadcast below the bump threshold, "+
			"got %v total", len(published))
	}

	// A large enough bump should trigger a rebroadcast.
	estimator.target = 20_000

	if err := agg.reevaluate(); err != nil {
		t.Fatalf("unable to re-evaluate: %v", err)
	}
	if len(published) != 2 {
		t.Fatalf("expected a rebroadcast above the bump threshold, "+
			"got %v total", len(published))
	}
}

func TestUtxoAggregatorRemoveInputStopsRepublishing(t *testing.T) {
	t.Parallel()

	var published []*wire.MsgTx

	agg := NewUtxoAggregator(
		fakeSigner{},
		&fakeFeeEstimator{relay: 253, target: 10_000},
		func(tx *wire.MsgTx) error {
			published = append(published, tx)
			return nil
		},
		func() ([]byte, error) {
			return []byte{txscript.OP_0, 0}, nil
		},
		newFakeTicker(),
	)

	inp := newTestInput(0, 500_000, input.CommitSpendTimeout)
	agg.AddInput(inp)
	agg.RemoveInput(*inp.OutPoint())

	if err := agg.reevaluate(); err != nil {
		t.Fatalf("unable to re-evaluate: %v", err)
	}
	if len(published) != 0 {
		t.Fatalf("expected no published tx after RemoveInput, got %v",
			len(published))
	}
}
