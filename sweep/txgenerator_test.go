package sweep

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/input"
)

func testOutpoint(idx uint32) wire.OutPoint {
	return wire.OutPoint{Index: idx}
}

func newTestInput(idx uint32, amt int64, wt input.WitnessType) Input {
	priv := btcec.PrivKeyFromBytes([]byte{byte(idx) + 1})
	op := testOutpoint(idx)
	return NewBaseInput(&op, wt, &input.SignDescriptor{
		KeyDesc: input.KeyDescriptor{PubKey: priv.PubKey()},
		Output:  &wire.TxOut{Value: amt},
	})
}

func TestGetInputWitnessSizeUpperBoundKnownTypes(t *testing.T) {
	t.Parallel()

	types := []input.WitnessType{
		input.CommitSpendNoDelay,
		input.CommitSpendTimeout,
		input.CommitSpendRevoke,
		input.HtlcOfferedRevoke,
		input.HtlcAcceptedRevoke,
		input.HtlcSecondLevelTimeoutOrSuccess,
	}

	for _, wt := range types {
		size, err := getInputWitnessSizeUpperBound(newTestInput(0, 100_000, wt))
		if err != nil {
			t.Fatalf("witness type %v: unexpected error: %v", wt, err)
		}
		if size <= 0 {
			t.Fatalf("witness type %v: expected positive size, got %v", wt, size)
		}
	}
}

func TestGetInputWitnessSizeUpperBoundUnknownType(t *testing.T) {
	t.Parallel()

	const bogusType = input.WitnessType(999)
	if _, err := getInputWitnessSizeUpperBound(newTestInput(0, 100_000, bogusType)); err == nil {
		t.Fatalf("expected error for unknown witness type")
	}
}

// TestGenerateInputPartitioningsDropsNegativeYield verifies that a dust-sized
// input, whose fee cost exceeds its own value at the given feerate, is
// excluded from every returned set.
func TestGenerateInputPartitioningsDropsNegativeYield(t *testing.T) {
	t.Parallel()

	const feeRate = SatPerKWeight(50_000)

	good := newTestInput(0, 100_000, input.CommitSpendTimeout)
	dust := newTestInput(1, 100, input.CommitSpendTimeout)

	sets, err := generateInputPartitionings(
		[]Input{good, dust}, SatPerKWeight(253), feeRate,
		DefaultMaxInputsPerTx,
	)
	if err != nil {
		t.Fatalf("unable to generate partitionings: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("expected exactly one input set, got %v", len(sets))
	}
	if len(sets[0]) != 1 {
		t.Fatalf("expected exactly one input in the set, got %v", len(sets[0]))
	}
	if *sets[0][0].OutPoint() != *good.OutPoint() {
		t.Fatalf("expected the non-dust input to survive partitioning")
	}
}

func TestGenerateInputPartitioningsRespectsMaxInputsPerTx(t *testing.T) {
	t.Parallel()

	const feeRate = SatPerKWeight(10_000)

	var inputs []Input
	for i := uint32(0); i < 5; i++ {
		inputs = append(inputs, newTestInput(i, 500_000, input.CommitSpendTimeout))
	}

	sets, err := generateInputPartitionings(
		inputs, SatPerKWeight(253), feeRate, 2,
	)
	if err != nil {
		t.Fatalf("unable to generate partitionings: %v", err)
	}

	total := 0
	for _, set := range sets {
		if len(set) > 2 {
			t.Fatalf("set exceeds configured max inputs: %v", len(set))
		}
		total += len(set)
	}
	if total != len(inputs) {
		t.Fatalf("expected all %v inputs to be partitioned, got %v",
			len(inputs), total)
	}
}
