package sweep

import (
	"github.com/btcsuite/btcd/wire"

	"github.com/lnchan/lnnode/input"
)

// Input is a single spendable output the sweeper can fold into a claim
// transaction, together with everything needed to produce its witness once
// a sweep transaction has been assembled around it.
type Input interface {
	// OutPoint returns the reference to the output being spent.
	OutPoint() *wire.OutPoint

	// WitnessType returns the witness type of the output this input
	// descends from, used both to select the right witness-generation
	// function and to size the input for fee estimation.
	WitnessType() input.WitnessType

	// SignDesc returns the sign descriptor needed to produce a
	// signature for this input.
	SignDesc() *input.SignDescriptor

	// CSVDelay returns the relative locktime, in blocks, this input's
	// sequence number must encode, and whether it carries one at all.
	CSVDelay() (uint32, bool)

	// BlocksToMaturity returns the number of confirmations, counted
	// from the input's own confirmation height, before it becomes
	// spendable. For CSV inputs this equals the CSV delay; for inputs
	// maturing via an absolute CLTV expiry it is zero.
	BlocksToMaturity() uint32
}

// baseInput is an output with no additional maturity requirement beyond
// being confirmed: a to_remote output, or a commitment output claimable
// with the revocation key.
type baseInput struct {
	outpoint    wire.OutPoint
	witnessType input.WitnessType
	signDesc    input.SignDescriptor
}

// NewBaseInput creates an Input with no CSV or CLTV maturity requirement.
func NewBaseInput(outpoint *wire.OutPoint, witnessType input.WitnessType,
	signDesc *input.SignDescriptor) *baseInput {

	return &baseInput{
		outpoint:    *outpoint,
		witnessType: witnessType,
		signDesc:    *signDesc,
	}
}

func (i *baseInput) OutPoint() *wire.OutPoint { return &i.outpoint }

func (i *baseInput) WitnessType() input.WitnessType { return i.witnessType }

func (i *baseInput) SignDesc() *input.SignDescriptor { return &i.signDesc }

func (i *baseInput) CSVDelay() (uint32, bool) { return 0, false }

func (i *baseInput) BlocksToMaturity() uint32 { return 0 }

// csvInput is an input that must additionally wait out a relative locktime
// before it can be spent: a to_local output, or a second-level HTLC output
// after its own CSV delay.
type csvInput struct {
	baseInput
	csvDelay uint32
}

// NewCSVInput creates an Input that must wait out csvDelay confirmations
// from its own confirmation height before it can be swept.
func NewCSVInput(outpoint *wire.OutPoint, witnessType input.WitnessType,
	signDesc *input.SignDescriptor, csvDelay uint32) *csvInput {

	return &csvInput{
		baseInput: baseInput{
			outpoint:    *outpoint,
			witnessType: witnessType,
			signDesc:    *signDesc,
		},
		csvDelay: csvDelay,
	}
}

func (i *csvInput) CSVDelay() (uint32, bool) { return i.csvDelay, true }

func (i *csvInput) BlocksToMaturity() uint32 { return i.csvDelay }

var (
	_ Input = (*baseInput)(nil)
	_ Input = (*csvInput)(nil)
)
