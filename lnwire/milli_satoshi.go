package lnwire

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// MilliSatoshi represents a thousandth of a satoshi. Lightning Network
// balances and HTLC values are tracked in this unit so that routing fees,
// which are frequently sub-satoshi, do not round to zero.
type MilliSatoshi uint64

const mSatScale uint64 = 1000

// NewMSatFromSatoshis creates a MilliSatoshi from a regular Bitcoin satoshi
// amount.
func NewMSatFromSatoshis(sat btcutil.Amount) MilliSatoshi {
	return MilliSatoshi(uint64(sat) * mSatScale)
}

// ToSatoshis converts a MilliSatoshi amount down to its nearest Bitcoin
// satoshi value, truncating any sub-satoshi remainder.
func (m MilliSatoshi) ToSatoshis() btcutil.Amount {
	return btcutil.Amount(uint64(m) / mSatScale)
}

// String returns the string representation of the MilliSatoshi amount.
func (m MilliSatoshi) String() string {
	return fmt.Sprintf("%d mSAT", uint64(m))
}
