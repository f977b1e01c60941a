package sweep

import "github.com/btcsuite/btcd/btcutil"

// SatPerKWeight is a fee rate expressed in satoshis per 1000 weight units,
// the unit both commitment and sweep transaction fees are quoted in.
type SatPerKWeight btcutil.Amount

// FeeForWeight returns the fee resulting from this fee rate and a
// transaction of the given weight.
func (f SatPerKWeight) FeeForWeight(weight int64) btcutil.Amount {
	return btcutil.Amount(f) * btcutil.Amount(weight) / 1000
}

// FeePerKVByte converts this weight-based fee rate to its sat/kvB
// equivalent, for fee helpers (such as txrules.GetDustThreshold) that
// predate segwit weight accounting.
func (f SatPerKWeight) FeePerKVByte() SatPerKWeight {
	return f * 4
}
