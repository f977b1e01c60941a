package zpay32

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/kkdai/bstream"
	"github.com/lnchan/lnnode/lnwire"
)

// maxInvoiceLength bounds how large an encoded invoice string this package
// will decode, guarding against pathological inputs before any bech32 work
// is done.
const maxInvoiceLength = 7089

// decodeBech32 decodes an invoice string using bech32's relaxed charset
// (lightning invoices are not address-length limited the way BIP-173
// addresses are), returning the human-readable prefix and raw 5-bit groups.
func decodeBech32(invoice string) (string, []byte, error) {
	if len(invoice) > maxInvoiceLength {
		return "", nil, fmt.Errorf("invoice too long: %d bytes",
			len(invoice))
	}

	// Bech32 invoices may be of either case, but must not mix the two.
	lower := strings.ToLower(invoice)
	upper := strings.ToUpper(invoice)
	if invoice != lower && invoice != upper {
		return "", nil, fmt.Errorf("invoice character case is not " +
			"consistent")
	}

	hrp, data, err := bech32.DecodeNoLimit(lower)
	if err != nil {
		return "", nil, fmt.Errorf("invalid bech32 string: %w", err)
	}

	return hrp, data, nil
}

// multiplierMSat pairs each BOLT-11 amount suffix with the number of
// millisatoshi one unit of that suffix represents. The absence of a
// multiplier character denotes whole bitcoin.
var multiplierMSat = map[byte]uint64{
	'm': 1e8, // milli-bitcoin
	'u': 1e5, // micro-bitcoin
	'n': 1e2, // nano-bitcoin
	'p': 0,   // pico-bitcoin, handled separately: 1 pBTC == 0.1 msat
}

// decodeAmount decodes the amount component of a bech32 human-readable
// prefix (everything following "ln<net>") into millisatoshis.
func decodeAmount(amount string) (lnwire.MilliSatoshi, error) {
	if len(amount) < 1 {
		return 0, fmt.Errorf("empty amount")
	}

	suffix := amount[len(amount)-1]

	// No recognized multiplier suffix: the whole string is a bitcoin
	// amount.
	if suffix >= '0' && suffix <= '9' {
		btc, err := strconv.ParseUint(amount, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		return lnwire.MilliSatoshi(btc) * 100000000000, nil
	}

	digits := amount[:len(amount)-1]
	if len(digits) == 0 {
		return 0, fmt.Errorf("no digits before multiplier in %q", amount)
	}
	num, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	if suffix == 'p' {
		if num%10 != 0 {
			return 0, fmt.Errorf("amount %q: pico-bitcoin value "+
				"does not represent a whole number of "+
				"millisatoshi", amount)
		}
		return lnwire.MilliSatoshi(num / 10), nil
	}

	mult, ok := multiplierMSat[suffix]
	if !ok {
		return 0, fmt.Errorf("unknown multiplier %q", string(suffix))
	}

	return lnwire.MilliSatoshi(num) * lnwire.MilliSatoshi(mult), nil
}

// encodeAmount encodes a millisatoshi amount using the coarsest (fewest
// character) multiplier that represents it exactly. This matches the
// canonical BOLT-11 guidance of preferring larger units whenever doing so
// loses no precision.
func encodeAmount(msat lnwire.MilliSatoshi) (string, error) {
	amt := uint64(msat)

	switch {
	case amt%100000000000 == 0:
		return strconv.FormatUint(amt/100000000000, 10), nil
	case amt%100000000 == 0:
		return strconv.FormatUint(amt/100000000, 10) + "m", nil
	case amt%100000 == 0:
		return strconv.FormatUint(amt/100000, 10) + "u", nil
	case amt%100 == 0:
		return strconv.FormatUint(amt/100, 10) + "n", nil
	default:
		// Pico-bitcoin is exact for any millisatoshi value: 1 pBTC
		// equals 0.1 msat, so amt msat is always amt*10 pBTC.
		return strconv.FormatUint(amt*10, 10) + "p", nil
	}
}

// base32ToUint64 converts a base32 (5-bit group) encoded number to uint64,
// packing the groups through a bstream.BStream bit writer/reader pair rather
// than shifting them together by hand.
func base32ToUint64(data []byte) (uint64, error) {
	// Maximum that fits in uint64 is 64 / 5 = 12 groups.
	if len(data) > 12 {
		return 0, fmt.Errorf("cannot parse data of length %d as uint64",
			len(data))
	}

	nbits := len(data) * 5

	w := bstream.NewBStreamWriter((nbits + 7) / 8)
	for _, group := range data {
		w.WriteBits(uint64(group), 5)
	}

	val, err := bstream.NewBStreamReader(w.Bytes()).ReadBits(nbits)
	if err != nil {
		return 0, fmt.Errorf("unable to unpack base32 groups: %w", err)
	}

	return val, nil
}

// uint64ToBase32 converts a uint64 to a base32 encoded integer encoded using
// as few 5-bit groups as possible.
func uint64ToBase32(num uint64) []byte {
	if num == 0 {
		return []byte{0}
	}

	ngroups := (bits.Len64(num) + 4) / 5
	nbits := ngroups * 5

	w := bstream.NewBStreamWriter((nbits + 7) / 8)
	w.WriteBits(num, nbits)

	r := bstream.NewBStreamReader(w.Bytes())
	arr := make([]byte, ngroups)
	for i := 0; i < ngroups; i++ {
		group, _ := r.ReadBits(5)
		arr[i] = byte(group)
	}

	return arr
}
