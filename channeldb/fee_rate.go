package channeldb

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.etcd.io/bbolt"
)

// FetchFeeRate returns the fee-per-kw this node last used for new
// commitments on the chain identified by chainHash.
func (d *DB) FetchFeeRate(chainHash chainhash.Hash) (uint32, error) {
	var feeRate uint32

	err := d.View(func(tx *bbolt.Tx) error {
		feeB := tx.Bucket(feeRateBucket)
		if feeB == nil {
			return ErrNoFeeRateFound
		}

		data := feeB.Get(chainHash[:])
		if data == nil {
			return ErrNoFeeRateFound
		}

		feeRate = byteOrder.Uint32(data)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return feeRate, nil
}

// PutFeeRate records feePerKw as the fee-per-kw to use for new commitments
// on chainHash, overwriting any value previously recorded for that chain.
func (d *DB) PutFeeRate(chainHash chainhash.Hash, feePerKw uint32) error {
	return d.Update(func(tx *bbolt.Tx) error {
		feeB, err := tx.CreateBucketIfNotExists(feeRateBucket)
		if err != nil {
			return err
		}

		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], feePerKw)

		return feeB.Put(chainHash[:], buf[:])
	})
}
