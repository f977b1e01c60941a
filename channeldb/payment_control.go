package channeldb

import "go.etcd.io/bbolt"

// PaymentStatus tags the lifecycle of a locally-initiated outgoing payment,
// tracked to prevent the switch from sending a duplicate payment to the
// same payment hash while one is already in flight or has already settled.
type PaymentStatus byte

const (
	// StatusGrounded is the zero status: no payment has ever been
	// attempted for this hash, or the last attempt failed and may be
	// retried.
	StatusGrounded PaymentStatus = iota

	// StatusInFlight marks a payment as sent but not yet resolved.
	StatusInFlight

	// StatusCompleted marks a payment as settled; ClearForTakeoff must
	// refuse any further attempt at the same hash.
	StatusCompleted
)

// paymentStatusBucket holds one byte per payment hash recording its
// PaymentStatus.
var paymentStatusBucket = []byte("payment-status-bucket")

// FetchPaymentStatus returns the PaymentStatus recorded for paymentHash, or
// StatusGrounded if none has been recorded yet.
func (d *DB) FetchPaymentStatus(paymentHash [32]byte) (PaymentStatus, error) {
	status := StatusGrounded

	err := d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(paymentStatusBucket)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(paymentHash[:])
		if data == nil {
			return nil
		}

		status = PaymentStatus(data[0])
		return nil
	})

	return status, err
}

// UpdatePaymentStatus records status against paymentHash.
func (d *DB) UpdatePaymentStatus(paymentHash [32]byte, status PaymentStatus) error {
	return d.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(paymentStatusBucket)
		if err != nil {
			return err
		}

		return bucket.Put(paymentHash[:], []byte{byte(status)})
	})
}
