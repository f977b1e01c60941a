package channeldb

import (
	"bytes"
	"encoding/binary"

	"go.etcd.io/bbolt"
)

var (
	// metaBucket holds the single Meta record tracking the database's
	// current schema version.
	metaBucket = []byte("metadata")

	metaVersionKey = []byte("version")
)

// Meta records the database's current schema version, read once at Open
// and compared against the migrations this build knows about.
type Meta struct {
	DbVersionNumber uint32
}

// FetchMeta retrieves the database's Meta record. If tx is nil, a new
// read-only transaction is started for the lookup.
func (d *DB) FetchMeta(tx *bbolt.Tx) (*Meta, error) {
	var meta *Meta

	fetch := func(tx *bbolt.Tx) error {
		metaB := tx.Bucket(metaBucket)
		if metaB == nil {
			return ErrMetaNotFound
		}

		data := metaB.Get(metaVersionKey)
		if data == nil {
			return ErrMetaNotFound
		}

		meta = &Meta{DbVersionNumber: binary.BigEndian.Uint32(data)}
		return nil
	}

	var err error
	if tx != nil {
		err = fetch(tx)
	} else {
		err = d.View(fetch)
	}

	return meta, err
}

// putMeta persists the given Meta record within the provided transaction.
func putMeta(meta *Meta, tx *bbolt.Tx) error {
	metaB, err := tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, meta.DbVersionNumber); err != nil {
		return err
	}

	return metaB.Put(metaVersionKey, buf.Bytes())
}
