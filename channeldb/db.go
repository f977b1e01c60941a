package channeldb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lnchan/lnnode/lnwire"
	"go.etcd.io/bbolt"
)

const (
	dbName           = "channel.db"
	dbFilePermission = 0600
)

// migration mutates a prior database layout into a newer one. Each entry in
// dbVersions beyond the base carries one of these, applied once and then
// recorded in the meta bucket so it never reruns.
type migration func(tx *bbolt.Tx) error

type version struct {
	number    uint32
	migration migration
}

var (
	// dbVersions lists every schema version this build knows how to open,
	// in order. syncVersions walks forward from whatever version is
	// currently on disk, applying each migration in turn.
	dbVersions = []version{
		{
			// The base DB version requires no migration.
			number:    0,
			migration: nil,
		},
	}

	// byteOrder is the encoding used for every fixed-width integer this
	// package persists. Big-endian is preferred over the host's native
	// order so bucket keys built from integers (like a commit height)
	// sort the same way bytes.Compare already orders them.
	byteOrder = binary.BigEndian
)

var bufPool = &sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// DB is the primary datastore for a node's per-channel state: open channel
// records, their commitment history, closed-channel summaries, and the fee
// rate table. It embeds *bbolt.DB directly so callers needing a raw
// transaction (migrations, tests) aren't forced through a wrapper method
// for every operation.
type DB struct {
	*bbolt.DB
	dbPath string
}

// Open opens an existing channeldb, creating and initializing one at
// dbPath if none exists yet, and applies any pending schema migrations.
func Open(dbPath string) (*DB, error) {
	path := filepath.Join(dbPath, dbName)

	if !fileExists(path) {
		if err := createChannelDB(dbPath); err != nil {
			return nil, err
		}
	}

	bdb, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	chanDB := &DB{
		DB:     bdb,
		dbPath: dbPath,
	}

	if err := chanDB.syncVersions(dbVersions); err != nil {
		bdb.Close()
		return nil, err
	}

	return chanDB, nil
}

// Wipe deletes all channel and node state within the database in a single
// atomic transaction. Intended for test harnesses and the "factory reset"
// operator path, never for normal operation.
func (d *DB) Wipe() error {
	return d.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{
			openChannelBucket, closedChannelBucket, feeRateBucket,
			paymentStatusBucket,
		} {
			err := tx.DeleteBucket(bucket)
			if err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
		}
		return nil
	})
}

// createChannelDB creates the on-disk file and every top-level bucket a
// fresh node needs before its first channel is opened.
func createChannelDB(dbPath string) error {
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return err
		}
	}

	path := filepath.Join(dbPath, dbName)
	bdb, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return err
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{
			openChannelBucket, closedChannelBucket, feeRateBucket,
			paymentStatusBucket, metaBucket,
		} {
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}

		meta := &Meta{DbVersionNumber: getLatestDBVersion(dbVersions)}
		return putMeta(meta, tx)
	})
	if err != nil {
		bdb.Close()
		return fmt.Errorf("unable to create new channeldb: %w", err)
	}

	return bdb.Close()
}

func fileExists(path string) bool {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// FetchOpenChannels returns every open channel this node has with the
// given remote node.
func (d *DB) FetchOpenChannels(nodeID *btcec.PublicKey) ([]*OpenChannel, error) {
	var channels []*OpenChannel
	err := d.View(func(tx *bbolt.Tx) error {
		openChanBucket := tx.Bucket(openChannelBucket)
		if openChanBucket == nil {
			return nil
		}

		pub := nodeID.SerializeCompressed()
		nodeChanBucket := openChanBucket.Bucket(pub)
		if nodeChanBucket == nil {
			return nil
		}

		nodeChannels, err := fetchNodeChannels(d, nodeChanBucket)
		if err != nil {
			return fmt.Errorf("unable to read channels for "+
				"node_key=%x: %w", pub, err)
		}

		channels = nodeChannels
		return nil
	})

	return channels, err
}

// fetchNodeChannels iterates every per-outpoint sub-bucket under a node's
// channel bucket and deserializes each into an *OpenChannel.
func fetchNodeChannels(d *DB, nodeChanBucket *bbolt.Bucket) ([]*OpenChannel, error) {
	var channels []*OpenChannel

	err := forEachSubBucket(nodeChanBucket, func(outBytes []byte) error {
		chanBucket := nodeChanBucket.Bucket(outBytes)

		oChannel, err := fetchOpenChannel(chanBucket)
		if err != nil {
			return fmt.Errorf("unable to read channel data: %w", err)
		}
		oChannel.db = d

		channels = append(channels, oChannel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return channels, nil
}

// forEachSubBucket walks every direct child bucket of b, skipping plain
// key/value entries (bbolt has no dedicated bucket-only iterator).
func forEachSubBucket(b *bbolt.Bucket, fn func(key []byte) error) error {
	return b.ForEach(func(k, v []byte) error {
		if v != nil {
			return nil
		}
		return fn(k)
	})
}

// FetchAllChannels returns every open channel this node currently has,
// across every counterparty.
func (d *DB) FetchAllChannels() ([]*OpenChannel, error) {
	return fetchChannels(d, false)
}

// FetchPendingChannels returns channels whose funding transaction has been
// broadcast but has not yet reached its required confirmation depth.
func (d *DB) FetchPendingChannels() ([]*OpenChannel, error) {
	return fetchChannels(d, true)
}

func fetchChannels(d *DB, pendingOnly bool) ([]*OpenChannel, error) {
	var channels []*OpenChannel

	err := d.View(func(tx *bbolt.Tx) error {
		openChanBucket := tx.Bucket(openChannelBucket)
		if openChanBucket == nil {
			return ErrNoActiveChannels
		}

		return forEachSubBucket(openChanBucket, func(nodePub []byte) error {
			nodeChanBucket := openChanBucket.Bucket(nodePub)

			nodeChannels, err := fetchNodeChannels(d, nodeChanBucket)
			if err != nil {
				return fmt.Errorf("unable to read channels "+
					"for node_key=%x: %w", nodePub, err)
			}

			if pendingOnly {
				for _, channel := range nodeChannels {
					if channel.IsPending {
						channels = append(channels, channel)
					}
				}
			} else {
				channels = append(channels, nodeChannels...)
			}
			return nil
		})
	})

	return channels, err
}

// MarkChannelAsOpen records that a channel's funding transaction has
// reached its required confirmation depth, assigning it its final
// ShortChannelID.
func (d *DB) MarkChannelAsOpen(outpoint *wire.OutPoint,
	openLoc lnwire.ShortChannelID) error {

	return d.Update(func(tx *bbolt.Tx) error {
		openChanBucket := tx.Bucket(openChannelBucket)
		if openChanBucket == nil {
			return ErrNoActiveChannels
		}

		chanBucket, err := findChanBucket(openChanBucket, outpoint)
		if err != nil {
			return err
		}

		channel, err := fetchOpenChannel(chanBucket)
		if err != nil {
			return err
		}

		channel.IsPending = false
		channel.ShortChannelID = openLoc

		return putChanInfo(chanBucket, channel)
	})
}

// FetchClosedChannels returns every ChannelCloseSummary recorded, optionally
// restricted to channels whose on-chain resolution hasn't finished yet.
func (d *DB) FetchClosedChannels(pendingOnly bool) ([]*ChannelCloseSummary, error) {
	var chanSummaries []*ChannelCloseSummary

	if err := d.View(func(tx *bbolt.Tx) error {
		closeBucket := tx.Bucket(closedChannelBucket)
		if closeBucket == nil {
			return ErrNoClosedChannels
		}

		return closeBucket.ForEach(func(chanID, summaryBytes []byte) error {
			summaryReader := bytes.NewReader(summaryBytes)
			chanSummary, err := deserializeChannelCloseSummary(summaryReader)
			if err != nil {
				return err
			}

			if pendingOnly && !chanSummary.IsPending {
				return nil
			}

			chanSummaries = append(chanSummaries, chanSummary)
			return nil
		})
	}); err != nil {
		return nil, err
	}

	return chanSummaries, nil
}

// MarkChanFullyClosed flips a closed channel's summary to no-longer-pending,
// called once its on-chain outputs are all spent to a final destination.
func (d *DB) MarkChanFullyClosed(chanPoint *wire.OutPoint) error {
	return d.Update(func(tx *bbolt.Tx) error {
		var b bytes.Buffer
		if err := writeOutpoint(&b, chanPoint); err != nil {
			return err
		}
		chanID := b.Bytes()

		closedChanBucket, err := tx.CreateBucketIfNotExists(closedChannelBucket)
		if err != nil {
			return err
		}

		summaryBytes := closedChanBucket.Get(chanID)
		if summaryBytes == nil {
			return fmt.Errorf("no closed channel by that chan_point found")
		}

		summary, err := deserializeChannelCloseSummary(bytes.NewReader(summaryBytes))
		if err != nil {
			return err
		}
		summary.IsPending = false

		var newBuf bytes.Buffer
		if err := serializeChannelCloseSummary(&newBuf, summary); err != nil {
			return err
		}

		return closedChanBucket.Put(chanID, newBuf.Bytes())
	})
}

// syncVersions applies any migration this build knows about but the
// on-disk database hasn't yet recorded, inside one transaction so a
// mid-migration crash can't leave the schema half-upgraded.
func (d *DB) syncVersions(versions []version) error {
	meta, err := d.FetchMeta(nil)
	if err != nil {
		if err == ErrMetaNotFound {
			meta = &Meta{}
		} else {
			return err
		}
	}

	latestVersion := getLatestDBVersion(versions)
	log.Infof("Checking for schema update: latest_version=%v, "+
		"db_version=%v", latestVersion, meta.DbVersionNumber)
	if meta.DbVersionNumber == latestVersion {
		return nil
	}

	log.Infof("Performing database schema migration")

	migrations, migrationVersions := getMigrationsToApply(
		versions, meta.DbVersionNumber,
	)
	return d.Update(func(tx *bbolt.Tx) error {
		for i, migration := range migrations {
			if migration == nil {
				continue
			}

			log.Infof("Applying migration #%v", migrationVersions[i])

			if err := migration(tx); err != nil {
				log.Infof("Unable to apply migration #%v",
					migrationVersions[i])
				return err
			}
		}

		meta.DbVersionNumber = latestVersion
		return putMeta(meta, tx)
	})
}

func getLatestDBVersion(versions []version) uint32 {
	return versions[len(versions)-1].number
}

func getMigrationsToApply(versions []version, version uint32) ([]migration, []uint32) {
	migrations := make([]migration, 0, len(versions))
	migrationVersions := make([]uint32, 0, len(versions))

	for _, v := range versions {
		if v.number > version {
			migrations = append(migrations, v.migration)
			migrationVersions = append(migrationVersions, v.number)
		}
	}

	return migrations, migrationVersions
}
