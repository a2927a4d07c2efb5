package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/dshills/bufsync/internal/protocol"
)

var bucketAcks = []byte("acks")

// ErrClosed indicates an operation on a closed journal.
var ErrClosed = errors.New("journal closed")

// Journal is a bbolt-backed record of acknowledged versions per path.
// All methods are safe for concurrent use.
type Journal struct {
	db *bolt.DB
}

// Open opens or creates a journal file.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAcks)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// RecordAck stores the acknowledged version for a path, keeping the
// maximum of the stored and given versions. Acknowledgements may arrive
// out of order; the record is monotonic like serverVersion itself.
func (j *Journal) RecordAck(path string, v protocol.Version) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAcks)
		if prev := b.Get([]byte(path)); prev != nil {
			if decodeVersion(prev) >= v {
				return nil
			}
		}
		return b.Put([]byte(path), encodeVersion(v))
	})
}

// LastAck returns the recorded version for a path, if any.
func (j *Journal) LastAck(path string) (protocol.Version, bool, error) {
	var v protocol.Version
	found := false
	err := j.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketAcks).Get([]byte(path)); raw != nil {
			v = decodeVersion(raw)
			found = true
		}
		return nil
	})
	return v, found, err
}

// Forget removes the record for a path after its close was delivered.
func (j *Journal) Forget(path string) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAcks).Delete([]byte(path))
	})
}

// Each calls fn for every recorded path/version pair.
func (j *Journal) Each(fn func(path string, v protocol.Version) error) error {
	return j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAcks).ForEach(func(k, raw []byte) error {
			return fn(string(k), decodeVersion(raw))
		})
	})
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func encodeVersion(v protocol.Version) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}

func decodeVersion(raw []byte) protocol.Version {
	if len(raw) != 8 {
		return 0
	}
	return protocol.Version(binary.BigEndian.Uint64(raw))
}
