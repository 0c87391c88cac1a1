package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/helper/common"
	"github.com/0xPolygon/polygon-gateway/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// bucket to store messages waiting for execution
	queueBucket = []byte("queue")
	// bucket to store messages whose execution failed
	failedQueueBucket = []byte("failedQueue")
	// bucket to store the nonce counter
	metaBucket = []byte("meta")

	lastNonceKey = []byte("lastNonce")

	// ErrEntryExists is returned when a nonce is already present in a queue
	ErrEntryExists = errors.New("queue entry already exists")
)

// QueueEntry is a message admitted to the execution queue
type QueueEntry struct {
	Nonce   types.Nonce  `json:"nonce"`
	Domain  types.Domain `json:"domain"`
	Message []byte       `json:"message"`
}

// FailedQueueEntry is a message whose last execution attempt failed
type FailedQueueEntry struct {
	Nonce    types.Nonce  `json:"nonce"`
	Domain   types.Domain `json:"domain"`
	Message  []byte       `json:"message"`
	Error    string       `json:"error"`
	Attempts uint64       `json:"attempts"`
}

// QueueStore persists the message queue, the failed queue and the nonce counter
type QueueStore struct {
	db *bolt.DB
}

// initialize creates necessary buckets in DB if they don't already exist
func (s *QueueStore) initialize(tx *bolt.Tx) error {
	return createBuckets(tx, queueBucket, failedQueueBucket, metaBucket)
}

// LastNonce returns the last issued nonce, 0 if none was issued yet
func (s *QueueStore) LastNonce(dbTx *bolt.Tx) (types.Nonce, error) {
	var nonce types.Nonce

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		if raw := tx.Bucket(metaBucket).Get(lastNonceKey); raw != nil {
			nonce = types.Nonce(common.EncodeBytesToUint64(raw))
		}

		return nil
	})

	return nonce, err
}

// NextNonce increments and returns the nonce counter
func (s *QueueStore) NextNonce(dbTx *bolt.Tx) (types.Nonce, error) {
	var nonce types.Nonce

	err := update(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(metaBucket)

		if raw := bucket.Get(lastNonceKey); raw != nil {
			nonce = types.Nonce(common.EncodeBytesToUint64(raw))
		}

		nonce++

		return bucket.Put(lastNonceKey, common.EncodeUint64ToBytes(uint64(nonce)))
	})

	return nonce, err
}

// InsertQueued inserts the entry into the message queue
func (s *QueueStore) InsertQueued(entry *QueueEntry, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		return putUnique(tx.Bucket(queueBucket), uint64(entry.Nonce), entry)
	})
}

// GetQueued returns the queued entry of the nonce, nil if absent
func (s *QueueStore) GetQueued(nonce types.Nonce, dbTx *bolt.Tx) (*QueueEntry, error) {
	var entry *QueueEntry

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(queueBucket).Get(common.EncodeUint64ToBytes(uint64(nonce)))
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, &entry)
	})

	return entry, err
}

// DeleteQueued removes the nonce from the message queue
func (s *QueueStore) DeleteQueued(nonce types.Nonce, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(queueBucket).Delete(common.EncodeUint64ToBytes(uint64(nonce)))
	})
}

// ListQueued returns up to limit queued entries in nonce order (limit <= 0 means all)
func (s *QueueStore) ListQueued(limit int, dbTx *bolt.Tx) ([]*QueueEntry, error) {
	var entries []*QueueEntry

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		c := tx.Bucket(queueBucket).Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry *QueueEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			entries = append(entries, entry)

			if limit > 0 && len(entries) == limit {
				break
			}
		}

		return nil
	})

	return entries, err
}

// PutFailed inserts or replaces the entry in the failed queue
func (s *QueueStore) PutFailed(entry *FailedQueueEntry, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return tx.Bucket(failedQueueBucket).Put(common.EncodeUint64ToBytes(uint64(entry.Nonce)), raw)
	})
}

// GetFailed returns the failed entry of the nonce, nil if absent
func (s *QueueStore) GetFailed(nonce types.Nonce, dbTx *bolt.Tx) (*FailedQueueEntry, error) {
	var entry *FailedQueueEntry

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(failedQueueBucket).Get(common.EncodeUint64ToBytes(uint64(nonce)))
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, &entry)
	})

	return entry, err
}

// DeleteFailed removes the nonce from the failed queue
func (s *QueueStore) DeleteFailed(nonce types.Nonce, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(failedQueueBucket).Delete(common.EncodeUint64ToBytes(uint64(nonce)))
	})
}

// ListFailed returns every failed entry in nonce order
func (s *QueueStore) ListFailed(dbTx *bolt.Tx) ([]*FailedQueueEntry, error) {
	var entries []*FailedQueueEntry

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(failedQueueBucket).ForEach(func(_, v []byte) error {
			var entry *FailedQueueEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}

			entries = append(entries, entry)

			return nil
		})
	})

	return entries, err
}

// QueueLengths returns the number of entries in the message queue and the failed queue
func (s *QueueStore) QueueLengths(dbTx *bolt.Tx) (queued int, failed int, err error) {
	err = view(s.db, dbTx, func(tx *bolt.Tx) error {
		queued = tx.Bucket(queueBucket).Stats().KeyN
		failed = tx.Bucket(failedQueueBucket).Stats().KeyN

		return nil
	})

	return queued, failed, err
}

func putUnique(bucket *bolt.Bucket, nonce uint64, value interface{}) error {
	key := common.EncodeUint64ToBytes(nonce)
	if bucket.Get(key) != nil {
		return fmt.Errorf("%w: nonce %d", ErrEntryExists, nonce)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return bucket.Put(key, raw)
}
