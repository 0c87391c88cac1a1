package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"
)

/*
The gateway has a boltDB backed state store. The schema looks as follows:

routers/
|--> domain.Key() -> []types.RouterID (json marshalled)

relayers/
|--> domain.Key()
	|--> relayer address -> {1}

hooks/
|--> domain.Key() -> hook contract address

forwarding/
|--> router id -> *ForwardInfo (json marshalled)

pending/
|--> domain.Key() + hash -> *PendingMatch (json marshalled)

queue/
|--> nonce -> *QueueEntry (json marshalled)

failedQueue/
|--> nonce -> *FailedQueueEntry (json marshalled)

meta/
|--> lastNonce -> uint64

recovery/
|--> domain.Key() + hash + router id -> *RecoveryRequest (json marshalled)
*/

// openTimeout bounds how long a second process waits for the file lock
const openTimeout = 2 * time.Second

// ErrStateLocked is returned when another process holds the state database
var ErrStateLocked = errors.New("state database is locked by another process")

// State represents the persistence layer of the gateway
type State struct {
	db     *bolt.DB
	logger hclog.Logger

	RegistryStore *RegistryStore
	InboundStore  *InboundStore
	QueueStore    *QueueStore
	RecoveryStore *RecoveryStore
}

// NewState opens (or creates) the bolt database at path and initializes every bucket
func NewState(path string, logger hclog.Logger) (*State, error) {
	db, err := bolt.Open(path, 0666, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrStateLocked, path)
		}

		return nil, err
	}

	s := &State{
		db:            db,
		logger:        logger.Named("state"),
		RegistryStore: &RegistryStore{db: db},
		InboundStore:  &InboundStore{db: db},
		QueueStore:    &QueueStore{db: db},
		RecoveryStore: &RecoveryStore{db: db},
	}

	if err := s.initStorages(); err != nil {
		_ = db.Close()

		return nil, err
	}

	return s, nil
}

// initStorages creates the buckets of every store if they don't exist already
func (s *State) initStorages() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := s.RegistryStore.initialize(tx); err != nil {
			return err
		}

		if err := s.InboundStore.initialize(tx); err != nil {
			return err
		}

		if err := s.QueueStore.initialize(tx); err != nil {
			return err
		}

		return s.RecoveryStore.initialize(tx)
	})
}

// Update runs fn in a single read-write transaction. Every mutation made by fn
// is committed together or rolled back together.
func (s *State) Update(fn func(tx *bolt.Tx) error) error {
	return s.db.Update(fn)
}

// View runs fn in a read-only transaction
func (s *State) View(fn func(tx *bolt.Tx) error) error {
	return s.db.View(fn)
}

// Close closes the underlying database
func (s *State) Close() error {
	s.logger.Debug("closing state database")

	return s.db.Close()
}

// update runs fn in dbTx when provided, otherwise in a new read-write transaction
func update(db *bolt.DB, dbTx *bolt.Tx, fn func(tx *bolt.Tx) error) error {
	if dbTx == nil {
		return db.Update(fn)
	}

	return fn(dbTx)
}

// view runs fn in dbTx when provided, otherwise in a new read-only transaction
func view(db *bolt.DB, dbTx *bolt.Tx, fn func(tx *bolt.Tx) error) error {
	if dbTx == nil {
		return db.View(fn)
	}

	return fn(dbTx)
}

func createBuckets(tx *bolt.Tx, buckets ...[]byte) error {
	for _, bucket := range buckets {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return fmt.Errorf("failed to create bucket=%s: %w", string(bucket), err)
		}
	}

	return nil
}
