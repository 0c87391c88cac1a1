package state

import (
	"bytes"
	"encoding/json"

	"github.com/0xPolygon/polygon-gateway/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// bucket to store message recovery requests
	recoveryBucket = []byte("recovery")
)

// RecoveryStatus is the state of a recovery request
type RecoveryStatus string

const (
	RecoveryInitiated RecoveryStatus = "initiated"
	RecoveryDisputed  RecoveryStatus = "disputed"
	RecoveryExecuted  RecoveryStatus = "executed"
)

// RecoveryRequest is an operator initiated recovery of a message on behalf of a router
type RecoveryRequest struct {
	Domain        types.Domain   `json:"domain"`
	Hash          types.Hash     `json:"hash"`
	Router        types.RouterID `json:"router"`
	Initiator     types.Address  `json:"initiator"`
	OpenBlock     uint64         `json:"openBlock"`
	DisputeWindow uint64         `json:"disputeWindow"`
	Status        RecoveryStatus `json:"status"`
	Disputer      types.Address  `json:"disputer"`
}

// WindowEnd is the first block at which the request may be executed
func (r *RecoveryRequest) WindowEnd() uint64 {
	return r.OpenBlock + r.DisputeWindow
}

// RecoveryStore persists recovery requests
type RecoveryStore struct {
	db *bolt.DB
}

// initialize creates necessary buckets in DB if they don't already exist
func (s *RecoveryStore) initialize(tx *bolt.Tx) error {
	return createBuckets(tx, recoveryBucket)
}

func recoveryKey(domain types.Domain, hash types.Hash, router types.RouterID) []byte {
	return bytes.Join([][]byte{domain.Key(), hash.Bytes(), []byte(router)}, nil)
}

// GetRecovery returns the recovery request, nil if there is none
func (s *RecoveryStore) GetRecovery(domain types.Domain, hash types.Hash, router types.RouterID,
	dbTx *bolt.Tx) (*RecoveryRequest, error) {
	var request *RecoveryRequest

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(recoveryBucket).Get(recoveryKey(domain, hash, router))
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, &request)
	})

	return request, err
}

// PutRecovery inserts or replaces the recovery request
func (s *RecoveryStore) PutRecovery(request *RecoveryRequest, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		raw, err := json.Marshal(request)
		if err != nil {
			return err
		}

		return tx.Bucket(recoveryBucket).Put(recoveryKey(request.Domain, request.Hash, request.Router), raw)
	})
}

// ListRecoveries returns every recovery request of the domain
func (s *RecoveryStore) ListRecoveries(domain types.Domain, dbTx *bolt.Tx) ([]*RecoveryRequest, error) {
	var requests []*RecoveryRequest

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		c := tx.Bucket(recoveryBucket).Cursor()
		prefix := domain.Key()

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var request *RecoveryRequest
			if err := json.Unmarshal(v, &request); err != nil {
				return err
			}

			requests = append(requests, request)
		}

		return nil
	})

	return requests, err
}
