package state

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/0xPolygon/polygon-gateway/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// bucket to store pending inbound matches
	pendingBucket = []byte("pending")
)

// PendingMatch accumulates router confirmations of one inbound message hash
type PendingMatch struct {
	Domain types.Domain `json:"domain"`
	Hash   types.Hash   `json:"hash"`
	// Confirmations is kept sorted, so the stored record does not depend on submission order
	Confirmations []types.RouterID `json:"confirmations"`
	// Body is the encoded full message, empty until a router delivered it
	Body []byte `json:"body,omitempty"`
}

// HasConfirmed checks if the router already confirmed the hash
func (p *PendingMatch) HasConfirmed(router types.RouterID) bool {
	i := sort.Search(len(p.Confirmations), func(i int) bool {
		return p.Confirmations[i] >= router
	})

	return i < len(p.Confirmations) && p.Confirmations[i] == router
}

// Confirm records the router confirmation and reports whether it was new
func (p *PendingMatch) Confirm(router types.RouterID) bool {
	i := sort.Search(len(p.Confirmations), func(i int) bool {
		return p.Confirmations[i] >= router
	})

	if i < len(p.Confirmations) && p.Confirmations[i] == router {
		return false
	}

	p.Confirmations = append(p.Confirmations, "")
	copy(p.Confirmations[i+1:], p.Confirmations[i:])
	p.Confirmations[i] = router

	return true
}

// HasBody reports whether the full message has been delivered
func (p *PendingMatch) HasBody() bool {
	return len(p.Body) > 0
}

// Covers checks that every given router confirmed the hash
func (p *PendingMatch) Covers(routers []types.RouterID) bool {
	if len(routers) == 0 {
		return false
	}

	for _, router := range routers {
		if !p.HasConfirmed(router) {
			return false
		}
	}

	return true
}

// InboundStore persists pending inbound matches
type InboundStore struct {
	db *bolt.DB
}

// initialize creates necessary buckets in DB if they don't already exist
func (s *InboundStore) initialize(tx *bolt.Tx) error {
	return createBuckets(tx, pendingBucket)
}

func pendingKey(domain types.Domain, hash types.Hash) []byte {
	return bytes.Join([][]byte{domain.Key(), hash.Bytes()}, nil)
}

// GetPendingMatch returns the pending match of the hash, nil if there is none
func (s *InboundStore) GetPendingMatch(domain types.Domain, hash types.Hash, dbTx *bolt.Tx) (*PendingMatch, error) {
	var match *PendingMatch

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(pendingBucket).Get(pendingKey(domain, hash))
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, &match)
	})

	return match, err
}

// PutPendingMatch inserts or replaces the pending match
func (s *InboundStore) PutPendingMatch(match *PendingMatch, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		raw, err := json.Marshal(match)
		if err != nil {
			return err
		}

		return tx.Bucket(pendingBucket).Put(pendingKey(match.Domain, match.Hash), raw)
	})
}

// DeletePendingMatch removes the pending match and reports whether it existed
func (s *InboundStore) DeletePendingMatch(domain types.Domain, hash types.Hash, dbTx *bolt.Tx) (bool, error) {
	existed := false

	err := update(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(pendingBucket)
		key := pendingKey(domain, hash)

		if bucket.Get(key) == nil {
			return nil
		}

		existed = true

		return bucket.Delete(key)
	})

	return existed, err
}

// ListPendingMatches returns every pending match of the domain
func (s *InboundStore) ListPendingMatches(domain types.Domain, dbTx *bolt.Tx) ([]*PendingMatch, error) {
	var matches []*PendingMatch

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		c := tx.Bucket(pendingBucket).Cursor()
		prefix := domain.Key()

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var match *PendingMatch
			if err := json.Unmarshal(v, &match); err != nil {
				return err
			}

			matches = append(matches, match)
		}

		return nil
	})

	return matches, err
}
