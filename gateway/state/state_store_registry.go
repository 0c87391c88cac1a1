package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// bucket to store router lists per domain
	routersBucket = []byte("routers")
	// bucket to store relayer allowlists per domain (nested bucket per domain)
	relayersBucket = []byte("relayers")
	// bucket to store domain hook addresses
	hooksBucket = []byte("hooks")
	// bucket to store router forwarding info
	forwardingBucket = []byte("forwarding")

	relayerAllowed = []byte{1}

	// ErrHookAddressNotFound is returned when a domain has no hook address configured
	ErrHookAddressNotFound = errors.New("domain hook address not found")
)

// ForwardInfo describes the relay hop a router transits before reaching its domain
type ForwardInfo struct {
	Domain   types.Domain  `json:"domain"`
	Contract types.Address `json:"contract"`
}

// RegistryStore persists the admin configured routing data
type RegistryStore struct {
	db *bolt.DB
}

// initialize creates necessary buckets in DB if they don't already exist
func (s *RegistryStore) initialize(tx *bolt.Tx) error {
	return createBuckets(tx, routersBucket, relayersBucket, hooksBucket, forwardingBucket)
}

// SetRouters replaces the router list of the domain
func (s *RegistryStore) SetRouters(domain types.Domain, routers []types.RouterID, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		raw, err := json.Marshal(routers)
		if err != nil {
			return err
		}

		return tx.Bucket(routersBucket).Put(domain.Key(), raw)
	})
}

// GetRouters returns the router list of the domain, nil if none is configured
func (s *RegistryStore) GetRouters(domain types.Domain, dbTx *bolt.Tx) ([]types.RouterID, error) {
	var routers []types.RouterID

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(routersBucket).Get(domain.Key())
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, &routers)
	})

	return routers, err
}

// AllRouters returns the router lists of every configured domain
func (s *RegistryStore) AllRouters(dbTx *bolt.Tx) (map[types.Domain][]types.RouterID, error) {
	result := make(map[types.Domain][]types.RouterID)

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(routersBucket).ForEach(func(k, v []byte) error {
			domain, err := types.DomainFromKey(k)
			if err != nil {
				return err
			}

			var routers []types.RouterID
			if err := json.Unmarshal(v, &routers); err != nil {
				return err
			}

			result[domain] = routers

			return nil
		})
	})

	return result, err
}

// AddRelayer adds the account to the relayer allowlist of the domain.
// It returns false when the account was already allowed.
func (s *RegistryStore) AddRelayer(domain types.Domain, relayer types.Address, dbTx *bolt.Tx) (bool, error) {
	added := false

	err := update(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket, err := tx.Bucket(relayersBucket).CreateBucketIfNotExists(domain.Key())
		if err != nil {
			return fmt.Errorf("failed to create relayer bucket for domain %s: %w", domain, err)
		}

		if bucket.Get(relayer.Bytes()) != nil {
			return nil
		}

		added = true

		return bucket.Put(relayer.Bytes(), relayerAllowed)
	})

	return added, err
}

// RemoveRelayer removes the account from the allowlist of the domain.
// It returns false when the account was not allowed.
func (s *RegistryStore) RemoveRelayer(domain types.Domain, relayer types.Address, dbTx *bolt.Tx) (bool, error) {
	removed := false

	err := update(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(relayersBucket).Bucket(domain.Key())
		if bucket == nil || bucket.Get(relayer.Bytes()) == nil {
			return nil
		}

		removed = true

		return bucket.Delete(relayer.Bytes())
	})

	return removed, err
}

// IsRelayer checks whether the account is allowed to submit on behalf of the domain
func (s *RegistryStore) IsRelayer(domain types.Domain, relayer types.Address, dbTx *bolt.Tx) (bool, error) {
	allowed := false

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(relayersBucket).Bucket(domain.Key())
		allowed = bucket != nil && bucket.Get(relayer.Bytes()) != nil

		return nil
	})

	return allowed, err
}

// GetRelayers lists the relayer allowlist of the domain
func (s *RegistryStore) GetRelayers(domain types.Domain, dbTx *bolt.Tx) ([]types.Address, error) {
	var relayers []types.Address

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(relayersBucket).Bucket(domain.Key())
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, _ []byte) error {
			relayers = append(relayers, types.BytesToAddress(k))

			return nil
		})
	})

	return relayers, err
}

// SetHookAddress stores the hook contract address of the domain
func (s *RegistryStore) SetHookAddress(domain types.Domain, hook types.Address, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(hooksBucket).Put(domain.Key(), hook.Bytes())
	})
}

// GetHookAddress returns the hook contract address of the domain
func (s *RegistryStore) GetHookAddress(domain types.Domain, dbTx *bolt.Tx) (types.Address, error) {
	var hook types.Address

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(hooksBucket).Get(domain.Key())
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrHookAddressNotFound, domain)
		}

		hook = types.BytesToAddress(raw)

		return nil
	})

	return hook, err
}

// SetForwardInfo stores the forwarding info of the router
func (s *RegistryStore) SetForwardInfo(router types.RouterID, info *ForwardInfo, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		raw, err := json.Marshal(info)
		if err != nil {
			return err
		}

		return tx.Bucket(forwardingBucket).Put([]byte(router), raw)
	})
}

// RemoveForwardInfo deletes the forwarding info of the router
func (s *RegistryStore) RemoveForwardInfo(router types.RouterID, dbTx *bolt.Tx) error {
	return update(s.db, dbTx, func(tx *bolt.Tx) error {
		return tx.Bucket(forwardingBucket).Delete([]byte(router))
	})
}

// GetForwardInfo returns the forwarding info of the router, nil if the router is not forwarded
func (s *RegistryStore) GetForwardInfo(router types.RouterID, dbTx *bolt.Tx) (*ForwardInfo, error) {
	var info *ForwardInfo

	err := view(s.db, dbTx, func(tx *bolt.Tx) error {
		raw := tx.Bucket(forwardingBucket).Get([]byte(router))
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, &info)
	})

	return info, err
}
