package gateway

import (
	"fmt"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	bolt "go.etcd.io/bbolt"
)

// SetRouters replaces the routers of the domain. Pending matches of the domain are
// re-evaluated against the new router set.
func (g *Gateway) SetRouters(caller types.Address, domain types.Domain, ids []types.RouterID) ([]types.Nonce, error) {
	if err := g.requireAdmin(caller); err != nil {
		return nil, err
	}

	if err := validateDomain(domain); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, ErrEmptyRouterList
	}

	if len(ids) > g.config.MaxRouterCount {
		return nil, fmt.Errorf("%w: %d > %d", ErrMaxRouterCount, len(ids), g.config.MaxRouterCount)
	}

	seen := make(map[types.RouterID]struct{}, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRouterID, id)
		}

		seen[id] = struct{}{}

		if _, ok := g.routers.Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRouter, id)
		}
	}

	ids = append([]types.RouterID(nil), ids...)

	g.lock.Lock()
	defer g.lock.Unlock()

	var (
		nonces []types.Nonce
		fired  = []*events.Event{{Type: events.RoutersSet, Domain: domain, Routers: ids}}
	)

	err := g.state.Update(func(tx *bolt.Tx) error {
		if err := g.state.RegistryStore.SetRouters(domain, ids, tx); err != nil {
			return err
		}

		matches, err := g.state.InboundStore.ListPendingMatches(domain, tx)
		if err != nil {
			return err
		}

		for _, match := range matches {
			submitted, evs, err := g.settle(match, ids, tx)
			if err != nil {
				return err
			}

			nonces = append(nonces, submitted...)
			fired = append(fired, evs...)
		}

		return nil
	})

	g.routerCache.Remove(domain)

	if err != nil {
		return nil, err
	}

	g.logger.Info("routers set", "domain", domain, "routers", ids, "submitted", len(nonces))
	g.fire(fired)

	return nonces, nil
}

// AddRelayer allows the account to submit inbound messages of the domain
func (g *Gateway) AddRelayer(caller types.Address, domain types.Domain, relayer types.Address) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}

	if err := validateDomain(domain); err != nil {
		return err
	}

	if relayer.IsZero() {
		return fmt.Errorf("%w: zero address relayer", ErrBadOrigin)
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	added, err := g.state.RegistryStore.AddRelayer(domain, relayer, nil)
	if err != nil {
		return err
	}

	g.logger.Info("relayer added", "domain", domain, "relayer", relayer, "new", added)

	return nil
}

// RemoveRelayer revokes the account from the relayers of the domain
func (g *Gateway) RemoveRelayer(caller types.Address, domain types.Domain, relayer types.Address) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	removed, err := g.state.RegistryStore.RemoveRelayer(domain, relayer, nil)
	if err != nil {
		return err
	}

	g.logger.Info("relayer removed", "domain", domain, "relayer", relayer, "existed", removed)

	return nil
}

// Relayers returns the relayers of the domain
func (g *Gateway) Relayers(domain types.Domain) ([]types.Address, error) {
	return g.state.RegistryStore.GetRelayers(domain, nil)
}

// SetDomainHookAddress stores the hook contract of the domain
func (g *Gateway) SetDomainHookAddress(caller types.Address, domain types.Domain, hook types.Address) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}

	if err := validateDomain(domain); err != nil {
		return err
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	if err := g.state.RegistryStore.SetHookAddress(domain, hook, nil); err != nil {
		return err
	}

	g.logger.Info("domain hook set", "domain", domain, "hook", hook)

	return nil
}

// DomainHookAddress returns the hook contract of the domain
func (g *Gateway) DomainHookAddress(domain types.Domain) (types.Address, error) {
	return g.state.RegistryStore.GetHookAddress(domain, nil)
}

// SetRouterForwarding makes the router transit the given relay domain and contract
func (g *Gateway) SetRouterForwarding(caller types.Address, routerID types.RouterID, domain types.Domain,
	contract types.Address) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}

	if err := validateDomain(domain); err != nil {
		return err
	}

	if _, ok := g.routers.Get(routerID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRouter, routerID)
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	info := &state.ForwardInfo{Domain: domain, Contract: contract}
	if err := g.state.RegistryStore.SetForwardInfo(routerID, info, nil); err != nil {
		return err
	}

	g.logger.Info("router forwarding set", "router", routerID, "domain", domain, "contract", contract)

	return nil
}

// RemoveRouterForwarding makes the router deliver directly again
func (g *Gateway) RemoveRouterForwarding(caller types.Address, routerID types.RouterID) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	if err := g.state.RegistryStore.RemoveForwardInfo(routerID, nil); err != nil {
		return err
	}

	g.logger.Info("router forwarding removed", "router", routerID)

	return nil
}

// RouterForwarding returns the forwarding info of the router, nil if it delivers directly
func (g *Gateway) RouterForwarding(routerID types.RouterID) (*state.ForwardInfo, error) {
	return g.state.RegistryStore.GetForwardInfo(routerID, nil)
}

// PurgePendingMatch drops the pending match of hash, e.g. when a router never delivers
func (g *Gateway) PurgePendingMatch(caller types.Address, domain types.Domain, hash types.Hash) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	existed, err := g.state.InboundStore.DeletePendingMatch(domain, hash, nil)
	if err != nil {
		return err
	}

	if !existed {
		return fmt.Errorf("%w: %s/%s", ErrPendingMatchNotFound, domain, hash)
	}

	g.logger.Info("pending match purged", "domain", domain, "hash", hash)
	g.fire([]*events.Event{{Type: events.PendingMatchPurged, Domain: domain, Hash: hash}})

	return nil
}

// PendingMatch returns the pending match of hash
func (g *Gateway) PendingMatch(domain types.Domain, hash types.Hash) (*state.PendingMatch, error) {
	match, err := g.state.InboundStore.GetPendingMatch(domain, hash, nil)
	if err != nil {
		return nil, err
	}

	if match == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrPendingMatchNotFound, domain, hash)
	}

	return match, nil
}

// PendingMatches returns every pending match of the domain
func (g *Gateway) PendingMatches(domain types.Domain) ([]*state.PendingMatch, error) {
	return g.state.InboundStore.ListPendingMatches(domain, nil)
}
