package gateway

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	bolt "go.etcd.io/bbolt"
)

// InitiateMessageRecovery opens a recovery of hash on behalf of the router. The request
// can be disputed for DisputeWindow blocks starting at the current block.
func (g *Gateway) InitiateMessageRecovery(ctx context.Context, caller types.Address, domain types.Domain,
	hash types.Hash, routerID types.RouterID) (*state.RecoveryRequest, error) {
	if err := validateDomain(domain); err != nil {
		return nil, err
	}

	block, err := g.blocks.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current block: %w", err)
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	request := &state.RecoveryRequest{
		Domain:        domain,
		Hash:          hash,
		Router:        routerID,
		Initiator:     caller,
		OpenBlock:     block,
		DisputeWindow: g.config.DisputeWindow,
		Status:        state.RecoveryInitiated,
	}

	err = g.state.Update(func(tx *bolt.Tx) error {
		if err := g.requireAdminOrRelayer(caller, domain, tx); err != nil {
			return err
		}

		if _, err := g.configuredRouter(domain, routerID, tx); err != nil {
			return err
		}

		existing, err := g.state.RecoveryStore.GetRecovery(domain, hash, routerID, tx)
		if err != nil {
			return err
		}

		// disputed and executed requests are terminal, a fresh request replaces them
		if existing != nil && existing.Status == state.RecoveryInitiated {
			return fmt.Errorf("%w: %s by %s at block %d", ErrRecoveryAlreadyInitiated,
				hash, existing.Initiator, existing.OpenBlock)
		}

		return g.state.RecoveryStore.PutRecovery(request, tx)
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("message recovery initiated", "domain", domain, "hash", hash, "router", routerID,
		"block", block, "window", request.DisputeWindow)

	g.fire([]*events.Event{{Type: events.RecoveryInitiated, Domain: domain, Hash: hash, Router: routerID}})

	return request, nil
}

// DisputeMessageRecovery cancels an initiated recovery while its dispute window is open
func (g *Gateway) DisputeMessageRecovery(ctx context.Context, caller types.Address, domain types.Domain,
	hash types.Hash, routerID types.RouterID) error {
	if err := g.requireAdmin(caller); err != nil {
		return err
	}

	block, err := g.blocks.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current block: %w", err)
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	err = g.state.Update(func(tx *bolt.Tx) error {
		request, err := g.getRecovery(domain, hash, routerID, tx)
		if err != nil {
			return err
		}

		if request.Status != state.RecoveryInitiated {
			return fmt.Errorf("%w: status %s", ErrRecoveryNotActive, request.Status)
		}

		if block >= request.WindowEnd() {
			return fmt.Errorf("%w: window ended at block %d, current block %d",
				ErrDisputeWindowClosed, request.WindowEnd(), block)
		}

		request.Status = state.RecoveryDisputed
		request.Disputer = caller

		return g.state.RecoveryStore.PutRecovery(request, tx)
	})
	if err != nil {
		return err
	}

	g.logger.Info("message recovery disputed", "domain", domain, "hash", hash, "router", routerID, "by", caller)
	g.fire([]*events.Event{{Type: events.RecoveryDisputed, Domain: domain, Hash: hash, Router: routerID}})

	return nil
}

// ExecuteMessageRecovery finalizes an undisputed recovery once its window elapsed. The router
// is treated as having confirmed hash, which may complete the quorum of the message.
func (g *Gateway) ExecuteMessageRecovery(ctx context.Context, caller types.Address, domain types.Domain,
	hash types.Hash, routerID types.RouterID) (*ReceiveResult, error) {
	if err := validateDomain(domain); err != nil {
		return nil, err
	}

	block, err := g.blocks.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current block: %w", err)
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	var (
		result = &ReceiveResult{Hash: hash}
		fired  []*events.Event
	)

	err = g.state.Update(func(tx *bolt.Tx) error {
		if err := g.requireAdminOrRelayer(caller, domain, tx); err != nil {
			return err
		}

		request, err := g.getRecovery(domain, hash, routerID, tx)
		if err != nil {
			return err
		}

		switch request.Status {
		case state.RecoveryDisputed:
			return fmt.Errorf("%w: disputed by %s", ErrRecoveryDisputed, request.Disputer)
		case state.RecoveryExecuted:
			return fmt.Errorf("%w: already executed", ErrRecoveryNotActive)
		}

		if block < request.WindowEnd() {
			return fmt.Errorf("%w: window ends at block %d, current block %d",
				ErrDisputeWindowOpen, request.WindowEnd(), block)
		}

		ids, err := g.configuredRouter(domain, routerID, tx)
		if err != nil {
			return err
		}

		request.Status = state.RecoveryExecuted
		if err := g.state.RecoveryStore.PutRecovery(request, tx); err != nil {
			return err
		}

		match, err := g.state.InboundStore.GetPendingMatch(domain, hash, tx)
		if err != nil {
			return err
		}

		if match == nil {
			match = &state.PendingMatch{Domain: domain, Hash: hash}
		}

		match.Confirm(routerID)

		nonces, evs, err := g.settle(match, ids, tx)
		if err != nil {
			return err
		}

		result.Nonces = nonces
		if len(nonces) == 0 {
			result.Confirmations = match.Confirmations
		}

		fired = append(fired, &events.Event{
			Type:   events.RecoveryExecuted,
			Domain: domain,
			Hash:   hash,
			Router: routerID,
		})
		fired = append(fired, evs...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("message recovery executed", "domain", domain, "hash", hash, "router", routerID,
		"submitted", result.Submitted())
	g.fire(fired)

	return result, nil
}

// RecoveryRequest returns the recovery request of hash on behalf of the router
func (g *Gateway) RecoveryRequest(domain types.Domain, hash types.Hash,
	routerID types.RouterID) (*state.RecoveryRequest, error) {
	return g.getRecovery(domain, hash, routerID, nil)
}

// RecoveryRequests returns every recovery request of the domain
func (g *Gateway) RecoveryRequests(domain types.Domain) ([]*state.RecoveryRequest, error) {
	return g.state.RecoveryStore.ListRecoveries(domain, nil)
}

func (g *Gateway) getRecovery(domain types.Domain, hash types.Hash, routerID types.RouterID,
	tx *bolt.Tx) (*state.RecoveryRequest, error) {
	request, err := g.state.RecoveryStore.GetRecovery(domain, hash, routerID, tx)
	if err != nil {
		return nil, err
	}

	if request == nil {
		return nil, fmt.Errorf("%w: %s/%s/%s", ErrRecoveryNotFound, domain, hash, routerID)
	}

	return request, nil
}
