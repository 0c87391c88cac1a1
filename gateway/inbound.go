package gateway

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	bolt "go.etcd.io/bbolt"
)

// ReceiveResult describes the outcome of an accepted inbound submission
type ReceiveResult struct {
	Hash types.Hash `json:"hash"`
	// Confirmations are the routers that confirmed the hash so far, empty once submitted
	Confirmations []types.RouterID `json:"confirmations"`
	// Nonces are the queue nonces assigned when the submission completed the quorum
	Nonces []types.Nonce `json:"nonces,omitempty"`
}

// Submitted reports whether the submission completed the quorum
func (r *ReceiveResult) Submitted() bool {
	return len(r.Nonces) > 0
}

// ReceiveMessage records the message relayed by the router for the domain. The message
// is admitted to the queue once every configured router of the domain confirmed its hash
// and the full message was delivered by one of them.
func (g *Gateway) ReceiveMessage(_ context.Context, relayer types.Address, domain types.Domain,
	routerID types.RouterID, raw []byte) (*ReceiveResult, error) {
	if relayer.IsZero() {
		return nil, ErrBadOrigin
	}

	if err := validateDomain(domain); err != nil {
		return nil, err
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	var (
		result = &ReceiveResult{}
		fired  []*events.Event
	)

	err := g.state.Update(func(tx *bolt.Tx) error {
		allowed, err := g.state.RegistryStore.IsRelayer(domain, relayer, tx)
		if err != nil {
			return err
		}

		if !allowed {
			return fmt.Errorf("%w: %s for %s", ErrUnauthorizedRelayer, relayer, domain)
		}

		ids, err := g.configuredRouter(domain, routerID, tx)
		if err != nil {
			return err
		}

		adapter, ok := g.routers.Get(routerID)
		if !ok {
			return fmt.Errorf("%w: %s has no adapter", ErrUnknownRouter, routerID)
		}

		encoded, err := adapter.Receive(domain, raw)
		if err != nil {
			return fmt.Errorf("router %s rejected message: %w", routerID, err)
		}

		msg, err := message.Decode(encoded)
		if err != nil {
			return err
		}

		if msg, err = g.unwrapForwarded(routerID, msg, tx); err != nil {
			return err
		}

		match, err := g.confirm(domain, routerID, msg, tx)
		if err != nil {
			return err
		}

		nonces, evs, err := g.settle(match, ids, tx)
		if err != nil {
			return err
		}

		result.Hash = match.Hash
		result.Nonces = nonces

		if len(nonces) == 0 {
			result.Confirmations = match.Confirmations
		}

		fired = append(fired, &events.Event{
			Type:   events.InboundMessageConfirmed,
			Domain: domain,
			Hash:   match.Hash,
			Router: routerID,
		})
		fired = append(fired, evs...)

		return nil
	})
	if err != nil {
		return nil, err
	}

	updateInboundMetrics(domain, routerID, len(result.Nonces))
	g.fire(fired)

	g.logger.Debug("inbound message received", "domain", domain, "router", routerID, "hash", result.Hash,
		"submitted", result.Submitted())

	return result, nil
}

// unwrapForwarded checks a forwarded message against the forwarding info of the router
func (g *Gateway) unwrapForwarded(routerID types.RouterID, msg *message.Message,
	tx *bolt.Tx) (*message.Message, error) {
	info, err := g.state.RegistryStore.GetForwardInfo(routerID, tx)
	if err != nil {
		return nil, err
	}

	if info == nil {
		if msg.Kind == message.KindForwarded {
			return nil, fmt.Errorf("%w: router %s is not forwarded", ErrForwardInfoMismatch, routerID)
		}

		return msg, nil
	}

	fwd, err := msg.UnwrapForwarded()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrForwardInfoMismatch, err)
	}

	if fwd.Domain != info.Domain || fwd.Contract != info.Contract {
		return nil, fmt.Errorf("%w: expected %s/%s, got %s/%s", ErrForwardInfoMismatch,
			info.Domain, info.Contract, fwd.Domain, fwd.Contract)
	}

	return fwd.Message, nil
}

// confirm records the router confirmation of msg. A proof only confirms its hash,
// a full message also stores the body when none is stored yet.
func (g *Gateway) confirm(domain types.Domain, routerID types.RouterID, msg *message.Message,
	tx *bolt.Tx) (*state.PendingMatch, error) {
	var (
		hash types.Hash
		body []byte
	)

	if msg.Kind == message.KindProof {
		hash = msg.Proof
	} else {
		hash = msg.Hash()
		body = msg.Encode()
	}

	match, err := g.state.InboundStore.GetPendingMatch(domain, hash, tx)
	if err != nil {
		return nil, err
	}

	if match == nil {
		match = &state.PendingMatch{Domain: domain, Hash: hash}
	}

	if !match.Confirm(routerID) {
		g.logger.Debug("duplicate confirmation", "domain", domain, "router", routerID, "hash", hash)
	}

	if body != nil && !match.HasBody() {
		match.Body = body
	}

	return match, nil
}

// settle submits the match to the queue once it covers every router, otherwise it persists it
func (g *Gateway) settle(match *state.PendingMatch, routers []types.RouterID,
	tx *bolt.Tx) ([]types.Nonce, []*events.Event, error) {
	if !match.HasBody() || !match.Covers(routers) {
		return nil, nil, g.state.InboundStore.PutPendingMatch(match, tx)
	}

	msg, err := message.Decode(match.Body)
	if err != nil {
		return nil, nil, err
	}

	if _, err := g.state.InboundStore.DeletePendingMatch(match.Domain, match.Hash, tx); err != nil {
		return nil, nil, err
	}

	return g.submit(match.Domain, msg, tx)
}
