package gateway

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/gateway/router"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-multierror"
	bolt "go.etcd.io/bbolt"
)

// batch is an open batch window of one sender, holding one pack per destination domain
type batch struct {
	order []types.Domain
	packs map[types.Domain]*message.Message
}

func newBatch() *batch {
	return &batch{packs: make(map[types.Domain]*message.Message)}
}

// add folds msg into the pack of the domain
func (b *batch) add(domain types.Domain, msg *message.Message) error {
	pack, ok := b.packs[domain]
	if !ok {
		pack = message.Empty()
	}

	if err := pack.PackWith(msg); err != nil {
		return err
	}

	if !ok {
		b.packs[domain] = pack
		b.order = append(b.order, domain)
	}

	return nil
}

// delivery is the payload one router carries
type delivery struct {
	router  router.Router
	payload []byte
	proof   bool
}

// dispatchPlan is the set of deliveries of one message to one domain
type dispatchPlan struct {
	domain     types.Domain
	hash       types.Hash
	deliveries []*delivery
}

// Handle dispatches msg to the domain, or folds it into the open batch of the sender
func (g *Gateway) Handle(ctx context.Context, sender types.Address, domain types.Domain, msg *message.Message) error {
	if sender.IsZero() {
		return ErrBadOrigin
	}

	if err := validateDomain(domain); err != nil {
		return err
	}

	g.lock.Lock()

	if b, ok := g.batches[sender]; ok {
		err := b.add(domain, msg)
		g.lock.Unlock()

		if err != nil {
			return fmt.Errorf("failed to add message to batch of %s: %w", sender, err)
		}

		g.logger.Debug("message added to batch", "sender", sender, "domain", domain)

		return nil
	}

	var plan *dispatchPlan

	err := g.state.View(func(tx *bolt.Tx) (err error) {
		plan, err = g.planDispatch(domain, msg, tx)

		return err
	})
	g.lock.Unlock()

	if err != nil {
		return err
	}

	return g.dispatch(ctx, plan)
}

// StartBatchMessage opens a batch window for the sender
func (g *Gateway) StartBatchMessage(sender types.Address) error {
	if sender.IsZero() {
		return ErrBadOrigin
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	if _, ok := g.batches[sender]; ok {
		return fmt.Errorf("%w: %s", ErrBatchAlreadyStarted, sender)
	}

	g.batches[sender] = newBatch()

	return nil
}

// EndBatchMessage closes the batch window of the sender and dispatches the pack of
// every domain in the order the domains were first used
func (g *Gateway) EndBatchMessage(ctx context.Context, sender types.Address) error {
	if sender.IsZero() {
		return ErrBadOrigin
	}

	g.lock.Lock()

	b, ok := g.batches[sender]
	if !ok {
		g.lock.Unlock()

		return fmt.Errorf("%w: %s", ErrBatchNotStarted, sender)
	}

	delete(g.batches, sender)

	var (
		plans  []*dispatchPlan
		result *multierror.Error
	)

	err := g.state.View(func(tx *bolt.Tx) error {
		for _, domain := range b.order {
			msg := b.packs[domain]
			if msg.IsEmpty() {
				continue
			}

			// a pack of one is sent as its element
			if subs := msg.Submessages(); len(subs) == 1 {
				msg = subs[0]
			}

			plan, err := g.planDispatch(domain, msg, tx)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("domain %s: %w", domain, err))

				continue
			}

			plans = append(plans, plan)
		}

		return nil
	})
	g.lock.Unlock()

	if err != nil {
		return err
	}

	for _, plan := range plans {
		if err := g.dispatch(ctx, plan); err != nil {
			result = multierror.Append(result, fmt.Errorf("domain %s: %w", plan.domain, err))
		}
	}

	return result.ErrorOrNil()
}

// planDispatch assigns the full message to the first configured router and proofs to the others
func (g *Gateway) planDispatch(domain types.Domain, msg *message.Message, tx *bolt.Tx) (*dispatchPlan, error) {
	ids, err := g.routersForDomain(domain, tx)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRouterConfigurationNotFound, domain)
	}

	plan := &dispatchPlan{
		domain:     domain,
		hash:       msg.Hash(),
		deliveries: make([]*delivery, 0, len(ids)),
	}

	proof := msg.ToProof()

	for i, id := range ids {
		adapter, ok := g.routers.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no adapter", ErrUnknownRouter, id)
		}

		payload := msg
		if i > 0 {
			payload = proof
		}

		info, err := g.state.RegistryStore.GetForwardInfo(id, tx)
		if err != nil {
			return nil, err
		}

		if info != nil {
			if payload, err = payload.TryWrapForward(info.Domain, info.Contract); err != nil {
				return nil, fmt.Errorf("router %s: %w", id, err)
			}
		}

		plan.deliveries = append(plan.deliveries, &delivery{
			router:  adapter,
			payload: payload.Encode(),
			proof:   i > 0,
		})
	}

	return plan, nil
}

// dispatch sends every delivery of the plan. Sends are independent: a failing router
// does not stop the others and nothing already sent is rolled back.
func (g *Gateway) dispatch(ctx context.Context, plan *dispatchPlan) error {
	var (
		result *multierror.Error
		fired  []*events.Event
	)

	for _, d := range plan.deliveries {
		err := d.router.Send(ctx, plan.domain, d.payload)
		updateSendMetrics(plan.domain, d.router.ID(), d.proof, err)

		if err != nil {
			g.logger.Error("failed to send message", "domain", plan.domain, "router", d.router.ID(),
				"hash", plan.hash, "err", err)

			result = multierror.Append(result, fmt.Errorf("router %s: %w", d.router.ID(), err))

			continue
		}

		fired = append(fired, &events.Event{
			Type:   events.MessageSent,
			Domain: plan.domain,
			Hash:   plan.hash,
			Router: d.router.ID(),
			Proof:  d.proof,
		})
	}

	g.fire(fired)

	return result.ErrorOrNil()
}

// IsBatchOpen reports whether the sender has an open batch window
func (g *Gateway) IsBatchOpen(sender types.Address) bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	_, ok := g.batches[sender]

	return ok
}
