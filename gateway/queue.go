package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/gateway/events"
	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	bolt "go.etcd.io/bbolt"
)

// submit admits every submessage of msg to the queue, each under its own nonce, in order
func (g *Gateway) submit(domain types.Domain, msg *message.Message,
	tx *bolt.Tx) ([]types.Nonce, []*events.Event, error) {
	subs := msg.Submessages()
	nonces := make([]types.Nonce, 0, len(subs))
	fired := make([]*events.Event, 0, len(subs))

	for _, sub := range subs {
		nonce, err := g.state.QueueStore.NextNonce(tx)
		if err != nil {
			return nil, nil, err
		}

		entry := &state.QueueEntry{
			Nonce:   nonce,
			Domain:  domain,
			Message: sub.Encode(),
		}

		if err := g.state.QueueStore.InsertQueued(entry, tx); err != nil {
			return nil, nil, err
		}

		nonces = append(nonces, nonce)
		fired = append(fired, &events.Event{
			Type:   events.MessageSubmitted,
			Domain: domain,
			Hash:   sub.Hash(),
			Nonce:  nonce,
		})
	}

	return nonces, fired, nil
}

// queueKind selects the queue a processing call works on
type queueKind int

const (
	mainQueue queueKind = iota
	failedQueue
)

// ProcessMessage executes the queued message of the nonce. A failing handler does not
// fail the call: the message moves to the failed queue and a failure event is emitted.
func (g *Gateway) ProcessMessage(ctx context.Context, caller types.Address, nonce types.Nonce) error {
	return g.process(ctx, caller, nonce, mainQueue)
}

// ProcessFailedMessage retries the failed message of the nonce. Success removes it from
// the failed queue, failure updates its stored error.
func (g *Gateway) ProcessFailedMessage(ctx context.Context, caller types.Address, nonce types.Nonce) error {
	return g.process(ctx, caller, nonce, failedQueue)
}

func (g *Gateway) process(ctx context.Context, caller types.Address, nonce types.Nonce, kind queueKind) error {
	if caller.IsZero() {
		return ErrBadOrigin
	}

	domain, raw, attempts, err := g.acquire(nonce, kind)
	if err != nil {
		return err
	}

	defer g.release(nonce)

	msg, handleErr := message.Decode(raw)
	if handleErr == nil {
		handleErr = g.handler.Handle(ctx, domain, msg)
	}

	updateExecutionMetrics(domain, handleErr)

	fired := &events.Event{Domain: domain, Nonce: nonce, Message: raw}
	if msg != nil {
		fired.Hash = msg.Hash()
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	err = g.state.Update(func(tx *bolt.Tx) error {
		if kind == mainQueue {
			if err := g.state.QueueStore.DeleteQueued(nonce, tx); err != nil {
				return err
			}
		}

		if handleErr == nil {
			if kind == failedQueue {
				return g.state.QueueStore.DeleteFailed(nonce, tx)
			}

			return nil
		}

		return g.state.QueueStore.PutFailed(&state.FailedQueueEntry{
			Nonce:    nonce,
			Domain:   domain,
			Message:  raw,
			Error:    handleErr.Error(),
			Attempts: attempts + 1,
		}, tx)
	})
	if err != nil {
		return fmt.Errorf("failed to store outcome of message %d: %w", nonce, err)
	}

	if handleErr != nil {
		g.logger.Warn("message execution failed", "nonce", nonce, "domain", domain, "err", handleErr)

		fired.Type = events.MessageExecutionFailure
		fired.Error = handleErr.Error()
	} else {
		g.logger.Debug("message executed", "nonce", nonce, "domain", domain)

		fired.Type = events.MessageExecutionSuccess
	}

	g.fire([]*events.Event{fired})
	g.ReportMetrics()

	return nil
}

// acquire marks the nonce in flight and loads its entry from the given queue
func (g *Gateway) acquire(nonce types.Nonce, kind queueKind) (types.Domain, []byte, uint64, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if _, ok := g.inFlight[nonce]; ok {
		return types.Domain{}, nil, 0, fmt.Errorf("%w: nonce %d", ErrMessageInProgress, nonce)
	}

	var (
		domain   types.Domain
		raw      []byte
		attempts uint64
	)

	err := g.state.View(func(tx *bolt.Tx) error {
		if kind == mainQueue {
			entry, err := g.state.QueueStore.GetQueued(nonce, tx)
			if err != nil || entry == nil {
				return err
			}

			domain, raw = entry.Domain, entry.Message

			return nil
		}

		entry, err := g.state.QueueStore.GetFailed(nonce, tx)
		if err != nil || entry == nil {
			return err
		}

		domain, raw, attempts = entry.Domain, entry.Message, entry.Attempts

		return nil
	})
	if err != nil {
		return types.Domain{}, nil, 0, err
	}

	if raw == nil {
		return types.Domain{}, nil, 0, fmt.Errorf("%w: nonce %d", ErrMessageNotFound, nonce)
	}

	g.inFlight[nonce] = struct{}{}

	return domain, raw, attempts, nil
}

func (g *Gateway) release(nonce types.Nonce) {
	g.lock.Lock()
	defer g.lock.Unlock()

	delete(g.inFlight, nonce)
}

// ReportMetrics publishes the current queue lengths
func (g *Gateway) ReportMetrics() {
	queued, failed, err := g.state.QueueStore.QueueLengths(nil)
	if err != nil {
		g.logger.Error("failed to read queue lengths", "err", err)

		return
	}

	updateQueueMetrics(queued, failed)
}

// QueuedMessage returns the queue entry of the nonce
func (g *Gateway) QueuedMessage(nonce types.Nonce) (*state.QueueEntry, error) {
	entry, err := g.state.QueueStore.GetQueued(nonce, nil)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		return nil, fmt.Errorf("%w: nonce %d", ErrMessageNotFound, nonce)
	}

	return entry, nil
}

// FailedMessage returns the failed queue entry of the nonce
func (g *Gateway) FailedMessage(nonce types.Nonce) (*state.FailedQueueEntry, error) {
	entry, err := g.state.QueueStore.GetFailed(nonce, nil)
	if err != nil {
		return nil, err
	}

	if entry == nil {
		return nil, fmt.Errorf("%w: nonce %d", ErrMessageNotFound, nonce)
	}

	return entry, nil
}

// QueuedMessages returns up to limit queued messages in nonce order
func (g *Gateway) QueuedMessages(limit int) ([]*state.QueueEntry, error) {
	return g.state.QueueStore.ListQueued(limit, nil)
}

// FailedMessages returns every failed message in nonce order
func (g *Gateway) FailedMessages() ([]*state.FailedQueueEntry, error) {
	return g.state.QueueStore.ListFailed(nil)
}

// LastNonce returns the last nonce issued by the queue
func (g *Gateway) LastNonce() (types.Nonce, error) {
	return g.state.QueueStore.LastNonce(nil)
}

// IsNotFound reports whether err is one of the lookup misses of the gateway
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrRecoveryNotFound) ||
		errors.Is(err, ErrPendingMatchNotFound) ||
		errors.Is(err, ErrHookAddressNotFound)
}
