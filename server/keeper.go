package server

import (
	"context"
	"errors"
	"time"

	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
)

// queueProcessor is the part of the gateway the keeper drives
type queueProcessor interface {
	QueuedMessages(limit int) ([]*state.QueueEntry, error)
	ProcessMessage(ctx context.Context, caller types.Address, nonce types.Nonce) error
}

var _ queueProcessor = (*gateway.Gateway)(nil)

// keeper periodically processes queued messages in nonce order. The failed queue is never
// touched, retries stay with the operator.
type keeper struct {
	gateway  queueProcessor
	account  types.Address
	interval time.Duration
	batch    int
	logger   hclog.Logger
}

func newKeeper(gw queueProcessor, account types.Address, config *Keeper, logger hclog.Logger) *keeper {
	return &keeper{
		gateway:  gw,
		account:  account,
		interval: config.Interval,
		batch:    config.Batch,
		logger:   logger.Named("keeper"),
	}
}

func (k *keeper) run(ctx context.Context) error {
	k.logger.Info("keeper started", "interval", k.interval, "batch", k.batch, "account", k.account)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("keeper stopped")

			return nil
		case <-ticker.C:
			k.processQueue(ctx)
		}
	}
}

// processQueue processes one batch of queued messages and returns the number processed
func (k *keeper) processQueue(ctx context.Context) int {
	entries, err := k.gateway.QueuedMessages(k.batch)
	if err != nil {
		k.logger.Error("failed to list queued messages", "err", err)

		return 0
	}

	processed := 0

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		err := k.gateway.ProcessMessage(ctx, k.account, entry.Nonce)

		switch {
		case err == nil:
			processed++
		case errors.Is(err, gateway.ErrMessageInProgress), errors.Is(err, gateway.ErrMessageNotFound):
			// processed concurrently by someone else
			k.logger.Debug("skipping message", "nonce", entry.Nonce, "reason", err)
		default:
			k.logger.Error("failed to process message", "nonce", entry.Nonce, "err", err)
		}
	}

	if processed > 0 {
		k.logger.Debug("queue processed", "count", processed)
	}

	return processed
}
