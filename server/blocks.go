package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/umbracle/ethgo/jsonrpc"
)

var errInvalidBlockTime = errors.New("block time must be positive")

var (
	_ gateway.BlockProvider = (*rpcBlockProvider)(nil)
	_ gateway.BlockProvider = (*clockBlockProvider)(nil)
)

// rpcBlockProvider reads the latest block of the home ledger over json-rpc
type rpcBlockProvider struct {
	client *jsonrpc.Client
}

func newRPCBlockProvider(addr string) (*rpcBlockProvider, error) {
	client, err := jsonrpc.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to block source %s: %w", addr, err)
	}

	return &rpcBlockProvider{client: client}, nil
}

func (p *rpcBlockProvider) BlockNumber(_ context.Context) (uint64, error) {
	return p.client.Eth().BlockNumber()
}

// clockBlockProvider derives block numbers from the unix time, so that they survive restarts
type clockBlockProvider struct {
	blockTime time.Duration
	now       func() time.Time
}

func newClockBlockProvider(blockTime time.Duration) *clockBlockProvider {
	return &clockBlockProvider{blockTime: blockTime, now: time.Now}
}

func (p *clockBlockProvider) BlockNumber(_ context.Context) (uint64, error) {
	return uint64(p.now().UnixNano() / int64(p.blockTime)), nil
}

// NewBlockProvider creates the block source described by config
func NewBlockProvider(config *BlockSource) (gateway.BlockProvider, error) {
	if config == nil {
		return newClockBlockProvider(DefaultBlockTime), nil
	}

	if config.JSONRPCAddr != "" {
		return newRPCBlockProvider(config.JSONRPCAddr)
	}

	if config.BlockTime <= 0 {
		return nil, fmt.Errorf("%w, got %s", errInvalidBlockTime, config.BlockTime)
	}

	return newClockBlockProvider(config.BlockTime), nil
}
