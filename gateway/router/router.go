package router

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/0xPolygon/polygon-gateway/helper/hex"
	"github.com/0xPolygon/polygon-gateway/txrelayer"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/wallet"
)

var (
	ErrUnsupportedType        = errors.New("unsupported router type")
	ErrDuplicateRouter        = errors.New("duplicate router id")
	ErrDomainNotSupported     = errors.New("domain not supported by router")
	ErrInvalidEnvelope        = errors.New("invalid router envelope")
	ErrContractCallerMismatch = errors.New("contract caller mismatch")
	ErrSourceChainTooLong     = errors.New("source chain too long")
	ErrInvalidSourceAddress   = errors.New("invalid source address")
	ErrSourceChainMismatch    = errors.New("source chain mismatch")
	ErrSourceAddressMismatch  = errors.New("source address mismatch")
)

// Type is the transport family of a router adapter
type Type string

const (
	TypeGMP Type = "gmp"
	TypeEVM Type = "evm"
	TypeXCM Type = "xcm"
)

// Router carries encoded messages between the home ledger and remote domains
type Router interface {
	// ID returns the configured identity of the adapter instance
	ID() types.RouterID
	// Send delivers the encoded message to the domain in the adapter's native call format
	Send(ctx context.Context, domain types.Domain, payload []byte) error
	// Receive validates the adapter native envelope received from the domain
	// and returns the encoded message it carries
	Receive(domain types.Domain, raw []byte) ([]byte, error)
}

// Config describes one router adapter instance
type Config struct {
	ID   types.RouterID         `json:"id" yaml:"id" hcl:"id"`
	Type Type                   `json:"type" yaml:"type" hcl:"type"`
	Opts map[string]interface{} `json:"opts" yaml:"opts" hcl:"opts"`
}

// Backend holds the transaction submission dependencies shared by the EVM based adapters
type Backend struct {
	Relayer txrelayer.TxRelayer
	// Key signs outgoing transactions. When nil, transactions are sent from the node's local account.
	Key ethgo.Key
}

func (b *Backend) send(ctx context.Context, to ethgo.Address, input []byte) (*ethgo.Receipt, error) {
	txn := &ethgo.Transaction{To: &to, Input: input}

	if b.Key == nil {
		return b.Relayer.SendTransactionLocal(ctx, txn)
	}

	return b.Relayer.SendTransaction(ctx, txn, b.Key)
}

type backendOpts struct {
	JSONRPCAddr string `json:"jsonrpc_addr"`
	PrivateKey  string `json:"private_key"`
}

// NewBackend creates the json-rpc backend described by the router options
func NewBackend(opts map[string]interface{}, logger hclog.Logger) (*Backend, error) {
	var bo backendOpts
	if err := decodeOpts(opts, &bo); err != nil {
		return nil, err
	}

	relayerOpts := []txrelayer.TxRelayerOption{txrelayer.WithLogger(logger)}
	if bo.JSONRPCAddr != "" {
		relayerOpts = append(relayerOpts, txrelayer.WithIPAddress(bo.JSONRPCAddr))
	}

	relayer, err := txrelayer.NewTxRelayer(relayerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tx relayer: %w", err)
	}

	backend := &Backend{Relayer: relayer}

	if bo.PrivateKey != "" {
		raw, err := hex.DecodeHex(bo.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}

		key, err := wallet.NewWalletFromPrivKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}

		backend.Key = key
	}

	return backend, nil
}

// NewRouter creates the adapter described by config
func NewRouter(config *Config, logger hclog.Logger) (Router, error) {
	if config.ID == "" {
		return nil, fmt.Errorf("router of type %q has no id", config.Type)
	}

	logger = logger.Named(string(config.ID))

	switch config.Type {
	case TypeGMP, TypeEVM:
		backend, err := NewBackend(config.Opts, logger)
		if err != nil {
			return nil, err
		}

		if config.Type == TypeGMP {
			return NewGMPRouter(config.ID, config.Opts, backend, logger)
		}

		return NewEVMRouter(config.ID, config.Opts, backend, logger)
	case TypeXCM:
		transactor, err := NewRPCTransactor(config.Opts)
		if err != nil {
			return nil, err
		}

		return NewXCMRouter(config.ID, config.Opts, transactor, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, config.Type)
	}
}

// Registry is the set of configured router adapter instances
type Registry struct {
	routers map[types.RouterID]Router
}

// NewRegistry creates a registry of the given routers
func NewRegistry(routers ...Router) (*Registry, error) {
	r := &Registry{routers: make(map[types.RouterID]Router, len(routers))}

	for _, router := range routers {
		if _, ok := r.routers[router.ID()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRouter, router.ID())
		}

		r.routers[router.ID()] = router
	}

	return r, nil
}

// NewRegistryFromConfig builds every configured router adapter
func NewRegistryFromConfig(configs []*Config, logger hclog.Logger) (*Registry, error) {
	routers := make([]Router, 0, len(configs))

	for _, config := range configs {
		router, err := NewRouter(config, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create router %s: %w", config.ID, err)
		}

		routers = append(routers, router)
	}

	return NewRegistry(routers...)
}

// Get returns the router with the given id
func (r *Registry) Get(id types.RouterID) (Router, bool) {
	router, ok := r.routers[id]

	return router, ok
}

// IDs returns the sorted ids of every known router
func (r *Registry) IDs() []types.RouterID {
	ids := make([]types.RouterID, 0, len(r.routers))
	for id := range r.routers {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

func decodeOpts(opts map[string]interface{}, out interface{}) error {
	if len(opts) == 0 {
		return nil
	}

	dc := &mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	}

	ms, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return err
	}

	return ms.Decode(opts)
}

// domainMap parses a domain keyed option map such as {"evm:1": "0x..."}
func domainMap[T any](raw map[string]string, parse func(string) (T, error)) (map[types.Domain]T, error) {
	result := make(map[types.Domain]T, len(raw))

	for k, v := range raw {
		domain, err := types.ParseDomain(k)
		if err != nil {
			return nil, err
		}

		parsed, err := parse(v)
		if err != nil {
			return nil, fmt.Errorf("domain %s: %w", domain, err)
		}

		result[domain] = parsed
	}

	return result, nil
}

func parseString(s string) (string, error) {
	return s, nil
}
