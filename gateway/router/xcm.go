package router

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/helper/hex"
	"github.com/0xPolygon/polygon-gateway/txrelayer"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/umbracle/ethgo/jsonrpc"
	"github.com/umbracle/fastrlp"
)

const (
	defaultXCMMethod   = "xcm_transact"
	defaultXCMGasLimit = 700_000
)

// XCMEnvelope is a cross-consensus transact call. On the way out Contract is the
// destination contract, on the way in it is the origin contract.
type XCMEnvelope struct {
	ChainID  uint64
	Contract types.Address
	GasLimit uint64
	Payload  []byte
}

// MarshalRLPTo appends the encoding of the envelope to dst
func (x *XCMEnvelope) MarshalRLPTo(dst []byte) []byte {
	ar := fastrlp.DefaultArenaPool.Get()
	defer fastrlp.DefaultArenaPool.Put(ar)

	vv := ar.NewArray()
	vv.Set(ar.NewUint(x.ChainID))
	vv.Set(ar.NewCopyBytes(x.Contract.Bytes()))
	vv.Set(ar.NewUint(x.GasLimit))
	vv.Set(ar.NewCopyBytes(x.Payload))

	return vv.MarshalTo(dst)
}

// UnmarshalRLP decodes input into the envelope
func (x *XCMEnvelope) UnmarshalRLP(input []byte) error {
	pr := fastrlp.DefaultParserPool.Get()
	defer fastrlp.DefaultParserPool.Put(pr)

	v, err := pr.Parse(input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	elems, err := v.GetElems()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	if len(elems) != 4 {
		return fmt.Errorf("%w: expected 4 elements, found %d", ErrInvalidEnvelope, len(elems))
	}

	if x.ChainID, err = elems[0].GetUint64(); err != nil {
		return fmt.Errorf("%w: chain id: %w", ErrInvalidEnvelope, err)
	}

	if err = elems[1].GetAddr(x.Contract[:]); err != nil {
		return fmt.Errorf("%w: contract: %w", ErrInvalidEnvelope, err)
	}

	if x.GasLimit, err = elems[2].GetUint64(); err != nil {
		return fmt.Errorf("%w: gas limit: %w", ErrInvalidEnvelope, err)
	}

	if x.Payload, err = elems[3].GetBytes(nil); err != nil {
		return fmt.Errorf("%w: payload: %w", ErrInvalidEnvelope, err)
	}

	return nil
}

// Transactor submits encoded transact envelopes to the relay chain
type Transactor interface {
	Transact(ctx context.Context, envelope []byte) (string, error)
}

var _ Transactor = (*RPCTransactor)(nil)

// RPCTransactor submits envelopes through a json-rpc method of the relay chain node
type RPCTransactor struct {
	client *jsonrpc.Client
	method string
}

type xcmRPCOpts struct {
	JSONRPCAddr string `json:"jsonrpc_addr"`
	Method      string `json:"method"`
}

// NewRPCTransactor creates the json-rpc transactor described by the router options
func NewRPCTransactor(opts map[string]interface{}) (*RPCTransactor, error) {
	o := xcmRPCOpts{
		JSONRPCAddr: txrelayer.DefaultRPCAddress,
		Method:      defaultXCMMethod,
	}
	if err := decodeOpts(opts, &o); err != nil {
		return nil, err
	}

	client, err := jsonrpc.NewClient(o.JSONRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", o.JSONRPCAddr, err)
	}

	return &RPCTransactor{client: client, method: o.Method}, nil
}

func (r *RPCTransactor) Transact(_ context.Context, envelope []byte) (string, error) {
	var out string
	if err := r.client.Call(r.method, &out, hex.EncodeToHex(envelope)); err != nil {
		return "", err
	}

	return out, nil
}

type xcmOpts struct {
	// Contracts maps domains to the contract transacted with on them
	Contracts map[string]string `json:"contracts"`
	GasLimit  uint64            `json:"gas_limit"`
}

var _ Router = (*XCMRouter)(nil)

// XCMRouter delivers messages as cross-consensus transact calls
type XCMRouter struct {
	id         types.RouterID
	contracts  map[types.Domain]types.Address
	gasLimit   uint64
	transactor Transactor
	logger     hclog.Logger
}

// NewXCMRouter creates the cross-consensus transact adapter described by opts
func NewXCMRouter(id types.RouterID, opts map[string]interface{}, transactor Transactor,
	logger hclog.Logger) (*XCMRouter, error) {
	o := xcmOpts{GasLimit: defaultXCMGasLimit}
	if err := decodeOpts(opts, &o); err != nil {
		return nil, err
	}

	contracts, err := domainMap(o.Contracts, types.ParseAddress)
	if err != nil {
		return nil, err
	}

	return &XCMRouter{
		id:         id,
		contracts:  contracts,
		gasLimit:   o.GasLimit,
		transactor: transactor,
		logger:     logger,
	}, nil
}

func (x *XCMRouter) ID() types.RouterID {
	return x.id
}

func (x *XCMRouter) contract(domain types.Domain) (types.Address, error) {
	contract, ok := x.contracts[domain]
	if !ok {
		return types.ZeroAddress, fmt.Errorf("%w: %s has no xcm contract", ErrDomainNotSupported, domain)
	}

	return contract, nil
}

func (x *XCMRouter) Send(ctx context.Context, domain types.Domain, payload []byte) error {
	contract, err := x.contract(domain)
	if err != nil {
		return err
	}

	envelope := &XCMEnvelope{
		ChainID:  domain.ChainID,
		Contract: contract,
		GasLimit: x.gasLimit,
		Payload:  payload,
	}

	id, err := x.transactor.Transact(ctx, envelope.MarshalRLPTo(nil))
	if err != nil {
		return fmt.Errorf("xcm transact to %s failed: %w", domain, err)
	}

	x.logger.Debug("message sent", "domain", domain, "id", id, "size", len(payload))

	return nil
}

func (x *XCMRouter) Receive(domain types.Domain, raw []byte) ([]byte, error) {
	var envelope XCMEnvelope
	if err := envelope.UnmarshalRLP(raw); err != nil {
		return nil, err
	}

	contract, err := x.contract(domain)
	if err != nil {
		return nil, err
	}

	if envelope.ChainID != domain.ChainID {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrSourceChainMismatch, domain.ChainID, envelope.ChainID)
	}

	if envelope.Contract != contract {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrSourceAddressMismatch, contract, envelope.Contract)
	}

	return envelope.Payload, nil
}
