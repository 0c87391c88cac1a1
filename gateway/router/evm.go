package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
)

var (
	evmHandleMethod = abi.MustNewMethod("function handle(bytes message)")

	evmEnvelopeABIType = abi.MustNewType(
		"tuple(uint256 sourceChainId, address sourceContract, bytes payload)")

	bigTyp = reflect.TypeOf(new(big.Int))
)

// EVMEnvelope is the call a remote EVM domain makes into the home ledger
type EVMEnvelope struct {
	SourceChainID  uint64        `abi:"sourceChainId"`
	SourceContract ethgo.Address `abi:"sourceContract"`
	Payload        []byte        `abi:"payload"`
}

// EncodeAbi encodes the envelope
func (e *EVMEnvelope) EncodeAbi() ([]byte, error) {
	return evmEnvelopeABIType.Encode(map[string]interface{}{
		"sourceChainId":  new(big.Int).SetUint64(e.SourceChainID),
		"sourceContract": e.SourceContract,
		"payload":        e.Payload,
	})
}

// DecodeAbi decodes the envelope from input
func (e *EVMEnvelope) DecodeAbi(input []byte) error {
	raw, err := evmEnvelopeABIType.Decode(input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	dc := &mapstructure.DecoderConfig{
		Result:     e,
		DecodeHook: bigToUint64Hook,
		TagName:    "abi",
	}

	ms, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return err
	}

	if err := ms.Decode(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	return nil
}

func bigToUint64Hook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f == bigTyp && t.Kind() == reflect.Uint64 {
		b, ok := data.(*big.Int)
		if !ok {
			return nil, errors.New("data not a big.Int")
		}

		if !b.IsUint64() {
			return nil, fmt.Errorf("value %s overflows uint64", b)
		}

		return b.Uint64(), nil
	}

	return data, nil
}

type evmOpts struct {
	// Contracts maps domains to the receiver contract called with handle(bytes)
	Contracts map[string]string `json:"contracts"`
}

var _ Router = (*EVMRouter)(nil)

// EVMRouter delivers messages by calling handle(bytes) on a receiver contract
// of the remote EVM domain directly
type EVMRouter struct {
	id        types.RouterID
	contracts map[types.Domain]types.Address
	backend   *Backend
	logger    hclog.Logger
}

// NewEVMRouter creates the direct EVM call adapter described by opts
func NewEVMRouter(id types.RouterID, opts map[string]interface{}, backend *Backend,
	logger hclog.Logger) (*EVMRouter, error) {
	var o evmOpts
	if err := decodeOpts(opts, &o); err != nil {
		return nil, err
	}

	contracts, err := domainMap(o.Contracts, types.ParseAddress)
	if err != nil {
		return nil, err
	}

	for domain := range contracts {
		if domain.Kind != types.DomainEVM {
			return nil, fmt.Errorf("%w: %s is not an evm domain", ErrDomainNotSupported, domain)
		}
	}

	return &EVMRouter{
		id:        id,
		contracts: contracts,
		backend:   backend,
		logger:    logger,
	}, nil
}

func (e *EVMRouter) ID() types.RouterID {
	return e.id
}

func (e *EVMRouter) contract(domain types.Domain) (types.Address, error) {
	contract, ok := e.contracts[domain]
	if !ok {
		return types.ZeroAddress, fmt.Errorf("%w: %s has no receiver contract", ErrDomainNotSupported, domain)
	}

	return contract, nil
}

func (e *EVMRouter) Send(ctx context.Context, domain types.Domain, payload []byte) error {
	contract, err := e.contract(domain)
	if err != nil {
		return err
	}

	input, err := evmHandleMethod.Encode([]interface{}{payload})
	if err != nil {
		return err
	}

	receipt, err := e.backend.send(ctx, ethgo.Address(contract), input)
	if err != nil {
		return fmt.Errorf("handle call on %s failed: %w", domain, err)
	}

	e.logger.Debug("message sent", "domain", domain, "tx", receipt.TransactionHash, "size", len(payload))

	return nil
}

func (e *EVMRouter) Receive(domain types.Domain, raw []byte) ([]byte, error) {
	var envelope EVMEnvelope
	if err := envelope.DecodeAbi(raw); err != nil {
		return nil, err
	}

	contract, err := e.contract(domain)
	if err != nil {
		return nil, err
	}

	if envelope.SourceChainID != domain.ChainID {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrSourceChainMismatch, domain.ChainID, envelope.SourceChainID)
	}

	if types.Address(envelope.SourceContract) != contract {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrSourceAddressMismatch, contract, envelope.SourceContract)
	}

	return envelope.Payload, nil
}
