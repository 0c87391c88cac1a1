package router

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/mapstructure"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
)

// MaxSourceChainLength bounds the chain name accepted from a GMP envelope
const MaxSourceChainLength = 128

var (
	gmpCallContractMethod = abi.MustNewMethod(
		"function callContract(string destinationChain, string contractAddress, bytes payload)")

	gmpEnvelopeABIType = abi.MustNewType(
		"tuple(address caller, string sourceChain, string sourceAddress, bytes payload)")
)

// GMPEnvelope is the call a GMP gateway contract relays into the home ledger
type GMPEnvelope struct {
	Caller        ethgo.Address `abi:"caller"`
	SourceChain   string        `abi:"sourceChain"`
	SourceAddress string        `abi:"sourceAddress"`
	Payload       []byte        `abi:"payload"`
}

// EncodeAbi encodes the envelope
func (e *GMPEnvelope) EncodeAbi() ([]byte, error) {
	return gmpEnvelopeABIType.Encode(map[string]interface{}{
		"caller":        e.Caller,
		"sourceChain":   e.SourceChain,
		"sourceAddress": e.SourceAddress,
		"payload":       e.Payload,
	})
}

// DecodeAbi decodes the envelope from input
func (e *GMPEnvelope) DecodeAbi(input []byte) error {
	raw, err := gmpEnvelopeABIType.Decode(input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	dc := &mapstructure.DecoderConfig{
		Result:  e,
		TagName: "abi",
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

type gmpOpts struct {
	// Gateway is the GMP gateway contract on the home ledger
	Gateway string `json:"gateway"`
	// Chains maps domains to the chain names of the GMP network
	Chains map[string]string `json:"chains"`
	// Contracts maps domains to the gateway contract deployed on them
	Contracts map[string]string `json:"contracts"`
}

var _ Router = (*GMPRouter)(nil)

// GMPRouter delivers messages through a generalized message passing network.
// Outbound messages are submitted as callContract transactions on the GMP gateway
// and inbound envelopes must originate from the GMP gateway itself.
type GMPRouter struct {
	id        types.RouterID
	gateway   types.Address
	chains    map[types.Domain]string
	contracts map[types.Domain]types.Address
	backend   *Backend
	logger    hclog.Logger
}

// NewGMPRouter creates the GMP adapter described by opts
func NewGMPRouter(id types.RouterID, opts map[string]interface{}, backend *Backend,
	logger hclog.Logger) (*GMPRouter, error) {
	var o gmpOpts
	if err := decodeOpts(opts, &o); err != nil {
		return nil, err
	}

	gateway, err := types.ParseAddress(o.Gateway)
	if err != nil {
		return nil, fmt.Errorf("invalid gmp gateway address: %w", err)
	}

	chains, err := domainMap(o.Chains, parseString)
	if err != nil {
		return nil, err
	}

	contracts, err := domainMap(o.Contracts, types.ParseAddress)
	if err != nil {
		return nil, err
	}

	return &GMPRouter{
		id:        id,
		gateway:   gateway,
		chains:    chains,
		contracts: contracts,
		backend:   backend,
		logger:    logger,
	}, nil
}

func (g *GMPRouter) ID() types.RouterID {
	return g.id
}

func (g *GMPRouter) route(domain types.Domain) (string, types.Address, error) {
	chain, ok := g.chains[domain]
	if !ok {
		return "", types.ZeroAddress, fmt.Errorf("%w: %s has no gmp chain name", ErrDomainNotSupported, domain)
	}

	contract, ok := g.contracts[domain]
	if !ok {
		return "", types.ZeroAddress, fmt.Errorf("%w: %s has no gmp contract", ErrDomainNotSupported, domain)
	}

	return chain, contract, nil
}

// EncodeCall encodes the callContract input delivering payload to the domain
func (g *GMPRouter) EncodeCall(domain types.Domain, payload []byte) ([]byte, error) {
	chain, contract, err := g.route(domain)
	if err != nil {
		return nil, err
	}

	return gmpCallContractMethod.Encode([]interface{}{chain, contract.String(), payload})
}

func (g *GMPRouter) Send(ctx context.Context, domain types.Domain, payload []byte) error {
	input, err := g.EncodeCall(domain, payload)
	if err != nil {
		return err
	}

	receipt, err := g.backend.send(ctx, ethgo.Address(g.gateway), input)
	if err != nil {
		return fmt.Errorf("gmp callContract to %s failed: %w", domain, err)
	}

	g.logger.Debug("message sent", "domain", domain, "tx", receipt.TransactionHash, "size", len(payload))

	return nil
}

func (g *GMPRouter) Receive(domain types.Domain, raw []byte) ([]byte, error) {
	var envelope GMPEnvelope
	if err := envelope.DecodeAbi(raw); err != nil {
		return nil, err
	}

	if types.Address(envelope.Caller) != g.gateway {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrContractCallerMismatch, g.gateway, envelope.Caller)
	}

	if len(envelope.SourceChain) > MaxSourceChainLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrSourceChainTooLong, len(envelope.SourceChain))
	}

	source, err := types.ParseAddress(envelope.SourceAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSourceAddress, err)
	}

	chain, contract, err := g.route(domain)
	if err != nil {
		return nil, err
	}

	if envelope.SourceChain != chain {
		return nil, fmt.Errorf("%w: expected %q, got %q", ErrSourceChainMismatch, chain, envelope.SourceChain)
	}

	if source != contract {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrSourceAddressMismatch, contract, source)
	}

	return envelope.Payload, nil
}
