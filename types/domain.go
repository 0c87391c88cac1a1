package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DomainKind distinguishes the home ledger from remote execution environments
type DomainKind uint8

const (
	DomainHome DomainKind = iota
	DomainEVM
)

// DomainKeyLength is the size of the key form of a Domain
const DomainKeyLength = 9

var (
	HomeDomain = Domain{Kind: DomainHome}

	errInvalidDomain = errors.New("invalid domain")
)

// Domain identifies the home ledger or one remote execution environment.
// It is used as partition key by every store.
type Domain struct {
	Kind    DomainKind
	ChainID uint64
}

// EVMDomain returns the domain of the EVM chain with the given chain id
func EVMDomain(chainID uint64) Domain {
	return Domain{Kind: DomainEVM, ChainID: chainID}
}

func (d Domain) String() string {
	if d.Kind == DomainHome {
		return "home"
	}

	return fmt.Sprintf("evm:%d", d.ChainID)
}

// Key returns the fixed size byte representation [kind | chainID big endian]
func (d Domain) Key() []byte {
	key := make([]byte, DomainKeyLength)
	key[0] = byte(d.Kind)
	binary.BigEndian.PutUint64(key[1:], d.ChainID)

	return key
}

// DomainFromKey is the inverse of Domain.Key
func DomainFromKey(key []byte) (Domain, error) {
	if len(key) != DomainKeyLength {
		return Domain{}, fmt.Errorf("%w: key length %d", errInvalidDomain, len(key))
	}

	d := Domain{Kind: DomainKind(key[0]), ChainID: binary.BigEndian.Uint64(key[1:])}
	if err := d.Validate(); err != nil {
		return Domain{}, err
	}

	return d, nil
}

// Validate checks the domain is one of the supported kinds
func (d Domain) Validate() error {
	switch d.Kind {
	case DomainHome:
		if d.ChainID != 0 {
			return fmt.Errorf("%w: home domain carries chain id %d", errInvalidDomain, d.ChainID)
		}
	case DomainEVM:
		if d.ChainID == 0 {
			return fmt.Errorf("%w: evm domain without chain id", errInvalidDomain)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", errInvalidDomain, d.Kind)
	}

	return nil
}

// ParseDomain parses "home" or "evm:<chainID>"
func ParseDomain(str string) (Domain, error) {
	if str == "home" {
		return HomeDomain, nil
	}

	chain, ok := strings.CutPrefix(str, "evm:")
	if !ok {
		return Domain{}, fmt.Errorf("%w: %q", errInvalidDomain, str)
	}

	chainID, err := strconv.ParseUint(chain, 10, 64)
	if err != nil {
		return Domain{}, fmt.Errorf("%w: %q: %w", errInvalidDomain, str, err)
	}

	d := EVMDomain(chainID)

	return d, d.Validate()
}

func (d Domain) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Domain) UnmarshalText(input []byte) error {
	parsed, err := ParseDomain(string(input))
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// RouterID is the opaque identity of one configured router adapter instance
type RouterID string

// Nonce is the handle of a message admitted to the execution queue
type Nonce uint64
