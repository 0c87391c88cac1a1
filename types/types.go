package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0xPolygon/polygon-gateway/helper/hex"
)

const (
	HashLength    = 32
	AddressLength = 20
)

var (
	ZeroAddress = Address{}
	ZeroHash    = Hash{}

	errInvalidAddressLength = errors.New("invalid address length")
)

// Hash is a 32 byte keccak digest
type Hash [HashLength]byte

// Address is a 20 byte account or contract address
type Address [AddressLength]byte

func min(i, j int) int {
	if i < j {
		return i
	}

	return j
}

// BytesToHash left-pads or truncates b into a Hash
func BytesToHash(b []byte) Hash {
	var h Hash

	size := len(b)
	min := min(size, HashLength)

	copy(h[HashLength-min:], b[len(b)-min:])

	return h
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToHex(h[:])
}

// IsZero reports whether the hash is all zeroes
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// String renders the full, lowercase, 0x-prefixed address
func (a Address) String() string {
	return hex.EncodeToHex(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

// IsZero reports whether the address is the zero address
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// BytesToAddress left-pads or truncates b into an Address
func BytesToAddress(b []byte) Address {
	var a Address

	size := len(b)
	min := min(size, AddressLength)

	copy(a[AddressLength-min:], b[len(b)-min:])

	return a
}

func StringToHash(str string) Hash {
	return BytesToHash(stringToBytes(str))
}

func StringToAddress(str string) Address {
	return BytesToAddress(stringToBytes(str))
}

// ParseAddress parses a 0x-prefixed hex address and rejects anything that is not exactly 20 bytes
func ParseAddress(str string) (Address, error) {
	raw, err := hex.DecodeHex(str)
	if err != nil {
		return ZeroAddress, fmt.Errorf("address %s is not valid hex: %w", str, err)
	}

	if len(raw) != AddressLength {
		return ZeroAddress, fmt.Errorf("address %s: %w", str, errInvalidAddressLength)
	}

	return BytesToAddress(raw), nil
}

// ParseHash parses a 0x-prefixed hex hash of exactly 32 bytes
func ParseHash(str string) (Hash, error) {
	raw, err := hex.DecodeHex(str)
	if err != nil {
		return ZeroHash, fmt.Errorf("hash %s is not valid hex: %w", str, err)
	}

	if len(raw) != HashLength {
		return ZeroHash, fmt.Errorf("hash %s has invalid length %d", str, len(raw))
	}

	return BytesToHash(raw), nil
}

func stringToBytes(str string) []byte {
	str = strings.TrimPrefix(str, "0x")
	if len(str)%2 == 1 {
		str = "0" + str
	}

	b, _ := hex.DecodeString(str)

	return b
}

// UnmarshalText parses a hash in hex syntax.
func (h *Hash) UnmarshalText(input []byte) error {
	*h = BytesToHash(stringToBytes(string(input)))

	return nil
}

// UnmarshalText parses an address in hex syntax.
func (a *Address) UnmarshalText(input []byte) error {
	buf := stringToBytes(string(input))
	if len(buf) != AddressLength {
		return errInvalidAddressLength
	}

	*a = BytesToAddress(buf)

	return nil
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
