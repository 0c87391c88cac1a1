// Package message implements the gateway message model: business payloads,
// bounded packs of messages, hash-only proofs and forwarded envelopes.
package message

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/helper/keccak"
	"github.com/0xPolygon/polygon-gateway/types"
)

// MaxPacked is the maximum number of messages a single Pack can hold
const MaxPacked = 16

// Kind is the discriminant of the Message union
type Kind uint8

const (
	KindPayload Kind = iota + 1
	KindPack
	KindProof
	KindForwarded
)

func (k Kind) String() string {
	switch k {
	case KindPayload:
		return "payload"
	case KindPack:
		return "pack"
	case KindProof:
		return "proof"
	case KindForwarded:
		return "forwarded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

var (
	ErrPackFull         = errors.New("pack capacity exceeded")
	ErrNestedPack       = errors.New("a pack cannot contain another pack")
	ErrAlreadyForwarded = errors.New("message is already forwarded")
	ErrNotForwarded     = errors.New("message is not forwarded")
)

// Forward annotates a message with the intermediate domain and contract it transits
type Forward struct {
	Domain   types.Domain
	Contract types.Address
	Message  *Message
}

// Message is a closed union selected by Kind. Only the field matching Kind is populated.
type Message struct {
	Kind    Kind
	Payload []byte
	Pack    []*Message
	Proof   types.Hash
	Forward *Forward
}

// NewPayload creates a business payload message
func NewPayload(payload []byte) *Message {
	return &Message{Kind: KindPayload, Payload: payload}
}

// NewProof creates a hash-only proof message
func NewProof(hash types.Hash) *Message {
	return &Message{Kind: KindProof, Proof: hash}
}

// Empty returns the identity element for packing
func Empty() *Message {
	return &Message{Kind: KindPack, Pack: []*Message{}}
}

// IsEmpty reports whether the message is a pack without elements
func (m *Message) IsEmpty() bool {
	return m.Kind == KindPack && len(m.Pack) == 0
}

// PackWith folds other into m. A pack is extended in place, any other message is
// turned into Pack([m, other]). Packs never exceed MaxPacked elements.
func (m *Message) PackWith(other *Message) error {
	if other.Kind == KindPack {
		return ErrNestedPack
	}

	if m.Kind == KindPack {
		if len(m.Pack) >= MaxPacked {
			return fmt.Errorf("%w: limit %d", ErrPackFull, MaxPacked)
		}

		m.Pack = append(m.Pack, other)

		return nil
	}

	first := *m
	*m = Message{Kind: KindPack, Pack: []*Message{&first, other}}

	return nil
}

// Submessages decomposes a pack into its elements, any other message yields itself
func (m *Message) Submessages() []*Message {
	if m.Kind != KindPack {
		return []*Message{m}
	}

	result := make([]*Message, len(m.Pack))
	copy(result, m.Pack)

	return result
}

// Hash is the keccak-256 digest of the canonical encoding
func (m *Message) Hash() types.Hash {
	return types.BytesToHash(keccak.Keccak256(nil, m.MarshalRLPTo(nil)))
}

// ToProof returns the proof that an independent full submission of m would confirm
func (m *Message) ToProof() *Message {
	if m.Kind == KindProof {
		return NewProof(m.Proof)
	}

	return NewProof(m.Hash())
}

// TryWrapForward annotates m with the domain and contract of a relay hop
func (m *Message) TryWrapForward(domain types.Domain, contract types.Address) (*Message, error) {
	if m.Kind == KindForwarded {
		return nil, ErrAlreadyForwarded
	}

	return &Message{
		Kind: KindForwarded,
		Forward: &Forward{
			Domain:   domain,
			Contract: contract,
			Message:  m,
		},
	}, nil
}

// UnwrapForwarded returns the forwarding annotation and inner message
func (m *Message) UnwrapForwarded() (*Forward, error) {
	if m.Kind != KindForwarded || m.Forward == nil {
		return nil, ErrNotForwarded
	}

	return m.Forward, nil
}

// Equal compares two messages structurally
func (m *Message) Equal(other *Message) bool {
	if m == nil || other == nil {
		return m == other
	}

	if m.Kind != other.Kind {
		return false
	}

	switch m.Kind {
	case KindPayload:
		return bytes.Equal(m.Payload, other.Payload)
	case KindProof:
		return m.Proof == other.Proof
	case KindPack:
		if len(m.Pack) != len(other.Pack) {
			return false
		}

		for i := range m.Pack {
			if !m.Pack[i].Equal(other.Pack[i]) {
				return false
			}
		}

		return true
	case KindForwarded:
		return m.Forward.Domain == other.Forward.Domain &&
			m.Forward.Contract == other.Forward.Contract &&
			m.Forward.Message.Equal(other.Forward.Message)
	default:
		return false
	}
}

func (m *Message) String() string {
	switch m.Kind {
	case KindPayload:
		return fmt.Sprintf("payload(%d bytes)", len(m.Payload))
	case KindPack:
		return fmt.Sprintf("pack(%d)", len(m.Pack))
	case KindProof:
		return fmt.Sprintf("proof(%s)", m.Proof)
	case KindForwarded:
		return fmt.Sprintf("forwarded(%s, %s, %s)", m.Forward.Domain, m.Forward.Contract, m.Forward.Message)
	default:
		return m.Kind.String()
	}
}
