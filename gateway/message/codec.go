package message

import (
	"errors"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/umbracle/fastrlp"
)

// ErrInvalidEncoding is returned for malformed message bytes
var ErrInvalidEncoding = errors.New("invalid message encoding")

// MarshalRLPTo appends the canonical encoding of m to dst
func (m *Message) MarshalRLPTo(dst []byte) []byte {
	ar := fastrlp.DefaultArenaPool.Get()
	dst = m.marshalRLPWith(ar).MarshalTo(dst)
	fastrlp.DefaultArenaPool.Put(ar)

	return dst
}

// Encode returns the canonical encoding of m
func (m *Message) Encode() []byte {
	return m.MarshalRLPTo(nil)
}

func (m *Message) marshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	vv := ar.NewArray()
	vv.Set(ar.NewUint(uint64(m.Kind)))

	switch m.Kind {
	case KindPayload:
		vv.Set(ar.NewCopyBytes(m.Payload))
	case KindPack:
		if len(m.Pack) == 0 {
			vv.Set(ar.NewNullArray())
		} else {
			items := ar.NewArray()
			for _, sub := range m.Pack {
				items.Set(sub.marshalRLPWith(ar))
			}

			vv.Set(items)
		}
	case KindProof:
		vv.Set(ar.NewCopyBytes(m.Proof.Bytes()))
	case KindForwarded:
		vv.Set(ar.NewUint(uint64(m.Forward.Domain.Kind)))
		vv.Set(ar.NewUint(m.Forward.Domain.ChainID))
		vv.Set(ar.NewCopyBytes(m.Forward.Contract.Bytes()))
		vv.Set(m.Forward.Message.marshalRLPWith(ar))
	}

	return vv
}

// Decode parses the canonical encoding produced by Encode
func Decode(input []byte) (*Message, error) {
	m := &Message{}
	if err := m.UnmarshalRLP(input); err != nil {
		return nil, err
	}

	return m, nil
}

// UnmarshalRLP decodes input into m
func (m *Message) UnmarshalRLP(input []byte) error {
	pr := fastrlp.DefaultParserPool.Get()
	defer fastrlp.DefaultParserPool.Put(pr)

	v, err := pr.Parse(input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}

	return m.unmarshalRLPFrom(v, false, false)
}

func (m *Message) unmarshalRLPFrom(v *fastrlp.Value, inPack, inForward bool) error {
	elems, err := v.GetElems()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}

	if len(elems) == 0 {
		return fmt.Errorf("%w: missing kind", ErrInvalidEncoding)
	}

	kind, err := elems[0].GetUint64()
	if err != nil {
		return fmt.Errorf("%w: kind: %w", ErrInvalidEncoding, err)
	}

	m.Kind = Kind(kind)

	switch m.Kind {
	case KindPayload:
		if len(elems) != 2 {
			return fmt.Errorf("%w: payload expects 2 elements, found %d", ErrInvalidEncoding, len(elems))
		}

		if m.Payload, err = elems[1].GetBytes(nil); err != nil {
			return fmt.Errorf("%w: payload: %w", ErrInvalidEncoding, err)
		}
	case KindPack:
		if inPack {
			return ErrNestedPack
		}

		if len(elems) != 2 {
			return fmt.Errorf("%w: pack expects 2 elements, found %d", ErrInvalidEncoding, len(elems))
		}

		items, err := elems[1].GetElems()
		if err != nil {
			return fmt.Errorf("%w: pack items: %w", ErrInvalidEncoding, err)
		}

		if len(items) > MaxPacked {
			return fmt.Errorf("%w: %d elements", ErrPackFull, len(items))
		}

		m.Pack = make([]*Message, len(items))
		for i, item := range items {
			sub := &Message{}
			if err := sub.unmarshalRLPFrom(item, true, inForward); err != nil {
				return err
			}

			m.Pack[i] = sub
		}
	case KindProof:
		if len(elems) != 2 {
			return fmt.Errorf("%w: proof expects 2 elements, found %d", ErrInvalidEncoding, len(elems))
		}

		if err := elems[1].GetHash(m.Proof[:]); err != nil {
			return fmt.Errorf("%w: proof hash: %w", ErrInvalidEncoding, err)
		}
	case KindForwarded:
		if inForward {
			return ErrAlreadyForwarded
		}

		if len(elems) != 5 {
			return fmt.Errorf("%w: forwarded expects 5 elements, found %d", ErrInvalidEncoding, len(elems))
		}

		fwd := &Forward{Message: &Message{}}

		domainKind, err := elems[1].GetUint64()
		if err != nil {
			return fmt.Errorf("%w: forward domain: %w", ErrInvalidEncoding, err)
		}

		if fwd.Domain.ChainID, err = elems[2].GetUint64(); err != nil {
			return fmt.Errorf("%w: forward chain id: %w", ErrInvalidEncoding, err)
		}

		fwd.Domain.Kind = types.DomainKind(domainKind)
		if err := fwd.Domain.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
		}

		if err := elems[3].GetAddr(fwd.Contract[:]); err != nil {
			return fmt.Errorf("%w: forward contract: %w", ErrInvalidEncoding, err)
		}

		if err := fwd.Message.unmarshalRLPFrom(elems[4], inPack, true); err != nil {
			return err
		}

		m.Forward = fwd
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidEncoding, kind)
	}

	return nil
}
