package events

import (
	"fmt"

	"github.com/0xPolygon/polygon-gateway/types"
)

// Type is the kind of a gateway event
type Type string

const (
	MessageSent             Type = "MessageSent"
	InboundMessageConfirmed Type = "InboundMessageConfirmed"
	MessageSubmitted        Type = "MessageSubmitted"
	MessageExecutionSuccess Type = "MessageExecutionSuccess"
	MessageExecutionFailure Type = "MessageExecutionFailure"
	RoutersSet              Type = "RoutersSet"
	PendingMatchPurged      Type = "PendingMatchPurged"
	RecoveryInitiated       Type = "RecoveryInitiated"
	RecoveryDisputed        Type = "RecoveryDisputed"
	RecoveryExecuted        Type = "RecoveryExecuted"
)

// Event is a state change announced by the gateway. Fields irrelevant for the type are zero.
type Event struct {
	ID      string           `json:"id"`
	Type    Type             `json:"type"`
	Domain  types.Domain     `json:"domain"`
	Hash    types.Hash       `json:"hash"`
	Nonce   types.Nonce      `json:"nonce,omitempty"`
	Router  types.RouterID   `json:"router,omitempty"`
	Routers []types.RouterID `json:"routers,omitempty"`
	// Message is the encoded message of the execution events
	Message []byte `json:"message,omitempty"`
	// Proof marks a MessageSent event that carried only the message hash
	Proof bool   `json:"proof,omitempty"`
	Error string `json:"error,omitempty"`
}

func (e *Event) String() string {
	switch e.Type {
	case MessageSubmitted, MessageExecutionSuccess:
		return fmt.Sprintf("%s domain=%s nonce=%d", e.Type, e.Domain, e.Nonce)
	case MessageExecutionFailure:
		return fmt.Sprintf("%s domain=%s nonce=%d error=%q", e.Type, e.Domain, e.Nonce, e.Error)
	case RoutersSet:
		return fmt.Sprintf("%s domain=%s routers=%v", e.Type, e.Domain, e.Routers)
	default:
		return fmt.Sprintf("%s domain=%s hash=%s router=%s", e.Type, e.Domain, e.Hash, e.Router)
	}
}
