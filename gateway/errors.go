package gateway

import (
	"errors"

	"github.com/0xPolygon/polygon-gateway/gateway/state"
)

var (
	// configuration errors
	ErrUnauthorized                = errors.New("caller is not authorized")
	ErrMaxRouterCount              = errors.New("router count exceeds the maximum")
	ErrEmptyRouterList             = errors.New("router list is empty")
	ErrDuplicateRouterID           = errors.New("router list contains duplicates")
	ErrUnknownRouter               = errors.New("unknown router")
	ErrRouterConfigurationNotFound = errors.New("router configuration not found")
	ErrInvalidDomain               = errors.New("invalid domain")
	ErrHookAddressNotFound         = state.ErrHookAddressNotFound

	// outbound errors
	ErrBatchAlreadyStarted = errors.New("batch already started")
	ErrBatchNotStarted     = errors.New("batch not started")

	// inbound errors
	ErrUnauthorizedRelayer  = errors.New("relayer is not allowed for domain")
	ErrBadOrigin            = errors.New("bad origin")
	ErrForwardInfoMismatch  = errors.New("forwarded message does not match router forwarding info")
	ErrPendingMatchNotFound = errors.New("pending match not found")

	// queue errors
	ErrMessageNotFound   = errors.New("message not found")
	ErrMessageInProgress = errors.New("message is being processed")

	// recovery errors
	ErrRecoveryAlreadyInitiated = errors.New("recovery already initiated")
	ErrRecoveryNotFound         = errors.New("recovery not found")
	ErrRecoveryNotActive        = errors.New("recovery is not active")
	ErrDisputeWindowClosed      = errors.New("dispute window closed")
	ErrRecoveryDisputed         = errors.New("recovery was disputed")
	ErrDisputeWindowOpen        = errors.New("dispute window still open")
)
