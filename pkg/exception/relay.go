package exception

import "github.com/yanun0323/errors"

// Relay errors
var (
	ErrRequiredBinding = errors.New("relay: required binding unresolved")
	ErrNilTarget       = errors.New("relay: nil callback target")
	ErrTargetReleased  = errors.New("relay: callback target released")
	ErrRelayClosed     = errors.New("relay: closed")
	ErrAttach          = errors.New("relay: attach thread failed")
	ErrHandlerPanic    = errors.New("relay: handler panicked")
)
