package exception

import "github.com/yanun0323/errors"

// Session errors
var (
	ErrSessionDestroyed = errors.New("session: used after destroy")
	ErrSessionStarted   = errors.New("session: already started")
	ErrSessionNotReady  = errors.New("session: not started")
	ErrRequestRejected  = errors.New("session: engine rejected request")
	ErrEngineReleased   = errors.New("engine: released")
	ErrNotLoggedIn      = errors.New("gateway: not logged in")
)
