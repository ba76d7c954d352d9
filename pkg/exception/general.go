package exception

import "github.com/yanun0323/errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrFieldTooLong    = errors.New("text does not fit native field")
	ErrInternal        = errors.New("internal error")
)
