//go:build !ctpapi

package main

import (
	"github.com/yanun0323/errors"

	"ctpbridge/internal/native"
	"ctpbridge/pkg/exception"
)

func newNativeEngine(string) (native.Engine, error) {
	return nil, errors.Wrap(exception.ErrInvalidArgument, "engine kind ctpapi needs a build with -tags ctpapi")
}
