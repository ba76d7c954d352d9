//go:build ctpapi

package main

import (
	"ctpbridge/internal/native"
	"ctpbridge/internal/native/ctpapi"
)

func newNativeEngine(flowPath string) (native.Engine, error) {
	e, err := ctpapi.New(flowPath)
	if err != nil {
		return nil, err
	}
	return e, nil
}
