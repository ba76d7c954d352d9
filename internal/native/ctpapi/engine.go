//go:build ctpapi

// Package ctpapi binds the vendor SDK through a C shim. SDK threads enter Go
// through ctpapi_on_event; the engine they belong to is found by its
// runtime/cgo handle.
package ctpapi

/*
#cgo CFLAGS: -I${SRCDIR}
#cgo LDFLAGS: -L${SRCDIR}/lib -lctpshim -lthostmduserapi_se -lthosttraderapi_se -lstdc++

#include <stdlib.h>
#include "ctp_shim.h"
*/
import "C"

import (
	"os"
	"runtime/cgo"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/native"
	"ctpbridge/pkg/exception"
)

var _ native.Engine = (*Engine)(nil)

// Engine is a native.Engine backed by the SDK.
type Engine struct {
	handle cgo.Handle
	spi    atomic.Pointer[spiHolder]

	// mu guards ptr. Requests hold the read lock across the C call, so
	// Release never frees the SDK objects under a running request.
	mu       sync.RWMutex
	ptr      *C.ctp_engine
	released bool
}

type spiHolder struct {
	spi native.Spi
}

// New creates the SDK objects. flowPath must exist; the SDK writes its
// flow files there.
func New(flowPath string) (*Engine, error) {
	if _, err := os.Stat(flowPath); err != nil {
		return nil, errors.Wrapf(err, "flow path %s", flowPath)
	}
	e := &Engine{}
	e.handle = cgo.NewHandle(e)

	cpath := C.CString(flowPath)
	defer C.free(unsafe.Pointer(cpath))
	e.ptr = C.ctp_create(cpath, C.uintptr_t(e.handle))
	if e.ptr == nil {
		e.handle.Delete()
		return nil, errors.Wrap(exception.ErrInternal, "ctp_create returned nil")
	}
	return e, nil
}

func (e *Engine) RegisterSpi(spi native.Spi) {
	e.spi.Store(&spiHolder{spi: spi})
}

func (e *Engine) RegisterFront(addr string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.released {
		return
	}
	caddr := C.CString(addr)
	defer C.free(unsafe.Pointer(caddr))
	C.ctp_register_front(e.ptr, caddr)
}

func (e *Engine) Init() error {
	if e.spi.Load() == nil {
		return errors.Wrap(exception.ErrNilInstance, "spi not registered")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.released {
		return exception.ErrEngineReleased
	}
	if rc := C.ctp_init(e.ptr); rc != 0 {
		return errors.Wrapf(exception.ErrInternal, "ctp_init: %d", int(rc))
	}
	return nil
}

// Release joins the SDK threads, then frees the handle. No callback runs
// once it returns.
func (e *Engine) Release() error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return exception.ErrEngineReleased
	}
	e.released = true
	ptr := e.ptr
	e.ptr = nil
	e.mu.Unlock()

	// the lock is not held here: SDK threads may still issue requests from
	// callbacks until they are joined, and those must see released
	C.ctp_release(ptr)
	e.handle.Delete()
	logs.Info("ctpapi: engine released")
	return nil
}

func (e *Engine) request(op C.int, req native.Record, requestID int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.released {
		return native.RetNetwork
	}
	var p unsafe.Pointer
	if len(req) > 0 {
		// cgo pins the Go slice for the duration of the call; the shim
		// copies it into the SDK struct before returning.
		p = unsafe.Pointer(&req[0])
	}
	return int(C.ctp_request(e.ptr, op, p, C.int32_t(len(req)), C.int32_t(requestID)))
}

func (e *Engine) subscribe(op C.int, instruments []string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.released {
		return native.RetNetwork
	}
	if len(instruments) == 0 {
		return native.RetOK
	}
	arr := (**C.char)(C.malloc(C.size_t(len(instruments)) * C.size_t(unsafe.Sizeof(uintptr(0)))))
	defer C.free(unsafe.Pointer(arr))
	ids := unsafe.Slice(arr, len(instruments))
	for i, id := range instruments {
		ids[i] = C.CString(id)
	}
	defer func() {
		for _, p := range ids {
			C.free(unsafe.Pointer(p))
		}
	}()
	return int(C.ctp_subscribe(e.ptr, op, arr, C.int32_t(len(instruments))))
}

func (e *Engine) ReqUserLogin(req native.Record, requestID int) int {
	return e.request(C.CTP_REQ_LOGIN, req, requestID)
}

func (e *Engine) ReqUserLogout(req native.Record, requestID int) int {
	return e.request(C.CTP_REQ_LOGOUT, req, requestID)
}

func (e *Engine) ReqOrderInsert(req native.Record, requestID int) int {
	return e.request(C.CTP_REQ_ORDER_INSERT, req, requestID)
}

func (e *Engine) ReqOrderAction(req native.Record, requestID int) int {
	return e.request(C.CTP_REQ_ORDER_ACTION, req, requestID)
}

func (e *Engine) ReqQryInvestorPosition(req native.Record, requestID int) int {
	return e.request(C.CTP_REQ_QRY_POSITION, req, requestID)
}

func (e *Engine) ReqQryTradingAccount(req native.Record, requestID int) int {
	return e.request(C.CTP_REQ_QRY_ACCOUNT, req, requestID)
}

func (e *Engine) SubscribeMarketData(instruments []string) int {
	return e.subscribe(C.CTP_SUB_MARKET_DATA, instruments)
}

func (e *Engine) UnSubscribeMarketData(instruments []string) int {
	return e.subscribe(C.CTP_UNSUB_MARKET_DATA, instruments)
}

func (e *Engine) SubscribeForQuoteRsp(instruments []string) int {
	return e.subscribe(C.CTP_SUB_FOR_QUOTE, instruments)
}

func (e *Engine) UnSubscribeForQuoteRsp(instruments []string) int {
	return e.subscribe(C.CTP_UNSUB_FOR_QUOTE, instruments)
}
