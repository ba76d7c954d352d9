//go:build ctpapi

package ctpapi

/*
#include "ctp_shim.h"
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"ctpbridge/internal/native"
	"ctpbridge/internal/schema"
)

//export ctpapi_on_event
func ctpapi_on_event(handle C.uintptr_t, ev *C.ctp_event) {
	if handle == 0 || ev == nil {
		return
	}
	e, ok := cgo.Handle(handle).Value().(*Engine)
	if !ok {
		return
	}
	holder := e.spi.Load()
	if holder == nil || holder.spi == nil {
		return
	}
	dispatch(holder.spi, schema.EventKind(ev.kind), copyRecord(ev.rec, ev.rec_len), copyRecord(ev.info, ev.info_len),
		int(ev.request_id), ev.is_last != 0, int(ev.reason))
}

// copyRecord moves a record out of SDK memory, which is only valid for the
// duration of the callback.
func copyRecord(p unsafe.Pointer, n C.int32_t) native.Record {
	if p == nil || n <= 0 {
		return nil
	}
	return C.GoBytes(p, C.int(n))
}

func dispatch(spi native.Spi, kind schema.EventKind, rec, info native.Record, requestID int, isLast bool, reason int) {
	switch kind {
	case schema.EventFrontConnected:
		spi.OnFrontConnected()
	case schema.EventFrontDisconnected:
		spi.OnFrontDisconnected(reason)
	case schema.EventHeartBeatWarning:
		spi.OnHeartBeatWarning(reason)
	case schema.EventRspUserLogin:
		spi.OnRspUserLogin(rec, info, requestID, isLast)
	case schema.EventRspUserLogout:
		spi.OnRspUserLogout(rec, info, requestID, isLast)
	case schema.EventRspError:
		spi.OnRspError(info, requestID, isLast)
	case schema.EventRspSubMarketData:
		spi.OnRspSubMarketData(rec, info, requestID, isLast)
	case schema.EventRspUnSubMarketData:
		spi.OnRspUnSubMarketData(rec, info, requestID, isLast)
	case schema.EventRspSubForQuoteRsp:
		spi.OnRspSubForQuoteRsp(rec, info, requestID, isLast)
	case schema.EventRspUnSubForQuoteRsp:
		spi.OnRspUnSubForQuoteRsp(rec, info, requestID, isLast)
	case schema.EventRtnDepthMarketData:
		spi.OnRtnDepthMarketData(rec)
	case schema.EventRtnForQuoteRsp:
		spi.OnRtnForQuoteRsp(rec)
	case schema.EventRspOrderInsert:
		spi.OnRspOrderInsert(rec, info, requestID, isLast)
	case schema.EventRspOrderAction:
		spi.OnRspOrderAction(rec, info, requestID, isLast)
	case schema.EventRtnOrder:
		spi.OnRtnOrder(rec)
	case schema.EventRtnTrade:
		spi.OnRtnTrade(rec)
	case schema.EventErrRtnOrderInsert:
		spi.OnErrRtnOrderInsert(rec, info)
	case schema.EventRspQryInvestorPosition:
		spi.OnRspQryInvestorPosition(rec, info, requestID, isLast)
	case schema.EventRspQryTradingAccount:
		spi.OnRspQryTradingAccount(rec, info, requestID, isLast)
	}
}
