package schema

// EventKind identifies one asynchronous callback of the native engine.
type EventKind uint16

const (
	EventUnknown EventKind = iota
	EventFrontConnected
	EventFrontDisconnected
	EventHeartBeatWarning
	EventRspUserLogin
	EventRspUserLogout
	EventRspError
	EventRspSubMarketData
	EventRspUnSubMarketData
	EventRspSubForQuoteRsp
	EventRspUnSubForQuoteRsp
	EventRtnDepthMarketData
	EventRtnForQuoteRsp
	EventRspOrderInsert
	EventRspOrderAction
	EventRtnOrder
	EventRtnTrade
	EventErrRtnOrderInsert
	EventRspQryInvestorPosition
	EventRspQryTradingAccount

	numEventKinds
)

// NumEventKinds is the size of tables indexed by EventKind.
const NumEventKinds = int(numEventKinds)

// Shape describes the parameter layout a handler receives for an event kind.
type Shape uint8

const (
	// ShapeNotify handlers take no arguments.
	ShapeNotify Shape = iota
	// ShapeReason handlers take a single int (reason code or time lapse).
	ShapeReason
	// ShapeRsp handlers take (record, rspInfo, requestID, isLast).
	ShapeRsp
	// ShapeInfo handlers take (rspInfo, requestID, isLast).
	ShapeInfo
	// ShapeRtn handlers take (record).
	ShapeRtn
	// ShapeErrRtn handlers take (record, rspInfo).
	ShapeErrRtn
)

// RecordType identifies the fixed-layout record carried by an event.
type RecordType uint8

const (
	RecordNone RecordType = iota
	RecordRspInfo
	RecordRspUserLogin
	RecordUserLogout
	RecordSpecificInstrument
	RecordDepthMarketData
	RecordForQuoteRsp
	RecordInputOrder
	RecordInputOrderAction
	RecordOrder
	RecordTrade
	RecordInvestorPosition
	RecordTradingAccount
	RecordReqUserLogin
	RecordQryInvestorPosition
	RecordQryTradingAccount

	numRecordTypes
)

// NumRecordTypes is the size of tables indexed by RecordType.
const NumRecordTypes = int(numRecordTypes)

// EventSpec is the static description of one event kind.
type EventSpec struct {
	Kind   EventKind
	Name   string
	Shape  Shape
	Record RecordType
}

var eventSpecs = [NumEventKinds]EventSpec{
	EventUnknown:                {EventUnknown, "Unknown", ShapeNotify, RecordNone},
	EventFrontConnected:         {EventFrontConnected, "FrontConnected", ShapeNotify, RecordNone},
	EventFrontDisconnected:      {EventFrontDisconnected, "FrontDisconnected", ShapeReason, RecordNone},
	EventHeartBeatWarning:       {EventHeartBeatWarning, "HeartBeatWarning", ShapeReason, RecordNone},
	EventRspUserLogin:           {EventRspUserLogin, "RspUserLogin", ShapeRsp, RecordRspUserLogin},
	EventRspUserLogout:          {EventRspUserLogout, "RspUserLogout", ShapeRsp, RecordUserLogout},
	EventRspError:               {EventRspError, "RspError", ShapeInfo, RecordNone},
	EventRspSubMarketData:       {EventRspSubMarketData, "RspSubMarketData", ShapeRsp, RecordSpecificInstrument},
	EventRspUnSubMarketData:     {EventRspUnSubMarketData, "RspUnSubMarketData", ShapeRsp, RecordSpecificInstrument},
	EventRspSubForQuoteRsp:      {EventRspSubForQuoteRsp, "RspSubForQuoteRsp", ShapeRsp, RecordSpecificInstrument},
	EventRspUnSubForQuoteRsp:    {EventRspUnSubForQuoteRsp, "RspUnSubForQuoteRsp", ShapeRsp, RecordSpecificInstrument},
	EventRtnDepthMarketData:     {EventRtnDepthMarketData, "RtnDepthMarketData", ShapeRtn, RecordDepthMarketData},
	EventRtnForQuoteRsp:         {EventRtnForQuoteRsp, "RtnForQuoteRsp", ShapeRtn, RecordForQuoteRsp},
	EventRspOrderInsert:         {EventRspOrderInsert, "RspOrderInsert", ShapeRsp, RecordInputOrder},
	EventRspOrderAction:         {EventRspOrderAction, "RspOrderAction", ShapeRsp, RecordInputOrderAction},
	EventRtnOrder:               {EventRtnOrder, "RtnOrder", ShapeRtn, RecordOrder},
	EventRtnTrade:               {EventRtnTrade, "RtnTrade", ShapeRtn, RecordTrade},
	EventErrRtnOrderInsert:      {EventErrRtnOrderInsert, "ErrRtnOrderInsert", ShapeErrRtn, RecordInputOrder},
	EventRspQryInvestorPosition: {EventRspQryInvestorPosition, "RspQryInvestorPosition", ShapeRsp, RecordInvestorPosition},
	EventRspQryTradingAccount:   {EventRspQryTradingAccount, "RspQryTradingAccount", ShapeRsp, RecordTradingAccount},
}

// Spec returns the static description of the kind.
func (k EventKind) Spec() EventSpec {
	if int(k) >= NumEventKinds {
		return eventSpecs[EventUnknown]
	}
	return eventSpecs[k]
}

func (k EventKind) String() string {
	return k.Spec().Name
}

// Method is the handler method name a target exports for this kind.
func (k EventKind) Method() string {
	return "On" + k.Spec().Name
}

// Valid reports whether k names a real event kind.
func (k EventKind) Valid() bool {
	return k > EventUnknown && int(k) < NumEventKinds
}

// Lifecycle reports whether k is a connection lifecycle event.
func (k EventKind) Lifecycle() bool {
	return k == EventFrontConnected || k == EventFrontDisconnected
}

// EventKinds returns every valid event kind in declaration order.
func EventKinds() []EventKind {
	out := make([]EventKind, 0, NumEventKinds-1)
	for k := EventKind(1); int(k) < NumEventKinds; k++ {
		out = append(out, k)
	}
	return out
}

// ParseEventKind accepts either the bare name ("RspUserLogin") or the
// handler method name ("OnRspUserLogin").
func ParseEventKind(name string) (EventKind, bool) {
	for _, k := range EventKinds() {
		if name == k.String() || name == k.Method() {
			return k, true
		}
	}
	return EventUnknown, false
}
