// Package native defines the contract between the bridge and the native
// trading engine: the request surface the engine exposes and the callback
// surface (Spi) it drives from its own threads.
package native

// Record is one fixed-layout native record as laid out by internal/codec.
// An empty Record means the engine passed no record for that slot.
type Record []byte

// Absent reports whether the engine passed no record.
func (r Record) Absent() bool {
	return len(r) == 0
}

// Engine return codes for requests.
const (
	RetOK             = 0
	RetNetwork        = -1
	RetTooManyPending = -2
	RetRateLimited    = -3
)

// Spi is the single event sink registered with an engine. The engine calls
// it on threads it owns; each call blocks the engine thread until it
// returns.
type Spi interface {
	OnFrontConnected()
	OnFrontDisconnected(reason int)
	OnHeartBeatWarning(timeLapse int)

	OnRspUserLogin(login, info Record, requestID int, isLast bool)
	OnRspUserLogout(logout, info Record, requestID int, isLast bool)
	OnRspError(info Record, requestID int, isLast bool)

	OnRspSubMarketData(instrument, info Record, requestID int, isLast bool)
	OnRspUnSubMarketData(instrument, info Record, requestID int, isLast bool)
	OnRspSubForQuoteRsp(instrument, info Record, requestID int, isLast bool)
	OnRspUnSubForQuoteRsp(instrument, info Record, requestID int, isLast bool)
	OnRtnDepthMarketData(md Record)
	OnRtnForQuoteRsp(rsp Record)

	OnRspOrderInsert(order, info Record, requestID int, isLast bool)
	OnRspOrderAction(action, info Record, requestID int, isLast bool)
	OnRtnOrder(order Record)
	OnRtnTrade(trade Record)
	OnErrRtnOrderInsert(order, info Record)

	OnRspQryInvestorPosition(position, info Record, requestID int, isLast bool)
	OnRspQryTradingAccount(account, info Record, requestID int, isLast bool)
}

// ThreadExiter is implemented by sinks that keep per-thread state. An engine
// that owns its callback threads calls OnThreadExit on each of them after the
// last callback and before the thread stops.
type ThreadExiter interface {
	OnThreadExit()
}

// Engine is the request side of the native library. Request methods return
// one of the Ret* codes; completion arrives later through the Spi.
type Engine interface {
	RegisterSpi(spi Spi)
	RegisterFront(addr string)
	// Init starts the engine's threads and the connection to the front.
	Init() error
	// Release stops all engine threads. No Spi call is in flight or will
	// be delivered once Release returns.
	Release() error

	ReqUserLogin(req Record, requestID int) int
	ReqUserLogout(req Record, requestID int) int
	SubscribeMarketData(instruments []string) int
	UnSubscribeMarketData(instruments []string) int
	SubscribeForQuoteRsp(instruments []string) int
	UnSubscribeForQuoteRsp(instruments []string) int
	ReqOrderInsert(req Record, requestID int) int
	ReqOrderAction(req Record, requestID int) int
	ReqQryInvestorPosition(req Record, requestID int) int
	ReqQryTradingAccount(req Record, requestID int) int
}
