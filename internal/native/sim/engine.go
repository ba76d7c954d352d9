// Package sim is an in-process engine that answers requests the way a CTP
// front does, driving the Spi from its own pinned worker threads.
package sim

import (
	"hash/fnv"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/codec"
	"ctpbridge/internal/native"
	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

// Error ids reported in RspInfo.
const (
	ErrIDInvalidLogin  = 3
	ErrIDNotLoggedIn   = 6
	ErrIDBadOrderField = 15
	ErrIDOrderNotFound = 25
	ErrIDCannotCancel  = 26
)

const (
	stateNew int32 = iota
	stateRunning
	stateReleased
)

var _ native.Engine = (*Engine)(nil)

// Config scripts the simulated front.
type Config struct {
	// Workers is the number of callback threads. Defaults to 2.
	Workers  int
	BrokerID string
	UserID   string
	Password string
	// TradingDay is reported in login and market data. Defaults to today.
	TradingDay string
	// FillOrders makes every accepted order trade in full at its limit price.
	FillOrders bool
	// QueryInterval is the minimum gap between queries; faster queries are
	// refused with RetRateLimited. Zero disables the check.
	QueryInterval time.Duration
	Positions     []schema.InvestorPosition
	Account       schema.TradingAccount
}

// Engine simulates a trading front.
type Engine struct {
	cfg   Config
	spi   native.Spi
	front string

	state   atomic.Int32
	workers []*worker
	wg      sync.WaitGroup

	mu        sync.Mutex
	loggedIn  bool
	frontID   int32
	sessionID int32
	md        map[string]struct{}
	forQuote  map[string]struct{}
	orders    map[string]*schema.Order
	lastQuery time.Time

	sysID   atomic.Int64
	tradeID atomic.Int64
}

// New creates an engine. Nothing runs until Init.
func New(cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.TradingDay == "" {
		cfg.TradingDay = time.Now().Format("20060102")
	}
	e := &Engine{
		cfg:      cfg,
		frontID:  1,
		md:       make(map[string]struct{}),
		forQuote: make(map[string]struct{}),
		orders:   make(map[string]*schema.Order),
	}
	for i := 0; i < cfg.Workers; i++ {
		e.workers = append(e.workers, newWorker(i))
	}
	return e
}

func (e *Engine) RegisterSpi(spi native.Spi) {
	e.spi = spi
}

func (e *Engine) RegisterFront(addr string) {
	e.front = addr
}

// Init starts the worker threads and connects to the front.
func (e *Engine) Init() error {
	if e.spi == nil {
		return errors.Wrap(exception.ErrNilInstance, "spi not registered")
	}
	if e.front == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "front not registered")
	}
	if !e.state.CompareAndSwap(stateNew, stateRunning) {
		return errors.Wrap(exception.ErrSessionStarted, "engine already initialized")
	}

	var exit func()
	if te, ok := e.spi.(native.ThreadExiter); ok {
		exit = te.OnThreadExit
	}
	e.wg.Add(len(e.workers))
	for _, w := range e.workers {
		go w.run(&e.wg, exit)
	}
	logs.Infof("sim: engine started, front: %s, workers: %d", e.front, len(e.workers))

	e.post(0, func(spi native.Spi) { spi.OnFrontConnected() })
	return nil
}

// Release stops accepting requests, lets the workers drain and waits for
// them. It must not be called from a Spi callback.
func (e *Engine) Release() error {
	prev := e.state.Swap(stateReleased)
	if prev == stateReleased {
		return exception.ErrEngineReleased
	}
	if prev == stateNew {
		return nil
	}
	for _, w := range e.workers {
		w.stop()
	}
	e.wg.Wait()
	logs.Info("sim: engine released")
	return nil
}

// Threads returns the OS thread ids of the workers once they are running.
func (e *Engine) Threads() []int {
	out := make([]int, len(e.workers))
	for i, w := range e.workers {
		w.mu.Lock()
		out[i] = w.tid
		w.mu.Unlock()
	}
	return out
}

// Disconnect drops the connection with reason and reconnects. Login state
// and subscriptions are lost, as on a real front.
func (e *Engine) Disconnect(reason int) bool {
	e.mu.Lock()
	e.loggedIn = false
	e.frontID++
	clear(e.md)
	clear(e.forQuote)
	e.mu.Unlock()

	return e.post(0, func(spi native.Spi) {
		spi.OnFrontDisconnected(reason)
		spi.OnFrontConnected()
	})
}

// HeartBeatWarning reports a heartbeat gap.
func (e *Engine) HeartBeatWarning(timeLapse int) bool {
	return e.post(0, func(spi native.Spi) { spi.OnHeartBeatWarning(timeLapse) })
}

// PublishDepth delivers md to a subscribed instrument. It reports whether
// the instrument was subscribed.
func (e *Engine) PublishDepth(md schema.DepthMarketData) bool {
	e.mu.Lock()
	_, ok := e.md[md.InstrumentID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	if md.TradingDay == "" {
		md.TradingDay = e.cfg.TradingDay
	}
	rec, err := codec.DepthMarketData.Encode(nil, md)
	if err != nil {
		logs.Errorf("sim: encode depth %s, err: %+v", md.InstrumentID, err)
		return false
	}
	return e.post(keyOf(md.InstrumentID), func(spi native.Spi) { spi.OnRtnDepthMarketData(rec) })
}

// PublishForQuote delivers a request-for-quote to a subscribed instrument.
func (e *Engine) PublishForQuote(rsp schema.ForQuoteRsp) bool {
	e.mu.Lock()
	_, ok := e.forQuote[rsp.InstrumentID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	rec, err := codec.ForQuoteRsp.Encode(nil, rsp)
	if err != nil {
		logs.Errorf("sim: encode for quote %s, err: %+v", rsp.InstrumentID, err)
		return false
	}
	return e.post(keyOf(rsp.InstrumentID), func(spi native.Spi) { spi.OnRtnForQuoteRsp(rec) })
}

func (e *Engine) ReqUserLogin(req native.Record, requestID int) int {
	if !e.running() {
		return native.RetNetwork
	}
	login, _ := codec.ReqUserLogin.Decode(req)

	e.mu.Lock()
	ok := login.BrokerID == e.cfg.BrokerID && login.UserID == e.cfg.UserID && login.Password == e.cfg.Password
	var rsp schema.RspUserLogin
	if ok {
		e.loggedIn = true
		e.sessionID++
		rsp = schema.RspUserLogin{
			TradingDay:  e.cfg.TradingDay,
			LoginTime:   time.Now().Format("15:04:05"),
			BrokerID:    login.BrokerID,
			UserID:      login.UserID,
			SystemName:  "SIM",
			FrontID:     e.frontID,
			SessionID:   e.sessionID,
			MaxOrderRef: strconv.Itoa(len(e.orders)),
		}
	}
	e.mu.Unlock()

	if !ok {
		info := rspInfo(ErrIDInvalidLogin, "CTP:不合法的登录")
		e.post(uint64(requestID), func(spi native.Spi) { spi.OnRspUserLogin(nil, info, requestID, true) })
		return native.RetOK
	}
	rec := encode(codec.RspUserLogin, rsp)
	info := rspInfo(0, "")
	e.post(uint64(requestID), func(spi native.Spi) { spi.OnRspUserLogin(rec, info, requestID, true) })
	return native.RetOK
}

func (e *Engine) ReqUserLogout(req native.Record, requestID int) int {
	if !e.running() {
		return native.RetNetwork
	}
	e.mu.Lock()
	e.loggedIn = false
	e.mu.Unlock()

	logout := append(native.Record(nil), req...)
	info := rspInfo(0, "")
	e.post(uint64(requestID), func(spi native.Spi) { spi.OnRspUserLogout(logout, info, requestID, true) })
	return native.RetOK
}

func (e *Engine) SubscribeMarketData(instruments []string) int {
	return e.subscribe(instruments, e.md, true, native.Spi.OnRspSubMarketData)
}

func (e *Engine) UnSubscribeMarketData(instruments []string) int {
	return e.subscribe(instruments, e.md, false, native.Spi.OnRspUnSubMarketData)
}

func (e *Engine) SubscribeForQuoteRsp(instruments []string) int {
	return e.subscribe(instruments, e.forQuote, true, native.Spi.OnRspSubForQuoteRsp)
}

func (e *Engine) UnSubscribeForQuoteRsp(instruments []string) int {
	return e.subscribe(instruments, e.forQuote, false, native.Spi.OnRspUnSubForQuoteRsp)
}

type ackFunc func(spi native.Spi, instrument, info native.Record, requestID int, isLast bool)

// subscribe acknowledges every instrument in one page sequence on one
// worker, isLast set on the final one.
func (e *Engine) subscribe(instruments []string, set map[string]struct{}, add bool, ack ackFunc) int {
	if !e.running() {
		return native.RetNetwork
	}
	if len(instruments) == 0 {
		return native.RetOK
	}

	e.mu.Lock()
	for _, id := range instruments {
		if add {
			set[id] = struct{}{}
		} else {
			delete(set, id)
		}
	}
	e.mu.Unlock()

	recs := make([]native.Record, len(instruments))
	for i, id := range instruments {
		recs[i] = encode(codec.SpecificInstrument, schema.SpecificInstrument{InstrumentID: id})
	}
	info := rspInfo(0, "")
	e.post(keyOf(instruments[0]), func(spi native.Spi) {
		for i, rec := range recs {
			ack(spi, rec, info, 0, i == len(recs)-1)
		}
	})
	return native.RetOK
}

func (e *Engine) ReqOrderInsert(req native.Record, requestID int) int {
	if !e.running() {
		return native.RetNetwork
	}
	in, _ := codec.InputOrder.Decode(req)
	echo := append(native.Record(nil), req...)

	reject := func(id int32, msg string) int {
		info := rspInfo(id, msg)
		e.post(keyOf(in.OrderRef), func(spi native.Spi) {
			spi.OnRspOrderInsert(echo, info, requestID, true)
			spi.OnErrRtnOrderInsert(echo, info)
		})
		return native.RetOK
	}

	e.mu.Lock()
	loggedIn := e.loggedIn
	_, dup := e.orders[in.OrderRef]
	e.mu.Unlock()
	switch {
	case !loggedIn:
		return reject(ErrIDNotLoggedIn, "CTP:还没有登录")
	case dup, in.OrderRef == "", in.VolumeTotalOriginal <= 0, in.LimitPrice <= 0:
		return reject(ErrIDBadOrderField, "CTP:报单字段有误")
	}

	order := schema.Order{
		BrokerID:            in.BrokerID,
		InvestorID:          in.InvestorID,
		InstrumentID:        in.InstrumentID,
		OrderRef:            in.OrderRef,
		Direction:           in.Direction,
		LimitPrice:          in.LimitPrice,
		VolumeTotalOriginal: in.VolumeTotalOriginal,
		ExchangeID:          in.ExchangeID,
		OrderSysID:          strconv.FormatInt(e.sysID.Add(1), 10),
		OrderStatus:         schema.OrderStatusNoTradeQueueing,
		VolumeTotal:         in.VolumeTotalOriginal,
		InsertTime:          time.Now().Format("15:04:05"),
		StatusMsg:           "未成交",
	}
	e.mu.Lock()
	order.FrontID, order.SessionID = e.frontID, e.sessionID
	e.orders[order.OrderRef] = &order
	e.mu.Unlock()

	queued := encode(codec.Order, order)
	var filled, trade native.Record
	if e.cfg.FillOrders {
		done := order
		done.OrderStatus = schema.OrderStatusAllTraded
		done.VolumeTraded = done.VolumeTotalOriginal
		done.VolumeTotal = 0
		done.StatusMsg = "全部成交"
		e.mu.Lock()
		*e.orders[order.OrderRef] = done
		e.mu.Unlock()

		now := time.Now()
		filled = encode(codec.Order, done)
		trade = encode(codec.Trade, schema.Trade{
			BrokerID:     in.BrokerID,
			InvestorID:   in.InvestorID,
			InstrumentID: in.InstrumentID,
			OrderRef:     in.OrderRef,
			ExchangeID:   in.ExchangeID,
			TradeID:      strconv.FormatInt(e.tradeID.Add(1), 10),
			Direction:    in.Direction,
			OrderSysID:   order.OrderSysID,
			OffsetFlag:   offsetOf(in.CombOffsetFlag),
			Price:        in.LimitPrice,
			Volume:       in.VolumeTotalOriginal,
			TradeDate:    now.Format("20060102"),
			TradeTime:    now.Format("15:04:05"),
			TradingDay:   e.cfg.TradingDay,
		})
	}

	e.post(keyOf(in.OrderRef), func(spi native.Spi) {
		spi.OnRtnOrder(queued)
		if filled != nil {
			spi.OnRtnOrder(filled)
			spi.OnRtnTrade(trade)
		}
	})
	return native.RetOK
}

func (e *Engine) ReqOrderAction(req native.Record, requestID int) int {
	if !e.running() {
		return native.RetNetwork
	}
	action, _ := codec.InputOrderAction.Decode(req)
	echo := append(native.Record(nil), req...)

	e.mu.Lock()
	order, ok := e.orders[action.OrderRef]
	var canceled schema.Order
	cancelable := ok && (order.OrderStatus == schema.OrderStatusNoTradeQueueing || order.OrderStatus == schema.OrderStatusPartTradedQueueing)
	if cancelable {
		order.OrderStatus = schema.OrderStatusCanceled
		order.VolumeTotal = 0
		order.StatusMsg = "已撤单"
		canceled = *order
	}
	e.mu.Unlock()

	if !cancelable {
		info := rspInfo(ErrIDCannotCancel, "CTP:报单已全成交或已撤销，不能再撤")
		if !ok {
			info = rspInfo(ErrIDOrderNotFound, "CTP:撤单找不到相应报单")
		}
		e.post(keyOf(action.OrderRef), func(spi native.Spi) { spi.OnRspOrderAction(echo, info, requestID, true) })
		return native.RetOK
	}

	rec := encode(codec.Order, canceled)
	e.post(keyOf(action.OrderRef), func(spi native.Spi) { spi.OnRtnOrder(rec) })
	return native.RetOK
}

func (e *Engine) ReqQryInvestorPosition(req native.Record, requestID int) int {
	if code := e.admitQuery(); code != native.RetOK {
		return code
	}
	qry, _ := codec.QryInvestorPosition.Decode(req)

	var pages []native.Record
	for _, p := range e.cfg.Positions {
		if qry.InstrumentID != "" && qry.InstrumentID != p.InstrumentID {
			continue
		}
		pages = append(pages, encode(codec.InvestorPosition, p))
	}

	e.post(uint64(requestID), func(spi native.Spi) {
		if len(pages) == 0 {
			spi.OnRspQryInvestorPosition(nil, nil, requestID, true)
			return
		}
		for i, page := range pages {
			spi.OnRspQryInvestorPosition(page, nil, requestID, i == len(pages)-1)
		}
	})
	return native.RetOK
}

func (e *Engine) ReqQryTradingAccount(_ native.Record, requestID int) int {
	if code := e.admitQuery(); code != native.RetOK {
		return code
	}
	account := e.cfg.Account
	if account.TradingDay == "" {
		account.TradingDay = e.cfg.TradingDay
	}
	rec := encode(codec.TradingAccount, account)
	e.post(uint64(requestID), func(spi native.Spi) { spi.OnRspQryTradingAccount(rec, nil, requestID, true) })
	return native.RetOK
}

func (e *Engine) admitQuery() int {
	if !e.running() {
		return native.RetNetwork
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loggedIn {
		return native.RetNetwork
	}
	now := time.Now()
	if e.cfg.QueryInterval > 0 && !e.lastQuery.IsZero() && now.Sub(e.lastQuery) < e.cfg.QueryInterval {
		return native.RetRateLimited
	}
	e.lastQuery = now
	return native.RetOK
}

func (e *Engine) running() bool {
	return e.state.Load() == stateRunning
}

// post runs fn on the worker owning key.
func (e *Engine) post(key uint64, fn func(native.Spi)) bool {
	if !e.running() {
		return false
	}
	spi := e.spi
	return e.workers[key%uint64(len(e.workers))].post(func() { fn(spi) })
}

func keyOf(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func offsetOf(comb string) schema.OffsetFlag {
	if comb == "" {
		return schema.OffsetOpen
	}
	return schema.OffsetFlag(comb[0])
}

func rspInfo(id int32, msg string) native.Record {
	return encode(codec.RspInfo, schema.RspInfo{ErrorID: id, ErrorMsg: msg})
}

func encode[T any](c codec.Codec[T], v T) native.Record {
	rec, err := c.Encode(nil, v)
	if err != nil {
		logs.Errorf("sim: encode record %d, err: %+v", c.Type, err)
		return nil
	}
	return rec
}
