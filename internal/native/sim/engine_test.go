package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ctpbridge/internal/codec"
	"ctpbridge/internal/native"
	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

type rawEvent struct {
	method    string
	rec       native.Record
	info      native.Record
	requestID int
	isLast    bool
	thread    int
}

// spy records every Spi call as raw records.
type spy struct {
	mu     sync.Mutex
	events []rawEvent
}

func (s *spy) add(ev rawEvent) {
	ev.thread = native.ThreadID()
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *spy) named(method string) []rawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []rawEvent
	for _, ev := range s.events {
		if ev.method == method {
			out = append(out, ev)
		}
	}
	return out
}

func (s *spy) rsp(method string) func(rec, info native.Record, requestID int, isLast bool) {
	return func(rec, info native.Record, requestID int, isLast bool) {
		s.add(rawEvent{method: method, rec: rec, info: info, requestID: requestID, isLast: isLast})
	}
}

func (s *spy) OnFrontConnected()         { s.add(rawEvent{method: "FrontConnected"}) }
func (s *spy) OnFrontDisconnected(r int) { s.add(rawEvent{method: "FrontDisconnected", requestID: r}) }
func (s *spy) OnHeartBeatWarning(lap int) {
	s.add(rawEvent{method: "HeartBeatWarning", requestID: lap})
}
func (s *spy) OnRspUserLogin(rec, info native.Record, id int, last bool) {
	s.rsp("RspUserLogin")(rec, info, id, last)
}
func (s *spy) OnRspUserLogout(rec, info native.Record, id int, last bool) {
	s.rsp("RspUserLogout")(rec, info, id, last)
}
func (s *spy) OnRspError(info native.Record, id int, last bool) {
	s.rsp("RspError")(nil, info, id, last)
}
func (s *spy) OnRspSubMarketData(rec, info native.Record, id int, last bool) {
	s.rsp("RspSubMarketData")(rec, info, id, last)
}
func (s *spy) OnRspUnSubMarketData(rec, info native.Record, id int, last bool) {
	s.rsp("RspUnSubMarketData")(rec, info, id, last)
}
func (s *spy) OnRspSubForQuoteRsp(rec, info native.Record, id int, last bool) {
	s.rsp("RspSubForQuoteRsp")(rec, info, id, last)
}
func (s *spy) OnRspUnSubForQuoteRsp(rec, info native.Record, id int, last bool) {
	s.rsp("RspUnSubForQuoteRsp")(rec, info, id, last)
}
func (s *spy) OnRtnDepthMarketData(rec native.Record) {
	s.add(rawEvent{method: "RtnDepthMarketData", rec: rec})
}
func (s *spy) OnRtnForQuoteRsp(rec native.Record) {
	s.add(rawEvent{method: "RtnForQuoteRsp", rec: rec})
}
func (s *spy) OnRspOrderInsert(rec, info native.Record, id int, last bool) {
	s.rsp("RspOrderInsert")(rec, info, id, last)
}
func (s *spy) OnRspOrderAction(rec, info native.Record, id int, last bool) {
	s.rsp("RspOrderAction")(rec, info, id, last)
}
func (s *spy) OnRtnOrder(rec native.Record) { s.add(rawEvent{method: "RtnOrder", rec: rec}) }
func (s *spy) OnRtnTrade(rec native.Record) { s.add(rawEvent{method: "RtnTrade", rec: rec}) }
func (s *spy) OnErrRtnOrderInsert(rec, info native.Record) {
	s.add(rawEvent{method: "ErrRtnOrderInsert", rec: rec, info: info})
}
func (s *spy) OnRspQryInvestorPosition(rec, info native.Record, id int, last bool) {
	s.rsp("RspQryInvestorPosition")(rec, info, id, last)
}
func (s *spy) OnRspQryTradingAccount(rec, info native.Record, id int, last bool) {
	s.rsp("RspQryTradingAccount")(rec, info, id, last)
}

var _ native.Spi = (*spy)(nil)

func testConfig() Config {
	return Config{
		Workers:    3,
		BrokerID:   "9999",
		UserID:     "u001",
		Password:   "secret",
		TradingDay: "20240102",
		Positions: []schema.InvestorPosition{
			{InstrumentID: "IF2401", Position: 1, PosiDirection: schema.PosiDirectionLong},
			{InstrumentID: "rb2405", Position: 2, PosiDirection: schema.PosiDirectionShort},
			{InstrumentID: "au2406", Position: 3, PosiDirection: schema.PosiDirectionLong},
		},
		Account: schema.TradingAccount{AccountID: "u001", Balance: 1_000_000, Available: 800_000},
	}
}

func start(t *testing.T, cfg Config) (*Engine, *spy) {
	t.Helper()
	s := &spy{}
	e := New(cfg)
	e.RegisterSpi(s)
	e.RegisterFront("tcp://sim")
	require.NoError(t, e.Init())
	t.Cleanup(func() { _ = e.Release() })
	require.Eventually(t, func() bool { return len(s.named("FrontConnected")) == 1 }, time.Second, time.Millisecond)
	return e, s
}

func login(t *testing.T, e *Engine, s *spy, password string, id int) rawEvent {
	t.Helper()
	req, err := codec.ReqUserLogin.Encode(nil, schema.ReqUserLogin{BrokerID: "9999", UserID: "u001", Password: password})
	require.NoError(t, err)
	require.Equal(t, native.RetOK, e.ReqUserLogin(req, id))
	require.Eventually(t, func() bool { return len(s.named("RspUserLogin")) > 0 }, time.Second, time.Millisecond)
	evs := s.named("RspUserLogin")
	return evs[len(evs)-1]
}

func TestEngineLogin(t *testing.T) {
	e, s := start(t, testConfig())

	ev := login(t, e, s, "secret", 1)
	assert.Equal(t, 1, ev.requestID)
	assert.True(t, ev.isLast)
	rsp, _ := codec.RspUserLogin.Decode(ev.rec)
	assert.Equal(t, "20240102", rsp.TradingDay)
	assert.Equal(t, int32(1), rsp.SessionID)
	info, _ := codec.RspInfo.Decode(ev.info)
	assert.Zero(t, info.ErrorID)
}

func TestEngineLoginWrongPassword(t *testing.T) {
	e, s := start(t, testConfig())

	ev := login(t, e, s, "nope", 1)
	assert.True(t, ev.rec.Absent())
	info, _ := codec.RspInfo.Decode(ev.info)
	assert.Equal(t, int32(ErrIDInvalidLogin), info.ErrorID)
	assert.Equal(t, "CTP:不合法的登录", info.ErrorMsg)
}

func TestEnginePositionsArePagedOnOneThread(t *testing.T) {
	e, s := start(t, testConfig())
	login(t, e, s, "secret", 1)

	req, err := codec.QryInvestorPosition.Encode(nil, schema.QryInvestorPosition{BrokerID: "9999"})
	require.NoError(t, err)
	require.Equal(t, native.RetOK, e.ReqQryInvestorPosition(req, 7))

	require.Eventually(t, func() bool { return len(s.named("RspQryInvestorPosition")) == 3 }, time.Second, time.Millisecond)
	evs := s.named("RspQryInvestorPosition")
	for i, ev := range evs {
		p, _ := codec.InvestorPosition.Decode(ev.rec)
		assert.Equal(t, int32(i+1), p.Position)
		assert.Equal(t, 7, ev.requestID)
		assert.Equal(t, i == 2, ev.isLast)
		assert.Equal(t, evs[0].thread, ev.thread)
	}
}

func TestEngineEmptyPositionQuery(t *testing.T) {
	e, s := start(t, testConfig())
	login(t, e, s, "secret", 1)

	req, err := codec.QryInvestorPosition.Encode(nil, schema.QryInvestorPosition{InstrumentID: "none"})
	require.NoError(t, err)
	require.Equal(t, native.RetOK, e.ReqQryInvestorPosition(req, 2))

	require.Eventually(t, func() bool { return len(s.named("RspQryInvestorPosition")) == 1 }, time.Second, time.Millisecond)
	ev := s.named("RspQryInvestorPosition")[0]
	assert.True(t, ev.rec.Absent())
	assert.True(t, ev.isLast)
}

func TestEngineQueryNeedsLoginAndRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.QueryInterval = time.Hour
	e, s := start(t, cfg)

	assert.Equal(t, native.RetNetwork, e.ReqQryTradingAccount(nil, 1))
	login(t, e, s, "secret", 2)

	assert.Equal(t, native.RetOK, e.ReqQryTradingAccount(nil, 3))
	assert.Equal(t, native.RetRateLimited, e.ReqQryTradingAccount(nil, 4))

	require.Eventually(t, func() bool { return len(s.named("RspQryTradingAccount")) == 1 }, time.Second, time.Millisecond)
	acc, _ := codec.TradingAccount.Decode(s.named("RspQryTradingAccount")[0].rec)
	assert.Equal(t, 1_000_000.0, acc.Balance)
}

func TestEngineSubscribeAndPublish(t *testing.T) {
	e, s := start(t, testConfig())

	assert.False(t, e.PublishDepth(schema.DepthMarketData{InstrumentID: "rb2405"}))
	require.Equal(t, native.RetOK, e.SubscribeMarketData([]string{"rb2405", "IF2401"}))

	require.Eventually(t, func() bool { return len(s.named("RspSubMarketData")) == 2 }, time.Second, time.Millisecond)
	acks := s.named("RspSubMarketData")
	assert.False(t, acks[0].isLast)
	assert.True(t, acks[1].isLast)
	inst, _ := codec.SpecificInstrument.Decode(acks[1].rec)
	assert.Equal(t, "IF2401", inst.InstrumentID)

	assert.True(t, e.PublishDepth(schema.DepthMarketData{InstrumentID: "rb2405", LastPrice: 3500}))
	require.Eventually(t, func() bool { return len(s.named("RtnDepthMarketData")) == 1 }, time.Second, time.Millisecond)
	md, _ := codec.DepthMarketData.Decode(s.named("RtnDepthMarketData")[0].rec)
	assert.Equal(t, 3500.0, md.LastPrice)
	assert.Equal(t, "20240102", md.TradingDay)

	require.Equal(t, native.RetOK, e.UnSubscribeMarketData([]string{"rb2405"}))
	assert.False(t, e.PublishDepth(schema.DepthMarketData{InstrumentID: "rb2405"}))
}

func TestEngineOrderFillAndCancel(t *testing.T) {
	cfg := testConfig()
	e, s := start(t, cfg)
	login(t, e, s, "secret", 1)

	order := func(ref string) native.Record {
		rec, err := codec.InputOrder.Encode(nil, schema.InputOrder{
			OrderRef:            ref,
			InstrumentID:        "rb2405",
			ExchangeID:          "SHFE",
			Direction:           schema.DirectionBuy,
			LimitPrice:          3500,
			VolumeTotalOriginal: 2,
		})
		require.NoError(t, err)
		return rec
	}

	require.Equal(t, native.RetOK, e.ReqOrderInsert(order("1"), 2))
	require.Eventually(t, func() bool { return len(s.named("RtnOrder")) == 1 }, time.Second, time.Millisecond)

	action, err := codec.InputOrderAction.Encode(nil, schema.InputOrderAction{OrderRef: "1", ActionFlag: schema.ActionFlagDelete})
	require.NoError(t, err)
	require.Equal(t, native.RetOK, e.ReqOrderAction(action, 3))
	require.Eventually(t, func() bool { return len(s.named("RtnOrder")) == 2 }, time.Second, time.Millisecond)
	canceled, _ := codec.Order.Decode(s.named("RtnOrder")[1].rec)
	assert.Equal(t, schema.OrderStatusCanceled, canceled.OrderStatus)

	// second cancel is refused
	require.Equal(t, native.RetOK, e.ReqOrderAction(action, 4))
	require.Eventually(t, func() bool { return len(s.named("RspOrderAction")) == 1 }, time.Second, time.Millisecond)
	info, _ := codec.RspInfo.Decode(s.named("RspOrderAction")[0].info)
	assert.Equal(t, int32(ErrIDCannotCancel), info.ErrorID)

	// duplicate ref is rejected through both callbacks
	require.Equal(t, native.RetOK, e.ReqOrderInsert(order("1"), 5))
	require.Eventually(t, func() bool { return len(s.named("ErrRtnOrderInsert")) == 1 }, time.Second, time.Millisecond)
	require.Len(t, s.named("RspOrderInsert"), 1)
}

func TestEngineFillOrders(t *testing.T) {
	cfg := testConfig()
	cfg.FillOrders = true
	e, s := start(t, cfg)
	login(t, e, s, "secret", 1)

	rec, err := codec.InputOrder.Encode(nil, schema.InputOrder{OrderRef: "9", InstrumentID: "au2406", LimitPrice: 480, VolumeTotalOriginal: 1, CombOffsetFlag: "0"})
	require.NoError(t, err)
	require.Equal(t, native.RetOK, e.ReqOrderInsert(rec, 2))

	require.Eventually(t, func() bool { return len(s.named("RtnTrade")) == 1 }, time.Second, time.Millisecond)
	orders := s.named("RtnOrder")
	require.Len(t, orders, 2)
	last, _ := codec.Order.Decode(orders[1].rec)
	assert.Equal(t, schema.OrderStatusAllTraded, last.OrderStatus)
	trade, _ := codec.Trade.Decode(s.named("RtnTrade")[0].rec)
	assert.Equal(t, int32(1), trade.Volume)
	assert.Equal(t, schema.OffsetOpen, trade.OffsetFlag)
	assert.Equal(t, "20240102", trade.TradingDay)
}

func TestEngineOrderBeforeLogin(t *testing.T) {
	e, s := start(t, testConfig())

	rec, err := codec.InputOrder.Encode(nil, schema.InputOrder{OrderRef: "1", LimitPrice: 1, VolumeTotalOriginal: 1})
	require.NoError(t, err)
	require.Equal(t, native.RetOK, e.ReqOrderInsert(rec, 1))

	require.Eventually(t, func() bool { return len(s.named("ErrRtnOrderInsert")) == 1 }, time.Second, time.Millisecond)
	info, _ := codec.RspInfo.Decode(s.named("ErrRtnOrderInsert")[0].info)
	assert.Equal(t, int32(ErrIDNotLoggedIn), info.ErrorID)
}

func TestEngineDisconnectReconnects(t *testing.T) {
	e, s := start(t, testConfig())

	require.True(t, e.Disconnect(0x1001))
	require.Eventually(t, func() bool { return len(s.named("FrontConnected")) == 2 }, time.Second, time.Millisecond)
	require.Len(t, s.named("FrontDisconnected"), 1)
	assert.Equal(t, 0x1001, s.named("FrontDisconnected")[0].requestID)
}

func TestEngineReleaseDrainsAndRefuses(t *testing.T) {
	s := &spy{}
	e := New(testConfig())
	e.RegisterSpi(s)
	e.RegisterFront("tcp://sim")
	require.NoError(t, e.Init())
	require.True(t, errors.Is(e.Init(), exception.ErrSessionStarted))

	for i := 0; i < 50; i++ {
		e.HeartBeatWarning(i)
	}
	require.NoError(t, e.Release())

	// everything posted before release was delivered
	assert.Len(t, s.named("HeartBeatWarning"), 50)
	assert.Equal(t, native.RetNetwork, e.ReqUserLogin(nil, 1))
	assert.False(t, e.HeartBeatWarning(1))
	require.True(t, errors.Is(e.Release(), exception.ErrEngineReleased))
}

func TestEngineInitNeedsSpiAndFront(t *testing.T) {
	e := New(Config{})
	require.True(t, errors.Is(e.Init(), exception.ErrNilInstance))
	e.RegisterSpi(&spy{})
	require.True(t, errors.Is(e.Init(), exception.ErrInvalidArgument))
	require.NoError(t, e.Release())
}
