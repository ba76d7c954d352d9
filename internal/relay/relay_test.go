package relay

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"ctpbridge/internal/codec"
	"ctpbridge/internal/native"
	"ctpbridge/internal/obs"
	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

type call struct {
	method    string
	login     *schema.RspUserLogin
	position  *schema.InvestorPosition
	order     *schema.Order
	md        *schema.DepthMarketData
	info      *schema.RspInfo
	requestID int
	isLast    bool
	reason    int
	thread    int
}

type recorder struct {
	mu    sync.Mutex
	calls []call

	panicOnOrder bool
	block        chan struct{}
	entered      chan struct{}
}

func (r *recorder) add(c call) {
	c.thread = native.ThreadID()
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recorder) OnFrontConnected() {
	r.add(call{method: "OnFrontConnected"})
}

func (r *recorder) OnFrontDisconnected(reason int) {
	r.add(call{method: "OnFrontDisconnected", reason: reason})
}

func (r *recorder) OnRspUserLogin(login *schema.RspUserLogin, info *schema.RspInfo, requestID int, isLast bool) {
	r.add(call{method: "OnRspUserLogin", login: login, info: info, requestID: requestID, isLast: isLast})
}

func (r *recorder) OnRspError(info *schema.RspInfo, requestID int, isLast bool) error {
	r.add(call{method: "OnRspError", info: info, requestID: requestID, isLast: isLast})
	return errors.New("handler rejected error response")
}

func (r *recorder) OnRtnOrder(order *schema.Order) {
	if r.panicOnOrder {
		panic("order handler")
	}
	r.add(call{method: "OnRtnOrder", order: order})
}

func (r *recorder) OnRtnDepthMarketData(md *schema.DepthMarketData) {
	if r.block != nil && md != nil && md.InstrumentID == "block" {
		close(r.entered)
		<-r.block
	}
	r.add(call{method: "OnRtnDepthMarketData", md: md})
}

func (r *recorder) OnRspQryInvestorPosition(position *schema.InvestorPosition, info *schema.RspInfo, requestID int, isLast bool) {
	r.add(call{method: "OnRspQryInvestorPosition", position: position, info: info, requestID: requestID, isLast: isLast})
}

func encode[T any](t *testing.T, c codec.Codec[T], v T) native.Record {
	t.Helper()
	b, err := c.Encode(nil, v)
	require.NoError(t, err)
	return b
}

func newRelay(t *testing.T, target *recorder, opts ...Option) (*Relay, *obs.Metrics) {
	t.Helper()
	table, err := NewTable(target, TableOptions{})
	require.NoError(t, err)
	m := obs.NewMetrics()
	r, err := New(table, append([]Option{WithMetrics(m)}, opts...)...)
	require.NoError(t, err)
	return r, m
}

func TestRelayDeliversLoginOnce(t *testing.T) {
	target := &recorder{}
	r, m := newRelay(t, target)

	want := schema.RspUserLogin{
		TradingDay:  "20240102",
		LoginTime:   "09:00:01",
		BrokerID:    "9999",
		UserID:      "u001",
		SystemName:  "中国期货",
		FrontID:     1,
		SessionID:   77,
		MaxOrderRef: "100",
	}
	r.OnRspUserLogin(encode(t, codec.RspUserLogin, want), encode(t, codec.RspInfo, schema.RspInfo{}), 1, true)

	calls := target.snapshot()
	require.Len(t, calls, 1)
	c := calls[0]
	assert.Equal(t, "OnRspUserLogin", c.method)
	require.NotNil(t, c.login)
	assert.Equal(t, want, *c.login)
	require.NotNil(t, c.info)
	assert.False(t, c.info.Failed())
	assert.Equal(t, 1, c.requestID)
	assert.True(t, c.isLast)
	assert.Equal(t, uint64(1), m.Snapshot().Delivered[schema.EventRspUserLogin])
}

func TestRelayLoginFailureCarriesMessage(t *testing.T) {
	target := &recorder{}
	r, _ := newRelay(t, target)

	info := schema.RspInfo{ErrorID: 3, ErrorMsg: "不合法的登录"}
	r.OnRspUserLogin(nil, encode(t, codec.RspInfo, info), 1, true)

	calls := target.snapshot()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].login)
	require.NotNil(t, calls[0].info)
	assert.True(t, calls[0].info.Failed())
	assert.Equal(t, info, *calls[0].info)
}

func TestRelayUnboundKindIsDroppedSilently(t *testing.T) {
	target := &recorder{}
	r, m := newRelay(t, target)

	r.OnRtnTrade(encode(t, codec.Trade, schema.Trade{TradeID: "1"}))
	r.OnHeartBeatWarning(30)

	assert.Empty(t, target.snapshot())
	s := m.Snapshot()
	assert.Equal(t, uint64(1), s.Dropped[schema.EventRtnTrade])
	assert.Equal(t, uint64(1), s.Dropped[schema.EventHeartBeatWarning])
	assert.Empty(t, s.Failed)
}

func TestRelayAbsentRecordIsNilPointer(t *testing.T) {
	target := &recorder{}
	r, _ := newRelay(t, target)

	r.OnRspQryInvestorPosition(nil, nil, 5, true)
	r.OnRspQryInvestorPosition(make(native.Record, codec.InvestorPosition.Size), nil, 6, true)

	calls := target.snapshot()
	require.Len(t, calls, 2)
	assert.Nil(t, calls[0].position)
	assert.Nil(t, calls[0].info)
	require.NotNil(t, calls[1].position)
	assert.Equal(t, schema.InvestorPosition{}, *calls[1].position)
}

func TestRelayPaginationKeepsOrderAndThread(t *testing.T) {
	target := &recorder{}
	r, _ := newRelay(t, target)

	pages := []schema.InvestorPosition{
		{InstrumentID: "IF2401", Position: 1, PosiDirection: schema.PosiDirectionLong},
		{InstrumentID: "IF2402", Position: 2, PosiDirection: schema.PosiDirectionShort},
		{InstrumentID: "au2406", Position: 3, PosiDirection: schema.PosiDirectionLong},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		for i, p := range pages {
			r.OnRspQryInvestorPosition(encode(t, codec.InvestorPosition, p), nil, 9, i == len(pages)-1)
		}
	}()
	<-done

	calls := target.snapshot()
	require.Len(t, calls, 3)
	for i, c := range calls {
		require.NotNil(t, c.position)
		assert.Equal(t, pages[i], *c.position)
		assert.Equal(t, 9, c.requestID)
		assert.Equal(t, i == 2, c.isLast)
		assert.Equal(t, calls[0].thread, c.thread)
	}
}

func TestRelayRecoversHandlerPanic(t *testing.T) {
	target := &recorder{panicOnOrder: true}
	r, m := newRelay(t, target)

	assert.NotPanics(t, func() {
		r.OnRtnOrder(encode(t, codec.Order, schema.Order{OrderRef: "1"}))
	})
	r.OnFrontDisconnected(0x1001)

	calls := target.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "OnFrontDisconnected", calls[0].method)
	assert.Equal(t, 0x1001, calls[0].reason)
	assert.Equal(t, uint64(1), m.Snapshot().Failed[schema.EventRtnOrder])
}

func TestRelayCountsReturnedError(t *testing.T) {
	target := &recorder{}
	r, m := newRelay(t, target)

	r.OnRspError(encode(t, codec.RspInfo, schema.RspInfo{ErrorID: 90, ErrorMsg: "busy"}), 4, true)

	require.Len(t, target.snapshot(), 1)
	s := m.Snapshot()
	assert.Equal(t, uint64(1), s.Failed[schema.EventRspError])
	assert.Zero(t, s.Delivered[schema.EventRspError])
}

func TestRelayAttachFailureDropsEvent(t *testing.T) {
	target := &recorder{}
	fail := AttacherFunc(func() (Scope, error) {
		return Scope{}, exception.ErrAttach
	})
	r, m := newRelay(t, target, WithAttacher(fail))

	assert.NotPanics(t, r.OnFrontConnected)
	assert.Empty(t, target.snapshot())
	assert.Equal(t, uint64(1), m.Snapshot().AttachFailures[schema.EventFrontConnected])
}

func TestRelayReleasesScopeOnPanic(t *testing.T) {
	target := &recorder{panicOnOrder: true}
	var attached, released int
	counting := AttacherFunc(func() (Scope, error) {
		attached++
		return Scope{release: func() { released++ }}, nil
	})
	r, _ := newRelay(t, target, WithAttacher(counting))

	r.OnRtnOrder(nil)
	r.OnFrontConnected()

	assert.Equal(t, 2, attached)
	assert.Equal(t, 2, released)
}

func TestRelayDropsAfterClose(t *testing.T) {
	target := &recorder{}
	r, m := newRelay(t, target)

	r.Close()
	r.OnFrontConnected()

	assert.True(t, r.Closed())
	assert.Empty(t, target.snapshot())
	assert.Equal(t, uint64(1), m.Snapshot().Dropped[schema.EventFrontConnected])
}

func TestRelayDropsAfterTargetCollected(t *testing.T) {
	table := func() *Table {
		table, err := NewTable(&recorder{}, TableOptions{})
		require.NoError(t, err)
		return table
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		_, ok := table.Receiver()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	m := obs.NewMetrics()
	r, err := New(table, WithMetrics(m))
	require.NoError(t, err)

	assert.NotPanics(t, r.OnFrontConnected)
	assert.Equal(t, uint64(1), m.Snapshot().Dropped[schema.EventFrontConnected])
}

func TestRelayConcurrentDeliveryDoesNotBlock(t *testing.T) {
	target := &recorder{block: make(chan struct{}), entered: make(chan struct{})}
	r, _ := newRelay(t, target)

	go r.OnRtnDepthMarketData(encode(t, codec.DepthMarketData, schema.DepthMarketData{InstrumentID: "block"}))
	<-target.entered

	delivered := make(chan struct{})
	go func() {
		r.OnRtnOrder(encode(t, codec.Order, schema.Order{OrderRef: "7"}))
		close(delivered)
	}()

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("second callback blocked behind the first")
	}
	close(target.block)

	require.Eventually(t, func() bool {
		return len(target.snapshot()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "OnRtnOrder", target.snapshot()[0].method)
}

func TestRelayCountsMarshalFaults(t *testing.T) {
	target := &recorder{}
	r, m := newRelay(t, target)

	full := encode(t, codec.DepthMarketData, schema.DepthMarketData{InstrumentID: "rb2405", LastPrice: 3500})
	r.OnRtnDepthMarketData(full[:len(full)-8])

	calls := target.snapshot()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].md)
	assert.Equal(t, "rb2405", calls[0].md.InstrumentID)
	assert.Equal(t, 3500.0, calls[0].md.LastPrice)
	assert.Positive(t, m.Snapshot().MarshalFaults[schema.EventRtnDepthMarketData])
}

func TestNewRelayRequiresTable(t *testing.T) {
	_, err := New(nil)
	require.True(t, errors.Is(err, exception.ErrNilInstance))
}
