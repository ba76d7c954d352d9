// Package gateway is the callback target that turns engine events into bus
// events: ticks, errors, order updates, trades and completed queries.
package gateway

import (
	"sync"

	"github.com/yanun0323/logs"

	"ctpbridge/internal/bus"
	"ctpbridge/internal/og"
	"ctpbridge/internal/schema"
)

// Requester is the request side the gateway drives. *session.Session
// implements it.
type Requester interface {
	Login() (int, error)
	Subscribe(instruments ...string) error
	Unsubscribe(instruments ...string) error
	SubscribeForQuote(instruments ...string) error
	UnsubscribeForQuote(instruments ...string) error
	SyncOrderRef(maxOrderRef string)
	PrepareOrder(in schema.InputOrder) schema.InputOrder
	InsertOrder(in schema.InputOrder) (int, schema.InputOrder, error)
	CancelOrder(action schema.InputOrderAction) (int, error)
	QueryPositions(instrumentID string) (int, error)
	QueryAccount() (int, error)
}

// Config controls gateway behavior.
type Config struct {
	// AutoLogin logs in as soon as the front connects.
	AutoLogin bool
	// Instruments and ForQuote are subscribed after every login.
	Instruments []string
	ForQuote    []string
}

// SessionState is published after every successful login.
type SessionState struct {
	TradingDay string
	FrontID    int32
	SessionID  int32
	// Working lists orders still open across the reconnect.
	Working []og.Order
}

// Gateway tracks connection and login state and keeps the subscription
// list so it survives reconnects.
type Gateway struct {
	cfg   Config
	queue *bus.Queue
	book  *og.Book

	req Requester

	mu        sync.Mutex
	connected bool
	loggedIn  bool
	md        map[string]struct{}
	forQuote  map[string]struct{}
	positions map[int][]schema.InvestorPosition
	accounts  map[int][]schema.TradingAccount
}

// New creates a gateway publishing to queue. Bind must be called before the
// session starts.
func New(cfg Config, queue *bus.Queue) *Gateway {
	g := &Gateway{
		cfg:       cfg,
		queue:     queue,
		book:      og.NewBook(),
		md:        make(map[string]struct{}),
		forQuote:  make(map[string]struct{}),
		positions: make(map[int][]schema.InvestorPosition),
		accounts:  make(map[int][]schema.TradingAccount),
	}
	for _, id := range cfg.Instruments {
		g.md[id] = struct{}{}
	}
	for _, id := range cfg.ForQuote {
		g.forQuote[id] = struct{}{}
	}
	return g
}

// Bind sets the request side.
func (g *Gateway) Bind(req Requester) {
	g.req = req
}

// Book exposes the order view.
func (g *Gateway) Book() *og.Book {
	return g.book
}

func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *Gateway) LoggedIn() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loggedIn
}

func (g *Gateway) publish(typ bus.EventType, payload any) {
	if g.queue == nil {
		return
	}
	if err := g.queue.TryPublish(typ, payload); err != nil && typ != bus.EventTypeTick {
		logs.Errorf("gateway: publish %s, err: %+v", typ, err)
	}
}

// reportError publishes a failed response and reports whether info failed.
func (g *Gateway) reportError(kind schema.EventKind, info *schema.RspInfo, requestID int) bool {
	if !info.Failed() {
		return false
	}
	logs.Errorf("gateway: %s failed, requestID: %d, errorID: %d, msg: %s", kind, requestID, info.ErrorID, info.ErrorMsg)
	g.publish(bus.EventTypeError, schema.ErrorDTO{
		Kind:      kind,
		RequestID: requestID,
		ErrorNo:   info.ErrorID,
		ErrorMsg:  info.ErrorMsg,
	})
	return true
}

func (g *Gateway) OnFrontConnected() {
	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()
	logs.Info("gateway: front connected")

	if !g.cfg.AutoLogin || g.req == nil {
		return
	}
	if _, err := g.req.Login(); err != nil {
		logs.Errorf("gateway: login, err: %+v", err)
	}
}

func (g *Gateway) OnFrontDisconnected(reason int) {
	g.mu.Lock()
	g.connected = false
	g.loggedIn = false
	g.mu.Unlock()
	g.book.Disconnect()
	logs.Infof("gateway: front disconnected, reason: %#x", reason)
}

func (g *Gateway) OnHeartBeatWarning(timeLapse int) {
	logs.Infof("gateway: no heartbeat for %ds", timeLapse)
}

func (g *Gateway) OnRspUserLogin(login *schema.RspUserLogin, info *schema.RspInfo, requestID int, _ bool) {
	if g.reportError(schema.EventRspUserLogin, info, requestID) {
		return
	}

	// order refs and the book are ready before LoggedIn reports true
	if login != nil && g.req != nil {
		g.req.SyncOrderRef(login.MaxOrderRef)
	}
	state := SessionState{Working: g.book.Reconnect()}
	if login != nil {
		state.TradingDay = login.TradingDay
		state.FrontID = login.FrontID
		state.SessionID = login.SessionID
	}

	g.mu.Lock()
	g.loggedIn = true
	md := keys(g.md)
	forQuote := keys(g.forQuote)
	g.mu.Unlock()
	logs.Infof("gateway: logged in, tradingDay: %s, session: %d, working orders: %d", state.TradingDay, state.SessionID, len(state.Working))
	g.publish(bus.EventTypeSession, state)

	if g.req == nil {
		return
	}
	if len(md) != 0 {
		if err := g.req.Subscribe(md...); err != nil {
			logs.Errorf("gateway: resubscribe %v, err: %+v", md, err)
		}
	}
	if len(forQuote) != 0 {
		if err := g.req.SubscribeForQuote(forQuote...); err != nil {
			logs.Errorf("gateway: resubscribe for quote %v, err: %+v", forQuote, err)
		}
	}
}

func (g *Gateway) OnRspUserLogout(_ *schema.UserLogout, info *schema.RspInfo, requestID int, _ bool) {
	if g.reportError(schema.EventRspUserLogout, info, requestID) {
		return
	}
	g.mu.Lock()
	g.loggedIn = false
	g.mu.Unlock()
	g.book.Disconnect()
	logs.Info("gateway: logged out")
}

func (g *Gateway) OnRspError(info *schema.RspInfo, requestID int, _ bool) {
	g.reportError(schema.EventRspError, info, requestID)
}
