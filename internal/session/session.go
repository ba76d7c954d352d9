// Package session owns one native engine and the relay that feeds its
// callbacks into a Go target.
package session

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/codec"
	"ctpbridge/internal/native"
	"ctpbridge/internal/obs"
	"ctpbridge/internal/relay"
	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

// Options configures a Session.
type Options struct {
	FrontAddr string
	// FlowPath is created on Start if missing.
	FlowPath   string
	BrokerID   string
	UserID     string
	Password   string
	InvestorID string

	Table    relay.TableOptions
	Attacher relay.Attacher
	Metrics  *obs.Metrics
}

// Session is the handle for one engine. It is created once, started once
// and closed once; every call after Close returns ErrSessionDestroyed.
type Session struct {
	id     string
	opts   Options
	engine native.Engine
	relay  *relay.Relay

	requestID atomic.Int64
	orderRef  atomic.Int64

	started   atomic.Bool
	destroyed atomic.Bool
	closeOnce sync.Once
}

// New binds target's handler methods and registers the relay with engine.
// No traffic flows until Start. The session holds target weakly; the caller
// keeps it reachable for as long as events should be delivered.
func New[T any](engine native.Engine, target *T, opts Options) (*Session, error) {
	if engine == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "engine")
	}
	table, err := relay.NewTable(target, opts.Table)
	if err != nil {
		return nil, errors.Wrap(err, "bind target")
	}

	relayOpts := []relay.Option{relay.WithMetrics(opts.Metrics)}
	if opts.Attacher != nil {
		relayOpts = append(relayOpts, relay.WithAttacher(opts.Attacher))
	}
	r, err := relay.New(table, relayOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "new relay")
	}

	if opts.InvestorID == "" {
		opts.InvestorID = opts.UserID
	}
	s := &Session{
		id:     uuid.NewString(),
		opts:   opts,
		engine: engine,
		relay:  r,
	}
	engine.RegisterSpi(r)
	logs.Infof("session %s: bound %s", s.id, table.Target())
	return s, nil
}

// ID identifies this session instance in logs.
func (s *Session) ID() string {
	return s.id
}

// Start creates the flow path, registers the front and starts the engine.
func (s *Session) Start() error {
	if s.destroyed.Load() {
		return exception.ErrSessionDestroyed
	}
	if !s.started.CompareAndSwap(false, true) {
		return exception.ErrSessionStarted
	}
	if s.opts.FlowPath != "" {
		if err := os.MkdirAll(s.opts.FlowPath, 0o755); err != nil {
			s.started.Store(false)
			return errors.Wrapf(err, "create flow path %s", s.opts.FlowPath)
		}
	}
	s.engine.RegisterFront(s.opts.FrontAddr)
	if err := s.engine.Init(); err != nil {
		// a failed Init leaves the engine unstarted, so Start may be retried
		s.started.Store(false)
		return errors.Wrap(err, "init engine")
	}
	logs.Infof("session %s: started, front: %s", s.id, s.opts.FrontAddr)
	return nil
}

// Close stops the engine, closes the relay and destroys the handle, in
// that order. The engine's Release guarantees no callback is in flight
// afterwards, so the target may be discarded once Close returns. Close must
// not be called from a handler.
func (s *Session) Close() error {
	err := exception.ErrSessionDestroyed
	s.closeOnce.Do(func() {
		err = nil
		if s.started.Load() {
			if rerr := s.engine.Release(); rerr != nil {
				err = errors.Wrap(rerr, "release engine")
			}
		}
		s.relay.Close()
		s.destroyed.Store(true)
		logs.Infof("session %s: destroyed", s.id)
	})
	return err
}

// SyncOrderRef raises the next order ref above maxOrderRef, the value the
// front reports at login.
func (s *Session) SyncOrderRef(maxOrderRef string) {
	n, err := strconv.ParseInt(maxOrderRef, 10, 64)
	if err != nil {
		return
	}
	for {
		cur := s.orderRef.Load()
		if n <= cur || s.orderRef.CompareAndSwap(cur, n) {
			return
		}
	}
}

func (s *Session) ready() error {
	if s.destroyed.Load() {
		return exception.ErrSessionDestroyed
	}
	if !s.started.Load() {
		return exception.ErrSessionNotReady
	}
	return nil
}

func (s *Session) nextID() int {
	return int(s.requestID.Add(1))
}

func checkCode(op string, code, requestID int) error {
	if code == native.RetOK {
		return nil
	}
	return errors.Wrap(exception.ErrRequestRejected, op+" returned "+strconv.Itoa(code)).
		With("requestID", requestID)
}

func send[T any](s *Session, op string, c codec.Codec[T], v T, req func(native.Record, int) int) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	rec, err := c.Encode(nil, v)
	if err != nil {
		return 0, errors.Wrapf(err, "encode %s", op)
	}
	id := s.nextID()
	return id, checkCode(op, req(rec, id), id)
}

// Login sends the configured credentials. The response arrives as
// OnRspUserLogin with the returned request id.
func (s *Session) Login() (int, error) {
	return send(s, "ReqUserLogin", codec.ReqUserLogin, schema.ReqUserLogin{
		BrokerID: s.opts.BrokerID,
		UserID:   s.opts.UserID,
		Password: s.opts.Password,
	}, s.engine.ReqUserLogin)
}

func (s *Session) Logout() (int, error) {
	return send(s, "ReqUserLogout", codec.UserLogout, schema.UserLogout{
		BrokerID: s.opts.BrokerID,
		UserID:   s.opts.UserID,
	}, s.engine.ReqUserLogout)
}

func (s *Session) subscribe(op string, fn func([]string) int, instruments []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return checkCode(op, fn(instruments), 0)
}

// Subscribe requests market data. Acks arrive as OnRspSubMarketData, one
// per instrument.
func (s *Session) Subscribe(instruments ...string) error {
	return s.subscribe("SubscribeMarketData", s.engine.SubscribeMarketData, instruments)
}

func (s *Session) Unsubscribe(instruments ...string) error {
	return s.subscribe("UnSubscribeMarketData", s.engine.UnSubscribeMarketData, instruments)
}

func (s *Session) SubscribeForQuote(instruments ...string) error {
	return s.subscribe("SubscribeForQuoteRsp", s.engine.SubscribeForQuoteRsp, instruments)
}

func (s *Session) UnsubscribeForQuote(instruments ...string) error {
	return s.subscribe("UnSubscribeForQuoteRsp", s.engine.UnSubscribeForQuoteRsp, instruments)
}

// PrepareOrder fills the account fields and assigns an order ref when the
// caller left it empty.
func (s *Session) PrepareOrder(in schema.InputOrder) schema.InputOrder {
	if in.BrokerID == "" {
		in.BrokerID = s.opts.BrokerID
	}
	if in.InvestorID == "" {
		in.InvestorID = s.opts.InvestorID
	}
	if in.UserID == "" {
		in.UserID = s.opts.UserID
	}
	if in.OrderRef == "" {
		in.OrderRef = strconv.FormatInt(s.orderRef.Add(1), 10)
	}
	if in.OrderPriceType == 0 {
		in.OrderPriceType = schema.PriceTypeLimitPrice
	}
	if in.TimeCondition == 0 {
		in.TimeCondition = schema.TimeConditionGFD
	}
	if in.CombHedgeFlag == "" {
		in.CombHedgeFlag = "1"
	}
	if in.CombOffsetFlag == "" {
		in.CombOffsetFlag = string(rune(schema.OffsetOpen))
	}
	return in
}

// InsertOrder sends in after PrepareOrder and returns the request id and the
// order as sent.
func (s *Session) InsertOrder(in schema.InputOrder) (int, schema.InputOrder, error) {
	in = s.PrepareOrder(in)
	id, err := send(s, "ReqOrderInsert", codec.InputOrder, in, s.engine.ReqOrderInsert)
	return id, in, err
}

// CancelOrder deletes the order identified by ref, or by exchange and
// order sys id when the action carries them.
func (s *Session) CancelOrder(action schema.InputOrderAction) (int, error) {
	if action.BrokerID == "" {
		action.BrokerID = s.opts.BrokerID
	}
	if action.InvestorID == "" {
		action.InvestorID = s.opts.InvestorID
	}
	action.ActionFlag = schema.ActionFlagDelete
	return send(s, "ReqOrderAction", codec.InputOrderAction, action, s.engine.ReqOrderAction)
}

// QueryPositions asks for positions, one OnRspQryInvestorPosition page per
// record. An empty instrumentID queries all.
func (s *Session) QueryPositions(instrumentID string) (int, error) {
	return send(s, "ReqQryInvestorPosition", codec.QryInvestorPosition, schema.QryInvestorPosition{
		BrokerID:     s.opts.BrokerID,
		InvestorID:   s.opts.InvestorID,
		InstrumentID: instrumentID,
	}, s.engine.ReqQryInvestorPosition)
}

func (s *Session) QueryAccount() (int, error) {
	return send(s, "ReqQryTradingAccount", codec.QryTradingAccount, schema.QryTradingAccount{
		BrokerID:   s.opts.BrokerID,
		InvestorID: s.opts.InvestorID,
	}, s.engine.ReqQryTradingAccount)
}
