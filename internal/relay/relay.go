// Package relay forwards native engine callbacks to the handler methods of a
// Go target. Every callback is delivered synchronously on the engine thread
// that raised it: attach, look up the binding, marshal, invoke, release.
package relay

import (
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/native"
	"ctpbridge/internal/obs"
	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

var (
	_ native.Spi          = (*Relay)(nil)
	_ native.ThreadExiter = (*Relay)(nil)
)

// Relay implements native.Spi over a binding Table.
type Relay struct {
	table    *Table
	attacher Attacher
	metrics  *obs.Metrics

	closed       atomic.Bool
	closedLogged atomic.Bool
	goneLogged   atomic.Bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithAttacher overrides the default detach-on-return ThreadAttacher.
func WithAttacher(a Attacher) Option {
	return func(r *Relay) {
		if a != nil {
			r.attacher = a
		}
	}
}

// WithMetrics records delivery counters into m.
func WithMetrics(m *obs.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// New creates a relay dispatching into table.
func New(table *Table, opts ...Option) (*Relay, error) {
	if table == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "binding table")
	}
	r := &Relay{
		table:    table,
		attacher: NewThreadAttacher(AttachDetachOnReturn, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Close stops forwarding. Callbacks arriving afterwards are dropped. The
// caller must stop the engine first if it needs a guarantee that no handler
// is still running when Close returns.
func (r *Relay) Close() {
	r.closed.Store(true)
}

func (r *Relay) Closed() bool {
	return r.closed.Load()
}

func (r *Relay) Table() *Table {
	return r.table
}

// OnThreadExit releases whatever the attacher holds for the calling engine
// thread. It runs even after Close.
func (r *Relay) OnThreadExit() {
	if d, ok := r.attacher.(Detacher); ok {
		d.Detach()
	}
}

func (r *Relay) dispatch(ev event) {
	b, ok := r.table.Lookup(ev.kind)
	if !ok {
		r.metrics.IncDropped(ev.kind)
		return
	}

	if r.closed.Load() {
		r.metrics.IncDropped(ev.kind)
		if r.closedLogged.CompareAndSwap(false, true) {
			logs.Errorf("relay: %s after close, event dropped, requestID: %d, err: %+v", ev.kind, ev.requestID, exception.ErrRelayClosed)
		}
		return
	}

	scope, err := r.attacher.Attach()
	if err != nil {
		r.metrics.IncAttachFailure(ev.kind)
		logs.Errorf("relay: attach for %s failed, event dropped, requestID: %d, err: %+v", ev.kind, ev.requestID, err)
		return
	}
	defer scope.Release()

	r.invoke(b, ev)
}

func (r *Relay) invoke(b *Binding, ev event) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.IncFailed(ev.kind)
			err := errors.Wrapf(exception.ErrHandlerPanic, "%v", p)
			logs.Errorf("relay: %s.%s panicked, requestID: %d, err: %+v", r.table.Target(), b.Method, ev.requestID, err)
		}
	}()

	recv, ok := r.table.Receiver()
	if !ok {
		r.metrics.IncDropped(ev.kind)
		if r.goneLogged.CompareAndSwap(false, true) {
			logs.Errorf("relay: %s event dropped, requestID: %d, err: %+v", ev.kind, ev.requestID, exception.ErrTargetReleased)
		}
		return
	}

	args, faults := b.arguments(ev)
	if faults > 0 {
		r.metrics.AddMarshalFaults(ev.kind, faults)
		logs.Errorf("relay: %s has %d unreadable fields set to zero, requestID: %d", ev.kind, faults, ev.requestID)
	}

	start := time.Now()
	if err := b.call(recv, args); err != nil {
		r.metrics.IncFailed(ev.kind)
		logs.Errorf("relay: %s.%s failed, requestID: %d, err: %+v", r.table.Target(), b.Method, ev.requestID, err)
		return
	}
	r.metrics.ObserveDelivered(ev.kind, time.Since(start))
}

func (r *Relay) OnFrontConnected() {
	r.dispatch(event{kind: schema.EventFrontConnected})
}

func (r *Relay) OnFrontDisconnected(reason int) {
	r.dispatch(event{kind: schema.EventFrontDisconnected, reason: reason})
}

func (r *Relay) OnHeartBeatWarning(timeLapse int) {
	r.dispatch(event{kind: schema.EventHeartBeatWarning, reason: timeLapse})
}

func (r *Relay) OnRspUserLogin(login, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspUserLogin, payload: login, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRspUserLogout(logout, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspUserLogout, payload: logout, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRspError(info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspError, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRspSubMarketData(instrument, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspSubMarketData, payload: instrument, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRspUnSubMarketData(instrument, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspUnSubMarketData, payload: instrument, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRspSubForQuoteRsp(instrument, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspSubForQuoteRsp, payload: instrument, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRspUnSubForQuoteRsp(instrument, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspUnSubForQuoteRsp, payload: instrument, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRtnDepthMarketData(md native.Record) {
	r.dispatch(event{kind: schema.EventRtnDepthMarketData, payload: md})
}

func (r *Relay) OnRtnForQuoteRsp(rsp native.Record) {
	r.dispatch(event{kind: schema.EventRtnForQuoteRsp, payload: rsp})
}

func (r *Relay) OnRspOrderInsert(order, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspOrderInsert, payload: order, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRspOrderAction(action, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspOrderAction, payload: action, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRtnOrder(order native.Record) {
	r.dispatch(event{kind: schema.EventRtnOrder, payload: order})
}

func (r *Relay) OnRtnTrade(trade native.Record) {
	r.dispatch(event{kind: schema.EventRtnTrade, payload: trade})
}

func (r *Relay) OnErrRtnOrderInsert(order, info native.Record) {
	r.dispatch(event{kind: schema.EventErrRtnOrderInsert, payload: order, info: info})
}

func (r *Relay) OnRspQryInvestorPosition(position, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspQryInvestorPosition, payload: position, info: info, requestID: requestID, isLast: isLast})
}

func (r *Relay) OnRspQryTradingAccount(account, info native.Record, requestID int, isLast bool) {
	r.dispatch(event{kind: schema.EventRspQryTradingAccount, payload: account, info: info, requestID: requestID, isLast: isLast})
}
