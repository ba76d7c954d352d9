package gateway

import (
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/bus"
	"ctpbridge/internal/og"
	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

// PlaceOrder records the order in the book and sends it. The returned
// order carries the assigned ref.
func (g *Gateway) PlaceOrder(in schema.InputOrder) (schema.InputOrder, error) {
	if g.req == nil {
		return in, errors.Wrap(exception.ErrNilInstance, "requester")
	}
	in = g.req.PrepareOrder(in)
	if _, err := g.book.Send(in); err != nil {
		return in, err
	}
	if _, _, err := g.req.InsertOrder(in); err != nil {
		if _, rerr := g.book.OnReject(in.OrderRef, &schema.RspInfo{ErrorID: -1, ErrorMsg: err.Error()}); rerr != nil {
			logs.Errorf("gateway: reject %s, err: %+v", in.OrderRef, rerr)
		}
		return in, err
	}
	return in, nil
}

// CancelOrder cancels the working order with ref.
func (g *Gateway) CancelOrder(ref string) error {
	if g.req == nil {
		return errors.Wrap(exception.ErrNilInstance, "requester")
	}
	o, ok := g.book.Order(ref)
	if !ok {
		return errors.Wrapf(exception.ErrOrderUnknown, "ref: %s", ref)
	}
	_, err := g.req.CancelOrder(schema.InputOrderAction{
		OrderRef:     o.Ref,
		ExchangeID:   o.ExchangeID,
		OrderSysID:   o.OrderSysID,
		InstrumentID: o.InstrumentID,
	})
	return err
}

func (g *Gateway) reject(kind schema.EventKind, in *schema.InputOrder, info *schema.RspInfo, requestID int) error {
	if !g.reportError(kind, info, requestID) || in == nil {
		return nil
	}
	o, err := g.book.OnReject(in.OrderRef, info)
	if err != nil {
		// the front reports a rejection through both insert callbacks
		if o.State == og.OrderStateRejected {
			return nil
		}
		return err
	}
	g.publish(bus.EventTypeOrder, o)
	return nil
}

func (g *Gateway) OnRspOrderInsert(in *schema.InputOrder, info *schema.RspInfo, requestID int, _ bool) error {
	return g.reject(schema.EventRspOrderInsert, in, info, requestID)
}

func (g *Gateway) OnErrRtnOrderInsert(in *schema.InputOrder, info *schema.RspInfo) error {
	return g.reject(schema.EventErrRtnOrderInsert, in, info, 0)
}

func (g *Gateway) OnRspOrderAction(_ *schema.InputOrderAction, info *schema.RspInfo, requestID int, _ bool) {
	g.reportError(schema.EventRspOrderAction, info, requestID)
}

func (g *Gateway) OnRtnOrder(rtn *schema.Order) error {
	if rtn == nil {
		return nil
	}
	o, err := g.book.OnOrder(*rtn)
	if err != nil {
		return err
	}
	g.publish(bus.EventTypeOrder, o)
	return nil
}

// OnRtnTrade applies the trade to the book and publishes the raw trade for
// persistence even when the book rejects it.
func (g *Gateway) OnRtnTrade(trade *schema.Trade) error {
	if trade == nil {
		return nil
	}
	g.publish(bus.EventTypeTrade, *trade)
	o, err := g.book.OnTrade(*trade)
	if err != nil {
		return err
	}
	g.publish(bus.EventTypeOrder, o)
	return nil
}
