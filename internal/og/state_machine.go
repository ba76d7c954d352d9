package og

import (
	"github.com/yanun0323/errors"

	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

// OrderState tracks the lifecycle of an order.
type OrderState uint16

const (
	OrderStateUnknown OrderState = iota
	OrderStateSent
	OrderStateAcked
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
	OrderStateRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderStateSent:
		return "sent"
	case OrderStateAcked:
		return "acked"
	case OrderStatePartFilled:
		return "part_filled"
	case OrderStateFilled:
		return "filled"
	case OrderStateCanceled:
		return "canceled"
	case OrderStateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is accepted.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderStateFilled, OrderStateCanceled, OrderStateRejected:
		return true
	default:
		return false
	}
}

// Order holds the gateway's view of an order. Ref is the order ref the
// session assigned on insert.
type Order struct {
	Ref          string
	InstrumentID string
	ExchangeID   string
	OrderSysID   string
	Direction    schema.Direction
	Price        float64
	Qty          int32
	FilledQty    int32
	TradeQty     int32
	LeavesQty    int32
	State        OrderState
	StatusMsg    string
}

// StateMachine updates orders from insert, status and trade events. It is
// not safe for concurrent use.
type StateMachine struct {
	orders map[string]*Order
	trades map[string]struct{}
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		orders: make(map[string]*Order),
		trades: make(map[string]struct{}),
	}
}

// Order returns the current order state.
func (m *StateMachine) Order(ref string) (*Order, bool) {
	o, ok := m.orders[ref]
	return o, ok
}

// Len returns the number of tracked orders.
func (m *StateMachine) Len() int {
	return len(m.orders)
}

// ApplyInsert creates a new order in Sent state.
func (m *StateMachine) ApplyInsert(in schema.InputOrder) (*Order, error) {
	if in.OrderRef == "" {
		return nil, errors.Wrap(exception.ErrOrderUnknown, "empty order ref")
	}
	if _, ok := m.orders[in.OrderRef]; ok {
		return nil, errors.Wrapf(exception.ErrOrderDuplicate, "ref: %s", in.OrderRef)
	}
	o := &Order{
		Ref:          in.OrderRef,
		InstrumentID: in.InstrumentID,
		ExchangeID:   in.ExchangeID,
		Direction:    in.Direction,
		Price:        in.LimitPrice,
		Qty:          in.VolumeTotalOriginal,
		LeavesQty:    in.VolumeTotalOriginal,
		State:        OrderStateSent,
	}
	m.orders[o.Ref] = o
	return o, nil
}

// ApplyReject moves an order to Rejected after a failed insert response.
func (m *StateMachine) ApplyReject(ref string, info *schema.RspInfo) (*Order, error) {
	o, ok := m.orders[ref]
	if !ok {
		return nil, errors.Wrapf(exception.ErrOrderUnknown, "ref: %s", ref)
	}
	if o.State.Terminal() {
		return o, errors.Wrapf(exception.ErrOrderInvalidTransition, "ref: %s, %s -> rejected", ref, o.State)
	}
	o.State = OrderStateRejected
	o.LeavesQty = 0
	if info != nil {
		o.StatusMsg = info.ErrorMsg
	}
	return o, nil
}

// ApplyOrder updates an order from an exchange status report. Orders placed
// by another session are adopted on first sight.
func (m *StateMachine) ApplyOrder(rtn schema.Order) (*Order, error) {
	o, ok := m.orders[rtn.OrderRef]
	if !ok {
		if rtn.OrderRef == "" {
			return nil, errors.Wrap(exception.ErrOrderUnknown, "empty order ref")
		}
		o = &Order{
			Ref:          rtn.OrderRef,
			InstrumentID: rtn.InstrumentID,
			ExchangeID:   rtn.ExchangeID,
			Direction:    rtn.Direction,
			Price:        rtn.LimitPrice,
			Qty:          rtn.VolumeTotalOriginal,
		}
		m.orders[o.Ref] = o
	}
	next := stateOf(rtn.OrderStatus)
	if o.State.Terminal() && next != o.State {
		return o, errors.Wrapf(exception.ErrOrderInvalidTransition, "ref: %s, %s -> %s", o.Ref, o.State, next)
	}

	if rtn.OrderSysID != "" {
		o.OrderSysID = rtn.OrderSysID
	}
	if rtn.VolumeTotalOriginal != 0 {
		o.Qty = rtn.VolumeTotalOriginal
	}
	if rtn.VolumeTraded > o.FilledQty {
		o.FilledQty = rtn.VolumeTraded
	}
	o.LeavesQty = rtn.VolumeTotal
	o.StatusMsg = rtn.StatusMsg
	o.State = next
	return o, nil
}

// ApplyTrade updates an order from a trade. A trade id seen before on the
// same exchange is ignored.
func (m *StateMachine) ApplyTrade(trade schema.Trade) (*Order, error) {
	o, ok := m.orders[trade.OrderRef]
	if !ok {
		return nil, errors.Wrapf(exception.ErrOrderUnknown, "ref: %s", trade.OrderRef)
	}
	if trade.Volume <= 0 {
		return o, errors.Wrapf(exception.ErrOrderInvalidFill, "ref: %s, volume: %d", trade.OrderRef, trade.Volume)
	}
	key := trade.ExchangeID + "/" + trade.TradeID
	if _, seen := m.trades[key]; seen {
		return o, nil
	}
	if o.State.Terminal() && o.State != OrderStateFilled {
		return o, errors.Wrapf(exception.ErrOrderInvalidTransition, "ref: %s, %s -> fill", o.Ref, o.State)
	}
	m.trades[key] = struct{}{}

	// status reports and trades race; whichever reports more volume wins
	o.TradeQty += trade.Volume
	if o.TradeQty > o.FilledQty {
		o.FilledQty = o.TradeQty
	}
	if o.State == OrderStateFilled {
		return o, nil
	}
	if o.Qty > 0 && o.FilledQty >= o.Qty {
		o.FilledQty = o.Qty
		o.LeavesQty = 0
		o.State = OrderStateFilled
		return o, nil
	}
	o.LeavesQty = o.Qty - o.FilledQty
	o.State = OrderStatePartFilled
	return o, nil
}

func stateOf(status schema.OrderStatus) OrderState {
	switch status {
	case schema.OrderStatusAllTraded:
		return OrderStateFilled
	case schema.OrderStatusPartTradedQueueing, schema.OrderStatusPartTradedNotQueueing:
		return OrderStatePartFilled
	case schema.OrderStatusNoTradeQueueing, schema.OrderStatusNoTradeNotQueueing:
		return OrderStateAcked
	case schema.OrderStatusCanceled:
		return OrderStateCanceled
	case schema.OrderStatusUnknown:
		return OrderStateSent
	default:
		return OrderStateUnknown
	}
}
