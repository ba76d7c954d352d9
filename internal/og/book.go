package og

import (
	"sort"
	"sync"

	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

// Book is the order view shared between the request side and the engine
// callback threads. It serializes access to a StateMachine and tracks
// whether new orders may be sent.
type Book struct {
	mu        sync.Mutex
	state     *StateMachine
	connected bool
}

// NewBook creates an empty, disconnected book.
func NewBook() *Book {
	return &Book{state: NewStateMachine()}
}

// Send registers an order about to be inserted.
func (b *Book) Send(in schema.InputOrder) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return Order{}, exception.ErrNotLoggedIn
	}
	o, err := b.state.ApplyInsert(in)
	if err != nil {
		return Order{}, err
	}
	return *o, nil
}

// OnReject marks an order rejected by the front or the exchange.
func (b *Book) OnReject(ref string, info *schema.RspInfo) (Order, error) {
	return b.apply(func(m *StateMachine) (*Order, error) {
		return m.ApplyReject(ref, info)
	})
}

// OnOrder applies an order status report.
func (b *Book) OnOrder(rtn schema.Order) (Order, error) {
	return b.apply(func(m *StateMachine) (*Order, error) {
		return m.ApplyOrder(rtn)
	})
}

// OnTrade applies a trade.
func (b *Book) OnTrade(trade schema.Trade) (Order, error) {
	return b.apply(func(m *StateMachine) (*Order, error) {
		return m.ApplyTrade(trade)
	})
}

func (b *Book) apply(fn func(*StateMachine) (*Order, error)) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, err := fn(b.state)
	if o == nil {
		return Order{}, err
	}
	return *o, err
}

// Order returns a copy of the order with ref.
func (b *Book) Order(ref string) (Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.state.Order(ref)
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// Disconnect stops new orders until Reconnect.
func (b *Book) Disconnect() {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
}

// Reconnect accepts new orders again and returns the orders still working,
// sorted by ref. The engine keeps them across reconnects, so they are
// reported, not resent.
func (b *Book) Reconnect() []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	out := make([]Order, 0)
	for _, o := range b.state.orders {
		if !o.State.Terminal() {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}
