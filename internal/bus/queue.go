package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/yanun0323/errors"

	"ctpbridge/internal/obs"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// EventType tags the payload of an Event.
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick
	EventTypeError
	EventTypeOrder
	EventTypeTrade
	EventTypePositions
	EventTypeAccount
	EventTypeSession
	EventTypeForQuote
)

func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeError:
		return "error"
	case EventTypeOrder:
		return "order"
	case EventTypeTrade:
		return "trade"
	case EventTypePositions:
		return "positions"
	case EventTypeAccount:
		return "account"
	case EventTypeSession:
		return "session"
	case EventTypeForQuote:
		return "for_quote"
	default:
		return "unknown"
	}
}

// Event is the unit passed through the in-memory bus.
type Event struct {
	Type    EventType
	Seq     uint64
	Payload any
}

// Queue is a bounded, non-blocking event queue. Publishers are engine
// callback threads and must never wait on a slow consumer.
type Queue struct {
	ch      chan Event
	mu      sync.RWMutex // guards close(ch) against in-flight sends
	closed  uint32
	seq     atomic.Uint64
	metrics *obs.Metrics
}

// NewQueue allocates a queue with the given capacity. metrics may be nil.
func NewQueue(capacity int, metrics *obs.Metrics) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity), metrics: metrics}
}

// TryPublish enqueues an event without blocking and stamps its sequence
// number.
func (q *Queue) TryPublish(typ EventType, payload any) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if atomic.LoadUint32(&q.closed) != 0 {
		q.metrics.IncBusClosed()
		return ErrQueueClosed
	}
	e := Event{Type: typ, Seq: q.seq.Add(1), Payload: payload}
	select {
	case q.ch <- e:
		return nil
	default:
		q.metrics.IncBusDrop()
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events. Events already queued
// are still delivered by Run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Run consumes events until the context is done or the queue is closed
// and drained.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
