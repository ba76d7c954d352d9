package obs

import (
	"sync/atomic"
	"time"

	"ctpbridge/internal/schema"
)

// Metrics collects lightweight per-event-kind counters and handler latency.
// All methods are lock-free and safe on a nil receiver.
type Metrics struct {
	delivered      [schema.NumEventKinds]uint64
	dropped        [schema.NumEventKinds]uint64
	failed         [schema.NumEventKinds]uint64
	attachFailures [schema.NumEventKinds]uint64
	marshalFaults  [schema.NumEventKinds]uint64
	busDrops       uint64
	busClosed      uint64

	handlerLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values. Maps only hold nonzero
// entries.
type Snapshot struct {
	Delivered      map[schema.EventKind]uint64
	Dropped        map[schema.EventKind]uint64
	Failed         map[schema.EventKind]uint64
	AttachFailures map[schema.EventKind]uint64
	MarshalFaults  map[schema.EventKind]uint64
	BusDrops       uint64
	BusClosed      uint64
	HandlerLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func inc(counters *[schema.NumEventKinds]uint64, kind schema.EventKind, n uint64) {
	idx := int(kind)
	if idx >= 0 && idx < len(counters) {
		atomic.AddUint64(&counters[idx], n)
	}
}

// ObserveDelivered records one completed handler invocation.
func (m *Metrics) ObserveDelivered(kind schema.EventKind, d time.Duration) {
	if m == nil {
		return
	}
	inc(&m.delivered, kind, 1)
	m.handlerLatency.Observe(d)
}

// IncDropped records an event with no binding, or one arriving after close.
func (m *Metrics) IncDropped(kind schema.EventKind) {
	if m == nil {
		return
	}
	inc(&m.dropped, kind, 1)
}

// IncFailed records a handler that panicked or returned an error.
func (m *Metrics) IncFailed(kind schema.EventKind) {
	if m == nil {
		return
	}
	inc(&m.failed, kind, 1)
}

// IncAttachFailure records an event dropped because its thread could not be
// attached.
func (m *Metrics) IncAttachFailure(kind schema.EventKind) {
	if m == nil {
		return
	}
	inc(&m.attachFailures, kind, 1)
}

// AddMarshalFaults records fields substituted with defaults.
func (m *Metrics) AddMarshalFaults(kind schema.EventKind, n int) {
	if m == nil || n <= 0 {
		return
	}
	inc(&m.marshalFaults, kind, uint64(n))
}

// IncBusDrop records a bus publish rejected because the queue was full.
func (m *Metrics) IncBusDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.busDrops, 1)
}

// IncBusClosed records a publish attempt on a closed bus.
func (m *Metrics) IncBusClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.busClosed, 1)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Delivered:      collect(&m.delivered),
		Dropped:        collect(&m.dropped),
		Failed:         collect(&m.failed),
		AttachFailures: collect(&m.attachFailures),
		MarshalFaults:  collect(&m.marshalFaults),
		BusDrops:       atomic.LoadUint64(&m.busDrops),
		BusClosed:      atomic.LoadUint64(&m.busClosed),
		HandlerLatency: m.handlerLatency.Snapshot(),
	}
}

func collect(counters *[schema.NumEventKinds]uint64) map[schema.EventKind]uint64 {
	out := make(map[schema.EventKind]uint64)
	for i := range counters {
		if v := atomic.LoadUint64(&counters[i]); v > 0 {
			out[schema.EventKind(i)] = v
		}
	}
	return out
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
