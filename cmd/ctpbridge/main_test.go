package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctpbridge/internal/bus"
	"ctpbridge/internal/ops"
	"ctpbridge/internal/schema"
)

type fakeSaver struct {
	saved []schema.Trade
	err   error
}

func (f *fakeSaver) SaveTrade(_ context.Context, t schema.Trade) error {
	f.saved = append(f.saved, t)
	return f.err
}

func TestSinkPersistsTrades(t *testing.T) {
	saver := &fakeSaver{}
	var lines []string
	s := &sink{trades: saver, log: func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}}

	q := bus.NewQueue(8, nil)
	require.NoError(t, q.TryPublish(bus.EventTypeTick, schema.Tick{Symbol: "rb2405", LastPrice: 3512500}))
	require.NoError(t, q.TryPublish(bus.EventTypeTrade, schema.Trade{ExchangeID: "SHFE", TradeID: "1", Volume: 2}))
	q.Close()
	consume(context.Background(), q, s)

	require.Len(t, saver.saved, 1)
	assert.Equal(t, "1", saver.saved[0].TradeID)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "tick #1")
	assert.Contains(t, lines[0], `"LastPrice":3512500`)
	assert.Contains(t, lines[1], "trade #2")
}

func TestSinkWithoutStore(t *testing.T) {
	s := newSink(nil)
	assert.Nil(t, s.trades)
	s.log = func(string, ...any) {}
	s.handle(context.Background(), bus.Event{Type: bus.EventTypeTrade, Payload: schema.Trade{}})
}

func TestDiff(t *testing.T) {
	add, remove := diff([]string{"IF2401", "rb2405"}, []string{"rb2405", "au2406"})
	assert.Equal(t, []string{"au2406"}, add)
	assert.Equal(t, []string{"IF2401"}, remove)

	add, remove = diff(nil, nil)
	assert.Empty(t, add)
	assert.Empty(t, remove)
}

func TestNewEngine(t *testing.T) {
	h, err := newEngine(ops.Loaded{EngineKind: ops.EngineSim})
	require.NoError(t, err)
	assert.NotNil(t, h.Engine)
	assert.NotNil(t, h.Feed)

	_, err = newEngine(ops.Loaded{EngineKind: "tcp"})
	require.Error(t, err)
}
