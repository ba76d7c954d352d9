package main

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/bus"
	"ctpbridge/internal/schema"
	"ctpbridge/internal/store"
)

const saveTimeout = 3 * time.Second

type tradeSaver interface {
	SaveTrade(ctx context.Context, t schema.Trade) error
}

// sink logs every bus event as JSON and persists trades.
type sink struct {
	trades tradeSaver
	log    func(format string, args ...any)
}

func newSink(trades *store.Store) *sink {
	s := &sink{log: logs.Infof}
	if trades != nil {
		s.trades = trades
	}
	return s
}

func consume(ctx context.Context, queue *bus.Queue, s *sink) {
	queue.Run(ctx, func(e bus.Event) { s.handle(ctx, e) })
}

func (s *sink) handle(ctx context.Context, e bus.Event) {
	body, err := sonic.ConfigFastest.Marshal(e.Payload)
	if err != nil {
		logs.Errorf("sink: encode %s #%d, err: %+v", e.Type, e.Seq, err)
	} else {
		s.log("%s #%d %s", e.Type, e.Seq, body)
	}

	if e.Type != bus.EventTypeTrade || s.trades == nil {
		return
	}
	trade, ok := e.Payload.(schema.Trade)
	if !ok {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := s.trades.SaveTrade(saveCtx, trade); err != nil {
		logs.Errorf("sink: save trade %s/%s, err: %+v", trade.ExchangeID, trade.TradeID, err)
	}
}
