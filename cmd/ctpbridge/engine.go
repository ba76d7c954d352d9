package main

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/mdg"
	"ctpbridge/internal/native"
	"ctpbridge/internal/native/sim"
	"ctpbridge/internal/ops"
	"ctpbridge/pkg/exception"
)

const feedInterval = 500 * time.Millisecond

type engineHandle struct {
	Engine native.Engine
	// Feed generates market data for the simulator. Nil for a real front.
	Feed func(ctx context.Context, subscriptions func() []string)
}

func newEngine(loaded ops.Loaded) (engineHandle, error) {
	switch loaded.EngineKind {
	case ops.EngineSim:
		e := sim.New(loaded.Sim)
		return engineHandle{
			Engine: e,
			Feed:   func(ctx context.Context, subs func() []string) { feed(ctx, e, subs) },
		}, nil
	case ops.EngineCTPAPI:
		e, err := newNativeEngine(loaded.Session.FlowPath)
		if err != nil {
			return engineHandle{}, err
		}
		return engineHandle{Engine: e}, nil
	default:
		return engineHandle{}, errors.Wrapf(exception.ErrInvalidArgument, "engine kind: %s", loaded.EngineKind)
	}
}

// feed publishes generated depth for every subscribed instrument.
func feed(ctx context.Context, e *sim.Engine, subscriptions func() []string) {
	gen, err := mdg.NewGenerator(mdg.Config{BasePrice: 3500, TickSize: 1, Spread: 1, BaseSize: 50})
	if err != nil {
		logs.Errorf("feed: %+v", err)
		return
	}
	ticker := time.NewTicker(feedInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range subscriptions() {
				e.PublishDepth(gen.Next(id, now))
			}
		}
	}
}
