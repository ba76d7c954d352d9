// Package mdg generates synthetic depth market data for the simulator.
package mdg

import (
	"math/rand/v2"
	"time"

	"github.com/yanun0323/errors"

	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

// Config shapes the generated book.
type Config struct {
	// BasePrice is the first price of every instrument.
	BasePrice float64
	// TickSize is the price step; each update moves at most two steps.
	TickSize float64
	// Spread is the number of ticks between last and each side.
	Spread int
	// BaseSize is the upper bound of generated sizes.
	BaseSize int32
	// Seed makes the walk reproducible. Zero seeds from the clock.
	Seed uint64
}

type instrument struct {
	last   float64
	volume int32
}

// Generator creates depth snapshots as a random walk per instrument. It is
// not safe for concurrent use.
type Generator struct {
	cfg         Config
	rng         *rand.Rand
	instruments map[string]*instrument
}

// NewGenerator validates cfg and creates a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.BasePrice <= 0 || cfg.TickSize <= 0 {
		return nil, errors.Wrapf(exception.ErrInvalidArgument, "base price %v, tick size %v", cfg.BasePrice, cfg.TickSize)
	}
	if cfg.BaseSize <= 0 {
		cfg.BaseSize = 1
	}
	if cfg.Spread < 0 {
		cfg.Spread = 0
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		cfg:         cfg,
		rng:         rand.New(rand.NewPCG(seed, seed>>1)),
		instruments: make(map[string]*instrument),
	}, nil
}

// Next creates the next snapshot for instrumentID at now.
func (g *Generator) Next(instrumentID string, now time.Time) schema.DepthMarketData {
	in, ok := g.instruments[instrumentID]
	if !ok {
		in = &instrument{last: g.cfg.BasePrice}
		g.instruments[instrumentID] = in
	} else {
		in.last += float64(g.rng.IntN(5)-2) * g.cfg.TickSize
		if in.last < g.cfg.TickSize {
			in.last = g.cfg.TickSize
		}
	}
	in.volume += g.rng.Int32N(g.cfg.BaseSize) + 1

	spread := float64(g.cfg.Spread) * g.cfg.TickSize
	return schema.DepthMarketData{
		InstrumentID:   instrumentID,
		LastPrice:      in.last,
		Volume:         in.volume,
		BidPrice1:      in.last - spread,
		BidVolume1:     g.rng.Int32N(g.cfg.BaseSize) + 1,
		AskPrice1:      in.last + spread,
		AskVolume1:     g.rng.Int32N(g.cfg.BaseSize) + 1,
		UpdateTime:     now.Format("15:04:05"),
		UpdateMillisec: int32(now.Nanosecond() / int(time.Millisecond)),
	}
}
