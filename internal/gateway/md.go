package gateway

import (
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"ctpbridge/internal/bus"
	"ctpbridge/internal/schema"
)

// Subscribe remembers instruments and subscribes them now if logged in,
// otherwise after the next login.
func (g *Gateway) Subscribe(instruments ...string) error {
	return g.track(g.md, instruments, true, Requester.Subscribe)
}

// Unsubscribe forgets instruments.
func (g *Gateway) Unsubscribe(instruments ...string) error {
	return g.track(g.md, instruments, false, Requester.Unsubscribe)
}

func (g *Gateway) SubscribeForQuote(instruments ...string) error {
	return g.track(g.forQuote, instruments, true, Requester.SubscribeForQuote)
}

func (g *Gateway) UnsubscribeForQuote(instruments ...string) error {
	return g.track(g.forQuote, instruments, false, Requester.UnsubscribeForQuote)
}

func (g *Gateway) track(set map[string]struct{}, instruments []string, add bool, fn func(Requester, ...string) error) error {
	if len(instruments) == 0 {
		return nil
	}
	g.mu.Lock()
	for _, id := range instruments {
		if add {
			set[id] = struct{}{}
		} else {
			delete(set, id)
		}
	}
	send := g.loggedIn && g.req != nil
	g.mu.Unlock()

	if !send {
		return nil
	}
	return fn(g.req, instruments...)
}

// Subscriptions returns the remembered market data instruments, sorted.
func (g *Gateway) Subscriptions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return keys(g.md)
}

func (g *Gateway) OnRspSubMarketData(inst *schema.SpecificInstrument, info *schema.RspInfo, requestID int, _ bool) {
	if g.reportError(schema.EventRspSubMarketData, info, requestID) {
		return
	}
	if inst != nil {
		logs.Infof("gateway: subscribed %s", inst.InstrumentID)
	}
}

func (g *Gateway) OnRspUnSubMarketData(inst *schema.SpecificInstrument, info *schema.RspInfo, requestID int, _ bool) {
	if g.reportError(schema.EventRspUnSubMarketData, info, requestID) {
		return
	}
	if inst != nil {
		logs.Infof("gateway: unsubscribed %s", inst.InstrumentID)
	}
}

func (g *Gateway) OnRspSubForQuoteRsp(_ *schema.SpecificInstrument, info *schema.RspInfo, requestID int, _ bool) {
	g.reportError(schema.EventRspSubForQuoteRsp, info, requestID)
}

func (g *Gateway) OnRspUnSubForQuoteRsp(_ *schema.SpecificInstrument, info *schema.RspInfo, requestID int, _ bool) {
	g.reportError(schema.EventRspUnSubForQuoteRsp, info, requestID)
}

func (g *Gateway) OnRtnDepthMarketData(md *schema.DepthMarketData) {
	if md == nil {
		return
	}
	g.publish(bus.EventTypeTick, TickFromDepth(md))
}

func (g *Gateway) OnRtnForQuoteRsp(rsp *schema.ForQuoteRsp) {
	if rsp == nil {
		return
	}
	g.publish(bus.EventTypeForQuote, *rsp)
}

// TickFromDepth builds a Tick with prices scaled to integers and time as
// HHMMSSmmm.
func TickFromDepth(md *schema.DepthMarketData) schema.Tick {
	return schema.Tick{
		Symbol:    md.InstrumentID,
		LastPrice: ScalePrice(md.LastPrice),
		Time:      TickTime(md.UpdateTime, md.UpdateMillisec),
		Volume:    md.Volume,
		BidPrice:  ScalePrice(md.BidPrice1),
		BidVolume: md.BidVolume1,
		AskPrice:  ScalePrice(md.AskPrice1),
		AskVolume: md.AskVolume1,
	}
}

var priceScale = decimal.NewFromInt(schema.PriceScale)

// ScalePrice converts a price to an integer of PriceScale units, rounding
// half away from zero.
func ScalePrice(price float64) int64 {
	return decimal.NewFromFloat(price).Mul(priceScale).Round(0).IntPart()
}

// TickTime turns "HH:MM:SS" and milliseconds into HHMMSSmmm. A malformed
// time yields 0.
func TickTime(updateTime string, millis int32) int32 {
	hms, err := strconv.Atoi(strings.ReplaceAll(updateTime, ":", ""))
	if err != nil || hms < 0 || millis < 0 || millis > 999 {
		return 0
	}
	return int32(hms*1000) + millis
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
