package gateway

import (
	"github.com/yanun0323/errors"

	"ctpbridge/internal/bus"
	"ctpbridge/internal/schema"
	"ctpbridge/pkg/exception"
)

// PositionReport is a completed position query.
type PositionReport struct {
	RequestID int
	Positions []schema.InvestorPosition
}

// AccountReport is a completed account query.
type AccountReport struct {
	RequestID int
	Accounts  []schema.TradingAccount
}

// QueryPositions starts a position query. The report is published once the
// last page arrives.
func (g *Gateway) QueryPositions(instrumentID string) (int, error) {
	if g.req == nil {
		return 0, errors.Wrap(exception.ErrNilInstance, "requester")
	}
	return g.req.QueryPositions(instrumentID)
}

func (g *Gateway) QueryAccount() (int, error) {
	if g.req == nil {
		return 0, errors.Wrap(exception.ErrNilInstance, "requester")
	}
	return g.req.QueryAccount()
}

func (g *Gateway) OnRspQryInvestorPosition(p *schema.InvestorPosition, info *schema.RspInfo, requestID int, isLast bool) {
	g.mu.Lock()
	if g.reportError(schema.EventRspQryInvestorPosition, info, requestID) {
		delete(g.positions, requestID)
		g.mu.Unlock()
		return
	}
	pages := g.positions[requestID]
	if p != nil {
		pages = append(pages, *p)
	}
	if !isLast {
		g.positions[requestID] = pages
		g.mu.Unlock()
		return
	}
	delete(g.positions, requestID)
	g.mu.Unlock()

	g.publish(bus.EventTypePositions, PositionReport{RequestID: requestID, Positions: pages})
}

func (g *Gateway) OnRspQryTradingAccount(a *schema.TradingAccount, info *schema.RspInfo, requestID int, isLast bool) {
	g.mu.Lock()
	if g.reportError(schema.EventRspQryTradingAccount, info, requestID) {
		delete(g.accounts, requestID)
		g.mu.Unlock()
		return
	}
	pages := g.accounts[requestID]
	if a != nil {
		pages = append(pages, *a)
	}
	if !isLast {
		g.accounts[requestID] = pages
		g.mu.Unlock()
		return
	}
	delete(g.accounts, requestID)
	g.mu.Unlock()

	g.publish(bus.EventTypeAccount, AccountReport{RequestID: requestID, Accounts: pages})
}
