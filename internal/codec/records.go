package codec

import "ctpbridge/internal/schema"

var (
	RspInfo             = newCodec(schema.RecordRspInfo, visitRspInfo)
	ReqUserLogin        = newCodec(schema.RecordReqUserLogin, visitReqUserLogin)
	RspUserLogin        = newCodec(schema.RecordRspUserLogin, visitRspUserLogin)
	UserLogout          = newCodec(schema.RecordUserLogout, visitUserLogout)
	SpecificInstrument  = newCodec(schema.RecordSpecificInstrument, visitSpecificInstrument)
	DepthMarketData     = newCodec(schema.RecordDepthMarketData, visitDepthMarketData)
	ForQuoteRsp         = newCodec(schema.RecordForQuoteRsp, visitForQuoteRsp)
	InputOrder          = newCodec(schema.RecordInputOrder, visitInputOrder)
	InputOrderAction    = newCodec(schema.RecordInputOrderAction, visitInputOrderAction)
	Order               = newCodec(schema.RecordOrder, visitOrder)
	Trade               = newCodec(schema.RecordTrade, visitTrade)
	QryInvestorPosition = newCodec(schema.RecordQryInvestorPosition, visitQryInvestorPosition)
	InvestorPosition    = newCodec(schema.RecordInvestorPosition, visitInvestorPosition)
	QryTradingAccount   = newCodec(schema.RecordQryTradingAccount, visitQryTradingAccount)
	TradingAccount      = newCodec(schema.RecordTradingAccount, visitTradingAccount)
)

func visitRspInfo(f fieldVisitor, v *schema.RspInfo) {
	f.i32(&v.ErrorID)
	f.str(&v.ErrorMsg, widthErrorMsg)
}

func visitReqUserLogin(f fieldVisitor, v *schema.ReqUserLogin) {
	f.str(&v.TradingDay, widthDate)
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.UserID, widthUserID)
	f.str(&v.Password, widthPassword)
}

func visitRspUserLogin(f fieldVisitor, v *schema.RspUserLogin) {
	f.str(&v.TradingDay, widthDate)
	f.str(&v.LoginTime, widthTime)
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.UserID, widthUserID)
	f.str(&v.SystemName, widthSystemName)
	f.i32(&v.FrontID)
	f.i32(&v.SessionID)
	f.str(&v.MaxOrderRef, widthOrderRef)
}

func visitUserLogout(f fieldVisitor, v *schema.UserLogout) {
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.UserID, widthUserID)
}

func visitSpecificInstrument(f fieldVisitor, v *schema.SpecificInstrument) {
	f.str(&v.InstrumentID, widthInstrumentID)
}

func visitDepthMarketData(f fieldVisitor, v *schema.DepthMarketData) {
	f.str(&v.TradingDay, widthDate)
	f.str(&v.InstrumentID, widthInstrumentID)
	f.str(&v.ExchangeID, widthExchangeID)
	f.f64(&v.LastPrice)
	f.f64(&v.PreSettlementPrice)
	f.f64(&v.PreClosePrice)
	f.f64(&v.OpenPrice)
	f.f64(&v.HighestPrice)
	f.f64(&v.LowestPrice)
	f.i32(&v.Volume)
	f.f64(&v.Turnover)
	f.f64(&v.OpenInterest)
	f.f64(&v.UpperLimitPrice)
	f.f64(&v.LowerLimitPrice)
	f.str(&v.UpdateTime, widthTime)
	f.i32(&v.UpdateMillisec)
	f.f64(&v.BidPrice1)
	f.i32(&v.BidVolume1)
	f.f64(&v.AskPrice1)
	f.i32(&v.AskVolume1)
	f.f64(&v.AveragePrice)
	f.str(&v.ActionDay, widthDate)
}

func visitForQuoteRsp(f fieldVisitor, v *schema.ForQuoteRsp) {
	f.str(&v.TradingDay, widthDate)
	f.str(&v.InstrumentID, widthInstrumentID)
	f.str(&v.ForQuoteSysID, widthForQuoteSysID)
	f.str(&v.ForQuoteTime, widthTime)
	f.str(&v.ActionDay, widthDate)
	f.str(&v.ExchangeID, widthExchangeID)
}

func visitInputOrder(f fieldVisitor, v *schema.InputOrder) {
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.InvestorID, widthInvestorID)
	f.str(&v.InstrumentID, widthInstrumentID)
	f.str(&v.OrderRef, widthOrderRef)
	f.str(&v.UserID, widthUserID)
	f.char((*byte)(&v.OrderPriceType))
	f.char((*byte)(&v.Direction))
	f.str(&v.CombOffsetFlag, widthCombFlag)
	f.str(&v.CombHedgeFlag, widthCombFlag)
	f.f64(&v.LimitPrice)
	f.i32(&v.VolumeTotalOriginal)
	f.char((*byte)(&v.TimeCondition))
	f.i32(&v.RequestID)
	f.str(&v.ExchangeID, widthExchangeID)
}

func visitInputOrderAction(f fieldVisitor, v *schema.InputOrderAction) {
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.InvestorID, widthInvestorID)
	f.i32(&v.OrderActionRef)
	f.str(&v.OrderRef, widthOrderRef)
	f.i32(&v.RequestID)
	f.i32(&v.FrontID)
	f.i32(&v.SessionID)
	f.str(&v.ExchangeID, widthExchangeID)
	f.str(&v.OrderSysID, widthOrderSysID)
	f.char((*byte)(&v.ActionFlag))
	f.str(&v.InstrumentID, widthInstrumentID)
}

func visitOrder(f fieldVisitor, v *schema.Order) {
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.InvestorID, widthInvestorID)
	f.str(&v.InstrumentID, widthInstrumentID)
	f.str(&v.OrderRef, widthOrderRef)
	f.char((*byte)(&v.Direction))
	f.f64(&v.LimitPrice)
	f.i32(&v.VolumeTotalOriginal)
	f.str(&v.ExchangeID, widthExchangeID)
	f.str(&v.OrderSysID, widthOrderSysID)
	f.char((*byte)(&v.OrderStatus))
	f.i32(&v.VolumeTraded)
	f.i32(&v.VolumeTotal)
	f.str(&v.InsertTime, widthTime)
	f.i32(&v.FrontID)
	f.i32(&v.SessionID)
	f.str(&v.StatusMsg, widthStatusMsg)
}

func visitTrade(f fieldVisitor, v *schema.Trade) {
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.InvestorID, widthInvestorID)
	f.str(&v.InstrumentID, widthInstrumentID)
	f.str(&v.OrderRef, widthOrderRef)
	f.str(&v.ExchangeID, widthExchangeID)
	f.str(&v.TradeID, widthTradeID)
	f.char((*byte)(&v.Direction))
	f.str(&v.OrderSysID, widthOrderSysID)
	f.char((*byte)(&v.OffsetFlag))
	f.f64(&v.Price)
	f.i32(&v.Volume)
	f.str(&v.TradeDate, widthDate)
	f.str(&v.TradeTime, widthTime)
	f.str(&v.TradingDay, widthDate)
}

func visitQryInvestorPosition(f fieldVisitor, v *schema.QryInvestorPosition) {
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.InvestorID, widthInvestorID)
	f.str(&v.InstrumentID, widthInstrumentID)
}

func visitInvestorPosition(f fieldVisitor, v *schema.InvestorPosition) {
	f.str(&v.InstrumentID, widthInstrumentID)
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.InvestorID, widthInvestorID)
	f.char((*byte)(&v.PosiDirection))
	f.i32(&v.YdPosition)
	f.i32(&v.Position)
	f.i32(&v.TodayPosition)
	f.f64(&v.PositionCost)
	f.f64(&v.UseMargin)
	f.f64(&v.CloseProfit)
	f.f64(&v.PositionProfit)
	f.str(&v.TradingDay, widthDate)
	f.str(&v.ExchangeID, widthExchangeID)
}

func visitQryTradingAccount(f fieldVisitor, v *schema.QryTradingAccount) {
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.InvestorID, widthInvestorID)
}

func visitTradingAccount(f fieldVisitor, v *schema.TradingAccount) {
	f.str(&v.BrokerID, widthBrokerID)
	f.str(&v.AccountID, widthAccountID)
	f.f64(&v.PreBalance)
	f.f64(&v.Deposit)
	f.f64(&v.Withdraw)
	f.f64(&v.CurrMargin)
	f.f64(&v.Commission)
	f.f64(&v.CloseProfit)
	f.f64(&v.PositionProfit)
	f.f64(&v.Balance)
	f.f64(&v.Available)
	f.str(&v.TradingDay, widthDate)
}
