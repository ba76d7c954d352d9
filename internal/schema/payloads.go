package schema

// RspInfo is the response status attached to request/response events.
type RspInfo struct {
	ErrorID  int32
	ErrorMsg string
}

// Failed reports whether the status carries a nonzero error code.
// A nil status is a success.
func (r *RspInfo) Failed() bool {
	return r != nil && r.ErrorID != 0
}

// Direction is the CTP buy/sell flag.
type Direction byte

const (
	DirectionBuy  Direction = '0'
	DirectionSell Direction = '1'
)

// OffsetFlag is the CTP open/close flag.
type OffsetFlag byte

const (
	OffsetOpen           OffsetFlag = '0'
	OffsetClose          OffsetFlag = '1'
	OffsetForceClose     OffsetFlag = '2'
	OffsetCloseToday     OffsetFlag = '3'
	OffsetCloseYesterday OffsetFlag = '4'
)

// OrderStatus is the CTP order status code.
type OrderStatus byte

const (
	OrderStatusAllTraded             OrderStatus = '0'
	OrderStatusPartTradedQueueing    OrderStatus = '1'
	OrderStatusPartTradedNotQueueing OrderStatus = '2'
	OrderStatusNoTradeQueueing       OrderStatus = '3'
	OrderStatusNoTradeNotQueueing    OrderStatus = '4'
	OrderStatusCanceled              OrderStatus = '5'
	OrderStatusUnknown               OrderStatus = 'a'
)

// OrderPriceType is the CTP price type flag.
type OrderPriceType byte

const (
	PriceTypeAnyPrice   OrderPriceType = '1'
	PriceTypeLimitPrice OrderPriceType = '2'
)

// TimeCondition is the CTP time-in-force flag.
type TimeCondition byte

const (
	TimeConditionIOC TimeCondition = '1'
	TimeConditionGFD TimeCondition = '3'
)

// ActionFlag is the CTP order action flag.
type ActionFlag byte

const ActionFlagDelete ActionFlag = '0'

// PosiDirection is the CTP position direction.
type PosiDirection byte

const (
	PosiDirectionNet   PosiDirection = '1'
	PosiDirectionLong  PosiDirection = '2'
	PosiDirectionShort PosiDirection = '3'
)

// ReqUserLogin is the login request record.
type ReqUserLogin struct {
	TradingDay string
	BrokerID   string
	UserID     string
	Password   string
}

// RspUserLogin is the login response record.
type RspUserLogin struct {
	TradingDay  string
	LoginTime   string
	BrokerID    string
	UserID      string
	SystemName  string
	FrontID     int32
	SessionID   int32
	MaxOrderRef string
}

// UserLogout is used both as logout request and logout response.
type UserLogout struct {
	BrokerID string
	UserID   string
}

// SpecificInstrument acknowledges a (un)subscription for one instrument.
type SpecificInstrument struct {
	InstrumentID string
}

// DepthMarketData is one level-1 market data snapshot.
type DepthMarketData struct {
	TradingDay         string
	InstrumentID       string
	ExchangeID         string
	LastPrice          float64
	PreSettlementPrice float64
	PreClosePrice      float64
	OpenPrice          float64
	HighestPrice       float64
	LowestPrice        float64
	Volume             int32
	Turnover           float64
	OpenInterest       float64
	UpperLimitPrice    float64
	LowerLimitPrice    float64
	UpdateTime         string
	UpdateMillisec     int32
	BidPrice1          float64
	BidVolume1         int32
	AskPrice1          float64
	AskVolume1         int32
	AveragePrice       float64
	ActionDay          string
}

// ForQuoteRsp is a request-for-quote notification.
type ForQuoteRsp struct {
	TradingDay    string
	InstrumentID  string
	ForQuoteSysID string
	ForQuoteTime  string
	ActionDay     string
	ExchangeID    string
}

// InputOrder is an order entry request, echoed back in insert responses.
type InputOrder struct {
	BrokerID            string
	InvestorID          string
	InstrumentID        string
	OrderRef            string
	UserID              string
	OrderPriceType      OrderPriceType
	Direction           Direction
	CombOffsetFlag      string
	CombHedgeFlag       string
	LimitPrice          float64
	VolumeTotalOriginal int32
	TimeCondition       TimeCondition
	RequestID           int32
	ExchangeID          string
}

// InputOrderAction is an order cancel request.
type InputOrderAction struct {
	BrokerID       string
	InvestorID     string
	OrderActionRef int32
	OrderRef       string
	RequestID      int32
	FrontID        int32
	SessionID      int32
	ExchangeID     string
	OrderSysID     string
	ActionFlag     ActionFlag
	InstrumentID   string
}

// Order is an order status report.
type Order struct {
	BrokerID            string
	InvestorID          string
	InstrumentID        string
	OrderRef            string
	Direction           Direction
	LimitPrice          float64
	VolumeTotalOriginal int32
	ExchangeID          string
	OrderSysID          string
	OrderStatus         OrderStatus
	VolumeTraded        int32
	VolumeTotal         int32
	InsertTime          string
	FrontID             int32
	SessionID           int32
	StatusMsg           string
}

// Trade is a trade confirmation.
type Trade struct {
	BrokerID     string
	InvestorID   string
	InstrumentID string
	OrderRef     string
	ExchangeID   string
	TradeID      string
	Direction    Direction
	OrderSysID   string
	OffsetFlag   OffsetFlag
	Price        float64
	Volume       int32
	TradeDate    string
	TradeTime    string
	// TradingDay is the exchange trading day; night session trades carry the
	// next business day while TradeDate is the calendar date.
	TradingDay string
}

// QryInvestorPosition filters a position query. Empty fields match all.
type QryInvestorPosition struct {
	BrokerID     string
	InvestorID   string
	InstrumentID string
}

// InvestorPosition is one page of a position query.
type InvestorPosition struct {
	InstrumentID   string
	BrokerID       string
	InvestorID     string
	PosiDirection  PosiDirection
	YdPosition     int32
	Position       int32
	TodayPosition  int32
	PositionCost   float64
	UseMargin      float64
	CloseProfit    float64
	PositionProfit float64
	TradingDay     string
	ExchangeID     string
}

// QryTradingAccount filters an account query.
type QryTradingAccount struct {
	BrokerID   string
	InvestorID string
}

// TradingAccount is one page of an account query.
type TradingAccount struct {
	BrokerID       string
	AccountID      string
	PreBalance     float64
	Deposit        float64
	Withdraw       float64
	CurrMargin     float64
	Commission     float64
	CloseProfit    float64
	PositionProfit float64
	Balance        float64
	Available      float64
	TradingDay     string
}
