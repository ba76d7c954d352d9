package schema

// PriceScale is the multiplier applied to float prices when building ticks.
const PriceScale = 1000

// Tick is the compact market data view published by the gateway.
// Prices are scaled by PriceScale; Time is HHMMSSmmm.
type Tick struct {
	Symbol    string
	LastPrice int64
	Time      int32
	Volume    int32
	BidPrice  int64
	BidVolume int32
	AskPrice  int64
	AskVolume int32
}

// ErrorDTO is a failed response surfaced to consumers.
type ErrorDTO struct {
	Kind      EventKind
	RequestID int
	ErrorNo   int32
	ErrorMsg  string
}
