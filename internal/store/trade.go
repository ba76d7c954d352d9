// Package store persists trades to PostgreSQL.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ctpbridge/internal/schema"
	"ctpbridge/pkg/conn"
)

// exchangeZone is the zone CTP trade timestamps are reported in.
var exchangeZone = time.FixedZone("CST", 8*3600)

// TradeRecord is one persisted trade. A trade is identified by exchange
// and trade id, so replays after a reconnect are ignored.
type TradeRecord struct {
	ID           uint64          `gorm:"primaryKey"`
	ExchangeID   string          `gorm:"size:8;uniqueIndex:idx_trade_exchange_id"`
	TradeID      string          `gorm:"size:20;uniqueIndex:idx_trade_exchange_id"`
	BrokerID     string          `gorm:"size:10"`
	InvestorID   string          `gorm:"size:12;index"`
	InstrumentID string          `gorm:"size:30;index"`
	OrderRef     string          `gorm:"size:12"`
	OrderSysID   string          `gorm:"size:20"`
	Direction    string          `gorm:"size:1"`
	OffsetFlag   string          `gorm:"size:1"`
	Price        decimal.Decimal `gorm:"type:numeric(20,6)"`
	Volume       int32
	TradingDay   string `gorm:"size:8;index"`
	TradedAt     time.Time
	CreatedAt    time.Time
}

func (TradeRecord) TableName() string {
	return "ctp_trades"
}

// NewTradeRecord maps a trade. TradedAt is zero when the date or time is
// malformed.
func NewTradeRecord(t schema.Trade) TradeRecord {
	rec := TradeRecord{
		ExchangeID:   t.ExchangeID,
		TradeID:      t.TradeID,
		BrokerID:     t.BrokerID,
		InvestorID:   t.InvestorID,
		InstrumentID: t.InstrumentID,
		OrderRef:     t.OrderRef,
		OrderSysID:   t.OrderSysID,
		Direction:    flag(byte(t.Direction)),
		OffsetFlag:   flag(byte(t.OffsetFlag)),
		Price:        decimal.NewFromFloat(t.Price),
		Volume:       t.Volume,
		TradingDay:   t.TradingDay,
	}
	if at, err := time.ParseInLocation("20060102 15:04:05", t.TradeDate+" "+t.TradeTime, exchangeZone); err == nil {
		rec.TradedAt = at
	}
	return rec
}

func flag(b byte) string {
	if b == 0 {
		return ""
	}
	return string([]byte{b})
}

// Store writes trades.
type Store struct {
	db *gorm.DB
}

// Open connects with opt and migrates the trade table.
func Open(ctx context.Context, opt conn.Option) (*Store, *conn.Client, error) {
	client, err := conn.New(ctx, opt)
	if err != nil {
		return nil, nil, err
	}
	s, err := New(ctx, client.DB())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return s, client, nil
}

// New migrates the trade table on db.
func New(ctx context.Context, db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if err := db.WithContext(ctx).AutoMigrate(&TradeRecord{}); err != nil {
		return nil, errors.Wrap(err, "migrate trades")
	}
	return &Store{db: db}, nil
}

// SaveTrade inserts the trade. A trade already stored is not an error.
func (s *Store) SaveTrade(ctx context.Context, t schema.Trade) error {
	rec := NewTradeRecord(t)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
	if err != nil {
		return errors.Wrap(err, "insert trade").With("tradeID", t.TradeID)
	}
	return nil
}
