// Package models provides domain models for the paper trading platform.
package models

import (
	"time"
)

// Exchange represents a stock exchange.
type Exchange string

const (
	NSE Exchange = "NSE"
	BSE Exchange = "BSE"
	NFO Exchange = "NFO" // F&O
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// ProductType represents the product type of an order.
type ProductType string

const (
	ProductMIS  ProductType = "MIS"  // Intraday
	ProductCNC  ProductType = "CNC"  // Delivery
	ProductNRML ProductType = "NRML" // F&O Normal
)

// InstrumentKind classifies an instrument for P&L purposes.
type InstrumentKind string

const (
	KindEquity InstrumentKind = "EQUITY"
	KindOption InstrumentKind = "OPTION"
	KindFuture InstrumentKind = "FUTURE"
	KindIndex  InstrumentKind = "INDEX"
)

// MarketStatus represents the current market status.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketPreOpen MarketStatus = "PRE_OPEN"
	MarketClosed  MarketStatus = "CLOSED"
)

// Timeframe identifiers accepted by the candle endpoints.
const (
	Timeframe1m  = "1m"
	Timeframe5m  = "5m"
	Timeframe15m = "15m"
	Timeframe1h  = "1h"
	Timeframe1d  = "1d"
)

// Candle represents OHLCV data for a time period.
type Candle struct {
	Symbol    string    `json:"symbol,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Tick represents a real-time price update.
type Tick struct {
	Symbol        string    `json:"symbol"`
	LTP           float64   `json:"ltp"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"` // Previous session close
	Volume        int64     `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Quote represents a market quote snapshot.
type Quote struct {
	Symbol        string    `json:"symbol"`
	LTP           float64   `json:"ltp"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        int64     `json:"volume"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Instrument represents a tradeable instrument.
type Instrument struct {
	Symbol     string         `json:"symbol" csv:"symbol"`
	Name       string         `json:"name" csv:"name"`
	Exchange   Exchange       `json:"exchange" csv:"exchange"`
	Segment    string         `json:"segment" csv:"segment"`
	Kind       InstrumentKind `json:"kind" csv:"kind"`
	Underlying string         `json:"underlying,omitempty" csv:"underlying"`
	LotSize    int            `json:"lot_size" csv:"lot_size"`
	TickSize   float64        `json:"tick_size" csv:"tick_size"`
	Strike     float64        `json:"strike,omitempty" csv:"strike"`
	OptionType string         `json:"option_type,omitempty" csv:"option_type"` // CE, PE
	Expiry     time.Time      `json:"expiry,omitempty" csv:"-"`
	BasePrice  float64        `json:"-" csv:"base_price"`
}

// Multiplier returns the per-point P&L multiplier for the instrument.
func (i Instrument) Multiplier() int {
	if i.Kind == KindOption || i.Kind == KindFuture {
		if i.LotSize > 0 {
			return i.LotSize
		}
	}
	return 1
}
