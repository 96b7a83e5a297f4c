package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of a paper order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusComplete  OrderStatus = "COMPLETE"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// PaperOrder represents a simulated order.
type PaperOrder struct {
	ID           uuid.UUID   `json:"id"`
	UserID       uuid.UUID   `json:"user_id"`
	Symbol       string      `json:"symbol"`
	Exchange     Exchange    `json:"exchange"`
	Side         OrderSide   `json:"side"`
	Type         OrderType   `json:"type"`
	Product      ProductType `json:"product"`
	Quantity     int         `json:"quantity"`
	Price        float64     `json:"price,omitempty"` // Limit price; zero for market orders
	AveragePrice float64     `json:"average_price"`
	FilledQty    int         `json:"filled_qty"`
	Charges      float64     `json:"charges"`
	Status       OrderStatus `json:"status"`
	Reason       string      `json:"reason,omitempty"`
	PlacedAt     time.Time   `json:"placed_at"`
	FilledAt     *time.Time  `json:"filled_at,omitempty"`
}

// Notional returns the order value at the given price.
func (o *PaperOrder) Notional(price float64) float64 {
	return price * float64(o.Quantity)
}

// PaperPosition represents an open simulated position.
// Quantity is signed: positive for long, negative for short.
type PaperPosition struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Symbol       string         `json:"symbol"`
	Exchange     Exchange       `json:"exchange"`
	Product      ProductType    `json:"product"`
	Kind         InstrumentKind `json:"kind"`
	Quantity     int            `json:"quantity"`
	AveragePrice float64        `json:"average_price"`
	LTP          float64        `json:"ltp"`
	Multiplier   int            `json:"multiplier"`
	PnL          float64        `json:"pnl"`
	PnLPercent   float64        `json:"pnl_percent"`
	RealizedPnL  float64        `json:"realized_pnl"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// InvestedValue returns the capital deployed in the position.
func (p *PaperPosition) InvestedValue() float64 {
	qty := p.Quantity
	if qty < 0 {
		qty = -qty
	}
	return p.AveragePrice * float64(qty*p.mult())
}

// CurrentValue returns the mark-to-market value of the position.
func (p *PaperPosition) CurrentValue() float64 {
	qty := p.Quantity
	if qty < 0 {
		qty = -qty
	}
	return p.LTP * float64(qty*p.mult())
}

func (p *PaperPosition) mult() int {
	if p.Multiplier > 0 {
		return p.Multiplier
	}
	return 1
}

// PaperTrade is a fill record produced when an order executes.
type PaperTrade struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	Charges    float64   `json:"charges"`
	PnL        float64   `json:"pnl"` // Realized P&L, sells only
	ExecutedAt time.Time `json:"executed_at"`
}

// PortfolioSummary aggregates a user's wallet and positions.
type PortfolioSummary struct {
	UserID        uuid.UUID `json:"user_id"`
	WalletBalance float64   `json:"wallet_balance"`
	InvestedValue float64   `json:"invested_value"`
	CurrentValue  float64   `json:"current_value"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
	TotalValue    float64   `json:"total_value"`
	PnLPercent    float64   `json:"pnl_percent"`
	OpenPositions int       `json:"open_positions"`
	OrdersToday   int       `json:"orders_today"`
	TotalCharges  float64   `json:"total_charges"`
}
